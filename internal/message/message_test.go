package message

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, RoleAssistant, NormalizeRole("model"))
	assert.Equal(t, RoleAssistant, NormalizeRole(" Assistant "))
	assert.Equal(t, RoleUser, NormalizeRole("USER"))
	assert.Equal(t, Role("tool"), NormalizeRole("tool"))
}

func TestHistory_AppendAndSetContent(t *testing.T) {
	h := NewHistory(Turn{Role: RoleUser, Content: "hi"})

	idx := h.Append(Turn{Role: RoleUser, Content: "q"}, Turn{Role: RoleAssistant})
	assert.Equal(t, 1, idx)
	assert.Equal(t, 3, h.Len())

	h.SetContent(2, "answer")
	h.SetContent(99, "ignored")

	turns := h.Turns()
	assert.Equal(t, "answer", turns[2].Content)

	turns[0].Content = "mutated copy"
	assert.Equal(t, "hi", h.Turns()[0].Content)
}

func TestHistory_Reset(t *testing.T) {
	h := NewHistory(Turn{Role: RoleUser, Content: "hi"})
	h.Reset()
	assert.Equal(t, 0, h.Len())
	assert.Empty(t, h.Turns())
}

func TestHistory_ConcurrentAccess(t *testing.T) {
	h := NewHistory()
	idx := h.Append(Turn{Role: RoleAssistant})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.SetContent(idx, "x")
		}()
		go func() {
			defer wg.Done()
			_ = h.Turns()
		}()
	}
	wg.Wait()
	assert.Equal(t, "x", h.Turns()[idx].Content)
}

func TestSnapshot_Last(t *testing.T) {
	assert.Equal(t, Turn{}, Snapshot{}.Last())
	s := Snapshot{History: []Turn{{Role: RoleUser, Content: "a"}, {Role: RoleAssistant, Content: "b"}}}
	assert.Equal(t, "b", s.Last().Content)
}
