// Package message defines the conversation types flowing through the civicbot pipeline.
package message

import (
	"strings"
	"sync"
)

// Role identifies the speaker of a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// NormalizeRole lower-cases a role and maps provider aliases ("model", "bot")
// to RoleAssistant.
func NormalizeRole(r Role) Role {
	switch lr := Role(strings.ToLower(strings.TrimSpace(string(r)))); lr {
	case "model", "bot":
		return RoleAssistant
	default:
		return lr
	}
}

// Turn is a single utterance in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is the ordered, append-only turn sequence of one chat session.
//
// It is shared by reference: the orchestrator appends to it and keeps
// rewriting the last assistant turn while a reply is revealed, so all
// access goes through its methods. Alternation of roles is not enforced.
type History struct {
	mu    sync.Mutex
	turns []Turn
}

// NewHistory returns a history holding a copy of turns.
func NewHistory(turns ...Turn) *History {
	return &History{turns: append([]Turn(nil), turns...)}
}

// Append adds turns and returns the index of the first one added.
func (h *History) Append(turns ...Turn) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	idx := len(h.turns)
	h.turns = append(h.turns, turns...)
	return idx
}

// SetContent replaces the content of the turn at idx.
func (h *History) SetContent(idx int, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if idx >= 0 && idx < len(h.turns) {
		h.turns[idx].Content = content
	}
}

// Turns returns a copy of the current turns.
func (h *History) Turns() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Turn(nil), h.turns...)
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Reset empties the history.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}

// Snapshot is the state of a conversation at one reveal step: the cleared
// input box and the full history.
type Snapshot struct {
	Input   string `json:"input"`
	History []Turn `json:"history"`
}

// Last returns the final turn of the snapshot, or a zero Turn.
func (s Snapshot) Last() Turn {
	if len(s.History) == 0 {
		return Turn{}
	}
	return s.History[len(s.History)-1]
}
