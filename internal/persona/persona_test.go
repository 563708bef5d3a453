package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin(t *testing.T) {
	c, err := Builtin()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Hazard Alerts (INDIANA)",
		"Adaptive Crisis Response (ARK)",
		"Emotional Support (RAY)",
		"Survival & Logistics (BOLT)",
		"Disaster Preparedness (READYBOT)",
	}, c.IDs())

	def := c.Default()
	assert.Equal(t, HazardID, def.ID)
	assert.True(t, def.Hazard)
	assert.Equal(t, "#b91c1c", def.Theme.Background)

	ark, ok := c.Lookup("Adaptive Crisis Response (ARK)")
	require.True(t, ok)
	assert.False(t, ark.Hazard)
	assert.Contains(t, ark.Prompt, "You are ARK, the Adaptive Response Keeper")
	assert.Contains(t, ark.Prompt, "\n- **Emotional Support:**")
	assert.Contains(t, ark.Intro, "**ARK**")

	ready, ok := c.Lookup("Disaster Preparedness (READYBOT)")
	require.True(t, ok)
	assert.Equal(t, "#000000", ready.Theme.Text)
}

func TestLookupUnknown(t *testing.T) {
	c, err := Builtin()
	require.NoError(t, err)

	_, ok := c.Lookup("Nope")
	assert.False(t, ok)
}

func TestAllReturnsCopies(t *testing.T) {
	c, err := Builtin()
	require.NoError(t, err)

	all := c.All()
	all[0].Prompt = "mutated"

	v, _ := c.Lookup(all[0].ID)
	assert.NotEqual(t, "mutated", v.Prompt)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "[]"},
		{"missing id", "- prompt: hi\n"},
		{"duplicate", "- {id: a, prompt: x}\n- {id: a, prompt: y}\n"},
		{"no prompt", "- {id: a}\n"},
		{"two hazards", "- {id: a, hazard: true}\n- {id: b, hazard: true}\n"},
		{"not yaml", "{{{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
