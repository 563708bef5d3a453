// Package persona holds the fixed catalog of chatbot variants.
//
// The catalog is decoded once at startup from an embedded YAML file and is
// read-only afterwards; callers receive copies of Variant values.
package persona

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed personas.yaml
var builtin []byte

// HazardID is the identifier of the hazard-alert variant.
const HazardID = "Hazard Alerts (INDIANA)"

// Theme is the display color pair of a variant.
type Theme struct {
	Background string `yaml:"bg" json:"bg"`
	Text       string `yaml:"text" json:"text"`
}

// Variant is one chatbot persona.
type Variant struct {
	ID     string `yaml:"id" json:"id"`
	Prompt string `yaml:"prompt" json:"-"`
	Intro  string `yaml:"intro" json:"intro"`
	Theme  Theme  `yaml:"theme" json:"theme"`

	// Hazard variants answer from the hazard feeds instead of the model.
	Hazard bool `yaml:"hazard" json:"hazard"`
}

// Catalog is an ordered, immutable set of variants.
type Catalog struct {
	order []string
	byID  map[string]Variant
}

// Builtin returns the catalog compiled into the binary.
func Builtin() (*Catalog, error) {
	return Parse(builtin)
}

// Parse decodes a YAML list of variants and validates it.
func Parse(data []byte) (*Catalog, error) {
	var variants []Variant
	if err := yaml.Unmarshal(data, &variants); err != nil {
		return nil, fmt.Errorf("persona: parse: %w", err)
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("persona: catalog is empty")
	}

	c := &Catalog{byID: make(map[string]Variant, len(variants))}
	hazards := 0
	for i, v := range variants {
		v.ID = strings.TrimSpace(v.ID)
		if v.ID == "" {
			return nil, fmt.Errorf("persona: entry %d has no id", i)
		}
		if _, dup := c.byID[v.ID]; dup {
			return nil, fmt.Errorf("persona: duplicate id %q", v.ID)
		}
		if v.Hazard {
			hazards++
		} else if strings.TrimSpace(v.Prompt) == "" {
			return nil, fmt.Errorf("persona: %q has no system prompt", v.ID)
		}
		c.order = append(c.order, v.ID)
		c.byID[v.ID] = v
	}
	if hazards > 1 {
		return nil, fmt.Errorf("persona: %d hazard variants, at most one allowed", hazards)
	}
	return c, nil
}

// Lookup returns the variant with the given id.
func (c *Catalog) Lookup(id string) (Variant, bool) {
	v, ok := c.byID[id]
	return v, ok
}

// Default returns the first variant of the catalog.
func (c *Catalog) Default() Variant {
	return c.byID[c.order[0]]
}

// All returns the variants in catalog order.
func (c *Catalog) All() []Variant {
	out := make([]Variant, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// IDs returns the variant identifiers in catalog order.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.order...)
}
