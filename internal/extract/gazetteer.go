// Package extract implements deterministic entity extraction: gazetteer and
// regex matching over the raw query with a fuzzy fallback for misspellings,
// plus the per-type confidence filter.
package extract

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Term is a single gazetteer entry. Canonical defaults to the term text;
// Weight scales the type's base confidence and defaults to 1.0.
type Term struct {
	Text      string  `yaml:"text"`
	Canonical string  `yaml:"canonical,omitempty"`
	Weight    float64 `yaml:"weight,omitempty"`
}

// Pattern is a regex rule producing entities of a fixed type.
type Pattern struct {
	Type   string  `yaml:"type"`
	Regexp string  `yaml:"regexp"`
	Weight float64 `yaml:"weight,omitempty"`
	Upper  bool    `yaml:"upper,omitempty"` // uppercase the canonical form
}

// Gazetteer holds the reference vocabulary for deterministic extraction. It
// is read-only at request time.
type Gazetteer struct {
	// TypeWeights is the base confidence per entity type. A gazetteer hit of
	// type T with term weight w scores TypeWeights[T] * w.
	TypeWeights map[string]float64 `yaml:"type_weights"`
	// Terms maps entity type to its vocabulary.
	Terms map[string][]Term `yaml:"terms"`
	// Patterns are regex rules, matched independently of the term lists.
	Patterns []Pattern `yaml:"patterns"`
}

// LoadGazetteer reads a gazetteer from a YAML file.
func LoadGazetteer(path string) (*Gazetteer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "extract: read gazetteer")
	}
	var g Gazetteer
	if err := yaml.Unmarshal(raw, &g); err != nil {
		return nil, eris.Wrap(err, "extract: parse gazetteer")
	}
	if len(g.Terms) == 0 && len(g.Patterns) == 0 {
		return nil, eris.Errorf("extract: gazetteer %s has no terms or patterns", path)
	}
	return &g, nil
}

// TypeWeight returns the base confidence for an entity type, defaulting to
// 0.7 for types the gazetteer does not weight explicitly.
func (g *Gazetteer) TypeWeight(entityType string) float64 {
	if w, ok := g.TypeWeights[entityType]; ok {
		return w
	}
	return 0.7
}
