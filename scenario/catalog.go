package scenario

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var builtin []byte

type Catalog struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// Builtin returns the catalog shipped with the binary.
func Builtin() (*Catalog, error) {
	return Parse(builtin)
}

// Load reads a catalog file. An empty path yields the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Builtin()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func Parse(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("catalog decode: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	seen := map[string]bool{}
	for _, s := range c.Scenarios {
		if s.ID == "" {
			return errors.New("catalog: scenario without id")
		}
		if seen[s.ID] {
			return fmt.Errorf("catalog: duplicate scenario %q", s.ID)
		}
		seen[s.ID] = true
		if len(s.Personas) == 0 {
			return fmt.Errorf("catalog: scenario %q has no personas", s.ID)
		}
		names := map[string]bool{}
		for _, p := range s.Personas {
			if p.Name == "" {
				return fmt.Errorf("catalog: scenario %q has a persona without name", s.ID)
			}
			if names[p.Name] {
				return fmt.Errorf("catalog: scenario %q repeats persona %q", s.ID, p.Name)
			}
			names[p.Name] = true
		}
	}
	return nil
}

func (c *Catalog) Get(id string) (*Scenario, error) {
	for i := range c.Scenarios {
		if c.Scenarios[i].ID == id {
			s := c.Scenarios[i]
			return &s, nil
		}
	}
	return nil, fmt.Errorf("scenario %q not found", id)
}
