package ai

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var defaultCatalog []byte

type Model struct {
	ID               string `yaml:"id"`
	Name             string `yaml:"name"`
	Emoji            string `yaml:"emoji"`
	Description      string `yaml:"description"`
	Reasoning        bool   `yaml:"reasoning"`
	ReasoningVariant string `yaml:"reasoning_variant"`
}

// Label is the button text for the model picker.
func (m Model) Label() string {
	if m.Emoji == "" {
		return m.Name
	}
	return m.Name + " " + m.Emoji
}

// Catalog lists the models users may pick from.
type Catalog struct {
	Default string  `yaml:"default"`
	Models  []Model `yaml:"models"`
}

// LoadCatalog reads a catalog file, or the built-in one when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model catalog: %w", err)
	}
	return ParseCatalog(data)
}

func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse model catalog: %w", err)
	}
	if len(c.Models) == 0 {
		return nil, fmt.Errorf("model catalog is empty")
	}

	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if m.ID == "" {
			return nil, fmt.Errorf("model catalog entry without id")
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("duplicate model %q in catalog", m.ID)
		}
		seen[m.ID] = true
	}
	for _, m := range c.Models {
		if m.ReasoningVariant != "" && !seen[m.ReasoningVariant] {
			return nil, fmt.Errorf("model %q names unknown reasoning variant %q", m.ID, m.ReasoningVariant)
		}
	}
	if c.Default == "" {
		c.Default = c.Models[0].ID
	}
	if !seen[c.Default] {
		return nil, fmt.Errorf("default model %q not in catalog", c.Default)
	}
	return &c, nil
}

func (c *Catalog) Lookup(id string) (Model, bool) {
	for _, m := range c.Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// IsReasoning reports whether the model thinks out loud. Unknown ids are
// judged by name.
func (c *Catalog) IsReasoning(id string) bool {
	if m, ok := c.Lookup(id); ok {
		return m.Reasoning
	}
	return strings.Contains(id, "reasoning")
}

// ThinkingModel returns the model to use when the user wants to see the
// reasoning: the reasoning variant if one exists, otherwise id itself.
func (c *Catalog) ThinkingModel(id string) string {
	if m, ok := c.Lookup(id); ok && m.ReasoningVariant != "" {
		return m.ReasoningVariant
	}
	return id
}
