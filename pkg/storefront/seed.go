package storefront

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed seed/catalog.yaml
var defaultSeed []byte

// Seed is the YAML catalog import format
type Seed struct {
	Modules   []Module   `yaml:"modules"`
	Templates []Template `yaml:"templates"`
}

// DefaultSeed returns the built-in catalog
func DefaultSeed() (*Seed, error) {
	return ParseSeed(defaultSeed)
}

// LoadSeed reads a catalog seed file
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog seed: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed parses and validates a catalog seed
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse catalog seed: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate checks keys, references and the one-default-per-category rule
func (s *Seed) Validate() error {
	ids := make(map[string]bool)
	keys := make(map[string]bool)
	categories := make(map[string]bool)
	for _, m := range s.Modules {
		if m.ID == "" || m.Category == "" || m.Title == "" {
			return fmt.Errorf("catalog seed: module %q needs id, category and title", m.ID)
		}
		if _, err := URLKey(m.Key); err != nil {
			return fmt.Errorf("catalog seed: module %s: %w", m.ID, err)
		}
		if ids[m.ID] || keys[m.Key] {
			return fmt.Errorf("catalog seed: duplicate module %s", m.ID)
		}
		ids[m.ID] = true
		keys[m.Key] = true
		categories[m.Category] = true
	}

	defaults := make(map[string]int)
	templateIDs := make(map[string]bool)
	for _, t := range s.Templates {
		if t.ID == "" || t.Category == "" {
			return fmt.Errorf("catalog seed: template %q needs id and category", t.ID)
		}
		if templateIDs[t.ID] {
			return fmt.Errorf("catalog seed: duplicate template %s", t.ID)
		}
		templateIDs[t.ID] = true
		if t.IsDefault {
			defaults[t.Category]++
		}
	}
	for category := range categories {
		if defaults[category] != 1 {
			return fmt.Errorf("catalog seed: category %s needs exactly one default template, has %d", category, defaults[category])
		}
	}
	return nil
}
