// Package preset stores search preset definitions and serves them compiled.
package preset

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/goose-osm/goose/internal/domain"
	dompreset "github.com/goose-osm/goose/internal/domain/preset"
)

// Catalogue is the stored form of all presets and the filters they reference.
type Catalogue struct {
	Presets []dompreset.Definition       `yaml:"presets"`
	Filters []dompreset.FilterDefinition `yaml:"filters"`
}

// ParseCatalogue decodes a YAML catalogue. Unknown fields are rejected.
func ParseCatalogue(data []byte) (*Catalogue, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Catalogue
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return &c, nil
		}
		return nil, fmt.Errorf("%w: parse catalogue: %w", domain.ErrInvalidInput, err)
	}
	return &c, nil
}

// Compile parses every preset, keeping catalogue order. Duplicate preset ids
// or filter names are rejected.
func (c *Catalogue) Compile() ([]*dompreset.CategoryPreset, error) {
	filters := make(map[string]dompreset.FilterDefinition, len(c.Filters))
	for _, f := range c.Filters {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: filter without name", domain.ErrInvalidInput)
		}
		if _, dup := filters[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate filter %q", domain.ErrInvalidInput, f.Name)
		}
		filters[f.Name] = f
	}

	seen := make(map[string]bool, len(c.Presets))
	out := make([]*dompreset.CategoryPreset, 0, len(c.Presets))
	for _, def := range c.Presets {
		if seen[def.ID] {
			return nil, fmt.Errorf("%w: duplicate preset %q", domain.ErrInvalidInput, def.ID)
		}
		seen[def.ID] = true

		p, err := dompreset.Compile(def, filters)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
