// Package preset compiles search preset definitions into parsed, read-only
// category presets shared across requests.
package preset

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/goose-osm/goose/internal/domain"
	"github.com/goose-osm/goose/internal/domain/result"
	"github.com/goose-osm/goose/internal/domain/rules"
)

var featureKeyRe = regexp.MustCompile(`^"([\w:]+)"="([\w:-]+)"$`)

// FeatureKey is one key=value selector of map objects.
type FeatureKey struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Selector returns the Overpass tag filter, e.g. ["shop"="bakery"].
func (k FeatureKey) Selector() string {
	return fmt.Sprintf("[%q=%q]", k.Key, k.Value)
}

// ParseFeatureKeys reads one `"key"="value"` selector per line. Blank lines
// are ignored.
func ParseFeatureKeys(text string) ([]FeatureKey, error) {
	var out []FeatureKey
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := featureKeyRe.FindStringSubmatch(line)
		if m == nil {
			return nil, domain.NewValidationError(i+1, `each line must read "key"="value"`)
		}
		out = append(out, FeatureKey{Key: m[1], Value: m[2]})
	}
	return out, nil
}

// Definition is the stored, uncompiled form of a preset.
type Definition struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	FeatureKeys string   `yaml:"osm_keys" json:"osm_keys"`
	RenderRules string   `yaml:"render_rules" json:"render_rules,omitempty"`
	Filters     []string `yaml:"filters" json:"filters,omitempty"`
}

// FilterDefinition is the stored form of a filter rule shared by presets.
type FilterDefinition struct {
	Name  string `yaml:"name" json:"name"`
	Rules string `yaml:"rules" json:"rules"`
}

// CategoryPreset is a compiled preset. It is immutable once built.
type CategoryPreset struct {
	ID          string
	Name        string
	FeatureKeys []FeatureKey
	Render      rules.RenderRules
	Filters     []rules.FilterRule
}

// Compile parses every DSL of a definition. filters resolves filter
// references by name. Errors wrap domain.ErrInvalidInput and name the field.
func Compile(def Definition, filters map[string]FilterDefinition) (*CategoryPreset, error) {
	if strings.TrimSpace(def.ID) == "" {
		return nil, fmt.Errorf("%w: preset id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(def.Name) == "" {
		return nil, fmt.Errorf("%w: preset %q: name is required", domain.ErrInvalidInput, def.ID)
	}

	keys, err := ParseFeatureKeys(def.FeatureKeys)
	if err != nil {
		return nil, fmt.Errorf("preset %q osm_keys: %w", def.ID, err)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: preset %q: osm_keys is empty", domain.ErrInvalidInput, def.ID)
	}

	render, err := rules.ParseRenderRules(def.RenderRules)
	if err != nil {
		return nil, fmt.Errorf("preset %q render_rules: %w", def.ID, err)
	}

	p := &CategoryPreset{ID: def.ID, Name: def.Name, FeatureKeys: keys, Render: render}
	for _, name := range def.Filters {
		fd, ok := filters[name]
		if !ok {
			return nil, fmt.Errorf("%w: preset %q: unknown filter %q", domain.ErrInvalidInput, def.ID, name)
		}
		f, err := rules.ParseFilterRule(fd.Name, fd.Rules)
		if err != nil {
			return nil, fmt.Errorf("preset %q filter %q: %w", def.ID, name, err)
		}
		p.Filters = append(p.Filters, f)
	}
	return p, nil
}

// FilterTags evaluates every filter against a property bag. Each filter
// contributes at most one tag.
func (p *CategoryPreset) FilterTags(props map[string]string) []result.Tag {
	var out []result.Tag
	for i, f := range p.Filters {
		if m, ok := f.Evaluate(props); ok {
			out = append(out, result.PresetTag(m, i))
		}
	}
	return out
}

// IsValidation reports whether err is a DSL validation failure with a line number.
func IsValidation(err error) bool {
	var verr *domain.ValidationError
	return errors.As(err, &verr)
}
