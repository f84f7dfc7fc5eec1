package rules

import (
	"fmt"
	"strings"

	"github.com/goose-osm/goose/internal/domain"
)

// RenderKind discriminates the two property-render directives.
type RenderKind int

const (
	// KindDisplay shows a property's raw value under a label.
	KindDisplay RenderKind = iota
	// KindMapping maps property values to display texts.
	KindMapping
)

// ValueMapping pairs a property value (or Wildcard) with its display text.
type ValueMapping struct {
	Value string
	Text  string
}

// RenderRule is one parsed property-render directive.
type RenderRule struct {
	Kind   RenderKind
	Label  string
	Key    string
	Values []ValueMapping // KindMapping only, wildcard excluded
	// Fallback is the wildcard display text, empty when the rule has no wildcard.
	Fallback    string
	HasFallback bool
}

// RenderRules is an ordered list of directives parsed from preset text.
type RenderRules []RenderRule

// ParseRenderRules parses property-render rule text. Blank lines are ignored.
//
//	DISPLAY "Website":"website"
//	"fee" "Paying":["yes":"Yes"|"no":"No"|"*":"Unknown"]
func ParseRenderRules(text string) (RenderRules, error) {
	var out RenderRules
	for i, line := range lines(text) {
		if line == "" {
			continue
		}
		rule, reason := parseRenderLine(line)
		if reason != "" {
			return nil, domain.NewValidationError(i+1, reason)
		}
		out = append(out, rule)
	}
	return out, nil
}

func parseRenderLine(line string) (RenderRule, string) {
	if strings.HasPrefix(line, "DISPLAY") {
		return parseDisplay(line)
	}
	return parseMapping(line)
}

func parseDisplay(line string) (RenderRule, string) {
	sc := &scanner{s: line, pos: len("DISPLAY")}
	if !sc.skipSpaces() {
		return RenderRule{}, "DISPLAY must be followed by a space"
	}
	if sc.peek() != '"' {
		return RenderRule{}, "the label must be enclosed in double quotes"
	}
	label, ok := sc.quoted()
	if !ok {
		return RenderRule{}, "the label is missing its closing quote"
	}
	if !sc.accept(':') {
		return RenderRule{}, "the label and the key must be separated by a colon (:)"
	}
	if sc.peek() != '"' {
		return RenderRule{}, "the key must be enclosed in double quotes"
	}
	key, ok := sc.quoted()
	if !ok {
		return RenderRule{}, "the key is missing its closing quote"
	}
	if !wordRe.MatchString(key) {
		return RenderRule{}, fmt.Sprintf("invalid key %q: only letters, digits and underscores are allowed", key)
	}
	sc.skipSpaces()
	if !sc.eof() {
		return RenderRule{}, "unexpected text after the key"
	}
	return RenderRule{Kind: KindDisplay, Label: label, Key: key}, ""
}

func parseMapping(line string) (RenderRule, string) {
	sc := &scanner{s: line}
	if sc.peek() != '"' {
		return RenderRule{}, `the line matches no directive: expected DISPLAY or a quoted key`
	}
	key, ok := sc.quoted()
	if !ok {
		return RenderRule{}, "the key is missing its closing quote"
	}
	if strings.ContainsAny(key, " \t") {
		return RenderRule{}, "the key is missing its closing quote"
	}
	if !wordRe.MatchString(key) {
		return RenderRule{}, fmt.Sprintf("invalid key %q: only letters, digits and underscores are allowed", key)
	}
	if !sc.skipSpaces() {
		return RenderRule{}, "the key and the label must be separated by a space"
	}
	if sc.peek() != '"' {
		return RenderRule{}, "the label must be enclosed in double quotes"
	}
	label, ok := sc.quoted()
	if !ok {
		return RenderRule{}, "the label is missing its closing quote"
	}
	if !sc.accept(':') {
		return RenderRule{}, "the label and the value list must be separated by a colon (:)"
	}
	if !sc.accept('[') {
		return RenderRule{}, "the value list must start with '['"
	}

	rule := RenderRule{Kind: KindMapping, Label: label, Key: key}
	seen := make(map[string]bool)
	for {
		sc.skipSpaces()
		if sc.peek() != '"' {
			return RenderRule{}, "each value must be enclosed in double quotes"
		}
		value, ok := sc.quoted()
		if !ok {
			return RenderRule{}, "a value is missing its closing quote"
		}
		if value != Wildcard && !wordRe.MatchString(value) {
			return RenderRule{}, fmt.Sprintf("invalid value %q: only letters, digits, underscores or * are allowed", value)
		}
		if !sc.accept(':') {
			return RenderRule{}, fmt.Sprintf("value %q and its display text must be separated by a colon (:)", value)
		}
		if sc.peek() != '"' {
			return RenderRule{}, fmt.Sprintf("the display text of value %q must be enclosed in double quotes", value)
		}
		text, ok := sc.quoted()
		if !ok {
			return RenderRule{}, fmt.Sprintf("the display text of value %q is missing its closing quote", value)
		}
		if seen[value] {
			return RenderRule{}, fmt.Sprintf("value %q is mapped more than once", value)
		}
		seen[value] = true
		if value == Wildcard {
			rule.Fallback = text
			rule.HasFallback = true
		} else {
			rule.Values = append(rule.Values, ValueMapping{Value: value, Text: text})
		}

		sc.skipSpaces()
		if sc.accept('|') {
			continue
		}
		if sc.accept(']') {
			break
		}
		return RenderRule{}, "the value list must be closed with ']' and its entries separated by '|'"
	}
	sc.skipSpaces()
	if !sc.eof() {
		return RenderRule{}, "unexpected text after ']'"
	}
	return rule, ""
}

// Render evaluates every rule against a property bag and returns
// "label : text" lines in rule order. Rules with nothing to show are omitted.
func (rr RenderRules) Render(props map[string]string) []string {
	var out []string
	for _, r := range rr {
		if text, ok := r.Evaluate(props); ok {
			out = append(out, r.Label+" : "+text)
		}
	}
	return out
}

// Evaluate returns the display text of one rule for the given properties.
//
// A mapping rule splits the property on ';' and keeps, in property order,
// the text of every value it knows. When no value is known the wildcard text
// is used; without a wildcard nothing is shown.
func (r RenderRule) Evaluate(props map[string]string) (string, bool) {
	raw := props[r.Key]
	if raw == "" {
		return "", false
	}
	if r.Kind == KindDisplay {
		return raw, true
	}

	var texts []string
	for _, v := range strings.Split(raw, ";") {
		v = strings.TrimSpace(v)
		if text, ok := r.lookup(v); ok {
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		if !r.HasFallback {
			return "", false
		}
		return r.Fallback, true
	}
	return strings.Join(texts, " - "), true
}

func (r RenderRule) lookup(value string) (string, bool) {
	for _, m := range r.Values {
		if m.Value == value {
			return m.Text, true
		}
	}
	return "", false
}
