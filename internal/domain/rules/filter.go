package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goose-osm/goose/internal/domain"
)

const filterSeparator = "=="

var slugRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Clause is one line of a filter rule: a key/value condition (or wildcard)
// and the tag it contributes.
type Clause struct {
	Key         string
	Value       string
	Wildcard    bool
	Slug        string
	Description string
}

// FilterRule derives at most one tag from a property bag. Clauses are tried
// top to bottom and the first match wins.
type FilterRule struct {
	Name    string
	Clauses []Clause
}

// Match is the outcome of a successful filter evaluation.
type Match struct {
	Slug        string
	Description string
	Filter      string
	Clause      int
}

// ParseFilterRule parses filter rule text. Blank lines are ignored.
//
//	fee=yes == paying == Paying
//	fee=no == free == Free
//	* == fee_unknown == Unknown price
//
// A wildcard clause matches unconditionally, so clauses after it are never
// reached. Its position is not enforced.
func ParseFilterRule(name, text string) (FilterRule, error) {
	rule := FilterRule{Name: name}
	for i, line := range lines(text) {
		if line == "" {
			continue
		}
		c, reason := parseClause(line)
		if reason != "" {
			return FilterRule{}, domain.NewValidationError(i+1, reason)
		}
		rule.Clauses = append(rule.Clauses, c)
	}
	return rule, nil
}

func parseClause(line string) (Clause, string) {
	parts := strings.Split(line, filterSeparator)
	if n := len(parts) - 1; n != 2 {
		return Clause{}, fmt.Sprintf("expected exactly two %q separators, found %d", filterSeparator, n)
	}
	cond := strings.TrimSpace(parts[0])
	slug := strings.TrimSpace(parts[1])
	desc := strings.TrimSpace(parts[2])

	var c Clause
	if cond == Wildcard {
		c.Wildcard = true
	} else {
		key, value, ok := strings.Cut(cond, "=")
		if !ok {
			return Clause{}, fmt.Sprintf("condition %q must be written key=value or *", cond)
		}
		c.Key = strings.TrimSpace(key)
		c.Value = strings.TrimSpace(value)
		if c.Key == "" {
			return Clause{}, "the condition key is empty"
		}
		if c.Value == "" {
			return Clause{}, fmt.Sprintf("the expected value of key %q is empty", c.Key)
		}
	}
	if !slugRe.MatchString(slug) {
		return Clause{}, fmt.Sprintf("invalid tag slug %q: only letters, digits, '_' and '-' are allowed", slug)
	}
	if desc == "" {
		return Clause{}, fmt.Sprintf("tag %q has no description", slug)
	}
	c.Slug = slug
	c.Description = desc
	return c, ""
}

// Evaluate returns the tag of the first matching clause.
func (f FilterRule) Evaluate(props map[string]string) (Match, bool) {
	for i, c := range f.Clauses {
		if !c.Wildcard {
			v, ok := props[c.Key]
			if !ok || v != c.Value {
				continue
			}
		}
		return Match{Slug: c.Slug, Description: c.Description, Filter: f.Name, Clause: i}, true
	}
	return Match{}, false
}
