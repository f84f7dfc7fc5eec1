// Package facet aggregates result tags into counted filter facets.
package facet

import (
	"sort"

	"github.com/goose-osm/goose/internal/domain/result"
)

// Entry is one facet line: a tag and the number of results carrying it.
type Entry struct {
	Slug     string       `json:"slug"`
	Label    string       `json:"label"`
	Group    result.Group `json:"group"`
	Count    int          `json:"count"`
	priority string
}

// Facet is the ordered tag summary of a result set.
type Facet []Entry

// Aggregate counts tag occurrences across results. Entries are ordered by tag
// priority (schedule, dietary, accessibility, then preset tags), slug breaking ties.
func Aggregate(results []result.Result) Facet {
	index := make(map[string]int)
	var out Facet
	for i := range results {
		for _, t := range results[i].Tags {
			if ix, ok := index[t.Slug]; ok {
				out[ix].Count++
				continue
			}
			index[t.Slug] = len(out)
			out = append(out, Entry{Slug: t.Slug, Label: t.Label, Group: t.Group, Count: 1, priority: t.Priority})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority < out[j].priority
		}
		return out[i].Slug < out[j].Slug
	})
	return out
}

// Counts returns the facet as a slug to count mapping.
func (f Facet) Counts() map[string]int {
	out := make(map[string]int, len(f))
	for _, e := range f {
		out[e.Slug] = e.Count
	}
	return out
}
