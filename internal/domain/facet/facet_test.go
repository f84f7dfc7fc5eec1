package facet

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goose-osm/goose/internal/domain/result"
	"github.com/goose-osm/goose/internal/domain/rules"
)

func TestAggregate(t *testing.T) {
	paying := result.PresetTag(rules.Match{Slug: "paying", Description: "Payant"}, 0)
	free := result.PresetTag(rules.Match{Slug: "free", Description: "Gratuit", Clause: 1}, 0)

	results := []result.Result{
		{Tags: []result.Tag{paying, result.TagOpen, result.WheelchairTag("yes")}},
		{Tags: []result.Tag{free, result.TagClosed, result.WheelchairTag("")}},
		{Tags: []result.Tag{paying, result.TagOpen, result.WheelchairTag("yes"), result.VegetarianTag("yes")}},
	}

	f := Aggregate(results)

	var slugs []string
	for _, e := range f {
		slugs = append(slugs, e.Slug)
	}
	assert.Equal(t, []string{
		"open", "closed", "vegetarian_yes", "wheelchair_yes", "wheelchair_unknown", "paying", "free",
	}, slugs)
	assert.Equal(t, map[string]int{
		"open": 2, "closed": 1, "vegetarian_yes": 1, "wheelchair_yes": 2,
		"wheelchair_unknown": 1, "paying": 2, "free": 1,
	}, f.Counts())
	assert.Equal(t, "Payant", f[5].Label)
	assert.Equal(t, result.GroupPreset, f[5].Group)
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
	assert.Empty(t, Aggregate(nil).Counts())
}

func TestAggregate_OrderIndependentOfInput(t *testing.T) {
	a := []result.Result{
		{Tags: []result.Tag{result.WheelchairTag("no")}},
		{Tags: []result.Tag{result.TagUnknownSchedules}},
	}
	b := []result.Result{a[1], a[0]}
	assert.Equal(t, Aggregate(a), Aggregate(b))
}
