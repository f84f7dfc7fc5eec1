package result

import (
	"fmt"
	"time"

	"github.com/goose-osm/goose/internal/domain/rules"
	"github.com/goose-osm/goose/internal/domain/schedule"
)

// Group is the facet group a tag belongs to.
type Group string

const (
	GroupSchedule   Group = "schedule"
	GroupVegetarian Group = "vegetarian"
	GroupVegan      Group = "vegan"
	GroupWheelchair Group = "wheelchair"
	GroupPreset     Group = "preset"
)

// Tag is a boolean facet of a result. Priority orders tags in facets:
// schedule (A), dietary (B), accessibility (C), then preset filters (D).
type Tag struct {
	Slug     string `json:"slug"`
	Label    string `json:"label"`
	Priority string `json:"-"`
	Group    Group  `json:"group"`
}

var (
	TagOpen             = Tag{Slug: "open", Label: "Open", Priority: "AAA", Group: GroupSchedule}
	TagClosed           = Tag{Slug: "closed", Label: "Closed", Priority: "AAB", Group: GroupSchedule}
	TagUnknownSchedules = Tag{Slug: "unknown_schedules", Label: "Unknown opening hours", Priority: "AAC", Group: GroupSchedule}
)

type valueTag struct {
	value string
	tag   Tag
}

var vegetarianTags = []valueTag{
	{"yes", Tag{Slug: "vegetarian_yes", Label: "Vegetarian options", Priority: "BAA", Group: GroupVegetarian}},
	{"only", Tag{Slug: "vegetarian_only", Label: "Vegetarian only", Priority: "BAB", Group: GroupVegetarian}},
	{"no", Tag{Slug: "vegetarian_no", Label: "No vegetarian options", Priority: "BAC", Group: GroupVegetarian}},
	{"", Tag{Slug: "vegetarian_unknown", Label: "Vegetarian options unknown", Priority: "BAD", Group: GroupVegetarian}},
}

var veganTags = []valueTag{
	{"yes", Tag{Slug: "vegan_yes", Label: "Vegan options", Priority: "BBA", Group: GroupVegan}},
	{"only", Tag{Slug: "vegan_only", Label: "Vegan only", Priority: "BBB", Group: GroupVegan}},
	{"no", Tag{Slug: "vegan_no", Label: "No vegan options", Priority: "BBC", Group: GroupVegan}},
	{"", Tag{Slug: "vegan_unknown", Label: "Vegan options unknown", Priority: "BBD", Group: GroupVegan}},
}

var wheelchairTags = []valueTag{
	{"yes", Tag{Slug: "wheelchair_yes", Label: "Wheelchair accessible", Priority: "CAA", Group: GroupWheelchair}},
	{"limited", Tag{Slug: "wheelchair_limited", Label: "Limited wheelchair access", Priority: "CAB", Group: GroupWheelchair}},
	{"no", Tag{Slug: "wheelchair_no", Label: "Not wheelchair accessible", Priority: "CAC", Group: GroupWheelchair}},
	{"", Tag{Slug: "wheelchair_unknown", Label: "Wheelchair access unknown", Priority: "CAD", Group: GroupWheelchair}},
}

// lookup returns the tag of a value; absent or unrecognised values map to
// the trailing unknown entry.
func lookup(table []valueTag, value string) Tag {
	for _, vt := range table[:len(table)-1] {
		if vt.value == value {
			return vt.tag
		}
	}
	return table[len(table)-1].tag
}

// ScheduleTag returns open/closed for a known schedule at now, unknown otherwise.
func ScheduleTag(s *schedule.Schedule, now time.Time) Tag {
	switch {
	case s == nil:
		return TagUnknownSchedules
	case s.IsOpenAt(now):
		return TagOpen
	default:
		return TagClosed
	}
}

func VegetarianTag(value string) Tag { return lookup(vegetarianTags, value) }

func VeganTag(value string) Tag { return lookup(veganTags, value) }

func WheelchairTag(value string) Tag { return lookup(wheelchairTags, value) }

// UniversalTags returns exactly one tag per universal category, in priority order.
func UniversalTags(props map[string]string, s *schedule.Schedule, now time.Time) []Tag {
	return []Tag{
		ScheduleTag(s, now),
		VegetarianTag(props["diet:vegetarian"]),
		VeganTag(props["diet:vegan"]),
		WheelchairTag(props["wheelchair"]),
	}
}

// PresetTag converts a filter match into a tag. filterIndex is the filter's
// position in its preset and orders preset tags after universal ones.
func PresetTag(m rules.Match, filterIndex int) Tag {
	return Tag{
		Slug:     m.Slug,
		Label:    m.Description,
		Priority: fmt.Sprintf("D%03d%03d", filterIndex, m.Clause),
		Group:    GroupPreset,
	}
}
