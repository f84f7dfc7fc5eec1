// Package result holds the enriched, tagged search result handed to presentation.
package result

import (
	"fmt"
	"strconv"

	"github.com/goose-osm/goose/internal/domain/feature"
	"github.com/goose-osm/goose/internal/domain/geo"
	"github.com/goose-osm/goose/internal/domain/schedule"
)

// Result is one feature enriched relative to the search origin.
//
// It is created by the enrichment pipeline and mutated only once afterwards,
// when the batch address fill resolves an estimated address.
type Result struct {
	ID             string
	OSMType        string
	OSMID          int64
	Position       geo.Point
	Properties     feature.Properties
	Name           string
	Phone          string
	DistanceMeters int
	Bearing        float64
	Direction      geo.Direction
	Address        Address
	Schedule       *schedule.Schedule
	Open           bool
	Tags           []Tag
	PropertyLines  []string
	OSMURL         string
	ItineraryURL   string
}

// HasTag reports whether the result carries a tag with the given slug.
func (r Result) HasTag(slug string) bool {
	for _, t := range r.Tags {
		if t.Slug == slug {
			return true
		}
	}
	return false
}

// NeedsAddress reports whether the result still waits for an estimated address.
func (r *Result) NeedsAddress() bool { return r.Address.Kind == AddressPending }

// WeekSummary returns the opening hours summary, nil when the schedule is unknown.
func (r *Result) WeekSummary() []string {
	if r.Schedule == nil {
		return nil
	}
	return r.Schedule.WeekSummary()
}

// OSMURL returns the permalink of an object on openstreetmap.org.
func OSMURL(osmType string, id int64) string {
	return fmt.Sprintf("https://www.openstreetmap.org/%s/%d", osmType, id)
}

// ItineraryURL returns a walking itinerary between two points on openstreetmap.org.
func ItineraryURL(from, to geo.Point) string {
	return fmt.Sprintf(
		"https://www.openstreetmap.org/directions?engine=graphhopper_foot&route=%s,%s;%s,%s",
		formatCoord(from.Lat), formatCoord(from.Lon), formatCoord(to.Lat), formatCoord(to.Lon),
	)
}

func formatCoord(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
