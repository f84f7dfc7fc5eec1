// Package timezone derives the IANA zone of a position, used to read opening
// hours in the searcher's local time.
package timezone

import (
	"fmt"
	"time"

	"github.com/ringsaturn/tzf"

	"github.com/goose-osm/goose/internal/domain/geo"
)

// Finder is the subset of tzf.F the locator needs.
type Finder interface {
	GetTimezoneName(lng float64, lat float64) string
}

// Locator maps positions to time zones.
type Locator struct {
	finder   Finder
	fallback *time.Location
}

// New builds a Locator over the embedded tzf dataset. fallback names the
// zone used when a position has none (open sea) or the zone is unknown to
// the local tz database.
func New(fallback string) (*Locator, error) {
	f, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, fmt.Errorf("load timezone finder: %w", err)
	}
	return NewWithFinder(f, fallback)
}

// NewWithFinder builds a Locator over any Finder.
func NewWithFinder(f Finder, fallback string) (*Locator, error) {
	if fallback == "" {
		fallback = "UTC"
	}
	loc, err := time.LoadLocation(fallback)
	if err != nil {
		return nil, fmt.Errorf("load fallback timezone %q: %w", fallback, err)
	}
	return &Locator{finder: f, fallback: loc}, nil
}

// Locate returns the zone containing p, or the fallback zone.
func (l *Locator) Locate(p geo.Point) *time.Location {
	name := l.finder.GetTimezoneName(p.Lon, p.Lat)
	if name == "" {
		return l.fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return l.fallback
	}
	return loc
}

// Fallback returns the zone used when none can be derived.
func (l *Locator) Fallback() *time.Location { return l.fallback }
