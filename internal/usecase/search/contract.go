package search

import (
	"context"
	"time"

	"github.com/goose-osm/goose/internal/domain/feature"
	"github.com/goose-osm/goose/internal/domain/geo"
	"github.com/goose-osm/goose/internal/domain/preset"
	"github.com/goose-osm/goose/internal/domain/result"
	"github.com/goose-osm/goose/internal/usecase/enrich"
	"github.com/goose-osm/goose/internal/usecase/resolve"
)

// PresetStore yields compiled presets.
type PresetStore interface {
	Get(ctx context.Context, id string) (*preset.CategoryPreset, error)
	List(ctx context.Context) ([]*preset.CategoryPreset, error)
}

// Resolver turns user input into an origin.
type Resolver interface {
	Resolve(ctx context.Context, q resolve.Query) (resolve.Origin, error)
}

// Fetcher queries raw features around an origin.
type Fetcher interface {
	Fetch(ctx context.Context, keys []preset.FeatureKey, origin geo.Point, radius int) ([]feature.Feature, error)
}

// Enricher turns features into sorted results.
type Enricher interface {
	Enrich(ctx context.Context, req enrich.Request) ([]result.Result, error)
}

// TimezoneLocator derives the local zone of a position.
type TimezoneLocator interface {
	Locate(p geo.Point) *time.Location
}
