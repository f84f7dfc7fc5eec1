package fetch

import (
	"context"

	"github.com/goose-osm/goose/internal/domain/feature"
)

// FeatureSource runs a combined node/way query against the map data service.
type FeatureSource interface {
	Query(ctx context.Context, query string) ([]feature.Feature, error)
}
