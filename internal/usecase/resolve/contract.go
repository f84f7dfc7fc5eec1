package resolve

import (
	"context"

	"github.com/goose-osm/goose/internal/domain/geo"
	"github.com/goose-osm/goose/internal/domain/place"
)

// StructuredGeocoder is the primary address service. An empty answer is not an error.
type StructuredGeocoder interface {
	Search(ctx context.Context, text string) ([]place.Place, error)
	Reverse(ctx context.Context, p geo.Point) ([]place.Place, error)
}

// FallbackGeocoder is the secondary open geocoder. A miss is the null place.
type FallbackGeocoder interface {
	Reverse(ctx context.Context, p geo.Point, lang string) (place.Place, error)
	Geocode(ctx context.Context, text, lang string) (place.Place, error)
}
