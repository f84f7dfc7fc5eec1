package enrich

import (
	"context"

	"github.com/goose-osm/goose/internal/domain/place"
	"github.com/goose-osm/goose/internal/usecase/resolve"
)

// BatchAddressLookup reverse geocodes many positions in one call.
type BatchAddressLookup interface {
	ReverseCSV(ctx context.Context, points []place.Lookup) (map[string]place.Place, error)
}

// SingleAddressLookup resolves one position when the batch answer is unusable.
type SingleAddressLookup interface {
	Resolve(ctx context.Context, q resolve.Query) (resolve.Origin, error)
}
