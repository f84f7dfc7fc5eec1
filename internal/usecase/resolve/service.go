package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/goose-osm/goose/internal/domain"
	"github.com/goose-osm/goose/internal/domain/geo"
	"github.com/goose-osm/goose/internal/domain/place"
	"github.com/goose-osm/goose/internal/domain/result"
	"github.com/goose-osm/goose/internal/logger"
	"github.com/goose-osm/goose/internal/metrics"
	"github.com/goose-osm/goose/internal/retry"
)

// maxLabelSegments bounds fallback labels to their most specific parts.
const maxLabelSegments = 5

// Query is a resolution request: exactly one of Coordinates or Address.
type Query struct {
	Coordinates *geo.Point
	Address     string
	// SkipPrimary goes straight to the fallback geocoder.
	SkipPrimary bool
}

// Origin is a resolved position with its display label.
type Origin struct {
	Position geo.Point `json:"position"`
	Label    string    `json:"label"`
}

// Config holds the resolver settings.
type Config struct {
	MaxAttempts int
	Language    string
}

// Service resolves user input into an origin: primary structured service
// first, then the fallback geocoder with bounded retries.
type Service struct {
	primary     StructuredGeocoder
	fallback    FallbackGeocoder
	maxAttempts int
	lang        string
}

// New creates a Service. primary can be nil. MaxAttempts defaults to 3.
func New(primary StructuredGeocoder, fallback FallbackGeocoder, cfg Config) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Service{primary: primary, fallback: fallback, maxAttempts: cfg.MaxAttempts, lang: cfg.Language}
}

// Resolve returns the origin of a query.
// Errors: domain.ErrInvalidInput for a malformed query, domain.ErrUnresolvedLocation
// when no geocoder could place it, or the context error.
func (s *Service) Resolve(ctx context.Context, q Query) (Origin, error) {
	hasCoords := q.Coordinates != nil
	hasAddress := strings.TrimSpace(q.Address) != ""
	if hasCoords == hasAddress {
		return Origin{}, fmt.Errorf("%w: exactly one of coordinates or address is required", domain.ErrInvalidInput)
	}
	if hasCoords && !q.Coordinates.Valid() {
		return Origin{}, fmt.Errorf("%w: coordinates out of range", domain.ErrInvalidInput)
	}

	if s.primary != nil && !q.SkipPrimary {
		origin, ok, err := s.resolvePrimary(ctx, q)
		if err != nil {
			return Origin{}, err
		}
		if ok {
			return origin, nil
		}
	}
	return s.resolveFallback(ctx, q)
}

func (s *Service) resolvePrimary(ctx context.Context, q Query) (Origin, bool, error) {
	log := logger.FromContext(ctx)

	var (
		found []place.Place
		err   error
	)
	if q.Coordinates != nil {
		found, err = s.primary.Reverse(ctx, *q.Coordinates)
	} else {
		found, err = s.primary.Search(ctx, q.Address)
	}
	if err != nil {
		if ctx.Err() != nil {
			return Origin{}, false, ctx.Err()
		}
		log.Warn("structured geocoder failed, using fallback", zap.Error(err))
		return Origin{}, false, nil
	}
	if len(found) == 0 {
		return Origin{}, false, nil
	}

	first := found[0]
	if first.Label == "" || !first.Position.Valid() || first.Position.IsNull() {
		return Origin{}, false, nil
	}
	if result.IsBogusHousenumber(first.HouseNumber) {
		log.Debug("structured geocoder returned a 90xx housenumber, using fallback",
			zap.String("housenumber", first.HouseNumber))
		return Origin{}, false, nil
	}
	return Origin{Position: first.Position, Label: first.Label}, true, nil
}

func (s *Service) resolveFallback(ctx context.Context, q Query) (Origin, error) {
	log := logger.FromContext(ctx)

	policy := retry.Policy{
		MaxAttempts: s.maxAttempts,
		Retryable:   func(err error) bool { return errors.Is(err, domain.ErrProviderUnavailable) },
		OnRetry: func(attempt int, err error) {
			metrics.UpstreamRetriesTotal.WithLabelValues("nominatim").Inc()
			log.Debug("fallback geocoder failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		},
	}
	p, err := retry.Do(ctx, policy, func(ctx context.Context) (place.Place, error) {
		if q.Coordinates != nil {
			return s.fallback.Reverse(ctx, *q.Coordinates, s.lang)
		}
		return s.fallback.Geocode(ctx, q.Address, s.lang)
	})
	if err != nil {
		if ctx.Err() != nil {
			return Origin{}, ctx.Err()
		}
		log.Error("fallback geocoder gave up", zap.Int("max_attempts", s.maxAttempts), zap.Error(err))
		return Origin{}, fmt.Errorf("%w: %w", domain.ErrUnresolvedLocation, err)
	}
	if p.IsNull() {
		return Origin{}, domain.ErrUnresolvedLocation
	}
	return Origin{Position: p.Position, Label: shortLabel(p.Label)}, nil
}

// shortLabel keeps the first comma-separated segments of a geocoder label.
func shortLabel(label string) string {
	parts := strings.Split(label, ",")
	if len(parts) > maxLabelSegments {
		parts = parts[:maxLabelSegments]
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, ", ")
}
