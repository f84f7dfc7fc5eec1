package fetch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/goose-osm/goose/internal/domain"
	"github.com/goose-osm/goose/internal/domain/feature"
	"github.com/goose-osm/goose/internal/domain/geo"
	"github.com/goose-osm/goose/internal/domain/preset"
	"github.com/goose-osm/goose/internal/logger"
	"github.com/goose-osm/goose/internal/metrics"
	"github.com/goose-osm/goose/internal/retry"
	"github.com/goose-osm/goose/internal/transport/overpass"
)

// Config holds the fetcher settings.
type Config struct {
	MaxAttempts int
	// QueryTimeoutSec is the server-side [timeout:N] of each query.
	QueryTimeoutSec int
}

// Service fetches raw features around an origin.
type Service struct {
	source      FeatureSource
	maxAttempts int
	timeoutSec  int
}

// New creates a Service. MaxAttempts defaults to 3 and QueryTimeoutSec to 25.
func New(source FeatureSource, cfg Config) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.QueryTimeoutSec <= 0 {
		cfg.QueryTimeoutSec = 25
	}
	return &Service{source: source, maxAttempts: cfg.MaxAttempts, timeoutSec: cfg.QueryTimeoutSec}
}

// Fetch returns every node and way matching any key within radius meters of
// origin, unfiltered. Transient failures are retried; once attempts run out
// the error wraps domain.ErrFeatureFetchFailed. An empty answer is never faked.
func (s *Service) Fetch(
	ctx context.Context, keys []preset.FeatureKey, origin geo.Point, radius int,
) ([]feature.Feature, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no feature keys", domain.ErrInvalidInput)
	}
	if radius <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", domain.ErrInvalidInput)
	}

	log := logger.FromContext(ctx)
	query := overpass.BuildQuery(keys, origin, radius, s.timeoutSec)
	log.Debug("fetching features", zap.String("query", query))

	policy := retry.Policy{
		MaxAttempts: s.maxAttempts,
		Retryable:   func(err error) bool { return errors.Is(err, domain.ErrProviderUnavailable) },
		OnRetry: func(attempt int, err error) {
			metrics.UpstreamRetriesTotal.WithLabelValues("overpass").Inc()
			log.Debug("feature fetch failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		},
	}
	features, err := retry.Do(ctx, policy, func(ctx context.Context) ([]feature.Feature, error) {
		return s.source.Query(ctx, query)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Error("feature fetch gave up", zap.Int("max_attempts", s.maxAttempts), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrFeatureFetchFailed, err)
	}

	log.Debug("features fetched", zap.Int("count", len(features)))
	return features, nil
}
