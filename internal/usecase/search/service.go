package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/goose-osm/goose/internal/domain"
	"github.com/goose-osm/goose/internal/domain/facet"
	"github.com/goose-osm/goose/internal/domain/geo"
	"github.com/goose-osm/goose/internal/domain/preset"
	"github.com/goose-osm/goose/internal/domain/result"
	"github.com/goose-osm/goose/internal/logger"
	"github.com/goose-osm/goose/internal/metrics"
	"github.com/goose-osm/goose/internal/usecase/enrich"
	"github.com/goose-osm/goose/internal/usecase/resolve"
)

// Config bounds search requests.
type Config struct {
	MinRadius     int
	MaxRadius     int
	RadiusStep    int
	DefaultRadius int
	// Timeout is the whole-request budget. Zero disables it.
	Timeout time.Duration
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.MinRadius <= 0 {
		c.MinRadius = 100
	}
	if c.MaxRadius <= 0 {
		c.MaxRadius = 2000
	}
	if c.RadiusStep <= 0 {
		c.RadiusStep = 10
	}
	if c.DefaultRadius <= 0 {
		c.DefaultRadius = 500
	}
}

// Request is one search. Exactly one of Coordinates or Address is set.
type Request struct {
	PresetID    string
	Coordinates *geo.Point
	Address     string
	// Radius in meters. Zero means the configured default.
	Radius    int
	NoPrivate bool
	// Timezone is an IANA zone name overriding the one derived from the origin.
	Timezone string
}

// Response is the structured handoff to presentation.
type Response struct {
	Origin   resolve.Origin
	Preset   *preset.CategoryPreset
	Radius   int
	Timezone *time.Location
	Results  []result.Result
	Facet    facet.Facet
}

// Service runs the search pipeline: preset, origin, timezone, fetch, enrich, facet.
type Service struct {
	presets  PresetStore
	resolver Resolver
	fetcher  Fetcher
	enricher Enricher
	zones    TimezoneLocator
	cfg      Config
}

// New creates a search service. zones can be nil, in which case opening
// hours are read in UTC unless the request names a zone.
func New(
	presets PresetStore, resolver Resolver, fetcher Fetcher, enricher Enricher,
	zones TimezoneLocator, cfg Config,
) *Service {
	cfg.ApplyDefaults()
	return &Service{
		presets:  presets,
		resolver: resolver,
		fetcher:  fetcher,
		enricher: enricher,
		zones:    zones,
		cfg:      cfg,
	}
}

// Presets lists the available presets.
func (s *Service) Presets(ctx context.Context) ([]*preset.CategoryPreset, error) {
	return s.presets.List(ctx)
}

// Search executes one request. Only preset lookup, input validation,
// location resolution and feature fetch failures abort it; the rest degrade
// per result. An expired deadline yields domain.ErrTimeout.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	resp, label, err := s.search(ctx, req)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
		err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}

	outcome := "ok"
	if err != nil {
		outcome = string(domain.CategoryOf(err))
	}
	metrics.SearchesTotal.WithLabelValues(label, outcome).Inc()
	if err != nil {
		return nil, err
	}
	metrics.SearchResults.Observe(float64(len(resp.Results)))
	return resp, nil
}

// search returns the preset id as metric label once the preset is known,
// "unknown" before that.
func (s *Service) search(ctx context.Context, req Request) (*Response, string, error) {
	label := "unknown"
	radius, err := s.radius(req.Radius)
	if err != nil {
		return nil, label, err
	}
	if req.Coordinates != nil && strings.TrimSpace(req.Address) != "" ||
		req.Coordinates == nil && strings.TrimSpace(req.Address) == "" {
		return nil, label, fmt.Errorf("%w: exactly one of coordinates or address is required", domain.ErrInvalidInput)
	}

	p, err := s.presets.Get(ctx, req.PresetID)
	if err != nil {
		return nil, label, fmt.Errorf("get preset: %w", err)
	}
	label = p.ID
	ctx = logger.WithFields(ctx, zap.String("preset", p.ID))

	var override *time.Location
	if req.Timezone != "" {
		override, err = time.LoadLocation(req.Timezone)
		if err != nil {
			return nil, label, fmt.Errorf("%w: unknown timezone %q", domain.ErrInvalidInput, req.Timezone)
		}
	}

	origin, err := s.resolver.Resolve(ctx, resolve.Query{Coordinates: req.Coordinates, Address: req.Address})
	if err != nil {
		return nil, label, fmt.Errorf("resolve origin: %w", err)
	}

	loc := override
	if loc == nil {
		loc = s.locate(origin.Position)
	}

	features, err := s.fetcher.Fetch(ctx, p.FeatureKeys, origin.Position, radius)
	if err != nil {
		return nil, label, fmt.Errorf("fetch features: %w", err)
	}

	results, err := s.enricher.Enrich(ctx, enrich.Request{
		Features:  features,
		Preset:    p,
		Origin:    origin.Position,
		NoPrivate: req.NoPrivate,
		Location:  loc,
	})
	if err != nil {
		return nil, label, fmt.Errorf("enrich results: %w", err)
	}

	logger.FromContext(ctx).Named("statistics").Info("search_performed",
		zap.Int("radius", radius),
		zap.Float64("lat", math.Round(origin.Position.Lat)),
		zap.Float64("lon", math.Round(origin.Position.Lon)),
		zap.Bool("no_private", req.NoPrivate),
		zap.Int("results", len(results)),
	)

	return &Response{
		Origin:   origin,
		Preset:   p,
		Radius:   radius,
		Timezone: loc,
		Results:  results,
		Facet:    facet.Aggregate(results),
	}, label, nil
}

func (s *Service) radius(r int) (int, error) {
	if r == 0 {
		return s.cfg.DefaultRadius, nil
	}
	if r < s.cfg.MinRadius || r > s.cfg.MaxRadius {
		return 0, fmt.Errorf("%w: radius %d outside [%d, %d]",
			domain.ErrInvalidInput, r, s.cfg.MinRadius, s.cfg.MaxRadius)
	}
	if r%s.cfg.RadiusStep != 0 {
		return 0, fmt.Errorf("%w: radius %d is not a multiple of %d", domain.ErrInvalidInput, r, s.cfg.RadiusStep)
	}
	return r, nil
}

func (s *Service) locate(p geo.Point) *time.Location {
	if s.zones == nil {
		return time.UTC
	}
	return s.zones.Locate(p)
}
