package enrich

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/goose-osm/goose/internal/domain"
	"github.com/goose-osm/goose/internal/domain/feature"
	"github.com/goose-osm/goose/internal/domain/geo"
	"github.com/goose-osm/goose/internal/domain/place"
	"github.com/goose-osm/goose/internal/domain/preset"
	"github.com/goose-osm/goose/internal/domain/result"
	"github.com/goose-osm/goose/internal/domain/schedule"
	"github.com/goose-osm/goose/internal/logger"
	"github.com/goose-osm/goose/internal/metrics"
	"github.com/goose-osm/goose/internal/usecase/resolve"
)

// resultNamespace seeds result IDs so the same map object always gets the same ID.
var resultNamespace = uuid.MustParse("6f1c2a4e-3b7d-4c58-9a0e-5d2f8b1e7c93")

// Config holds the pipeline settings.
type Config struct {
	// Workers bounds concurrent per-feature enrichment. Defaults to 8.
	Workers int
	// TrueBearing switches from the legacy bearing formula to the geodesic one.
	TrueBearing bool
	// MaxFallbacks caps single reverse lookups per run. Defaults to 3.
	MaxFallbacks int
	// FallbackTimeout caps the time spent on single lookups. The budget is
	// also held to half of what remains before the context deadline.
	// Defaults to 3s.
	FallbackTimeout time.Duration
}

// Request is one enrichment run.
type Request struct {
	Features  []feature.Feature
	Preset    *preset.CategoryPreset
	Origin    geo.Point
	NoPrivate bool
	// Location is the timezone opening hours are read in. Nil means UTC.
	Location *time.Location
}

// Service turns raw features into tagged results sorted by distance.
type Service struct {
	batch           BatchAddressLookup
	single          SingleAddressLookup
	pool            *ants.Pool
	now             func() time.Time
	trueBearing     bool
	maxFallbacks    int
	fallbackTimeout time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithClock sets the clock used to evaluate opening hours.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service. single can be nil, in which case unusable batch
// rows degrade to an unknown address. Release must be called on shutdown.
func New(batch BatchAddressLookup, single SingleAddressLookup, cfg Config, opts ...Option) (*Service, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.MaxFallbacks <= 0 {
		cfg.MaxFallbacks = 3
	}
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = 3 * time.Second
	}
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create enrichment pool: %w", err)
	}
	s := &Service{
		batch:           batch,
		single:          single,
		pool:            pool,
		now:             time.Now,
		trueBearing:     cfg.TrueBearing,
		maxFallbacks:    cfg.MaxFallbacks,
		fallbackTimeout: cfg.FallbackTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Release stops the worker pool.
func (s *Service) Release() { s.pool.Release() }

// Enrich runs the per-feature pipeline, sorts results by distance (ties keep
// fetch order) and fills estimated addresses with one batch lookup.
// Per-result failures degrade the result; only a context error during the
// batch call aborts.
func (s *Service) Enrich(ctx context.Context, req Request) ([]result.Result, error) {
	loc := req.Location
	if loc == nil {
		loc = time.UTC
	}
	now := s.now().In(loc)
	log := logger.FromContext(ctx)

	out := make([]result.Result, len(req.Features))
	keep := make([]bool, len(req.Features))

	var wg sync.WaitGroup
	for i := range req.Features {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			out[i], keep[i] = s.enrichOne(log, req, req.Features[i], now)
		}
		if err := s.pool.Submit(task); err != nil {
			log.Warn("enrichment pool rejected task, running inline", zap.Error(err))
			task()
		}
	}
	wg.Wait()

	results := out[:0]
	for i := range out {
		if keep[i] {
			results = append(results, out[i])
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DistanceMeters < results[j].DistanceMeters
	})

	if err := s.fillAddresses(ctx, results); err != nil {
		return nil, err
	}
	return results, nil
}

func isPrivate(props feature.Properties) bool {
	access := props.Get("access")
	return access == "private" || access == "no"
}

func (s *Service) enrichOne(
	log *zap.Logger, req Request, f feature.Feature, now time.Time,
) (result.Result, bool) {
	props := f.Properties.Clone()
	if req.NoPrivate && isPrivate(props) {
		return result.Result{}, false
	}

	fields := []zap.Field{zap.String("osm_type", f.OSMType()), zap.Int64("osm_id", f.ID)}

	pos, err := f.Position()
	if err != nil {
		log.Warn("skipping feature without usable geometry", append(fields, zap.Error(err))...)
		return result.Result{}, false
	}

	bearing := geo.Bearing(req.Origin, pos)
	if s.trueBearing {
		bearing = geo.TrueBearing(req.Origin, pos)
	}

	r := result.Result{
		ID:             uuid.NewSHA1(resultNamespace, []byte(fmt.Sprintf("%s/%d", f.OSMType(), f.ID))).String(),
		OSMType:        f.OSMType(),
		OSMID:          f.ID,
		Position:       pos,
		Properties:     props,
		Name:           props.Get("name"),
		Phone:          firstOf(props, "phone", "contact:phone"),
		DistanceMeters: geo.DistanceMeters(req.Origin, pos),
		Bearing:        bearing,
		Direction:      geo.Cardinal(bearing),
		OSMURL:         result.OSMURL(f.OSMType(), f.ID),
		ItineraryURL:   result.ItineraryURL(req.Origin, pos),
	}

	if addr, ok := result.ExactAddress(props); ok {
		r.Address = addr
	} else {
		r.Address = result.Address{Kind: result.AddressPending}
	}

	if raw := props.Get("opening_hours"); raw != "" {
		sched, err := schedule.Parse(raw)
		if err != nil {
			metrics.DegradationsTotal.WithLabelValues("schedule").Inc()
			log.Warn("opening hours not understood", append(fields, zap.Error(err))...)
		} else {
			r.Schedule = sched
			r.Open = sched.IsOpenAt(now)
		}
	}

	if req.Preset != nil {
		r.Tags = req.Preset.FilterTags(props)
		r.PropertyLines = req.Preset.Render.Render(props)
	}
	r.Tags = append(r.Tags, result.UniversalTags(props, r.Schedule, now)...)

	return r, true
}

func firstOf(props feature.Properties, keys ...string) string {
	for _, k := range keys {
		if v := props.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// fillAddresses resolves every pending address with one batch call. Rows the
// batch could not use fall back to a bounded number of single reverse lookups
// that skip the structured service.
func (s *Service) fillAddresses(ctx context.Context, results []result.Result) error {
	var pending []int
	for i := range results {
		if results[i].NeedsAddress() {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	var rows map[string]place.Place
	if s.batch != nil {
		lookups := make([]place.Lookup, len(pending))
		for n, i := range pending {
			lookups[n] = place.Lookup{ID: results[i].ID, Position: results[i].Position}
		}
		var err error
		rows, err = s.batch.ReverseCSV(ctx, lookups)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			for _, i := range pending {
				results[i].Address = result.Address{Kind: result.AddressUnknown}
			}
			degradeAddresses(ctx, len(pending), fmt.Errorf("%w: batch: %w", domain.ErrAddressLookupDegraded, err))
			return nil
		}
	}

	var unusable []int
	for _, i := range pending {
		r := &results[i]
		if row, ok := rows[r.ID]; ok {
			if addr, ok := result.Estimated(row.HouseNumber, row.Street, row.Postcode, row.City); ok {
				r.Address = addr
				continue
			}
		}
		r.Address = result.Address{Kind: result.AddressUnknown}
		unusable = append(unusable, i)
	}
	s.fillFallbacks(ctx, results, unusable)
	return nil
}

// fillFallbacks runs single lookups for at most maxFallbacks rows under a
// sub-deadline. Rows left over keep their unknown address.
func (s *Service) fillFallbacks(ctx context.Context, results []result.Result, rows []int) {
	if len(rows) == 0 {
		return
	}
	if s.single == nil {
		degradeAddresses(ctx, len(rows), fmt.Errorf("%w: no single lookup", domain.ErrAddressLookupDegraded))
		return
	}
	if over := len(rows) - s.maxFallbacks; over > 0 {
		degradeAddresses(ctx, over, fmt.Errorf("%w: %d rows over the cap of %d",
			domain.ErrAddressLookupDegraded, over, s.maxFallbacks))
		rows = rows[:s.maxFallbacks]
	}

	fctx, cancel := context.WithTimeout(ctx, s.fallbackBudget(ctx))
	defer cancel()

	for n, i := range rows {
		if err := fctx.Err(); err != nil {
			degradeAddresses(ctx, len(rows)-n, fmt.Errorf("%w: fallback budget spent: %w",
				domain.ErrAddressLookupDegraded, err))
			return
		}
		s.fillOne(fctx, &results[i])
	}
}

func (s *Service) fallbackBudget(ctx context.Context) time.Duration {
	budget := s.fallbackTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if half := time.Until(deadline) / 2; half < budget {
			budget = half
		}
	}
	return budget
}

func (s *Service) fillOne(ctx context.Context, r *result.Result) {
	pos := r.Position
	origin, err := s.single.Resolve(ctx, resolve.Query{Coordinates: &pos, SkipPrimary: true})
	if err != nil {
		degradeAddresses(ctx, 1, fmt.Errorf("%w: %w", domain.ErrAddressLookupDegraded, err),
			zap.String("osm_type", r.OSMType), zap.Int64("osm_id", r.OSMID))
		return
	}
	r.Address = result.EstimatedLabel(origin.Label)
}

func degradeAddresses(ctx context.Context, n int, err error, fields ...zap.Field) {
	metrics.DegradationsTotal.WithLabelValues("address").Add(float64(n))
	logger.FromContext(ctx).Warn("address lookup degraded",
		append(fields, zap.Int("count", n), zap.Error(err))...)
}
