package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goose-osm/goose/internal/domain"
	"github.com/goose-osm/goose/internal/domain/feature"
	"github.com/goose-osm/goose/internal/domain/geo"
	"github.com/goose-osm/goose/internal/domain/place"
	"github.com/goose-osm/goose/internal/domain/preset"
	"github.com/goose-osm/goose/internal/domain/result"
	"github.com/goose-osm/goose/internal/logger"
	"github.com/goose-osm/goose/internal/usecase/resolve"
)

// --- Mocks ---

type mockBatch struct {
	mu    sync.Mutex
	calls [][]place.Lookup
	reply func([]place.Lookup) map[string]place.Place
	err   error
}

func (m *mockBatch) ReverseCSV(_ context.Context, points []place.Lookup) (map[string]place.Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, points)
	if m.err != nil {
		return nil, m.err
	}
	if m.reply == nil {
		return map[string]place.Place{}, nil
	}
	return m.reply(points), nil
}

type mockSingle struct {
	mu      sync.Mutex
	queries []resolve.Query
	label   string
	err     error
	delay   time.Duration
}

func (m *mockSingle) Resolve(ctx context.Context, q resolve.Query) (resolve.Origin, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.mu.Unlock()
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return resolve.Origin{}, ctx.Err()
		}
	}
	if m.err != nil {
		return resolve.Origin{}, m.err
	}
	return resolve.Origin{Position: *q.Coordinates, Label: m.label}, nil
}

// --- Fixtures ---

var (
	reykjavik = geo.Point{Lat: 64.14624, Lon: -21.94259}
	// Monday 2024-01-01 10:00 UTC.
	monday10 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
)

func node(id int64, lat, lon float64, props feature.Properties) feature.Feature {
	return feature.Feature{ID: id, Geometry: feature.Point, Coordinates: [][2]float64{{lon, lat}}, Properties: props}
}

func newService(t *testing.T, batch BatchAddressLookup, single SingleAddressLookup, cfg Config) *Service {
	t.Helper()
	s, err := New(batch, single, cfg, WithClock(func() time.Time { return monday10 }))
	require.NoError(t, err)
	t.Cleanup(s.Release)
	return s
}

func exactProps(extra feature.Properties) feature.Properties {
	p := feature.Properties{"addr:housenumber": "1", "addr:street": "Laugavegur"}
	for k, v := range extra {
		p[k] = v
	}
	return p
}

func bakeryPreset(t *testing.T) *preset.CategoryPreset {
	t.Helper()
	p, err := preset.Compile(preset.Definition{
		ID:          "bakery",
		Name:        "Bakery",
		FeatureKeys: `"shop"="bakery"`,
		RenderRules: `DISPLAY "Website":"website"`,
		Filters:     []string{"fee"},
	}, map[string]preset.FilterDefinition{
		"fee": {Name: "Fee", Rules: "fee=yes == paying == Paying\nfee=no == free == Free"},
	})
	require.NoError(t, err)
	return p
}

// --- Tests ---

func TestEnrich_ReykjavikFixture(t *testing.T) {
	s := newService(t, nil, nil, Config{})
	f := node(42, -21.9419851, 64.14602, exactProps(nil))

	got, err := s.Enrich(context.Background(), Request{Features: []feature.Feature{f}, Origin: reykjavik})
	require.NoError(t, err)
	require.Len(t, got, 1)

	r := got[0]
	assert.Equal(t, 11_990_937, r.DistanceMeters)
	assert.InDelta(t, 107.6, r.Bearing, 1e-9)
	assert.Equal(t, geo.East, r.Direction)
	assert.Equal(t, "node", r.OSMType)
	assert.Equal(t, int64(42), r.OSMID)
	assert.Equal(t, "https://www.openstreetmap.org/node/42", r.OSMURL)
	assert.Equal(t, result.AddressExact, r.Address.Kind)
	assert.NotEmpty(t, r.ID)
}

func TestEnrich_SameCity(t *testing.T) {
	s := newService(t, nil, nil, Config{})
	f := node(7, 64.14602, -21.9419851, exactProps(nil))

	got, err := s.Enrich(context.Background(), Request{Features: []feature.Feature{f}, Origin: reykjavik})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 38, got[0].DistanceMeters)
}

func TestEnrich_TrueBearing(t *testing.T) {
	s := newService(t, nil, nil, Config{TrueBearing: true})
	f := node(1, 1, 0, exactProps(nil))

	got, err := s.Enrich(context.Background(), Request{Features: []feature.Feature{f}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0, got[0].Bearing, 1e-9)
	assert.Equal(t, geo.North, got[0].Direction)
}

func TestEnrich_SortedByDistanceStable(t *testing.T) {
	s := newService(t, nil, nil, Config{Workers: 4})
	features := []feature.Feature{
		node(1, 64.1500, -21.94259, exactProps(nil)),
		node(2, 64.1470, -21.94259, exactProps(nil)),
		node(3, 64.1470, -21.94259, exactProps(nil)),
		node(4, 64.1463, -21.94259, exactProps(nil)),
	}

	got, err := s.Enrich(context.Background(), Request{Features: features, Origin: reykjavik})
	require.NoError(t, err)
	require.Len(t, got, 4)

	var ids []int64
	for _, r := range got {
		ids = append(ids, r.OSMID)
	}
	assert.Equal(t, []int64{4, 2, 3, 1}, ids)
}

func TestEnrich_Idempotent(t *testing.T) {
	s := newService(t, nil, nil, Config{})
	req := Request{
		Features: []feature.Feature{
			node(1, 64.15, -21.94, exactProps(feature.Properties{"opening_hours": "Mo-Fr 08:00-18:00"})),
			node(2, 64.14, -21.95, exactProps(feature.Properties{"diet:vegetarian": "yes"})),
		},
		Origin: reykjavik,
		Preset: bakeryPreset(t),
	}

	first, err := s.Enrich(context.Background(), req)
	require.NoError(t, err)
	second, err := s.Enrich(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEnrich_PrivacyFilter(t *testing.T) {
	features := []feature.Feature{
		node(1, 64.15, -21.94, exactProps(feature.Properties{"access": "private"})),
		node(2, 64.15, -21.94, exactProps(feature.Properties{"access": "no"})),
		node(3, 64.15, -21.94, exactProps(feature.Properties{"access": "customers"})),
		node(4, 64.15, -21.94, exactProps(nil)),
	}

	tests := []struct {
		name      string
		noPrivate bool
		want      int
	}{
		{"kept", false, 4},
		{"dropped", true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newService(t, nil, nil, Config{})
			got, err := s.Enrich(context.Background(), Request{
				Features: features, Origin: reykjavik, NoPrivate: tt.noPrivate,
			})
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
			for _, r := range got {
				if tt.noPrivate {
					assert.NotContains(t, []string{"private", "no"}, r.Properties.Get("access"))
				}
			}
		})
	}
}

func TestEnrich_UniversalTagsAlwaysPresent(t *testing.T) {
	s := newService(t, nil, nil, Config{})
	features := []feature.Feature{
		node(1, 64.15, -21.94, exactProps(nil)),
		node(2, 64.15, -21.94, exactProps(feature.Properties{
			"opening_hours": "Mo-Fr 08:00-18:00", "diet:vegan": "only", "wheelchair": "limited",
		})),
		node(3, 64.15, -21.94, exactProps(feature.Properties{"opening_hours": "gibberish hours"})),
	}

	got, err := s.Enrich(context.Background(), Request{Features: features, Origin: reykjavik})
	require.NoError(t, err)
	require.Len(t, got, 3)

	byID := map[int64]result.Result{}
	for _, r := range got {
		groups := map[result.Group]int{}
		for _, tag := range r.Tags {
			groups[tag.Group]++
		}
		assert.Equal(t, 1, groups[result.GroupSchedule], "schedule tag for %d", r.OSMID)
		assert.Equal(t, 1, groups[result.GroupVegetarian])
		assert.Equal(t, 1, groups[result.GroupVegan])
		assert.Equal(t, 1, groups[result.GroupWheelchair])
		byID[r.OSMID] = r
	}

	assert.True(t, byID[1].HasTag("unknown_schedules"))
	assert.True(t, byID[1].HasTag("vegetarian_unknown"))

	assert.True(t, byID[2].HasTag("open"))
	assert.True(t, byID[2].Open)
	assert.True(t, byID[2].HasTag("vegan_only"))
	assert.True(t, byID[2].HasTag("wheelchair_limited"))

	assert.True(t, byID[3].HasTag("unknown_schedules"))
	assert.Nil(t, byID[3].Schedule)
}

func TestEnrich_ScheduleReadInLocalTime(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skip("tzdata not available")
	}
	s := newService(t, nil, nil, Config{})
	// 10:00 UTC is 19:00 in Tokyo.
	f := node(1, 35.68, 139.76, exactProps(feature.Properties{"opening_hours": "Mo-Fr 08:00-18:00"}))

	got, err := s.Enrich(context.Background(), Request{
		Features: []feature.Feature{f}, Origin: geo.Point{Lat: 35.68, Lon: 139.75}, Location: tokyo,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Open)
	assert.True(t, got[0].HasTag("closed"))
}

func TestEnrich_PresetFiltersAndRender(t *testing.T) {
	s := newService(t, nil, nil, Config{})
	f := node(1, 64.15, -21.94, exactProps(feature.Properties{"fee": "no", "website": "https://bakery.is"}))

	got, err := s.Enrich(context.Background(), Request{
		Features: []feature.Feature{f}, Origin: reykjavik, Preset: bakeryPreset(t),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	r := got[0]
	require.Len(t, r.Tags, 5)
	assert.Equal(t, "free", r.Tags[0].Slug)
	assert.Equal(t, result.GroupPreset, r.Tags[0].Group)
	assert.Equal(t, []string{"Website : https://bakery.is"}, r.PropertyLines)
}

func TestEnrich_NameAndPhone(t *testing.T) {
	s := newService(t, nil, nil, Config{})
	f := node(1, 64.15, -21.94, exactProps(feature.Properties{"name": "Brauð", "contact:phone": "+354 555 0101"}))

	got, err := s.Enrich(context.Background(), Request{Features: []feature.Feature{f}, Origin: reykjavik})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Brauð", got[0].Name)
	assert.Equal(t, "+354 555 0101", got[0].Phone)
}

func TestEnrich_SkipsFeatureWithoutGeometry(t *testing.T) {
	s := newService(t, nil, nil, Config{})
	features := []feature.Feature{
		{ID: 1, Geometry: feature.Point},
		node(2, 64.15, -21.94, exactProps(nil)),
	}

	got, err := s.Enrich(context.Background(), Request{Features: features, Origin: reykjavik})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].OSMID)
}

func TestEnrich_AddressFill(t *testing.T) {
	batch := &mockBatch{reply: func(points []place.Lookup) map[string]place.Place {
		out := map[string]place.Place{}
		for i, p := range points {
			switch i {
			case 0:
				out[p.ID] = place.Place{HouseNumber: "12", Street: "Rue Foo", Postcode: "44000", City: "Nantes"}
			case 1:
				// bogus housenumber, falls back to a single lookup
				out[p.ID] = place.Place{HouseNumber: "9012", Street: "Rue Bar"}
			}
		}
		return out
	}}
	single := &mockSingle{label: "Place Royale, Nantes"}
	s := newService(t, batch, single, Config{})

	features := []feature.Feature{
		node(1, 47.2100, -1.5500, nil),
		node(2, 47.2200, -1.5500, nil),
		node(3, 47.2300, -1.5500, exactProps(nil)),
	}
	got, err := s.Enrich(context.Background(), Request{
		Features: features, Origin: geo.Point{Lat: 47.2044, Lon: -1.5474},
	})
	require.NoError(t, err)
	require.Len(t, got, 3)

	require.Len(t, batch.calls, 1, "one batch call for all pending results")
	assert.Len(t, batch.calls[0], 2)

	assert.Equal(t, result.Address{Kind: result.AddressEstimated, Text: "12 Rue Foo, 44000 Nantes"}, got[0].Address)
	assert.Equal(t, result.Address{Kind: result.AddressEstimated, Text: "Place Royale, Nantes"}, got[1].Address)
	assert.Equal(t, result.AddressExact, got[2].Address.Kind)

	require.Len(t, single.queries, 1)
	assert.True(t, single.queries[0].SkipPrimary)
	assert.Equal(t, got[1].Position, *single.queries[0].Coordinates)
}

func TestEnrich_AddressFillDegrades(t *testing.T) {
	batch := &mockBatch{}
	single := &mockSingle{err: domain.ErrUnresolvedLocation}
	s := newService(t, batch, single, Config{})

	got, err := s.Enrich(context.Background(), Request{
		Features: []feature.Feature{node(1, 47.21, -1.55, nil)}, Origin: geo.Point{Lat: 47.2044, Lon: -1.5474},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, result.AddressUnknown, got[0].Address.Kind)
	assert.Equal(t, "Address unknown", got[0].Address.Display())
}

func TestEnrich_AddressFillDegradedIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	ctx := logger.ContextWithLogger(context.Background(), zap.New(core))
	single := &mockSingle{err: domain.ErrUnresolvedLocation}
	s := newService(t, &mockBatch{}, single, Config{})

	_, err := s.Enrich(ctx, Request{
		Features: []feature.Feature{node(1, 47.21, -1.55, nil)}, Origin: geo.Point{Lat: 47.2044, Lon: -1.5474},
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("address lookup degraded").All()
	require.Len(t, entries, 1)
	logged, ok := entries[0].ContextMap()["error"]
	require.True(t, ok)
	assert.Contains(t, logged, domain.ErrAddressLookupDegraded.Error())
	assert.Contains(t, logged, domain.ErrUnresolvedLocation.Error())
}

func pendingFeatures(n int) []feature.Feature {
	features := make([]feature.Feature, n)
	for i := range features {
		features[i] = node(int64(i+1), 47.21+float64(i)*0.001, -1.55, nil)
	}
	return features
}

func countKinds(results []result.Result) map[result.AddressKind]int {
	kinds := map[result.AddressKind]int{}
	for _, r := range results {
		kinds[r.Address.Kind]++
	}
	return kinds
}

func TestEnrich_FallbackLookupsCapped(t *testing.T) {
	single := &mockSingle{label: "Place Royale, Nantes"}
	s := newService(t, &mockBatch{}, single, Config{MaxFallbacks: 3})

	got, err := s.Enrich(context.Background(), Request{
		Features: pendingFeatures(20), Origin: geo.Point{Lat: 47.2044, Lon: -1.5474},
	})
	require.NoError(t, err)
	require.Len(t, got, 20)

	assert.Len(t, single.queries, 3)
	kinds := countKinds(got)
	assert.Equal(t, 3, kinds[result.AddressEstimated])
	assert.Equal(t, 17, kinds[result.AddressUnknown])
	// nearest results get the lookups
	for _, r := range got[:3] {
		assert.Equal(t, result.AddressEstimated, r.Address.Kind)
	}
}

func TestEnrich_FallbackLookupsStopAtSubDeadline(t *testing.T) {
	single := &mockSingle{label: "Place Royale, Nantes", delay: 30 * time.Millisecond}
	s := newService(t, &mockBatch{}, single, Config{MaxFallbacks: 20, FallbackTimeout: 50 * time.Millisecond})

	got, err := s.Enrich(context.Background(), Request{
		Features: pendingFeatures(20), Origin: geo.Point{Lat: 47.2044, Lon: -1.5474},
	})
	require.NoError(t, err)
	require.Len(t, got, 20)

	assert.LessOrEqual(t, len(single.queries), 2)
	assert.GreaterOrEqual(t, countKinds(got)[result.AddressUnknown], 18)
}

func TestEnrich_SlowFallbackKeepsResultsWithinRequestDeadline(t *testing.T) {
	single := &mockSingle{label: "Place Royale, Nantes", delay: 30 * time.Millisecond}
	s := newService(t, &mockBatch{}, single, Config{MaxFallbacks: 20})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	got, err := s.Enrich(ctx, Request{
		Features: pendingFeatures(20), Origin: geo.Point{Lat: 47.2044, Lon: -1.5474},
	})
	require.NoError(t, err)
	require.Len(t, got, 20)
	require.NoError(t, ctx.Err(), "address fill must leave part of the request budget")

	assert.Less(t, len(single.queries), 20)
	kinds := countKinds(got)
	assert.Equal(t, 20, kinds[result.AddressEstimated]+kinds[result.AddressUnknown])
}

func TestEnrich_ResultOwnsProperties(t *testing.T) {
	s := newService(t, nil, nil, Config{})
	props := exactProps(feature.Properties{"name": "Brauð"})

	got, err := s.Enrich(context.Background(), Request{
		Features: []feature.Feature{node(1, 64.15, -21.94, props)}, Origin: reykjavik,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got[0].Properties["name"] = "changed"
	assert.Equal(t, "Brauð", props["name"])
}

func TestEnrich_BatchFailureMarksUnknown(t *testing.T) {
	batch := &mockBatch{err: errors.New("connection refused")}
	single := &mockSingle{label: "unused"}
	s := newService(t, batch, single, Config{})

	got, err := s.Enrich(context.Background(), Request{
		Features: []feature.Feature{node(1, 47.21, -1.55, nil), node(2, 47.22, -1.55, nil)},
		Origin:   geo.Point{Lat: 47.2044, Lon: -1.5474},
	})
	require.NoError(t, err)
	for _, r := range got {
		assert.Equal(t, result.AddressUnknown, r.Address.Kind)
	}
	assert.Empty(t, single.queries)
}

func TestEnrich_ContextCanceledDuringAddressFill(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	batch := &mockBatch{err: context.Canceled}
	s := newService(t, batch, nil, Config{})

	_, err := s.Enrich(ctx, Request{
		Features: []feature.Feature{node(1, 47.21, -1.55, nil)}, Origin: geo.Point{Lat: 47.2044, Lon: -1.5474},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnrich_Empty(t *testing.T) {
	batch := &mockBatch{}
	s := newService(t, batch, nil, Config{})

	got, err := s.Enrich(context.Background(), Request{Origin: reykjavik})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, batch.calls)
}
