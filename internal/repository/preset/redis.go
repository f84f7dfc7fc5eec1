package preset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goose-osm/goose/internal/db"
	dompreset "github.com/goose-osm/goose/internal/domain/preset"
)

// DefaultKeyPrefix namespaces every key written by RedisSource.
const DefaultKeyPrefix = "goose:"

// store is the consumer interface for the Redis source (ISP).
type store interface {
	Ping(ctx context.Context) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
}

// Hash fields of a stored preset.
const (
	fieldName        = "name"
	fieldFeatureKeys = "osm_keys"
	fieldRenderRules = "render_rules"
	fieldFilters     = "filters"
	fieldRules       = "rules"
)

// RedisSource keeps the catalogue in Redis hashes:
//
//	<prefix>preset:<id>    name, osm_keys, render_rules, filters (one name per line)
//	<prefix>filter:<name>  rules
//	<prefix>revision       bumped on every Save
type RedisSource struct {
	store  store
	prefix string
}

// NewRedisSource creates a RedisSource. An empty prefix means DefaultKeyPrefix.
func NewRedisSource(s store, prefix string) *RedisSource {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisSource{store: s, prefix: prefix}
}

func (r *RedisSource) presetKey(id string) string   { return r.prefix + "preset:" + id }
func (r *RedisSource) filterKey(name string) string { return r.prefix + "filter:" + name }
func (r *RedisSource) revisionKey() string          { return r.prefix + "revision" }

// Load reads every preset and filter. Presets are ordered by id.
func (r *RedisSource) Load(ctx context.Context) (*Catalogue, error) {
	presets, err := r.loadHashes(ctx, r.presetKey(""))
	if err != nil {
		return nil, fmt.Errorf("load presets: %w", err)
	}
	filters, err := r.loadHashes(ctx, r.filterKey(""))
	if err != nil {
		return nil, fmt.Errorf("load filters: %w", err)
	}

	c := &Catalogue{}
	for _, h := range presets {
		c.Presets = append(c.Presets, dompreset.Definition{
			ID:          h.id,
			Name:        h.fields[fieldName],
			FeatureKeys: h.fields[fieldFeatureKeys],
			RenderRules: h.fields[fieldRenderRules],
			Filters:     splitLines(h.fields[fieldFilters]),
		})
	}
	for _, h := range filters {
		c.Filters = append(c.Filters, dompreset.FilterDefinition{Name: h.id, Rules: h.fields[fieldRules]})
	}
	return c, nil
}

type storedHash struct {
	id     string
	fields map[string]string
}

func (r *RedisSource) loadHashes(ctx context.Context, prefix string) ([]storedHash, error) {
	keys, err := r.store.Scan(ctx, prefix+"*")
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]storedHash, 0, len(keys))
	for i, m := range maps {
		// deleted between SCAN and HGETALL
		if len(m) == 0 {
			continue
		}
		out = append(out, storedHash{id: strings.TrimPrefix(keys[i], prefix), fields: m})
	}
	return out, nil
}

// Save validates a catalogue, replaces the stored one and bumps the revision.
// Nothing is written when validation fails.
func (r *RedisSource) Save(ctx context.Context, c *Catalogue) (int64, error) {
	if _, err := c.Compile(); err != nil {
		return 0, err
	}

	stale, err := r.store.Scan(ctx, r.presetKey("*"))
	if err != nil {
		return 0, fmt.Errorf("scan presets: %w", err)
	}
	staleFilters, err := r.store.Scan(ctx, r.filterKey("*"))
	if err != nil {
		return 0, fmt.Errorf("scan filters: %w", err)
	}
	if err := r.store.Del(ctx, append(stale, staleFilters...)...); err != nil {
		return 0, fmt.Errorf("delete stale presets: %w", err)
	}

	items := make([]db.HashSetItem, 0, len(c.Presets)+len(c.Filters))
	for _, p := range c.Presets {
		items = append(items, db.HashSetItem{
			Key: r.presetKey(p.ID),
			Fields: map[string]string{
				fieldName:        p.Name,
				fieldFeatureKeys: p.FeatureKeys,
				fieldRenderRules: p.RenderRules,
				fieldFilters:     strings.Join(p.Filters, "\n"),
			},
		})
	}
	for _, f := range c.Filters {
		items = append(items, db.HashSetItem{
			Key:    r.filterKey(f.Name),
			Fields: map[string]string{fieldRules: f.Rules},
		})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return 0, fmt.Errorf("store presets: %w", err)
	}

	rev, err := r.store.IncrBy(ctx, r.revisionKey(), 1)
	if err != nil {
		return 0, fmt.Errorf("bump revision: %w", err)
	}
	return rev, nil
}

// Revision returns the catalogue revision, 0 before the first Save.
func (r *RedisSource) Revision(ctx context.Context) (int64, error) {
	data, err := r.store.Get(ctx, r.revisionKey())
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get revision: %w", err)
	}
	rev, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse revision %q: %w", data, err)
	}
	return rev, nil
}

// Ping checks Redis connectivity.
func (r *RedisSource) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
