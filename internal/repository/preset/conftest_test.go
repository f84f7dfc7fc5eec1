package preset

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/goose-osm/goose/internal/db"
)

// mockStore is an in-memory implementation of the consumer interface.
type mockStore struct {
	hashes   map[string]map[string]string
	kv       map[string]int64
	pingErr  error
	scanErr  error
	hsetErr  error
	getErr   error
	hsetRuns int
}

func newMockStore() *mockStore {
	return &mockStore{hashes: map[string]map[string]string{}, kv: map[string]int64{}}
}

func (m *mockStore) Ping(_ context.Context) error { return m.pingErr }

func (m *mockStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	m.hsetRuns++
	if m.hsetErr != nil {
		return m.hsetErr
	}
	for _, it := range items {
		m.hashes[it.Key] = it.Fields
	}
	return nil
}

func (m *mockStore) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i] = m.hashes[k]
		if out[i] == nil {
			out[i] = map[string]string{}
		}
	}
	return out, nil
}

func (m *mockStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.hashes, k)
	}
	return nil
}

func (m *mockStore) Scan(_ context.Context, pattern string) ([]string, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range m.hashes {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return []byte(strconv.FormatInt(v, 10)), nil
}

func (m *mockStore) IncrBy(_ context.Context, key string, val int64) (int64, error) {
	m.kv[key] += val
	return m.kv[key], nil
}

// fakeSource is a Source whose catalogue and revision tests can swap.
type fakeSource struct {
	catalogue *Catalogue
	revision  int64
	loadErr   error
	revErr    error
	loads     int
}

func (f *fakeSource) Load(_ context.Context) (*Catalogue, error) {
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.catalogue, nil
}

func (f *fakeSource) Revision(_ context.Context) (int64, error) { return f.revision, f.revErr }

func (f *fakeSource) Ping(_ context.Context) error { return f.revErr }
