package preset

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/goose-osm/goose/internal/domain"
	dompreset "github.com/goose-osm/goose/internal/domain/preset"
	"github.com/goose-osm/goose/internal/logger"
)

// ErrCatalogueInvalid marks a stored catalogue that does not compile. It is
// an operator fault and never chains domain.ErrInvalidInput.
var ErrCatalogueInvalid = errors.New("preset catalogue invalid")

// Source yields the stored catalogue and a revision that changes whenever
// the catalogue does.
type Source interface {
	Load(ctx context.Context) (*Catalogue, error)
	Revision(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// Store serves compiled presets. Presets are compiled once per source
// revision and shared read-only across requests.
type Store struct {
	source Source
	group  singleflight.Group

	mu       sync.RWMutex
	loaded   bool
	revision int64
	byID     map[string]*dompreset.CategoryPreset
	ordered  []*dompreset.CategoryPreset
}

// NewStore creates a Store over a source.
func NewStore(source Source) *Store {
	return &Store{source: source}
}

// Get returns a compiled preset, domain.ErrPresetNotFound if absent.
func (s *Store) Get(ctx context.Context, id string) (*dompreset.CategoryPreset, error) {
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	p, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrPresetNotFound, id)
	}
	return p, nil
}

// List returns every compiled preset in catalogue order.
func (s *Store) List(ctx context.Context) ([]*dompreset.CategoryPreset, error) {
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*dompreset.CategoryPreset, len(s.ordered))
	copy(out, s.ordered)
	return out, nil
}

// Ping checks the underlying source.
func (s *Store) Ping(ctx context.Context) error {
	return s.source.Ping(ctx)
}

// refresh recompiles when the source revision moved. Once a catalogue is
// loaded, source failures keep serving it.
func (s *Store) refresh(ctx context.Context) error {
	rev, err := s.source.Revision(ctx)

	s.mu.RLock()
	loaded, current := s.loaded, s.revision
	s.mu.RUnlock()

	if err != nil {
		if loaded {
			logger.FromContext(ctx).Warn("preset revision check failed, serving cached presets", zap.Error(err))
			return nil
		}
		return fmt.Errorf("preset revision: %w", err)
	}
	if loaded && rev == current {
		return nil
	}

	_, err, _ = s.group.Do(strconv.FormatInt(rev, 10), func() (any, error) {
		return nil, s.reload(ctx, rev)
	})
	if err != nil && loaded {
		logger.FromContext(ctx).Error("preset reload failed, serving cached presets",
			zap.Int64("revision", rev), zap.Error(err))
		return nil
	}
	return err
}

func (s *Store) reload(ctx context.Context, rev int64) error {
	c, err := s.source.Load(ctx)
	if err != nil {
		return catalogueError("load presets", err)
	}
	compiled, err := c.Compile()
	if err != nil {
		return catalogueError("compile presets", err)
	}

	byID := make(map[string]*dompreset.CategoryPreset, len(compiled))
	for _, p := range compiled {
		byID[p.ID] = p
	}

	s.mu.Lock()
	s.loaded, s.revision, s.byID, s.ordered = true, rev, byID, compiled
	s.mu.Unlock()

	logger.FromContext(ctx).Info("presets loaded", zap.Int64("revision", rev), zap.Int("count", len(compiled)))
	return nil
}

func catalogueError(op string, err error) error {
	if errors.Is(err, domain.ErrInvalidInput) {
		return fmt.Errorf("%s: %w: %v", op, ErrCatalogueInvalid, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
