package dashboard

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"

	"github.com/rafabd1/climatesense/internal/memory"
	"github.com/rafabd1/climatesense/internal/types"
)

// ReportStore reads the memory log.
type ReportStore interface {
	Load(ctx context.Context) ([]types.LogEntry, error)
}

// Snapshot is what the dashboard knows about one location.
type Snapshot struct {
	Location    string
	Latest      *types.LogEntry
	History     []types.LogEntry // newest first
	FileMissing bool
	Err         error
	LoadedAt    time.Time
}

type snapshotCache struct {
	store ReportStore
	cache *lru.LRU[string, *Snapshot]
	now   func() time.Time
}

func newSnapshotCache(store ReportStore, ttl time.Duration) *snapshotCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &snapshotCache{
		store: store,
		cache: lru.NewLRU[string, *Snapshot](64, nil, ttl),
		now:   time.Now,
	}
}

func (c *snapshotCache) Get(ctx context.Context, location string) *Snapshot {
	key := strings.ToLower(strings.TrimSpace(location))
	if snap, ok := c.cache.Get(key); ok {
		return snap
	}
	snap := c.load(ctx, location)
	c.cache.Add(key, snap)
	return snap
}

func (c *snapshotCache) Purge() {
	c.cache.Purge()
}

func (c *snapshotCache) load(ctx context.Context, location string) *Snapshot {
	snap := &Snapshot{Location: location, LoadedAt: c.now()}
	entries, err := c.store.Load(ctx)
	switch {
	case errors.Is(err, memory.ErrNotFound):
		snap.FileMissing = true
		return snap
	case err != nil:
		snap.Err = err
		return snap
	}
	snap.History = memory.FilterCity(entries, location)
	memory.SortNewestFirst(snap.History)
	if len(snap.History) > 0 {
		snap.Latest = &snap.History[0]
	}
	return snap
}
