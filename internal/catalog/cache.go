package catalog

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/procktails/storefront/internal/domain"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNoCatalogData means a refresh failed and no prior snapshot exists
	// anywhere. This is the only way a catalog read can fail.
	ErrNoCatalogData = errors.New("no catalog data available")
	ErrNotFound      = errors.New("product not found")
)

// Fetcher is the upstream platform's batch catalog read.
type Fetcher interface {
	FetchCatalog(ctx context.Context) ([]domain.CatalogEntry, error)
}

// SnapshotStore persists the last good batch so a restart during an upstream
// outage can still serve stale data.
type SnapshotStore interface {
	Load(ctx context.Context) ([]domain.CatalogEntry, time.Time, error)
	Save(ctx context.Context, entries []domain.CatalogEntry, fetchedAt time.Time) error
}

// batch is one immutable refresh result. Readers get the whole batch or the
// previous one, never a half-replaced mix.
type batch struct {
	entries   []domain.CatalogEntry
	byID      map[string]int
	fetchedAt time.Time
}

func newBatch(entries []domain.CatalogEntry, fetchedAt time.Time) *batch {
	b := &batch{
		entries:   entries,
		byID:      make(map[string]int, len(entries)),
		fetchedAt: fetchedAt,
	}
	for i := range entries {
		b.entries[i].FetchedAt = fetchedAt
		b.byID[entries[i].ProductID] = i
	}
	return b
}

// Cache is the time-boxed catalog cache: a fresh batch is served directly,
// an expired one triggers a refresh, and a failed refresh falls back to the
// most recent batch regardless of age.
type Cache struct {
	fetcher      Fetcher
	store        SnapshotStore
	ttl          time.Duration
	fetchTimeout time.Duration

	mu      sync.RWMutex
	current *batch

	sfg singleflight.Group
	cb  *gobreaker.CircuitBreaker[[]domain.CatalogEntry]
	now func() time.Time
}

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) { c.fetchTimeout = d }
}

func WithSnapshotStore(store SnapshotStore) Option {
	return func(c *Cache) { c.store = store }
}

func New(fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher:      fetcher,
		ttl:          15 * time.Minute,
		fetchTimeout: 10 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.cb = gobreaker.NewCircuitBreaker[[]domain.CatalogEntry](gobreaker.Settings{
		Name:    "catalog-fetch",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return c
}

// List returns the full catalog. stale is true when the returned batch is
// past its freshness window because the upstream refresh failed.
func (c *Cache) List(ctx context.Context) (entries []domain.CatalogEntry, stale bool, err error) {
	b := c.snapshot()
	if b != nil && c.age(b) < c.ttl {
		return b.entries, false, nil
	}

	fresh, refreshErr := c.refresh(ctx)
	if refreshErr == nil {
		return fresh.entries, false, nil
	}

	log.Printf("catalog refresh failed, serving stale: %v", refreshErr)

	if b == nil {
		b = c.restoreFromStore(ctx)
	}
	if b != nil {
		return b.entries, true, nil
	}

	return nil, false, ErrNoCatalogData
}

// Get looks up one product. A miss against the current batch triggers the
// same refresh-or-serve-stale flow as an expired batch.
func (c *Cache) Get(ctx context.Context, productID string) (entry domain.CatalogEntry, stale bool, err error) {
	b := c.snapshot()
	if b != nil && c.age(b) < c.ttl {
		if i, ok := b.byID[productID]; ok {
			return b.entries[i], false, nil
		}
	}

	fresh, refreshErr := c.refresh(ctx)
	if refreshErr == nil {
		if i, ok := fresh.byID[productID]; ok {
			return fresh.entries[i], false, nil
		}
		return domain.CatalogEntry{}, false, ErrNotFound
	}

	log.Printf("catalog refresh failed, serving stale: %v", refreshErr)

	if b == nil {
		b = c.restoreFromStore(ctx)
	}
	if b != nil {
		if i, ok := b.byID[productID]; ok {
			return b.entries[i], c.age(b) >= c.ttl, nil
		}
		return domain.CatalogEntry{}, false, ErrNotFound
	}

	return domain.CatalogEntry{}, false, ErrNoCatalogData
}

func (c *Cache) snapshot() *batch {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *Cache) age(b *batch) time.Duration {
	return c.now().Sub(b.fetchedAt)
}

// refresh fetches a fresh batch from the platform, deduplicating concurrent
// callers and tripping the breaker on repeated upstream failures. The batch
// swap is atomic with respect to readers.
func (c *Cache) refresh(ctx context.Context) (*batch, error) {
	v, err, _ := c.sfg.Do("refresh", func() (interface{}, error) {
		entries, err := c.cb.Execute(func() ([]domain.CatalogEntry, error) {
			fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
			defer cancel()
			return c.fetcher.FetchCatalog(fetchCtx)
		})
		if err != nil {
			return nil, err
		}

		b := newBatch(entries, c.now())

		c.mu.Lock()
		c.current = b
		c.mu.Unlock()

		if c.store != nil {
			go func() {
				saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := c.store.Save(saveCtx, b.entries, b.fetchedAt); err != nil {
					log.Printf("catalog snapshot save error: %v", err)
				}
			}()
		}

		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*batch), nil
}

// restoreFromStore installs the persisted last-good batch, if any. Only hit
// on a cold start whose first refresh fails.
func (c *Cache) restoreFromStore(ctx context.Context) *batch {
	if c.store == nil {
		return nil
	}

	entries, fetchedAt, err := c.store.Load(ctx)
	if err != nil {
		log.Printf("catalog snapshot load error: %v", err)
		return nil
	}
	if len(entries) == 0 {
		return nil
	}

	b := newBatch(entries, fetchedAt)

	c.mu.Lock()
	if c.current == nil {
		c.current = b
	} else {
		b = c.current
	}
	c.mu.Unlock()

	return b
}
