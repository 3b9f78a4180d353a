package cart

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/pricing"
	"github.com/noah-isme/toko-cart/internal/storage"
)

// DefaultMaxSessions bounds the registry when no limit is configured.
const DefaultMaxSessions = 10000

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	Prefix      string
	Blobs       storage.BlobStore
	Pricing     *pricing.Engine
	Logger      zerolog.Logger
	MaxSessions int
	Now         func() time.Time
	IDs         func() string
}

// Registry owns one Store per session and keeps the most recently used ones in
// memory. A session has at most one live Store: a store pushed out of the LRU
// while acquired stays pinned until its last holder releases it.
type Registry struct {
	cfg RegistryConfig

	// mu guards cache mutations, pinned and refs. The eviction callback runs
	// inside cache.Add and relies on it being held.
	mu     sync.Mutex
	cache  *lru.Cache[string, *registryEntry]
	pinned map[string]*registryEntry
}

type registryEntry struct {
	session string
	store   *Store
	refs    int
}

// NewRegistry constructs an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.Blobs == nil {
		cfg.Blobs = storage.NewMemory()
	}
	r := &Registry{cfg: cfg, pinned: make(map[string]*registryEntry)}
	cache, err := lru.NewWithEvict[string, *registryEntry](cfg.MaxSessions, r.evicted)
	if err != nil {
		// only a non-positive size fails
		panic(err)
	}
	r.cache = cache
	return r
}

// Acquire returns the loaded store for sessionID, creating it on first use.
// The store is not evicted before release is called. release is safe to call
// more than once.
func (r *Registry) Acquire(ctx context.Context, sessionID string) (*Store, func()) {
	entry := r.acquire(sessionID)
	var once sync.Once
	release := func() {
		once.Do(func() { r.release(entry) })
	}
	entry.store.Load(ctx)
	return entry.store, release
}

// Key returns the storage key used for sessionID.
func (r *Registry) Key(sessionID string) string {
	return storage.Key(r.cfg.Prefix, sessionID)
}

// Len reports the number of stores held in memory, pinned ones included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Len() + len(r.pinned)
}

// Pricing returns the engine shared by all stores.
func (r *Registry) Pricing() *pricing.Engine {
	return r.cfg.Pricing
}

func (r *Registry) acquire(sessionID string) *registryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.recordActiveLocked()

	if entry, ok := r.cache.Get(sessionID); ok {
		entry.refs++
		return entry
	}
	entry, ok := r.pinned[sessionID]
	if ok {
		delete(r.pinned, sessionID)
	} else {
		entry = &registryEntry{session: sessionID, store: NewStore(StoreConfig{
			Key:     r.Key(sessionID),
			Blobs:   r.cfg.Blobs,
			Pricing: r.cfg.Pricing,
			Logger:  r.cfg.Logger,
			Now:     r.cfg.Now,
			IDs:     r.cfg.IDs,
		})}
	}
	entry.refs++
	r.cache.Add(sessionID, entry)
	return entry
}

func (r *Registry) release(entry *registryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.refs--
	if entry.refs > 0 {
		return
	}
	if r.pinned[entry.session] == entry {
		delete(r.pinned, entry.session)
		r.recordEvictionLocked()
		r.recordActiveLocked()
	}
}

// evicted is the LRU eviction callback. Called with mu held.
func (r *Registry) evicted(sessionID string, entry *registryEntry) {
	if entry.refs > 0 {
		r.pinned[sessionID] = entry
		return
	}
	r.recordEvictionLocked()
}

func (r *Registry) recordEvictionLocked() {
	if obs.CartSessionEvictionsTotal != nil {
		obs.CartSessionEvictionsTotal.Inc()
	}
}

func (r *Registry) recordActiveLocked() {
	if obs.CartSessionsActive != nil {
		obs.CartSessionsActive.Set(float64(r.cache.Len() + len(r.pinned)))
	}
}
