// Package metacache holds type descriptors shared by all sessions.
//
// A session works through its own Handle. The first schema-mutating statement
// of a session disables the handle: lookups bypass the cache until the session
// ends. Committing such a session clears the whole cache and re-enables the
// handle in one step under the cache lock.
package metacache

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-typestore/pkg/metrics"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

// Entry is the cached metadata of one type.
type Entry struct {
	Type *models.Type
	// ContentTypes maps composite fields to their allowed media types.
	ContentTypes map[string][]string
}

// GenerationStore shares a schema generation counter between processes.
type GenerationStore interface {
	Current(ctx context.Context) (int64, error)
	Bump(ctx context.Context) (int64, error)
}

// Cache is the process-wide metadata cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	// epoch advances on every clear so loads that raced a clear are discarded.
	epoch uint64
	// seen is the last shared generation this process synchronized with.
	seen int64

	store  GenerationStore
	logger *zap.Logger
}

// New creates an empty cache. store may be nil for a single-process deployment.
func New(store GenerationStore, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		entries: make(map[string]*Entry),
		store:   store,
		logger:  logger.Named("metacache"),
	}
}

// Session returns a fresh handle for one session. When a generation store is
// configured, the cache is cleared first if another process committed a schema
// change since the last synchronization.
func (c *Cache) Session(ctx context.Context) *Handle {
	c.sync(ctx)
	return &Handle{cache: c}
}

// Len returns the number of cached types.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Cache) clearLocked() {
	c.entries = make(map[string]*Entry)
	c.epoch++
	metrics.CacheClears.Inc()
}

func (c *Cache) sync(ctx context.Context) {
	if c.store == nil {
		return
	}
	gen, err := c.store.Current(ctx)
	if err != nil {
		c.logger.Warn("Failed to read schema generation, clearing metadata cache", zap.Error(err))
		c.Clear()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.seen {
		c.logger.Debug("Schema generation advanced, clearing metadata cache",
			zap.Int64("seen", c.seen),
			zap.Int64("current", gen))
		c.clearLocked()
		c.seen = gen
	}
}

// Handle is one session's view of the cache.
type Handle struct {
	cache    *Cache
	disabled bool
}

// Enabled reports whether lookups go through the cache.
func (h *Handle) Enabled() bool {
	return !h.disabled
}

// Disable bypasses the cache for the rest of the session.
func (h *Handle) Disable() {
	h.disabled = true
}

// Get returns the cached entry of a type.
func (h *Handle) Get(typeName string) (*Entry, bool) {
	if h.disabled {
		metrics.MetadataCache.WithLabelValues(metrics.CacheBypass).Inc()
		return nil, false
	}
	h.cache.mu.RLock()
	entry, ok := h.cache.entries[typeName]
	h.cache.mu.RUnlock()
	if ok {
		metrics.MetadataCache.WithLabelValues(metrics.CacheHit).Inc()
	} else {
		metrics.MetadataCache.WithLabelValues(metrics.CacheMiss).Inc()
	}
	return entry, ok
}

// Load returns the cached entry of a type, calling load on a miss. The loaded
// entry is stored unless the handle is disabled or the cache was cleared
// while load ran.
func (h *Handle) Load(typeName string, load func() (*Entry, error)) (*Entry, error) {
	if entry, ok := h.Get(typeName); ok {
		return entry, nil
	}

	h.cache.mu.RLock()
	epoch := h.cache.epoch
	h.cache.mu.RUnlock()

	entry, err := load()
	if err != nil {
		return nil, err
	}
	if h.disabled {
		return entry, nil
	}

	h.cache.mu.Lock()
	if h.cache.epoch == epoch {
		h.cache.entries[typeName] = entry
	}
	h.cache.mu.Unlock()
	return entry, nil
}

// Commit ends the session after a successful commit. A disabled handle clears
// the cache and bumps the shared generation; the handle is enabled afterwards.
func (h *Handle) Commit(ctx context.Context) error {
	if !h.disabled {
		return nil
	}
	c := h.cache

	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
	h.disabled = false

	if c.store == nil {
		return nil
	}
	gen, err := c.store.Bump(ctx)
	if err != nil {
		return err
	}
	c.seen = gen
	return nil
}

// Rollback ends the session after a rollback. Schema changes were undone, so
// the cache is left as is.
func (h *Handle) Rollback() {
	h.disabled = false
}
