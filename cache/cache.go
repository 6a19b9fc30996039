// Package cache implements the persistent translation cache: a concurrent
// in-memory map keyed by language pair and a hash of the text prefix,
// flushed to a storage.KeyValueStore in the background.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"sync/atomic"

	"dubber/logging"
	"dubber/storage"
)

// KeyPrefixRunes is how much of the text feeds the key hash. Texts that
// share this prefix and language pair share a cache entry.
const KeyPrefixRunes = 100

// DefaultFlushEvery is the number of inserts between background flushes.
const DefaultFlushEvery = 10

// Key derives the cache key "source:target:sha256hex(prefix)".
func Key(source, target, text string) string {
	if runes := []rune(text); len(runes) > KeyPrefixRunes {
		text = string(runes[:KeyPrefixRunes])
	}
	sum := sha256.Sum256([]byte(text))
	return source + ":" + target + ":" + hex.EncodeToString(sum[:])
}

// Config configures a Cache.
type Config struct {
	// Store persists entries. Nil keeps the cache in memory only.
	Store storage.KeyValueStore
	// Logger receives persistence failures. Nil discards them.
	Logger logging.Logger
	// FlushEvery triggers a background flush after this many inserts
	// (0 = DefaultFlushEvery, negative = only on Save/Close).
	FlushEvery int
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries       int
	LanguagePairs int
	Hits          uint64
	Misses        uint64
}

// HitRate returns hits / lookups, 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is safe for concurrent use. Persistence failures are logged and
// never returned; the cache keeps working in memory.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]string

	store      storage.KeyValueStore
	logger     logging.Logger
	flushEvery int64

	inserts  atomic.Int64
	changed  atomic.Bool
	flushing atomic.Bool
	rerun    atomic.Bool
	flushMu  sync.Mutex
	wg       sync.WaitGroup

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates an empty cache. Call Load to read persisted entries.
func New(cfg Config) *Cache {
	flushEvery := cfg.FlushEvery
	if flushEvery == 0 {
		flushEvery = DefaultFlushEvery
	}
	return &Cache{
		entries:    make(map[string]string),
		store:      cfg.Store,
		logger:     logging.OrNoOp(cfg.Logger),
		flushEvery: int64(flushEvery),
	}
}

// Get returns the cached translation.
func (c *Cache) Get(source, target, text string) (string, bool) {
	key := Key(source, target, text)
	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Put upserts a translation; the last writer wins. Every FlushEvery inserts
// a background flush is scheduled.
func (c *Cache) Put(source, target, text, translated string) {
	key := Key(source, target, text)
	c.mu.Lock()
	c.entries[key] = translated
	c.mu.Unlock()

	c.changed.Store(true)
	if c.store != nil && c.flushEvery > 0 && c.inserts.Add(1)%c.flushEvery == 0 {
		c.scheduleFlush()
	}
}

// Size returns the number of entries.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// DistinctLanguagePairs returns how many source:target pairs have entries.
func (c *Cache) DistinctLanguagePairs() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pairs := make(map[string]struct{})
	for k := range c.entries {
		if i := strings.LastIndexByte(k, ':'); i > 0 {
			pairs[k[:i]] = struct{}{}
		}
	}
	return len(pairs)
}

// Stats returns entry and lookup counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:       c.Size(),
		LanguagePairs: c.DistinctLanguagePairs(),
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
	}
}

// Load merges persisted entries into the cache. Entries already in memory
// win. A missing file is a fresh cache; any other failure is logged and the
// cache starts cold.
func (c *Cache) Load(ctx context.Context) {
	if c.store == nil {
		return
	}
	loaded, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("translation cache load failed, starting cold", "path", c.store.Path(), "error", err)
		return
	}
	c.mu.Lock()
	for k, v := range loaded {
		if _, ok := c.entries[k]; !ok {
			c.entries[k] = v
		}
	}
	n := len(c.entries)
	c.mu.Unlock()
	c.logger.Debug("translation cache loaded", "path", c.store.Path(), "entries", n)
}

// Save writes the cache synchronously, waiting for any flush in progress.
func (c *Cache) Save(ctx context.Context) {
	c.flush(ctx)
}

// Clear empties the cache and deletes the backing file. Deletion failures
// are logged.
func (c *Cache) Clear(ctx context.Context) {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	c.entries = make(map[string]string)
	c.mu.Unlock()
	c.inserts.Store(0)
	c.changed.Store(false)

	if c.store == nil {
		return
	}
	if err := c.store.Remove(ctx); err != nil {
		c.logger.Warn("translation cache file removal failed", "path", c.store.Path(), "error", err)
	}
}

// Close waits for background flushes and writes any unsaved entries.
func (c *Cache) Close() error {
	c.wg.Wait()
	if c.changed.Load() {
		c.flush(context.Background())
	}
	return nil
}

// scheduleFlush starts a background flush unless one is running, in which
// case that flush runs once more before exiting.
func (c *Cache) scheduleFlush() {
	c.rerun.Store(true)
	if !c.flushing.CompareAndSwap(false, true) {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			c.rerun.Store(false)
			c.flush(context.Background())
			c.flushing.Store(false)
			if !c.rerun.Load() || !c.flushing.CompareAndSwap(false, true) {
				return
			}
		}
	}()
}

func (c *Cache) flush(ctx context.Context) {
	if c.store == nil {
		return
	}
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.changed.Store(false)
	c.mu.RLock()
	snapshot := make(map[string]string, len(c.entries))
	for k, v := range c.entries {
		snapshot[k] = v
	}
	c.mu.RUnlock()

	// An empty map only happens after Clear, which already removed the file.
	if len(snapshot) == 0 {
		return
	}
	if err := c.store.Save(ctx, snapshot); err != nil {
		c.changed.Store(true)
		c.logger.Warn("translation cache save failed", "path", c.store.Path(), "entries", len(snapshot), "error", err)
		return
	}
	c.logger.Debug("translation cache saved", "path", c.store.Path(), "entries", len(snapshot))
}
