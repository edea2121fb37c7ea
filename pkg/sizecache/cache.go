package sizecache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
)

// snapshotFile is the name of the on-disk snapshot inside the cache directory.
const snapshotFile = "sizes.json.lz4"

// DefaultMaxEntries is used when Options.MaxEntries is not positive.
const DefaultMaxEntries = 1024

// Entry is the measured cost of one package version.
type Entry struct {
	Size int64 `json:"size"`
	Gzip int64 `json:"gzip"`
}

// Options configures a Cache.
type Options struct {
	// MaxEntries bounds the in-memory cache.
	MaxEntries int
	// Directory holds the snapshot. Empty disables persistence.
	Directory string
	Logger    *slog.Logger
}

// Stats holds cache counters.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// Cache maps "name@version[/subpath]" keys to measured sizes.
type Cache struct {
	lru    *LRU[string, Entry]
	path   string
	logger *slog.Logger
	dirty  atomic.Bool
	closed atomic.Bool
}

// Open creates a cache and loads the snapshot from opts.Directory when one
// exists. An unreadable or corrupt snapshot is logged and ignored.
func Open(opts Options) *Cache {
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cache{
		lru:    NewLRU[string, Entry](maxEntries),
		logger: logger,
	}

	if opts.Directory == "" {
		return c
	}

	c.path = filepath.Join(opts.Directory, snapshotFile)

	records, err := readSnapshot(c.path)

	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		logger.Warn("ignoring size cache snapshot", "path", c.path, "error", err)
	default:
		for _, rec := range records {
			c.lru.Put(rec.Key, Entry{Size: rec.Size, Gzip: rec.Gzip})
		}

		logger.Debug("size cache loaded", "path", c.path, "entries", c.lru.Len())
	}

	return c
}

// Get returns the cached entry for key.
func (c *Cache) Get(key string) (Entry, bool) {
	return c.lru.Get(key)
}

// Put stores the entry for key.
func (c *Cache) Put(key string, e Entry) {
	c.lru.Put(key, e)
	c.dirty.Store(true)
}

// Stats returns the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:    c.lru.Hits(),
		Misses:  c.lru.Misses(),
		Entries: c.lru.Len(),
	}
}

// Close writes the snapshot if anything changed and empties the cache.
// Subsequent calls do nothing.
func (c *Cache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	defer c.lru.Clear()

	if c.path == "" || !c.dirty.Load() {
		return nil
	}

	records := make([]snapshotRecord, 0, c.lru.Len())

	c.lru.Oldest(func(key string, e Entry) {
		records = append(records, snapshotRecord{Key: key, Size: e.Size, Gzip: e.Gzip})
	})

	err := writeSnapshot(c.path, records)
	if err != nil {
		return fmt.Errorf("save size cache: %w", err)
	}

	c.dirty.Store(false)

	return nil
}

// DefaultDirectory returns $XDG_CACHE_HOME/importcost or its platform equivalent.
func DefaultDirectory() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}

	return filepath.Join(dir, "importcost")
}
