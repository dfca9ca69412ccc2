// Package cache owns the on-disk media cache shared by every playback
// session, and a loopback proxy that feeds the playback engine through it.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Unlimited disables eviction entirely.
const Unlimited int64 = -1

const tmpSuffix = ".tmp"

// Stats is a point-in-time view of the cache.
type Stats struct {
	Dir     string
	Policy  string
	Entries int
	Bytes   int64
	Limit   int64 // 0 when unbounded
	Hits    int64
	Misses  int64
}

// Cache is a content-addressed byte cache rooted in a single directory.
// A nil *Cache is valid and behaves as an always-empty cache.
type Cache struct {
	dir      string
	limit    int64
	evictor  Evictor
	mu       sync.Mutex
	entries  map[string]int64 // file name -> size
	size     int64
	released bool

	hits   atomic.Int64
	misses atomic.Int64
}

func newCache(dir string, maxSizeMB int64) (*Cache, error) {
	var (
		ev    Evictor
		limit int64
	)
	switch {
	case maxSizeMB == Unlimited:
		ev = noopEvictor{}
	case maxSizeMB > 0:
		limit = maxSizeMB * 1024 * 1024
		ev = newLRUEvictor(limit)
	default:
		return nil, fmt.Errorf("invalid cache size %d MB", maxSizeMB)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	c := &Cache{
		dir:     dir,
		limit:   limit,
		evictor: ev,
		entries: make(map[string]int64),
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return c, nil
}

// index registers files left over from earlier runs, oldest first, and
// trims the cache down to its limit.
func (c *Cache) index() error {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading cache dir: %w", err)
	}

	type found struct {
		name string
		info fs.FileInfo
	}
	var files []found
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		if strings.HasSuffix(de.Name(), tmpSuffix) {
			os.Remove(filepath.Join(c.dir, de.Name()))
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		files = append(files, found{name: de.Name(), info: info})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].info.ModTime().Before(files[j].info.ModTime())
	})

	for _, f := range files {
		c.entries[f.name] = f.info.Size()
		c.size += f.info.Size()
		c.evictor.OnAdded(f.name, f.info.Size())
	}
	c.evictLocked(0)

	log.Debug().Str("dir", c.dir).Int("entries", len(c.entries)).Int64("bytes", c.size).Msg("Cache indexed")
	return nil
}

// Key maps an arbitrary cache key (usually a URL) to a file name.
func Key(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached bytes for key.
func (c *Cache) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	name := Key(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return nil, false
	}
	if _, ok := c.entries[name]; !ok {
		c.misses.Add(1)
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(c.dir, name))
	if err != nil {
		// The OS may have cleared the file behind our back.
		c.removeLocked(name)
		c.misses.Add(1)
		return nil, false
	}

	c.evictor.OnTouched(name)
	c.hits.Add(1)
	return data, true
}

// Put stores data under key. Entries larger than the cache limit are skipped.
func (c *Cache) Put(key string, data []byte) error {
	if c == nil {
		return nil
	}
	name := Key(key)
	size := int64(len(data))

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return nil
	}
	if !c.evictor.Fits(size) {
		return nil
	}

	tmp, err := os.CreateTemp(c.dir, "span-*"+tmpSuffix)
	if err != nil {
		return fmt.Errorf("creating cache span: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing cache span: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing cache span: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(c.dir, name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("committing cache span: %w", err)
	}

	// The index only changes once the new span is on disk.
	if old, ok := c.entries[name]; ok {
		c.size -= old
		c.evictor.OnRemoved(name)
	}
	c.entries[name] = size
	c.size += size
	c.evictor.OnAdded(name, size)
	c.evictLocked(0)
	return nil
}

// Remove drops key from the cache.
func (c *Cache) Remove(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(Key(key))
}

// Clear removes every cached span.
func (c *Cache) Clear() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for name := range c.entries {
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
		c.evictor.OnRemoved(name)
		delete(c.entries, name)
	}
	c.size = 0
	return errors.Join(errs...)
}

// Size returns the number of cached bytes.
func (c *Cache) Size() int64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of cached spans.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports the cache's current state.
func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{Policy: "disabled"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Dir:     c.dir,
		Policy:  c.evictor.Policy(),
		Entries: len(c.entries),
		Bytes:   c.size,
		Limit:   c.limit,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

func (c *Cache) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
}

func (c *Cache) evictLocked(incoming int64) {
	for _, name := range c.evictor.Victims(c.size, incoming) {
		c.removeLocked(name)
	}
}

func (c *Cache) removeLocked(name string) {
	size, ok := c.entries[name]
	if !ok {
		return
	}
	if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("span", name).Msg("Failed to remove cache span")
	}
	c.size -= size
	c.evictor.OnRemoved(name)
	delete(c.entries, name)
}
