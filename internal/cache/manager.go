package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

// DefaultDir returns the media cache root inside the user's cache directory.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("getting cache directory: %w", err)
	}
	return filepath.Join(base, "flixclusive", "media"), nil
}

// Manager owns the process-wide cache region. The first GetOrCreate call
// builds the cache; later calls return the same handle until Release.
type Manager struct {
	dir string

	mu    sync.Mutex
	cache *Cache
	size  int64 // size requested at construction
}

// NewManager creates a manager for a cache rooted at dir.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// GetOrCreate returns the shared cache, constructing it on first use.
// maxSizeMB only takes effect at construction; a different size on a later
// call is logged and ignored until Release. A nil result means caching is
// unavailable and callers should read from the network directly.
func (m *Manager) GetOrCreate(maxSizeMB int64) *Cache {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cache != nil {
		if maxSizeMB != m.size {
			log.Debug().
				Int64("requested_mb", maxSizeMB).
				Int64("active_mb", m.size).
				Msg("Cache already built; new size applies after release")
		}
		return m.cache
	}

	c, err := newCache(m.dir, maxSizeMB)
	if err != nil {
		log.Warn().Err(err).Str("dir", m.dir).Msg("Media cache unavailable; streaming uncached")
		return nil
	}

	limit := "unlimited"
	if c.limit > 0 {
		limit = humanize.IBytes(uint64(c.limit))
	}
	log.Debug().Str("dir", m.dir).Str("policy", c.evictor.Policy()).Str("limit", limit).Msg("Media cache created")

	m.cache = c
	m.size = maxSizeMB
	return c
}

// SizeMB returns the size the live cache was built with.
func (m *Manager) SizeMB() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size, m.cache != nil
}

// Release tears down the live cache. Cached files stay on disk and are
// re-indexed by the next GetOrCreate.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cache == nil {
		return
	}
	m.cache.release()
	m.cache = nil
	m.size = 0
}
