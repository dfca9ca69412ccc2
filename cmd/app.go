package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"flixclusive/internal/cache"
	"flixclusive/internal/config"
	"flixclusive/internal/database"
	"flixclusive/internal/history"
	"flixclusive/internal/media"
	"flixclusive/internal/provider"
	"flixclusive/internal/ui"
)

// app holds the long-lived services a command needs.
type app struct {
	db       *database.DB
	tracker  *history.Tracker
	provider *provider.FlixHQ
	caches   *cache.Manager
	proxy    *cache.Proxy
}

func newApp() (*app, error) {
	dbPath, err := cfg.DatabaseFile()
	if err != nil {
		return nil, fmt.Errorf("resolving database path: %w", err)
	}
	db, err := database.Open(dbPath)
	if err != nil {
		return nil, err
	}

	var store history.Store
	if cfg.History {
		store = db
	}

	return &app{
		db:       db,
		tracker:  history.NewTracker(store, cfg.OwnerID),
		provider: provider.NewFlixHQ(cfg.Base),
	}, nil
}

// startCache builds the shared media cache and the loopback proxy in front
// of it. Failures leave playback uncached.
func (a *app) startCache() {
	dir, err := cache.DefaultDir()
	if err != nil {
		log.Warn().Err(err).Msg("No cache directory; streaming uncached")
		return
	}
	a.caches = cache.NewManager(dir)
	c := a.caches.GetOrCreate(cfg.CacheSizeMB)

	p := cache.NewProxy(c, nil)
	if err := p.Start(); err != nil {
		log.Warn().Err(err).Msg("Media proxy unavailable; streaming direct")
		return
	}
	a.proxy = p
}

// watchConfig warns when the cache size changes while playing; the cache
// keeps the size it was built with until it is released.
func (a *app) watchConfig(ctx context.Context) {
	path, err := config.ConfigPath()
	if err != nil || a.caches == nil {
		return
	}
	go func() {
		err := config.Watch(ctx, path, func(c *config.Config) {
			if active, ok := a.caches.SizeMB(); ok && active != c.CacheSizeMB {
				log.Warn().
					Int64("active_mb", active).
					Int64("configured_mb", c.CacheSizeMB).
					Msg("Cache size changed; the new size applies after restart")
			}
		})
		if err != nil {
			log.Debug().Err(err).Msg("Config watch unavailable")
		}
	}()
}

func (a *app) close() {
	if a.proxy != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		a.proxy.Close(ctx)
		cancel()
	}
	if a.caches != nil {
		a.caches.Release()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// pickResult lets the user choose among results.
func pickResult(prompt string, results []media.SearchResult) (media.SearchResult, error) {
	if len(results) == 0 {
		return media.SearchResult{}, fmt.Errorf("no results found")
	}
	items := make([]string, len(results))
	for i, r := range results {
		items[i] = provider.FormatDisplayTitle(r)
	}
	idx, err := ui.Select(prompt, items)
	if err != nil {
		return media.SearchResult{}, err
	}
	return results[idx], nil
}

// printDetails shows a one-paragraph summary before playback.
func (a *app) printDetails(ctx context.Context, id string) {
	d, err := a.provider.GetDetails(ctx, id)
	if err != nil {
		log.Debug().Err(err).Str("id", id).Msg("Details unavailable")
		return
	}
	meta := []string{}
	for _, s := range []string{d.Released, d.Duration, strings.Join(d.Genres, ", ")} {
		if s != "" {
			meta = append(meta, s)
		}
	}
	fmt.Fprintln(os.Stderr, d.Title)
	if len(meta) > 0 {
		fmt.Fprintln(os.Stderr, strings.Join(meta, " · "))
	}
	if d.Description != "" {
		fmt.Fprintln(os.Stderr, d.Description)
	}
}
