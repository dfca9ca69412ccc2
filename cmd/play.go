package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"flixclusive/internal/media"
	"flixclusive/internal/player"
	"flixclusive/internal/provider"
	"flixclusive/internal/session"
	"flixclusive/internal/ui"
)

// searchRun is the default command: flixclusive <query>
func searchRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := strings.Join(args, " ")

	if query == "" {
		var err error
		query, err = ui.Input("Search")
		if err != nil {
			return fmt.Errorf("no search query provided")
		}
	}
	log.Debug().Str("query", query).Msg("Searching")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	results, err := a.provider.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	selected, err := pickResult("Select", results)
	if err != nil {
		return err
	}
	return a.playResult(ctx, selected)
}

// playResult asks for season and episode when needed, then plays.
func (a *app) playResult(ctx context.Context, selected media.SearchResult) error {
	log.Debug().Str("id", selected.ID).Str("type", selected.Type.String()).Msg("Selected")
	a.printDetails(ctx, selected.ID)

	if selected.Type != media.TV {
		return a.play(ctx, media.Film{ID: selected.ID, Title: selected.Title, Type: media.Movie}, nil)
	}

	eps := provider.NewEpisodes(a.provider, selected.ID)
	ep, err := chooseEpisode(ctx, eps)
	if err != nil {
		return err
	}
	return a.play(ctx, eps.Film(ctx, selected, ep), eps)
}

func chooseEpisode(ctx context.Context, eps *provider.Episodes) (media.Episode, error) {
	seasons, err := eps.Seasons(ctx)
	if err != nil {
		return media.Episode{}, err
	}
	if len(seasons) == 0 {
		return media.Episode{}, fmt.Errorf("no seasons found")
	}

	seasonIdx := 0
	if len(seasons) > 1 {
		items := make([]string, len(seasons))
		for i, s := range seasons {
			items[i] = fmt.Sprintf("Season %d", s.Number)
		}
		if seasonIdx, err = ui.Select("Season", items); err != nil {
			return media.Episode{}, err
		}
	}

	episodes, err := eps.List(ctx, seasons[seasonIdx])
	if err != nil {
		return media.Episode{}, err
	}
	if len(episodes) == 0 {
		return media.Episode{}, fmt.Errorf("no episodes found")
	}

	items := make([]string, len(episodes))
	for i, ep := range episodes {
		if ep.Title != "" {
			items[i] = fmt.Sprintf("Episode %d: %s", ep.Number, ep.Title)
		} else {
			items[i] = fmt.Sprintf("Episode %d", ep.Number)
		}
	}
	idx, err := ui.Select("Episode", items)
	if err != nil {
		return media.Episode{}, err
	}
	return episodes[idx], nil
}

// upNext holds the prefetched next episode.
type upNext struct {
	mu   sync.Mutex
	film *media.Film
}

func (u *upNext) set(f media.Film) {
	u.mu.Lock()
	u.film = &f
	u.mu.Unlock()
}

func (u *upNext) take() (media.Film, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.film == nil {
		return media.Film{}, false
	}
	f := *u.film
	u.film = nil
	return f, true
}

// play runs one playback session until the player exits or the user quits.
// eps is nil for movies.
func (a *app) play(ctx context.Context, film media.Film, eps *provider.Episodes) error {
	engine := player.New(cfg.Player)
	if !engine.Available() {
		return fmt.Errorf("player %q not found in PATH", cfg.Player)
	}

	a.startCache()
	a.watchConfig(ctx)

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	show := media.SearchResult{ID: film.ID, Title: film.Title, Type: film.Type}
	var (
		coord *session.Coordinator
		next  upNext
	)
	findNext := func(cur media.Film) (media.Film, bool) {
		if eps == nil || cur.Episode == nil {
			return media.Film{}, false
		}
		ep, err := eps.Next(ctx, *cur.Episode)
		if err != nil || ep == nil {
			if err != nil {
				log.Warn().Err(err).Msg("Next episode lookup failed")
			}
			return media.Film{}, false
		}
		return eps.Film(ctx, show, *ep), true
	}
	load := func(f media.Film) {
		err := coord.Load(ctx, session.Request{Film: f, Server: cfg.Provider})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Str("film", f.ID).Msg("Load failed")
		}
	}

	coord = session.New(session.Options{
		Engine:           engine,
		Resolver:         provider.NewResolver(a.provider),
		SavedTime:        a.tracker.SavedTime,
		Proxy:            a.proxy,
		SubtitleLanguage: cfg.SubsLanguage,
		AudioLanguage:    cfg.AudioLanguage,
		Quality:          cfg.QualityLabel(),
		PollInterval:     cfg.PollInterval(),
		Hooks: session.Hooks{
			OnEpisodeResolved: func(f media.Film) {
				log.Info().Str("title", session.Title(f)).Msg("Resolved")
			},
			OnError: func(err error) {
				log.Warn().Err(err).Msg("Playback error")
			},
			OnProgress: func(f media.Film, pos, dur int64) {
				if err := a.tracker.Record(context.WithoutCancel(ctx), f, pos, dur); err != nil {
					log.Warn().Err(err).Str("film", f.ID).Msg("Failed to save progress")
				}
			},
			OnPrefetchNext: func(f media.Film) {
				go func() {
					if nf, ok := findNext(f); ok {
						next.set(nf)
						log.Debug().Str("title", session.Title(nf)).Msg("Prefetched next episode")
					}
				}()
			},
			OnLoadNext: func(f media.Film) {
				go func() {
					nf, ok := next.take()
					if !ok {
						if nf, ok = findNext(f); !ok {
							return
						}
					}
					load(nf)
				}()
			},
		},
	})
	defer coord.Close()
	log.Debug().Str("session", coord.ID()).Str("player", engine.Name()).Msg("Session started")

	go func() {
		if err := coord.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("Playback polling stopped")
		}
		stop()
	}()
	go load(film)

	return ui.RunPlayback(ctx, coord, coord.Store())
}
