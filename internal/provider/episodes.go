package provider

import (
	"context"
	"fmt"
	"sync"

	"flixclusive/internal/media"
)

// Episodes walks a show's episode order, memoizing season and episode
// lists. It is safe for concurrent use.
type Episodes struct {
	p      Provider
	showID string

	mu       sync.Mutex
	seasons  []media.Season
	episodes map[string][]media.Episode // season id -> episodes
}

func NewEpisodes(p Provider, showID string) *Episodes {
	return &Episodes{p: p, showID: showID, episodes: make(map[string][]media.Episode)}
}

// Seasons returns the show's seasons.
func (e *Episodes) Seasons(ctx context.Context) ([]media.Season, error) {
	e.mu.Lock()
	cached := e.seasons
	e.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	seasons, err := e.p.GetSeasons(ctx, e.showID)
	if err != nil {
		return nil, fmt.Errorf("getting seasons: %w", err)
	}
	if seasons == nil {
		seasons = []media.Season{}
	}
	e.mu.Lock()
	e.seasons = seasons
	e.mu.Unlock()
	return seasons, nil
}

// List returns the episodes of a season.
func (e *Episodes) List(ctx context.Context, season media.Season) ([]media.Episode, error) {
	e.mu.Lock()
	cached, ok := e.episodes[season.ID]
	e.mu.Unlock()
	if ok {
		return cached, nil
	}

	eps, err := e.p.GetEpisodes(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("getting episodes for season %d: %w", season.Number, err)
	}
	e.mu.Lock()
	e.episodes[season.ID] = eps
	e.mu.Unlock()
	return eps, nil
}

// Next returns the episode after cur, crossing into the next non-empty
// season. It returns nil when cur is the show's last episode.
func (e *Episodes) Next(ctx context.Context, cur media.Episode) (*media.Episode, error) {
	seasons, err := e.Seasons(ctx)
	if err != nil {
		return nil, err
	}

	si := -1
	for i, s := range seasons {
		if s.Number == cur.Season {
			si = i
			break
		}
	}
	if si < 0 {
		return nil, fmt.Errorf("season %d not found", cur.Season)
	}

	eps, err := e.List(ctx, seasons[si])
	if err != nil {
		return nil, err
	}
	for i, ep := range eps {
		if ep.ID == cur.ID && i+1 < len(eps) {
			next := eps[i+1]
			return &next, nil
		}
	}

	for _, s := range seasons[si+1:] {
		eps, err := e.List(ctx, s)
		if err != nil {
			return nil, err
		}
		if len(eps) > 0 {
			next := eps[0]
			return &next, nil
		}
	}
	return nil, nil
}

// Film builds the playback identity for an episode, marking the show's
// last episode so the session suppresses next-episode signals.
func (e *Episodes) Film(ctx context.Context, show media.SearchResult, ep media.Episode) media.Film {
	film := media.Film{ID: show.ID, Title: show.Title, Type: media.TV, Episode: &ep}
	if next, err := e.Next(ctx, ep); err == nil && next == nil {
		film.LastEpisode = true
	}
	return film
}
