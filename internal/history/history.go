// Package history turns persisted watch progress into resume positions and
// records playback progress back into the store.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"flixclusive/internal/media"
)

// finishedRemainingPercent marks an item finished once less than this share
// of its duration remains.
const finishedRemainingPercent = 5

// Store is the subset of the database the history layer needs.
type Store interface {
	GetProgress(ctx context.Context, ownerID, filmID, episodeID string) (*media.WatchProgress, error)
	SaveProgress(ctx context.Context, p *media.WatchProgress) error
}

// IsFinished reports whether elapsed is close enough to duration to count as watched.
func IsFinished(elapsedMs, durationMs int64) bool {
	if durationMs <= 0 {
		return false
	}
	return (durationMs-elapsedMs)*100 < durationMs*finishedRemainingPercent
}

// ResumePosition returns where playback should start for a stored record.
// Finished items restart from the beginning.
func ResumePosition(p *media.WatchProgress) int64 {
	if p == nil || p.Finished || p.ElapsedMs < 0 {
		return 0
	}
	if p.DurationMs > 0 && p.ElapsedMs >= p.DurationMs {
		return 0
	}
	return p.ElapsedMs
}

// Percent returns how much of a record has been watched, 0-100.
func Percent(p *media.WatchProgress) float64 {
	if p == nil || p.DurationMs <= 0 {
		return 0
	}
	pct := float64(p.ElapsedMs) / float64(p.DurationMs) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// FormatForDisplay creates display strings for selection lists.
func FormatForDisplay(entries []*media.WatchProgress) []string {
	items := make([]string, 0, len(entries))
	for _, e := range entries {
		display := e.Title
		if display == "" {
			display = e.FilmID
		}
		if e.Type == media.TV {
			display = fmt.Sprintf("%s S%02dE%02d", display, e.Season, e.Episode)
		}
		switch {
		case e.Finished:
			display += " [watched]"
		case e.ElapsedMs > 0:
			display += fmt.Sprintf(" [%.0f%%]", Percent(e))
		}
		items = append(items, display)
	}
	return items
}

// Tracker reads and writes resume points for one owner.
type Tracker struct {
	store   Store
	ownerID string
}

// NewTracker creates a tracker. A nil store disables history.
func NewTracker(store Store, ownerID string) *Tracker {
	return &Tracker{store: store, ownerID: ownerID}
}

// SavedTime returns the resume position stored for film, or 0.
func (t *Tracker) SavedTime(ctx context.Context, film media.Film) int64 {
	if t == nil || t.store == nil {
		return 0
	}
	p, err := t.store.GetProgress(ctx, t.ownerID, film.ID, film.EpisodeID())
	if err != nil {
		log.Warn().Err(err).Str("film", film.ID).Msg("Failed to read watch progress")
		return 0
	}
	return ResumePosition(p)
}

// Record stores the playback position for film.
func (t *Tracker) Record(ctx context.Context, film media.Film, positionMs, durationMs int64) error {
	if t == nil || t.store == nil {
		return nil
	}
	if positionMs <= 0 && durationMs <= 0 {
		return nil
	}

	p := &media.WatchProgress{
		OwnerID:    t.ownerID,
		FilmID:     film.ID,
		EpisodeID:  film.EpisodeID(),
		Title:      film.Title,
		Type:       film.Type,
		ElapsedMs:  positionMs,
		DurationMs: durationMs,
		Finished:   IsFinished(positionMs, durationMs),
		UpdatedAt:  time.Now(),
	}
	if film.Episode != nil {
		p.Season = film.Episode.Season
		p.Episode = film.Episode.Number
	}
	return t.store.SaveProgress(ctx, p)
}
