package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"flixclusive/internal/media"
)

const progressColumns = `owner_id, film_id, episode_id, title, media_type, season, episode,
	elapsed_ms, duration_ms, finished, updated_at`

// GetProgress returns the resume point for a film or episode, or nil if none is stored.
func (db *DB) GetProgress(ctx context.Context, ownerID, filmID, episodeID string) (*media.WatchProgress, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+progressColumns+`
		FROM watch_progress WHERE owner_id = ? AND film_id = ? AND episode_id = ?
	`, ownerID, filmID, episodeID)

	p, err := scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting watch progress: %w", err)
	}
	return p, nil
}

// SaveProgress inserts or replaces a resume point.
func (db *DB) SaveProgress(ctx context.Context, p *media.WatchProgress) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO watch_progress (`+progressColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, film_id, episode_id) DO UPDATE SET
			title = excluded.title,
			media_type = excluded.media_type,
			season = excluded.season,
			episode = excluded.episode,
			elapsed_ms = excluded.elapsed_ms,
			duration_ms = excluded.duration_ms,
			finished = excluded.finished,
			updated_at = excluded.updated_at
	`, p.OwnerID, p.FilmID, p.EpisodeID, p.Title, p.Type.String(), p.Season, p.Episode,
		p.ElapsedMs, p.DurationMs, p.Finished, p.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("saving watch progress: %w", err)
	}
	return nil
}

// DeleteProgress removes a resume point.
func (db *DB) DeleteProgress(ctx context.Context, ownerID, filmID, episodeID string) error {
	if _, err := db.ExecContext(ctx, `
		DELETE FROM watch_progress WHERE owner_id = ? AND film_id = ? AND episode_id = ?
	`, ownerID, filmID, episodeID); err != nil {
		return fmt.Errorf("deleting watch progress: %w", err)
	}
	return nil
}

// ListProgress returns an owner's resume points, most recent first.
func (db *DB) ListProgress(ctx context.Context, ownerID string) ([]*media.WatchProgress, error) {
	return db.queryProgress(ctx, `
		SELECT `+progressColumns+`
		FROM watch_progress WHERE owner_id = ?
		ORDER BY updated_at DESC
	`, ownerID)
}

// ContinueWatching returns one page of unfinished items, most recent first,
// with only the latest episode per show.
func (db *DB) ContinueWatching(ctx context.Context, ownerID string, limit, offset int) ([]*media.WatchProgress, error) {
	return db.queryProgress(ctx, `
		SELECT `+progressColumns+`
		FROM watch_progress w
		WHERE owner_id = ? AND finished = 0 AND elapsed_ms > 0
		  AND updated_at = (
			SELECT MAX(updated_at) FROM watch_progress
			WHERE owner_id = w.owner_id AND film_id = w.film_id
		  )
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?
	`, ownerID, limit, offset)
}

func (db *DB) queryProgress(ctx context.Context, query string, args ...any) ([]*media.WatchProgress, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing watch progress: %w", err)
	}
	defer rows.Close()

	var out []*media.WatchProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning watch progress: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProgress(s scanner) (*media.WatchProgress, error) {
	var (
		p         media.WatchProgress
		mediaType string
		updatedAt int64
	)
	if err := s.Scan(&p.OwnerID, &p.FilmID, &p.EpisodeID, &p.Title, &mediaType, &p.Season, &p.Episode,
		&p.ElapsedMs, &p.DurationMs, &p.Finished, &updatedAt); err != nil {
		return nil, err
	}
	p.Type = media.ParseMediaType(mediaType)
	p.UpdatedAt = time.UnixMilli(updatedAt)
	return &p, nil
}
