package database

import (
	"context"
	"fmt"
	"time"

	"flixclusive/internal/media"
)

// AddToWatchlist saves a film to an owner's watchlist. Adding twice is a no-op.
func (db *DB) AddToWatchlist(ctx context.Context, item *media.WatchlistItem) error {
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO watchlist (owner_id, film_id, title, media_type, added_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, film_id) DO NOTHING
	`, item.OwnerID, item.FilmID, item.Title, item.Type.String(), item.AddedAt.UnixMilli()); err != nil {
		return fmt.Errorf("adding to watchlist: %w", err)
	}
	return nil
}

// RemoveFromWatchlist deletes a film from an owner's watchlist.
func (db *DB) RemoveFromWatchlist(ctx context.Context, ownerID, filmID string) error {
	if _, err := db.ExecContext(ctx, `
		DELETE FROM watchlist WHERE owner_id = ? AND film_id = ?
	`, ownerID, filmID); err != nil {
		return fmt.Errorf("removing from watchlist: %w", err)
	}
	return nil
}

// InWatchlist reports whether a film is on an owner's watchlist.
func (db *DB) InWatchlist(ctx context.Context, ownerID, filmID string) (bool, error) {
	var n int
	if err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM watchlist WHERE owner_id = ? AND film_id = ?
	`, ownerID, filmID).Scan(&n); err != nil {
		return false, fmt.Errorf("checking watchlist: %w", err)
	}
	return n > 0, nil
}

// ListWatchlist returns an owner's watchlist, newest first.
func (db *DB) ListWatchlist(ctx context.Context, ownerID string) ([]*media.WatchlistItem, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT owner_id, film_id, title, media_type, added_at
		FROM watchlist WHERE owner_id = ?
		ORDER BY added_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing watchlist: %w", err)
	}
	defer rows.Close()

	var items []*media.WatchlistItem
	for rows.Next() {
		var (
			item      media.WatchlistItem
			mediaType string
			addedAt   int64
		)
		if err := rows.Scan(&item.OwnerID, &item.FilmID, &item.Title, &mediaType, &addedAt); err != nil {
			return nil, fmt.Errorf("scanning watchlist: %w", err)
		}
		item.Type = media.ParseMediaType(mediaType)
		item.AddedAt = time.UnixMilli(addedAt)
		items = append(items, &item)
	}
	return items, rows.Err()
}
