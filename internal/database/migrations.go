package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

type migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "watch_progress",
		SQL: `
			CREATE TABLE watch_progress (
				owner_id TEXT NOT NULL,
				film_id TEXT NOT NULL,
				episode_id TEXT NOT NULL DEFAULT '',
				title TEXT NOT NULL DEFAULT '',
				media_type TEXT NOT NULL DEFAULT 'movie',
				season INTEGER NOT NULL DEFAULT 0,
				episode INTEGER NOT NULL DEFAULT 0,
				elapsed_ms INTEGER NOT NULL DEFAULT 0,
				duration_ms INTEGER NOT NULL DEFAULT 0,
				finished INTEGER NOT NULL DEFAULT 0,
				updated_at INTEGER NOT NULL,
				PRIMARY KEY (owner_id, film_id, episode_id)
			);
			CREATE INDEX idx_watch_progress_recent ON watch_progress (owner_id, updated_at DESC);
		`,
	},
	{
		Version: 2,
		Name:    "watchlist",
		SQL: `
			CREATE TABLE watchlist (
				owner_id TEXT NOT NULL,
				film_id TEXT NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				media_type TEXT NOT NULL DEFAULT 'movie',
				added_at INTEGER NOT NULL,
				PRIMARY KEY (owner_id, film_id)
			);
		`,
	},
}

// Migrate applies pending schema migrations.
func (db *DB) Migrate() error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		log.Debug().Int("version", m.Version).Str("name", m.Name).Msg("Applying migration")

		err := db.Transaction(func(tx *sql.Tx) error {
			for i, stmt := range splitStatements(m.SQL) {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("migration %d statement %d: %w", m.Version, i+1, err)
				}
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
				return fmt.Errorf("recording migration %d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// splitStatements splits a migration into statements, dropping comments.
func splitStatements(sql string) []string {
	var (
		out     []string
		current strings.Builder
	)
	for _, line := range strings.Split(sql, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			if stmt := strings.TrimSpace(current.String()); stmt != ";" {
				out = append(out, stmt)
			}
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}
