package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"flixclusive/internal/history"
	"flixclusive/internal/media"
	"flixclusive/internal/provider"
	"flixclusive/internal/ui"
)

const continueLimit = 20

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Resume from watch history",
	RunE:  historyRun,
}

var continueCmd = &cobra.Command{
	Use:   "continue",
	Short: "Continue something you have not finished",
	RunE:  continueRun,
}

func historyRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	entries, err := a.db.ListProgress(cmd.Context(), cfg.OwnerID)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	return a.resumeFrom(cmd.Context(), "History", entries, "No history entries found.")
}

func continueRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	entries, err := a.db.ContinueWatching(cmd.Context(), cfg.OwnerID, continueLimit, 0)
	if err != nil {
		return fmt.Errorf("loading continue-watching list: %w", err)
	}
	return a.resumeFrom(cmd.Context(), "Continue", entries, "Nothing to continue.")
}

func (a *app) resumeFrom(ctx context.Context, prompt string, entries []*media.WatchProgress, empty string) error {
	if len(entries) == 0 {
		fmt.Println(empty)
		return nil
	}

	idx, err := ui.Select(prompt, history.FormatForDisplay(entries))
	if err != nil {
		return err
	}
	return a.resume(ctx, entries[idx])
}

// resume plays a history entry. The session picks up the saved position;
// a finished episode moves on to the one after it.
func (a *app) resume(ctx context.Context, p *media.WatchProgress) error {
	log.Debug().Str("film", p.FilmID).Str("episode", p.EpisodeID).Msg("Resuming")

	if p.Type != media.TV || p.EpisodeID == "" {
		return a.play(ctx, media.Film{ID: p.FilmID, Title: p.Title, Type: p.Type}, nil)
	}

	show := media.SearchResult{ID: p.FilmID, Title: p.Title, Type: media.TV}
	eps := provider.NewEpisodes(a.provider, p.FilmID)
	ep := media.Episode{ID: p.EpisodeID, Season: p.Season, Number: p.Episode}
	if p.Finished {
		next, err := eps.Next(ctx, ep)
		if err != nil {
			return err
		}
		if next == nil {
			fmt.Printf("%s is finished.\n", p.Title)
			return nil
		}
		ep = *next
	}
	return a.play(ctx, eps.Film(ctx, show, ep), eps)
}
