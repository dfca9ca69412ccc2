package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"flixclusive/internal/media"
	"flixclusive/internal/provider"
	"flixclusive/internal/ui"
)

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Manage and play your watchlist",
	RunE:  watchlistPlayRun,
}

var watchlistAddCmd = &cobra.Command{
	Use:   "add <query>",
	Short: "Search for a title and add it to the watchlist",
	Args:  cobra.MinimumNArgs(1),
	RunE:  watchlistAddRun,
}

var watchlistRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove a title from the watchlist",
	RunE:  watchlistRemoveRun,
}

var watchlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the watchlist",
	RunE:  watchlistListRun,
}

func init() {
	watchlistCmd.AddCommand(watchlistAddCmd, watchlistRemoveCmd, watchlistListCmd)
}

func watchlistItems(items []*media.WatchlistItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		kind := "[Movie]"
		if it.Type == media.TV {
			kind = "[TV]"
		}
		out[i] = fmt.Sprintf("%s %s, added %s", it.Title, kind, humanize.Time(it.AddedAt))
	}
	return out
}

func watchlistPlayRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	items, err := a.db.ListWatchlist(cmd.Context(), cfg.OwnerID)
	if err != nil {
		return fmt.Errorf("loading watchlist: %w", err)
	}
	if len(items) == 0 {
		fmt.Println("Your watchlist is empty.")
		return nil
	}
	idx, err := ui.Select("Watchlist", watchlistItems(items))
	if err != nil {
		return err
	}
	it := items[idx]
	return a.playResult(cmd.Context(), media.SearchResult{ID: it.FilmID, Title: it.Title, Type: it.Type})
}

func watchlistAddRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	results, err := a.provider.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	selected, err := pickResult("Add", results)
	if err != nil {
		return err
	}

	err = a.db.AddToWatchlist(ctx, &media.WatchlistItem{
		OwnerID: cfg.OwnerID,
		FilmID:  selected.ID,
		Title:   selected.Title,
		Type:    selected.Type,
		AddedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("adding to watchlist: %w", err)
	}
	fmt.Printf("Added %s\n", provider.FormatDisplayTitle(selected))
	return nil
}

func watchlistRemoveRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	items, err := a.db.ListWatchlist(ctx, cfg.OwnerID)
	if err != nil {
		return fmt.Errorf("loading watchlist: %w", err)
	}
	if len(items) == 0 {
		fmt.Println("Your watchlist is empty.")
		return nil
	}
	idx, err := ui.Select("Remove", watchlistItems(items))
	if err != nil {
		return err
	}
	if err := a.db.RemoveFromWatchlist(ctx, cfg.OwnerID, items[idx].FilmID); err != nil {
		return fmt.Errorf("removing from watchlist: %w", err)
	}
	fmt.Printf("Removed %s\n", items[idx].Title)
	return nil
}

func watchlistListRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	items, err := a.db.ListWatchlist(cmd.Context(), cfg.OwnerID)
	if err != nil {
		return fmt.Errorf("loading watchlist: %w", err)
	}
	for _, line := range watchlistItems(items) {
		fmt.Println(line)
	}
	return nil
}
