package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"flixclusive/internal/media"
)

var trendingCmd = &cobra.Command{
	Use:   "trending [movies|tv]",
	Short: "Browse trending content",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return browse(cmd.Context(), "Trending", parseMediaTypeArg(args), func(a *app, ctx context.Context, t media.MediaType) ([]media.SearchResult, error) {
			return a.provider.Trending(ctx, t)
		})
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent [movies|tv]",
	Short: "Browse recently added content",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return browse(cmd.Context(), "Recent", parseMediaTypeArg(args), func(a *app, ctx context.Context, t media.MediaType) ([]media.SearchResult, error) {
			return a.provider.Recent(ctx, t)
		})
	},
}

type listing func(a *app, ctx context.Context, t media.MediaType) ([]media.SearchResult, error)

func browse(ctx context.Context, name string, mediaType media.MediaType, list listing) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	results, err := list(a, ctx, mediaType)
	if err != nil {
		return fmt.Errorf("getting %s: %w", strings.ToLower(name), err)
	}
	if len(results) == 0 {
		fmt.Printf("No %s content found.\n", strings.ToLower(name))
		return nil
	}

	selected, err := pickResult(name, results)
	if err != nil {
		return err
	}
	return a.playResult(ctx, selected)
}

func parseMediaTypeArg(args []string) media.MediaType {
	if len(args) == 0 {
		return media.Movie // Default
	}
	switch strings.ToLower(args[0]) {
	case "tv", "shows", "series":
		return media.TV
	default:
		return media.Movie
	}
}
