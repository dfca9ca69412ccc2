package cmd

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"flixclusive/internal/cache"
	"flixclusive/internal/ui"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the media cache",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show media cache usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, release, err := openCache()
		if err != nil {
			return err
		}
		defer release()

		st := c.Stats()
		limit := "unlimited"
		if st.Limit > 0 {
			limit = humanize.IBytes(uint64(st.Limit))
		}
		fmt.Printf("Directory: %s\n", st.Dir)
		fmt.Printf("Policy:    %s\n", st.Policy)
		fmt.Printf("Entries:   %s\n", humanize.Comma(int64(st.Entries)))
		fmt.Printf("Size:      %s of %s\n", humanize.IBytes(uint64(st.Bytes)), limit)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached media span",
	RunE: func(cmd *cobra.Command, args []string) error {
		if ui.Interactive() {
			ok, err := ui.Confirm("Clear the media cache?")
			if errors.Is(err, ui.ErrCancelled) || (err == nil && !ok) {
				return nil
			}
			if err != nil {
				return err
			}
		}

		c, release, err := openCache()
		if err != nil {
			return err
		}
		defer release()

		freed := c.Size()
		if err := c.Clear(); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		fmt.Printf("Freed %s\n", humanize.IBytes(uint64(freed)))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheInfoCmd, cacheClearCmd)
}

func openCache() (*cache.Cache, func(), error) {
	dir, err := cache.DefaultDir()
	if err != nil {
		return nil, nil, err
	}
	m := cache.NewManager(dir)
	c := m.GetOrCreate(cfg.CacheSizeMB)
	if c == nil {
		return nil, nil, fmt.Errorf("media cache at %s is unavailable", dir)
	}
	return c, m.Release, nil
}
