package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lightcut/internal/logging"
	"lightcut/internal/peakcache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "On-disk cache utilities",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show on-disk cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			manager := peakcache.NewManager(cfg, logging.NewNop())
			if manager == nil {
				fmt.Fprintln(out, "Peak cache: disabled")
			} else {
				stats, err := manager.Stats()
				if err != nil {
					return err
				}
				pairs := [][2]string{
					{"Peak cache entries", strconv.Itoa(stats.Entries)},
					{"Peak cache size", humanize.IBytes(uint64(stats.TotalBytes))},
					{"Peak cache budget", humanize.IBytes(uint64(stats.MaxBytes))},
					{"Filesystem free", humanize.IBytes(stats.FreeBytes)},
				}
				fmt.Fprintln(out, renderKV(pairs))
			}

			if cfg.MediaInfo.Enabled {
				size := int64(0)
				if stat, err := os.Stat(cfg.MediaInfo.Path); err == nil {
					size = stat.Size()
				}
				fmt.Fprintf(out, "Media info cache: %s (%s)\n", cfg.MediaInfo.Path, humanize.IBytes(uint64(size)))
			} else {
				fmt.Fprintln(out, "Media info cache: disabled")
			}
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var clearMediaInfo bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove on-disk cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if manager := peakcache.NewManager(cfg, logging.NewNop()); manager != nil {
				if err := manager.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(out, "Peak cache cleared")
			} else {
				fmt.Fprintln(out, "Peak cache: disabled")
			}

			if clearMediaInfo && cfg.MediaInfo.Enabled && strings.TrimSpace(cfg.MediaInfo.Path) != "" {
				if err := os.Remove(cfg.MediaInfo.Path); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("remove media info cache: %w", err)
				}
				fmt.Fprintln(out, "Media info cache removed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearMediaInfo, "media-info", false, "Also remove the media info database")
	return cmd
}
