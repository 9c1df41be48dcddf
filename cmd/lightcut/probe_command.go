package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lightcut/internal/logging"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>",
		Short: "Inspect a media file and cache its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := absolutePath(args[0])
			if err != nil {
				return err
			}

			store, err := openMediaInfo(cfg, logging.NewNop())
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			info, err := store.Probe(cmd.Context(), cfg.FFprobeBinary(), path)
			if err != nil {
				return fmt.Errorf("probe %s: %w", path, err)
			}

			size := "unknown"
			if stat, err := os.Stat(path); err == nil {
				size = humanize.IBytes(uint64(stat.Size()))
			}

			pairs := [][2]string{
				{"Path", info.Path},
				{"Kind", info.Kind},
				{"Dimensions", fmt.Sprintf("%dx%d", info.Width, info.Height)},
				{"Frame rate", fmt.Sprintf("%.3f fps", info.FPS)},
				{"Duration", formatSeconds(info.DurationSeconds)},
				{"File size", size},
				{"Metadata cached", yesNo(store != nil)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderKV(pairs))
			return nil
		},
	}
}
