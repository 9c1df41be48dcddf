package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lightcut/internal/decode"
	"lightcut/internal/framecache"
	"lightcut/internal/logging"
	"lightcut/internal/preview"
	"lightcut/internal/previewserver"
	"lightcut/internal/render"
	"lightcut/internal/timeline"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var at float64
	var allowHW bool

	cmd := &cobra.Command{
		Use:   "serve <file>",
		Short: "Play a media file and serve preview frames over HTTP",
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

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			store, err := openMediaInfo(cfg, logger)
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
			if info.Kind != "video" {
				return fmt.Errorf("serve: %s is not a video source", path)
			}
			fps := info.FPS
			if fps <= 0 {
				fps = 25
			}

			pool := decode.NewPool(decodePoolOptions(cfg, store, logger))
			defer pool.Close()

			frames := preview.NewStore(cfg.Preview.FrameStoreDepth)
			resolver := timeline.StaticResolver{
				"source": {Path: path, Kind: timeline.KindVideo, FPS: info.FPS},
			}
			snapshot := timeline.Snapshot{Tracks: []timeline.Track{{
				ID:      "main",
				Visible: true,
				Clips: []timeline.Clip{{
					ID:        "clip",
					AssetID:   "source",
					Duration:  info.DurationSeconds,
					Transform: timeline.Identity(),
					Volume:    1,
				}},
			}}}

			renderer, err := render.New(render.Options{
				Cache:        framecache.New(cfg.CacheBudgetBytes(), logger),
				Pool:         pool,
				Store:        frames,
				Resolver:     resolver,
				CanvasWidth:  cfg.Preview.CanvasWidth,
				CanvasHeight: cfg.Preview.CanvasHeight,
				Logger:       logger,
			})
			if err != nil {
				return err
			}

			server := previewserver.New(cfg, frames, logger)
			if server == nil {
				return fmt.Errorf("serve: no preview_bind address configured")
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := server.Start(runCtx); err != nil {
				return err
			}
			defer server.Stop()

			ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
			defer ticker.Stop()

			playhead := at
			for {
				select {
				case <-runCtx.Done():
					return nil
				case <-ticker.C:
				}
				if info.DurationSeconds > 0 && playhead >= info.DurationSeconds {
					playhead = 0 // loop playback
				}
				out := renderer.Render(runCtx, render.Request{Time: playhead, Snapshot: snapshot, AllowHW: allowHW})
				if out.Version != 0 {
					server.Notify(out.Version, out.Width, out.Height)
				}
				playhead += 1 / fps
			}
		},
	}

	cmd.Flags().Float64Var(&at, "at", 0, "Start playback at this time in seconds")
	cmd.Flags().BoolVar(&allowHW, "hw", true, "Allow hardware-accelerated decoding")
	return cmd
}
