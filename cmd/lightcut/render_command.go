package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"lightcut/internal/decode"
	"lightcut/internal/framecache"
	"lightcut/internal/logging"
	"lightcut/internal/preview"
	"lightcut/internal/render"
	"lightcut/internal/timeline"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var at float64
	var outPath string
	var allowHW bool

	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render a preview frame from a media file",
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

			logger := logging.NewNop()
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
			if info.Kind == "audio" {
				return fmt.Errorf("render: %s has no video stream", path)
			}

			pool := decode.NewPool(decodePoolOptions(cfg, store, logger))
			defer pool.Close()

			frames := preview.NewStore(cfg.Preview.FrameStoreDepth)
			kind := timeline.KindVideo
			if info.Kind == "still" {
				kind = timeline.KindStill
			}
			duration := info.DurationSeconds
			if duration <= at {
				duration = at + 1
			}
			resolver := timeline.StaticResolver{
				"source": {Path: path, Kind: kind, FPS: info.FPS},
			}
			snapshot := timeline.Snapshot{Tracks: []timeline.Track{{
				ID:      "main",
				Visible: true,
				Clips: []timeline.Clip{{
					ID:        "clip",
					AssetID:   "source",
					Duration:  duration,
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

			out := renderer.Render(cmd.Context(), render.Request{Time: at, Snapshot: snapshot, AllowHW: allowHW})
			if out.Stats.LayersDrawn == 0 {
				return fmt.Errorf("render: no frame available at %.3fs", at)
			}

			bytes, width, height, ok := frames.LatestBytes()
			if !ok {
				return fmt.Errorf("render: no frame stored")
			}
			if outPath != "" {
				if err := writePNG(outPath, bytes, width, height); err != nil {
					return err
				}
			}

			stats := out.Stats
			pairs := [][2]string{
				{"Render id", stats.RenderID},
				{"Frame version", strconv.FormatUint(out.Version, 10)},
				{"Canvas", fmt.Sprintf("%dx%d", width, height)},
				{"Layers drawn", strconv.Itoa(stats.LayersDrawn)},
				{"Cache hits / misses", fmt.Sprintf("%d / %d", stats.CacheHits, stats.CacheMisses)},
				{"Frames hw / sw", fmt.Sprintf("%d / %d", stats.HardwareFrames, stats.SoftwareFrames)},
				{"Seek time", formatMillis(stats.Decode.Seek)},
				{"Packet time", formatMillis(stats.Decode.Packet)},
				{"Copy time", formatMillis(stats.Decode.Copy)},
				{"Composite time", formatMillis(stats.Composite)},
			}
			if outPath != "" {
				pairs = append(pairs, [2]string{"Written to", outPath})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderKV(pairs))
			return nil
		},
	}

	cmd.Flags().Float64Var(&at, "at", 0, "Playhead time in seconds")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the frame as PNG to this path")
	cmd.Flags().BoolVar(&allowHW, "hw", true, "Allow hardware-accelerated decoding")
	return cmd
}

func writePNG(path string, rgba []byte, width, height int) error {
	img := &image.RGBA{Pix: rgba, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}
