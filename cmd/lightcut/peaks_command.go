package main

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lightcut/internal/logging"
	"lightcut/internal/media/ffprobe"
	"lightcut/internal/peakcache"
)

func newPeaksCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	var blockFrames int
	var levels int

	cmd := &cobra.Command{
		Use:   "peaks <file>",
		Short: "Build waveform peaks for an audio source",
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

			result, err := ffprobe.Inspect(cmd.Context(), cfg.FFprobeBinary(), path)
			if err != nil {
				return fmt.Errorf("probe %s: %w", path, err)
			}
			stream, ok := result.AudioStream()
			if !ok {
				return fmt.Errorf("peaks: %s has no audio stream", path)
			}
			channels := stream.Channels
			if channels <= 0 {
				channels = 2
			}
			sampleRate, _ := strconv.Atoi(strings.TrimSpace(stream.SampleRate))
			if sampleRate <= 0 {
				sampleRate = 48000
			}

			pcm, err := extractPCM(cmd, cfg.FFmpegBinary(), path, channels, sampleRate)
			if err != nil {
				return err
			}
			samples := pcm16FromBytes(pcm)

			file, err := peakcache.Build(samples, channels, sampleRate, blockFrames, levels)
			if err != nil {
				return err
			}

			cached := false
			if manager := peakcache.NewManager(cfg, logging.NewNop()); manager != nil {
				if err := manager.Store(path, file); err != nil {
					return err
				}
				cached = true
			}
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				if err := file.Encode(f); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("close %s: %w", outPath, err)
				}
			}

			headers := []string{"Level", "Block frames", "Peaks"}
			rows := make([][]string, 0, len(file.Levels))
			for i, level := range file.Levels {
				rows = append(rows, []string{
					strconv.Itoa(i),
					strconv.FormatUint(uint64(level.BlockSize), 10),
					strconv.Itoa(len(level.Peaks) / int(file.Channels)),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
			fmt.Fprintf(out, "%d frames, %d channels, %s of PCM, cached: %s\n",
				file.FrameCount, file.Channels, humanize.IBytes(uint64(len(pcm))), yesNo(cached))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Also write the peak file to this path")
	cmd.Flags().IntVar(&blockFrames, "block", 256, "Frames per peak at the base level")
	cmd.Flags().IntVar(&levels, "levels", 8, "Number of mip levels to compute")
	return cmd
}

// extractPCM decodes the source's audio to interleaved signed 16-bit PCM.
func extractPCM(cmd *cobra.Command, binary, path string, channels, sampleRate int) ([]byte, error) {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	ff := exec.CommandContext(cmd.Context(), binary,
		"-nostdin", "-v", "error",
		"-i", path,
		"-vn", "-sn",
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
		"-f", "s16le", "-acodec", "pcm_s16le",
		"-",
	)
	ff.Stderr = cmd.ErrOrStderr()
	pcm, err := ff.Output()
	if err != nil {
		return nil, fmt.Errorf("peaks: decode audio: %w", err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("peaks: %s produced no audio samples", path)
	}
	return pcm, nil
}
