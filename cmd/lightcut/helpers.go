package main

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"lightcut/internal/config"
	"lightcut/internal/decode"
	"lightcut/internal/mediainfo"
)

// openMediaInfo opens the persistent probe cache when enabled. A nil store is
// valid: probes then run ffprobe directly.
func openMediaInfo(cfg *config.Config, logger *slog.Logger) (*mediainfo.Store, error) {
	if cfg == nil || !cfg.MediaInfo.Enabled || strings.TrimSpace(cfg.MediaInfo.Path) == "" {
		return nil, nil
	}
	store, err := mediainfo.Open(cfg.MediaInfo.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open media info cache: %w", err)
	}
	return store, nil
}

// hardwareCandidates maps config to the pool's probe list: disabled hardware
// means an empty non-nil list, an explicit list wins, and otherwise platform
// defaults apply.
func hardwareCandidates(cfg *config.Config) []string {
	if !cfg.Decode.HardwareAccel {
		return []string{}
	}
	if len(cfg.Decode.HardwareCandidates) > 0 {
		return cfg.Decode.HardwareCandidates
	}
	return nil
}

func decodePoolOptions(cfg *config.Config, prober decode.Prober, logger *slog.Logger) decode.Options {
	return decode.Options{
		MaxWidth:                cfg.Preview.CanvasWidth,
		MaxHeight:               cfg.Preview.CanvasHeight,
		Workers:                 cfg.Decode.MaxWorkers,
		MaxOpenDecoders:         cfg.Decode.MaxOpenDecoders,
		SequentialWindowSeconds: cfg.Decode.SequentialWindowSeconds,
		HardwareCandidates:      hardwareCandidates(cfg),
		FFmpegBinary:            cfg.FFmpegBinary(),
		FFprobeBinary:           cfg.FFprobeBinary(),
		Prober:                  prober,
		Logger:                  logger,
	}
}

func absolutePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("empty media path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return abs, nil
}

// pcm16FromBytes reinterprets little-endian 16-bit PCM bytes as samples. A
// trailing odd byte is dropped.
func pcm16FromBytes(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "unknown"
	}
	return time.Duration(seconds * float64(time.Second)).Round(10 * time.Millisecond).String()
}

func formatMillis(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
}
