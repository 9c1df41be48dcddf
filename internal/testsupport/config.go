package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"lightcut/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.PreviewBind = "127.0.0.1:0"
	cfgVal.PeakCache.Dir = filepath.Join(base, "peaks")
	cfgVal.MediaInfo.Path = filepath.Join(base, "mediainfo.db")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCanvas overrides the preview canvas dimensions.
func WithCanvas(width, height int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Preview.CanvasWidth = width
		b.cfg.Preview.CanvasHeight = height
	}
}

// WithCacheBudget overrides the frame cache budget in MiB.
func WithCacheBudget(mib int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Preview.CacheBudgetMiB = mib
	}
}

// WithPeakCache enables the on-disk peak cache with the given budget.
func WithPeakCache(maxMiB int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.PeakCache.Enabled = true
		b.cfg.PeakCache.MaxMiB = maxMiB
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CacheDir)
}
