package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	CacheDir    string `toml:"cache_dir"`
	LogDir      string `toml:"log_dir"`
	PreviewBind string `toml:"preview_bind"`
}

// Preview contains configuration for the preview render surface.
type Preview struct {
	CanvasWidth     int `toml:"canvas_width"`
	CanvasHeight    int `toml:"canvas_height"`
	CacheBudgetMiB  int `toml:"cache_budget_mib"`
	FrameStoreDepth int `toml:"frame_store_depth"`
}

// Decode contains configuration for the video decode worker pool.
type Decode struct {
	MaxWorkers              int      `toml:"max_workers"`
	MaxOpenDecoders         int      `toml:"max_open_decoders"`
	SequentialWindowSeconds float64  `toml:"sequential_window_seconds"`
	HardwareAccel           bool     `toml:"hardware_accel"`
	HardwareCandidates      []string `toml:"hardware_candidates"`
	FFmpegBinary            string   `toml:"ffmpeg_binary"`
	FFprobeBinary           string   `toml:"ffprobe_binary"`
}

// PeakCache contains configuration for the on-disk waveform peak cache.
type PeakCache struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
	MaxMiB  int    `toml:"max_mib"`
}

// MediaInfo contains configuration for the persistent probe-result cache.
type MediaInfo struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Lightcut's preview core.
//
// Configuration sections by subsystem:
//   - Paths: cache/log directories and the preview server bind address
//   - Preview: canvas bounds, frame cache budget, frame store depth
//   - Decode: worker pool sizing, sequential window, hardware acceleration
//   - PeakCache: on-disk waveform peak cache location and budget
//   - MediaInfo: persistent ffprobe result cache
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Preview   Preview   `toml:"preview"`
	Decode    Decode    `toml:"decode"`
	PeakCache PeakCache `toml:"peak_cache"`
	MediaInfo MediaInfo `toml:"media_info"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/lightcut/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/lightcut/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("lightcut.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the preview core writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.PeakCache.Enabled && strings.TrimSpace(c.PeakCache.Dir) != "" {
		if err := os.MkdirAll(c.PeakCache.Dir, 0o755); err != nil {
			return fmt.Errorf("create peak cache directory %q: %w", c.PeakCache.Dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for frame decoding.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Decode.FFmpegBinary); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable used for media inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Decode.FFprobeBinary); bin != "" {
		return bin
	}
	return "ffprobe"
}

// CacheBudgetBytes returns the frame cache budget in bytes.
func (c *Config) CacheBudgetBytes() int64 {
	return int64(c.Preview.CacheBudgetMiB) * 1024 * 1024
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.PeakCache.Dir, err = expandPath(c.PeakCache.Dir); err != nil {
		return err
	}
	if c.MediaInfo.Path, err = expandPath(c.MediaInfo.Path); err != nil {
		return err
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath expands a user-supplied path, resolving ~ and relative segments.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the embedded sample configuration to the given path.
// It refuses to overwrite an existing file.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
