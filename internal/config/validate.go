package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePreview(); err != nil {
		return err
	}
	if err := c.validateDecode(); err != nil {
		return err
	}
	if err := c.validatePeakCache(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePreview() error {
	if c.Preview.CanvasWidth <= 0 || c.Preview.CanvasHeight <= 0 {
		return errors.New("preview.canvas_width and preview.canvas_height must be positive")
	}
	if c.Preview.CacheBudgetMiB < 0 {
		return errors.New("preview.cache_budget_mib must not be negative")
	}
	if c.Preview.FrameStoreDepth <= 0 {
		return errors.New("preview.frame_store_depth must be positive")
	}
	return nil
}

func (c *Config) validateDecode() error {
	if c.Decode.MaxWorkers <= 0 {
		return errors.New("decode.max_workers must be positive")
	}
	if c.Decode.MaxWorkers > 64 {
		return fmt.Errorf("decode.max_workers %d exceeds the supported maximum of 64", c.Decode.MaxWorkers)
	}
	if c.Decode.MaxOpenDecoders <= 0 {
		return errors.New("decode.max_open_decoders must be positive")
	}
	if c.Decode.SequentialWindowSeconds <= 0 {
		return errors.New("decode.sequential_window_seconds must be positive")
	}
	return nil
}

func (c *Config) validatePeakCache() error {
	if !c.PeakCache.Enabled {
		return nil
	}
	if c.PeakCache.Dir == "" {
		return errors.New("peak_cache.dir must be set when peak_cache.enabled is true")
	}
	if c.PeakCache.MaxMiB <= 0 {
		return errors.New("peak_cache.max_mib must be positive when peak_cache.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
