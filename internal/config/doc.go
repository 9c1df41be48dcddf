// Package config loads, normalizes, and validates Lightcut configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// preview core needs: canvas bounds, cache budgets, decode pool sizing,
// hardware acceleration policy, and cache directories.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
