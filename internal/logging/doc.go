// Package logging assembles structured slog loggers and formatting helpers
// used across the Lightcut preview core.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and defines the standardized attribute keys (component, source,
// lane, frame, render_id) so decode workers, the renderer, and caches emit
// data with the same shape. The package also provides a no-op logger for tests
// and wiring code that cannot fail.
package logging
