// Package mediainfo caches ffprobe results in SQLite keyed by source path.
//
// Rows are validated against the file's mtime and size, so replaced or
// re-rendered assets are probed again automatically. The database is
// transient: schema bumps drop and rebuild it rather than migrate.
package mediainfo
