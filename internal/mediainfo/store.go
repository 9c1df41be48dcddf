package mediainfo

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"lightcut/internal/logging"
	"lightcut/internal/media/ffprobe"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; stale databases are cleared and rebuilt on open.
const schemaVersion = 1

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Info is a cached probe result for one media file.
type Info struct {
	Path            string
	Kind            string
	Width           int
	Height          int
	FPS             float64
	DurationSeconds float64
}

// Store persists probe results in SQLite so scrub sessions across process
// restarts skip redundant ffprobe runs. A nil *Store is valid and degrades to
// probing directly.
type Store struct {
	db     *sql.DB
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

// Open initializes the store at path, creating parent directories and the
// schema as needed. Schema initialization is serialized across processes with
// a file lock next to the database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("mediainfo: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mediainfo: create database directory: %w", err)
	}

	fileLock := flock.New(path + ".lock")
	if err := fileLock.Lock(); err != nil {
		return nil, fmt.Errorf("mediainfo: acquire init lock: %w", err)
	}
	defer func() { _ = fileLock.Unlock() }()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("mediainfo: open database: %w", err)
	}

	store := &Store{
		db:     db,
		path:   path,
		lock:   fileLock,
		logger: logging.NewComponentLogger(logger, "mediainfo"),
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("mediainfo: check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("mediainfo: create schema: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("mediainfo: read schema version: %w", err)
	}
	if version == schemaVersion {
		return nil
	}

	// Probe results are cheap to regenerate; a stale schema is dropped.
	s.logger.Warn("rebuilding media info cache after schema change",
		logging.Int("found_version", version),
		logging.Int("expected_version", schemaVersion))
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS media_info; DROP TABLE IF EXISTS schema_version;"); err != nil {
		return fmt.Errorf("mediainfo: drop stale schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("mediainfo: recreate schema: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == 5 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Lookup returns the cached info for path when the recorded mtime and size
// still match the file on disk.
func (s *Store) Lookup(ctx context.Context, path string, mtimeUnix, size int64) (Info, bool, error) {
	if s == nil || s.db == nil {
		return Info{}, false, nil
	}
	var (
		info        Info
		storedMtime int64
		storedSize  int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT path, kind, width, height, fps, duration, mtime, size FROM media_info WHERE path = ?", path,
	).Scan(&info.Path, &info.Kind, &info.Width, &info.Height, &info.FPS, &info.DurationSeconds, &storedMtime, &storedSize)
	if errors.Is(err, sql.ErrNoRows) {
		return Info{}, false, nil
	}
	if err != nil {
		return Info{}, false, fmt.Errorf("mediainfo: lookup: %w", err)
	}
	if storedMtime != mtimeUnix || storedSize != size {
		return Info{}, false, nil
	}
	return info, true, nil
}

// Save upserts a probe result.
func (s *Store) Save(ctx context.Context, info Info, mtimeUnix, size int64) error {
	if s == nil || s.db == nil {
		return nil
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
INSERT INTO media_info (path, mtime, size, kind, width, height, fps, duration, probed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
    mtime = excluded.mtime,
    size = excluded.size,
    kind = excluded.kind,
    width = excluded.width,
    height = excluded.height,
    fps = excluded.fps,
    duration = excluded.duration,
    probed_at = excluded.probed_at`,
			info.Path, mtimeUnix, size, info.Kind, info.Width, info.Height, info.FPS, info.DurationSeconds, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("mediainfo: save: %w", err)
		}
		return nil
	})
}

// Invalidate drops the cached row for path.
func (s *Store) Invalidate(ctx context.Context, path string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return retryOnBusy(ctx, func() error {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM media_info WHERE path = ?", path); err != nil {
			return fmt.Errorf("mediainfo: invalidate: %w", err)
		}
		return nil
	})
}

// Probe returns media info for path, consulting the cache first. Misses run
// ffprobe and persist the result. Works with a nil receiver (always probes).
func (s *Store) Probe(ctx context.Context, binary, path string) (Info, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("mediainfo: stat source: %w", err)
	}
	mtime := stat.ModTime().Unix()
	size := stat.Size()

	if info, ok, err := s.Lookup(ctx, path, mtime, size); err != nil {
		// A broken cache must not block probing.
		if s != nil {
			s.logger.Warn("media info lookup failed; probing directly", logging.Error(err))
		}
	} else if ok {
		return info, nil
	}

	result, err := ffprobe.Inspect(ctx, binary, path)
	if err != nil {
		return Info{}, err
	}
	info := classify(path, result)

	if err := s.Save(ctx, info, mtime, size); err != nil && s != nil {
		s.logger.Warn("media info save failed", logging.Error(err), logging.String(logging.FieldSource, path))
	}
	return info, nil
}

func classify(path string, result ffprobe.Result) Info {
	info := Info{Path: path, DurationSeconds: result.DurationSeconds()}
	if video, ok := result.VideoStream(); ok {
		info.Width = video.Width
		info.Height = video.Height
		info.FPS = video.FrameRate()
		if info.FPS > 0 && info.DurationSeconds > 1.0/info.FPS {
			info.Kind = "video"
		} else {
			// Single-frame "video" streams are stills (png, jpeg inputs).
			info.Kind = "still"
		}
		return info
	}
	if _, ok := result.AudioStream(); ok {
		info.Kind = "audio"
		return info
	}
	info.Kind = "unknown"
	return info
}
