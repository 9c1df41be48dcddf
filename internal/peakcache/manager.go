package peakcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"lightcut/internal/config"
	"lightcut/internal/logging"
)

const (
	cacheExtension = ".lcpk"
	// freeSpaceFloor is the minimum free-space ratio allowed before pruning
	// removes entries regardless of the byte budget.
	freeSpaceFloor = 0.05
)

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

// Manager stores peak cache files on disk and prunes old entries to keep the
// directory inside its byte budget and the filesystem above a free-space
// floor. A nil manager is valid and disables caching.
type Manager struct {
	root     string
	maxBytes int64
	logger   *slog.Logger
	statfs   statfsFunc
}

// Stats describes current peak cache usage.
type Stats struct {
	Entries    int    `json:"entries"`
	TotalBytes int64  `json:"total_bytes"`
	MaxBytes   int64  `json:"max_bytes"`
	FreeBytes  uint64 `json:"free_bytes"`
}

// NewManager builds a manager when the cache is enabled; returns nil when
// disabled or misconfigured.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	if cfg == nil || !cfg.PeakCache.Enabled {
		return nil
	}
	root := strings.TrimSpace(cfg.PeakCache.Dir)
	if root == "" || cfg.PeakCache.MaxMiB <= 0 {
		return nil
	}
	return &Manager{
		root:     root,
		maxBytes: int64(cfg.PeakCache.MaxMiB) << 20,
		logger:   logging.NewComponentLogger(logger, "peakcache"),
		statfs:   realStatfs,
	}
}

// PathFor returns the cache file path for a media source.
func (m *Manager) PathFor(mediaPath string) string {
	if m == nil {
		return ""
	}
	sum := sha256.Sum256([]byte(filepath.Clean(mediaPath)))
	return filepath.Join(m.root, hex.EncodeToString(sum[:16])+cacheExtension)
}

// Load returns the cached peaks for a media source. Entries older than the
// media file are stale and removed.
func (m *Manager) Load(mediaPath string) (*File, bool) {
	if m == nil {
		return nil, false
	}
	cachePath := m.PathFor(mediaPath)
	cacheInfo, err := os.Stat(cachePath)
	if err != nil {
		return nil, false
	}
	if mediaInfo, err := os.Stat(mediaPath); err == nil {
		if mediaInfo.ModTime().After(cacheInfo.ModTime()) {
			_ = os.Remove(cachePath)
			return nil, false
		}
	}

	f, err := os.Open(cachePath)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	file, err := Decode(f)
	if err != nil {
		m.logger.Warn("discarding unreadable peak cache entry",
			logging.String("cache_file", cachePath),
			logging.Error(err))
		_ = os.Remove(cachePath)
		return nil, false
	}
	now := time.Now()
	_ = os.Chtimes(cachePath, now, now)
	return file, true
}

// Store writes peaks for a media source and prunes the cache.
func (m *Manager) Store(mediaPath string, file *File) error {
	if m == nil || file == nil {
		return nil
	}
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return fmt.Errorf("peakcache: create cache dir: %w", err)
	}

	cachePath := m.PathFor(mediaPath)
	tmp, err := os.CreateTemp(m.root, "peaks-*.tmp")
	if err != nil {
		return fmt.Errorf("peakcache: create temp file: %w", err)
	}
	if err := file.Encode(tmp); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("peakcache: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), cachePath); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("peakcache: publish cache entry: %w", err)
	}

	if err := m.prune(cachePath); err != nil {
		return fmt.Errorf("peakcache: prune after store: %w", err)
	}
	return nil
}

// Prune removes oldest entries until the budget and free-space floor hold.
func (m *Manager) Prune() error {
	if m == nil {
		return nil
	}
	return m.prune("")
}

// Stats returns current usage counters.
func (m *Manager) Stats() (Stats, error) {
	var s Stats
	if m == nil {
		return s, nil
	}
	entries, total, err := m.scan()
	if err != nil {
		return s, err
	}
	_, free, err := m.statfs(m.root)
	if err != nil {
		return s, fmt.Errorf("peakcache: statfs: %w", err)
	}
	return Stats{
		Entries:    len(entries),
		TotalBytes: total,
		MaxBytes:   m.maxBytes,
		FreeBytes:  free,
	}, nil
}

// Clear removes every cache entry.
func (m *Manager) Clear() error {
	if m == nil {
		return nil
	}
	entries, _, err := m.scan()
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.Remove(entry.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("peakcache: remove %s: %w", entry.path, err)
		}
	}
	return nil
}

type cacheEntry struct {
	path    string
	size    int64
	modTime time.Time
}

func (m *Manager) scan() ([]cacheEntry, int64, error) {
	dirEntries, err := os.ReadDir(m.root)
	if os.IsNotExist(err) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("peakcache: scan cache dir: %w", err)
	}

	var entries []cacheEntry
	var total int64
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), cacheExtension) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, cacheEntry{
			path:    filepath.Join(m.root, de.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		total += info.Size()
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].modTime.Before(entries[j].modTime)
	})
	return entries, total, nil
}

// prune removes oldest-first until the budget and free-space constraints are
// satisfied. keepPath, when set, is never removed.
func (m *Manager) prune(keepPath string) error {
	entries, total, err := m.scan()
	if err != nil {
		return err
	}
	for _, entry := range entries {
		needSpace, err := m.belowFreeFloor()
		if err != nil {
			return err
		}
		if total <= m.maxBytes && !needSpace {
			return nil
		}
		if entry.path == keepPath {
			continue
		}
		if err := os.Remove(entry.path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("peakcache: remove %s: %w", entry.path, err)
		}
		total -= entry.size
		m.logger.Debug("pruned peak cache entry",
			logging.String("cache_file", entry.path),
			logging.Int64("bytes", entry.size))
	}
	return nil
}

func (m *Manager) belowFreeFloor() (bool, error) {
	totalFS, free, err := m.statfs(m.root)
	if err != nil {
		return false, fmt.Errorf("peakcache: statfs: %w", err)
	}
	if totalFS == 0 {
		return false, nil
	}
	return float64(free)/float64(totalFS) < freeSpaceFloor, nil
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
