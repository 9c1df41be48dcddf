package peakcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"lightcut/internal/config"
	"lightcut/internal/logging"
	"lightcut/internal/testsupport"
)

func newTestManager(t *testing.T, maxMiB int) *Manager {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithPeakCache(maxMiB))

	m := NewManager(cfg, logging.NewNop())
	if m == nil {
		t.Fatalf("manager should be enabled")
	}
	m.statfs = func(string) (uint64, uint64, error) {
		return 1 << 40, 1 << 39, nil
	}
	return m
}

func TestNewManagerDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.PeakCache.Enabled = false
	if m := NewManager(&cfg, logging.NewNop()); m != nil {
		t.Fatalf("disabled cache must yield a nil manager")
	}

	cfg.PeakCache.Enabled = true
	cfg.PeakCache.Dir = ""
	if m := NewManager(&cfg, logging.NewNop()); m != nil {
		t.Fatalf("empty dir must yield a nil manager")
	}
}

func TestNilManagerIsInert(t *testing.T) {
	var m *Manager
	if _, ok := m.Load("/media/a.wav"); ok {
		t.Fatalf("nil manager must miss")
	}
	if err := m.Store("/media/a.wav", samplePeakFile()); err != nil {
		t.Fatalf("nil manager store: %v", err)
	}
	if err := m.Prune(); err != nil {
		t.Fatalf("nil manager prune: %v", err)
	}
}

func TestStoreLoadRoundTrip(t *testing.T) {
	m := newTestManager(t, 16)
	media := filepath.Join(t.TempDir(), "track.wav")
	if err := os.WriteFile(media, []byte("pcm"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}

	if err := m.Store(media, samplePeakFile()); err != nil {
		t.Fatalf("store: %v", err)
	}
	got, ok := m.Load(media)
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if got.SampleRate != 48000 || len(got.Levels) != 2 {
		t.Fatalf("loaded file mismatch: %+v", got)
	}
}

func TestLoadDropsStaleEntry(t *testing.T) {
	m := newTestManager(t, 16)
	media := filepath.Join(t.TempDir(), "track.wav")
	if err := os.WriteFile(media, []byte("pcm"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	if err := m.Store(media, samplePeakFile()); err != nil {
		t.Fatalf("store: %v", err)
	}

	// Media rewritten after the cache entry was created.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(media, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if _, ok := m.Load(media); ok {
		t.Fatalf("stale entry must miss")
	}
	if _, err := os.Stat(m.PathFor(media)); !os.IsNotExist(err) {
		t.Fatalf("stale entry must be removed")
	}
}

func TestLoadDropsCorruptEntry(t *testing.T) {
	m := newTestManager(t, 16)
	media := filepath.Join(t.TempDir(), "track.wav")
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(m.PathFor(media), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write corrupt entry: %v", err)
	}

	if _, ok := m.Load(media); ok {
		t.Fatalf("corrupt entry must miss")
	}
	if _, err := os.Stat(m.PathFor(media)); !os.IsNotExist(err) {
		t.Fatalf("corrupt entry must be removed")
	}
}

func TestPruneEvictsOldestFirst(t *testing.T) {
	m := newTestManager(t, 16)
	m.maxBytes = 0 // force every entry over budget

	if err := os.MkdirAll(m.root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	old := filepath.Join(m.root, "old"+cacheExtension)
	fresh := filepath.Join(m.root, "fresh"+cacheExtension)
	for _, path := range []string{old, fresh} {
		testsupport.WriteFile(t, path, 1024)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	// Protect the fresh entry the way Store protects a just-written file.
	if err := m.prune(fresh); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("oldest entry must be pruned")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("protected entry must survive: %v", err)
	}
}

func TestPruneOnFreeSpaceFloor(t *testing.T) {
	m := newTestManager(t, 16)
	m.statfs = func(string) (uint64, uint64, error) {
		return 1000, 10, nil // 1% free, below the floor
	}

	if err := os.MkdirAll(m.root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	entry := filepath.Join(m.root, "entry"+cacheExtension)
	testsupport.WriteFile(t, entry, 64)

	if err := m.Prune(); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if _, err := os.Stat(entry); !os.IsNotExist(err) {
		t.Fatalf("free-space pressure must prune even under budget")
	}
}

func TestStatsCountsEntries(t *testing.T) {
	m := newTestManager(t, 16)
	media := filepath.Join(t.TempDir(), "track.wav")
	if err := m.Store(media, samplePeakFile()); err != nil {
		t.Fatalf("store: %v", err)
	}

	stats, err := m.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Entries != 1 || stats.TotalBytes <= 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.MaxBytes != 16<<20 {
		t.Fatalf("max bytes mismatch: %d", stats.MaxBytes)
	}
}
