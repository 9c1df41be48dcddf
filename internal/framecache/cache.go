package framecache

import (
	"image"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"lightcut/internal/logging"
)

// Key identifies a decoded, unscaled frame: source path plus frame index.
type Key struct {
	Path  string
	Frame int64
}

// Frame is the shared, read-only handle returned to callers on a cache hit.
// The image must not be mutated; the source dimensions are the media's native
// size before any placement scaling.
type Frame struct {
	Image        *image.RGBA
	SourceWidth  int
	SourceHeight int
}

type entry struct {
	img       *image.RGBA
	srcW      int
	srcH      int
	sizeBytes int64
	lastUsed  uint64
}

// lruRecord is one queued access observation. Records are never removed on
// re-access; eviction validates the stamp against the live entry and skips
// records that were superseded by a later Get or Insert.
type lruRecord struct {
	key   Key
	stamp uint64
}

// Cache is a byte-budgeted LRU cache of decoded RGBA frames.
type Cache struct {
	mu         sync.Mutex
	logger     *slog.Logger
	maxBytes   int64
	totalBytes int64
	clock      uint64
	entries    map[Key]*entry
	assetIndex map[string]map[int64]struct{}
	queue      []lruRecord
}

// Stats summarizes current cache occupancy.
type Stats struct {
	Entries    int   `json:"entries"`
	TotalBytes int64 `json:"total_bytes"`
	MaxBytes   int64 `json:"max_bytes"`
}

// New constructs a cache with the given byte budget. A zero or negative
// budget yields a cache that rejects every insert.
func New(maxBytes int64, logger *slog.Logger) *Cache {
	if maxBytes < 0 {
		maxBytes = 0
	}
	return &Cache{
		logger:     logging.NewComponentLogger(logger, "framecache"),
		maxBytes:   maxBytes,
		entries:    make(map[Key]*entry),
		assetIndex: make(map[string]map[int64]struct{}),
	}
}

// Get returns the cached frame for key, bumping its recency. Misses have no
// side effects.
func (c *Cache) Get(key Key) (Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		return Frame{}, false
	}
	c.clock++
	ent.lastUsed = c.clock
	c.queue = append(c.queue, lruRecord{key: key, stamp: c.clock})
	c.maybeCompact()
	return Frame{Image: ent.img, SourceWidth: ent.srcW, SourceHeight: ent.srcH}, true
}

// Insert stores a decoded frame under key. Oversized, empty, or unbudgeted
// inserts are silently rejected. An existing entry for the same key is
// replaced, and eviction runs until the budget is satisfied.
func (c *Cache) Insert(key Key, img *image.RGBA, sourceW, sourceH int) {
	if img == nil {
		return
	}
	bounds := img.Bounds()
	size := int64(bounds.Dx()) * int64(bounds.Dy()) * 4
	if size <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxBytes == 0 || size > c.maxBytes {
		return
	}

	if existing, ok := c.entries[key]; ok {
		c.totalBytes -= existing.sizeBytes
		delete(c.entries, key)
		c.dropFromIndex(key)
	}

	c.clock++
	c.entries[key] = &entry{
		img:       img,
		srcW:      sourceW,
		srcH:      sourceH,
		sizeBytes: size,
		lastUsed:  c.clock,
	}
	c.totalBytes += size

	frames, ok := c.assetIndex[key.Path]
	if !ok {
		frames = make(map[int64]struct{})
		c.assetIndex[key.Path] = frames
	}
	frames[key.Frame] = struct{}{}

	c.queue = append(c.queue, lruRecord{key: key, stamp: c.clock})
	c.evict()
	c.maybeCompact()
}

// InvalidatePath drops every cached frame for the exact source path.
func (c *Cache) InvalidatePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	frames, ok := c.assetIndex[path]
	if !ok {
		return
	}
	for frame := range frames {
		key := Key{Path: path, Frame: frame}
		if ent, ok := c.entries[key]; ok {
			c.totalBytes -= ent.sizeBytes
			delete(c.entries, key)
		}
	}
	delete(c.assetIndex, path)
	c.logger.Debug("invalidated source", logging.String(logging.FieldSource, path))
}

// InvalidateFolder drops every cached frame whose source path lives under the
// given directory.
func (c *Cache) InvalidateFolder(folder string) {
	folder = filepath.Clean(folder)
	if folder == "" || folder == "." {
		return
	}
	prefix := folder + string(filepath.Separator)

	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for path := range c.assetIndex {
		if path != folder && !strings.HasPrefix(path, prefix) {
			continue
		}
		for frame := range c.assetIndex[path] {
			key := Key{Path: path, Frame: frame}
			if ent, ok := c.entries[key]; ok {
				c.totalBytes -= ent.sizeBytes
				delete(c.entries, key)
				dropped++
			}
		}
		delete(c.assetIndex, path)
	}
	if dropped > 0 {
		c.logger.Debug("invalidated folder",
			logging.String("folder", folder),
			logging.Int("frames", dropped))
	}
}

// Stats returns current occupancy counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Entries: len(c.entries), TotalBytes: c.totalBytes, MaxBytes: c.maxBytes}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*entry)
	c.assetIndex = make(map[string]map[int64]struct{})
	c.queue = nil
	c.totalBytes = 0
}

// evict pops LRU records until the budget is satisfied. Records whose stamp
// no longer matches the live entry were superseded by a later access and are
// skipped without evicting.
func (c *Cache) evict() {
	for c.totalBytes > c.maxBytes && len(c.queue) > 0 {
		record := c.queue[0]
		c.queue = c.queue[1:]

		ent, ok := c.entries[record.key]
		if !ok || ent.lastUsed != record.stamp {
			continue
		}
		c.totalBytes -= ent.sizeBytes
		delete(c.entries, record.key)
		c.dropFromIndex(record.key)
		c.logger.Debug("evicted frame",
			logging.String(logging.FieldSource, record.key.Path),
			logging.Int64(logging.FieldFrame, record.key.Frame),
			logging.Int64("bytes", ent.sizeBytes))
	}
}

func (c *Cache) dropFromIndex(key Key) {
	frames, ok := c.assetIndex[key.Path]
	if !ok {
		return
	}
	delete(frames, key.Frame)
	if len(frames) == 0 {
		delete(c.assetIndex, key.Path)
	}
}

// maybeCompact bounds queue growth from repeated Gets by discarding records
// that can never evict anything.
func (c *Cache) maybeCompact() {
	if len(c.queue) <= 8*(len(c.entries)+1) {
		return
	}
	kept := c.queue[:0]
	for _, record := range c.queue {
		if ent, ok := c.entries[record.key]; ok && ent.lastUsed == record.stamp {
			kept = append(kept, record)
		}
	}
	c.queue = kept
}
