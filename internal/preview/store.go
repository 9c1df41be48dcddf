package preview

import (
	"sync"
)

// defaultDepth is the ring depth when none is configured: the frame being
// displayed plus the frame being composited.
const defaultDepth = 2

type frame struct {
	version uint64
	width   int
	height  int
	bytes   []byte
}

// Store retains the most recently composited RGBA frames, each tagged with a
// strictly increasing version. Version 0 is the "no frame" sentinel and is
// never issued; the counter wraps past it. The store is written by the render
// path and read concurrently by the byte-serving boundary.
type Store struct {
	mu     sync.RWMutex
	depth  int
	next   uint64
	frames []frame
}

// NewStore builds a store retaining depth frames. Non-positive depths select
// the default.
func NewStore(depth int) *Store {
	if depth <= 0 {
		depth = defaultDepth
	}
	return &Store{depth: depth, next: 1}
}

// StoreFrame retains a composited frame and returns its version. Buffers
// whose length does not equal width*height*4 are rejected by returning 0;
// callers must skip the display update in that case.
func (s *Store) StoreFrame(width, height int, bytes []byte) uint64 {
	if width <= 0 || height <= 0 || len(bytes) != width*height*4 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	version := s.next
	s.next++
	if s.next == 0 { // skip the sentinel on wrap
		s.next = 1
	}

	s.frames = append(s.frames, frame{version: version, width: width, height: height, bytes: bytes})
	if len(s.frames) > s.depth {
		s.frames = s.frames[len(s.frames)-s.depth:]
	}
	return version
}

// FrameBytes returns the frame for version if it is still retained, falling
// back to the latest retained frame otherwise. It returns ok=false only when
// nothing was ever stored.
func (s *Store) FrameBytes(version uint64) (bytes []byte, width, height int, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.frames {
		if s.frames[i].version == version {
			f := s.frames[i]
			return f.bytes, f.width, f.height, true
		}
	}
	return s.latestLocked()
}

// LatestBytes returns the most recently stored frame.
func (s *Store) LatestBytes() (bytes []byte, width, height int, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestLocked()
}

// LatestVersion returns the newest retained version, or 0 when empty.
func (s *Store) LatestVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.frames) == 0 {
		return 0
	}
	return s.frames[len(s.frames)-1].version
}

func (s *Store) latestLocked() ([]byte, int, int, bool) {
	if len(s.frames) == 0 {
		return nil, 0, 0, false
	}
	f := s.frames[len(s.frames)-1]
	return f.bytes, f.width, f.height, true
}
