package render

import (
	"time"

	"github.com/google/uuid"

	"lightcut/internal/decode"
)

// Stats accumulates one render call's diagnostics: decode timing buckets,
// compositing cost, cache hit/miss counters, and the hardware/software frame
// split. A fresh Stats is created per render and consumed immediately by the
// diagnostics overlay.
type Stats struct {
	RenderID       string
	Decode         decode.Timings
	Composite      time.Duration
	CacheHits      int
	CacheMisses    int
	HardwareFrames int
	SoftwareFrames int
	LayersDrawn    int
}

func newStats() *Stats {
	return &Stats{RenderID: uuid.NewString()}
}

func (s *Stats) recordDecode(resp decode.Response) {
	s.Decode.Add(resp.Timings)
	if resp.UsedHW {
		s.HardwareFrames++
	} else {
		s.SoftwareFrames++
	}
}
