package decode

import (
	"image"
	"time"
)

// Mode selects how a decoder reaches the requested time.
type Mode int

const (
	// ModeSeek performs a container-level seek before decoding. Used for
	// random-access scrubbing.
	ModeSeek Mode = iota
	// ModeSequential decodes forward from the decoder's current position when
	// the target is within the sequential window, falling back to a seek
	// otherwise. Used during playback.
	ModeSequential
)

func (m Mode) String() string {
	switch m {
	case ModeSeek:
		return "seek"
	case ModeSequential:
		return "sequential"
	default:
		return "unknown"
	}
}

// Timings is the per-call wall-clock breakdown of one decode.
type Timings struct {
	Seek     time.Duration
	Packet   time.Duration
	Transfer time.Duration
	Scale    time.Duration
	Copy     time.Duration
}

// Add accumulates another breakdown into this one.
func (t *Timings) Add(other Timings) {
	t.Seek += other.Seek
	t.Packet += other.Packet
	t.Transfer += other.Transfer
	t.Scale += other.Scale
	t.Copy += other.Copy
}

// Request asks the pool for one decoded frame.
type Request struct {
	// Source is the media file path.
	Source string
	// TargetTime is the requested media time in seconds.
	TargetTime float64
	// Lane routes repeated requests for the same timeline lane to the same
	// worker so its open decoder is reused.
	Lane int
	// AllowHW permits hardware-accelerated decoding for this source.
	AllowHW bool
}

// Response carries the decode outcome. Image is nil when the frame could not
// be produced; callers treat that as "no frame available", never as fatal.
type Response struct {
	Image        *image.RGBA
	SourceWidth  int
	SourceHeight int
	FPS          float64
	UsedHW       bool
	Timings      Timings
	Err          error
}
