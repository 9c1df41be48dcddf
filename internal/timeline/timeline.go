package timeline

import (
	"math"
	"strings"
)

// MediaKind classifies an asset for the preview pipeline.
type MediaKind string

const (
	KindVideo      MediaKind = "video"
	KindStill      MediaKind = "still"
	KindGenerative MediaKind = "generative"
	KindAudio      MediaKind = "audio"
)

// Transform describes a clip's placement relative to the canvas. Offsets are
// fractions of the canvas size, scale multiplies the fitted clip size, and
// rotation is in degrees around the layer center.
type Transform struct {
	OffsetX     float64
	OffsetY     float64
	Scale       float64
	Opacity     float64
	RotationDeg float64
}

// Identity returns a transform that places a clip unmodified.
func Identity() Transform {
	return Transform{Scale: 1, Opacity: 1}
}

// Clip is one placed media segment on a track. Start and Duration are in
// timeline seconds; TrimIn offsets into the source media.
type Clip struct {
	ID        string
	AssetID   string
	Start     float64
	Duration  float64
	TrimIn    float64
	Transform Transform
	Volume    float64
}

// End returns the clip's exclusive end time on the timeline.
func (c Clip) End() float64 {
	return c.Start + c.Duration
}

// ActiveAt reports whether the clip covers timeline time t.
func (c Clip) ActiveAt(t float64) bool {
	return t >= c.Start && t < c.End()
}

// LocalTime maps timeline time t into the clip's media time.
func (c Clip) LocalTime(t float64) float64 {
	return (t - c.Start) + c.TrimIn
}

// Track is an ordered lane of non-overlapping clips. Track order in a
// snapshot defines z-order, first track at the bottom.
type Track struct {
	ID      string
	Name    string
	Visible bool
	Clips   []Clip
}

// ClipAt returns the clip active at time t, if any.
func (tr Track) ClipAt(t float64) (Clip, bool) {
	for _, clip := range tr.Clips {
		if clip.ActiveAt(t) {
			return clip, true
		}
	}
	return Clip{}, false
}

// Marker is a named timeline position in frame units.
type Marker struct {
	Frame float64
	Label string
}

// Snapshot is a read-only view of timeline state taken once per render call.
type Snapshot struct {
	Tracks  []Track
	Markers []Marker
}

// Asset describes a resolved media source.
type Asset struct {
	Path string
	Kind MediaKind
	FPS  float64
}

// AssetResolver maps asset ids to source files. Implementations must be safe
// for concurrent use; the renderer performs read-only lookups.
type AssetResolver interface {
	Resolve(assetID string) (Asset, bool)
}

// StaticResolver is a map-backed AssetResolver for tests and simple callers.
type StaticResolver map[string]Asset

func (r StaticResolver) Resolve(assetID string) (Asset, bool) {
	asset, ok := r[strings.TrimSpace(assetID)]
	return asset, ok
}

// FrameIndex converts a media time to a source frame index at the given rate.
// Negative times round toward negative infinity so the mapping stays monotonic.
func FrameIndex(mediaTime, fps float64) int64 {
	if fps <= 0 {
		return 0
	}
	return int64(math.Floor(mediaTime*fps + 0.5))
}

// FrameTime converts a source frame index back to media seconds.
func FrameTime(index int64, fps float64) float64 {
	if fps <= 0 {
		return 0
	}
	return float64(index) / fps
}
