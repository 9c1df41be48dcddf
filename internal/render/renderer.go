package render

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"time"

	// Still-image sources decode through the stdlib registry.
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	"lightcut/internal/decode"
	"lightcut/internal/framecache"
	"lightcut/internal/logging"
	"lightcut/internal/preview"
	"lightcut/internal/timeline"
)

// FrameDecoder is the slice of the decode pool the renderer uses.
type FrameDecoder interface {
	Decode(ctx context.Context, req decode.Request) decode.Response
	DecodeSequential(ctx context.Context, req decode.Request) decode.Response
}

// Options wires a renderer to its collaborators.
type Options struct {
	Cache    *framecache.Cache
	Pool     FrameDecoder
	Store    *preview.Store
	Resolver timeline.AssetResolver
	// CanvasWidth/CanvasHeight are the output dimensions in pixels.
	CanvasWidth  int
	CanvasHeight int
	Logger       *slog.Logger
}

// Request is one render call: produce the composited frame for Time against
// the given timeline snapshot.
type Request struct {
	Time     float64
	Snapshot timeline.Snapshot
	AllowHW  bool
	// LayersOnly skips the CPU composite and the frame store push; the caller
	// receives the resolved layer stack and composites elsewhere.
	LayersOnly bool
}

// Layer is one resolved visual layer, bottom-up in z-order.
type Layer struct {
	ClipID    string
	Frame     framecache.Frame
	Placement Placement
}

// Output is the result of one render call. Version is 0 when no frame was
// pushed to the store (LayersOnly, or nothing stored yet).
type Output struct {
	Version uint64
	Width   int
	Height  int
	Layers  []Layer
	Stats   *Stats
}

// Renderer walks the timeline for a target time, resolves each track's active
// clip to a decoded frame through the cache, and composites the layers
// back-to-front into the canvas. One render call executes at a time; the
// renderer is driven from a single call site per frame tick.
type Renderer struct {
	cache    *framecache.Cache
	pool     FrameDecoder
	store    *preview.Store
	resolver timeline.AssetResolver
	canvasW  int
	canvasH  int
	logger   *slog.Logger

	lastTime float64
	hasLast  bool
}

// New validates the wiring and returns a renderer.
func New(opts Options) (*Renderer, error) {
	if opts.Cache == nil {
		return nil, fmt.Errorf("render: frame cache is required")
	}
	if opts.Pool == nil {
		return nil, fmt.Errorf("render: decode pool is required")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("render: asset resolver is required")
	}
	if opts.CanvasWidth <= 0 || opts.CanvasHeight <= 0 {
		return nil, fmt.Errorf("render: invalid canvas %dx%d", opts.CanvasWidth, opts.CanvasHeight)
	}
	return &Renderer{
		cache:    opts.Cache,
		pool:     opts.Pool,
		store:    opts.Store,
		resolver: opts.Resolver,
		canvasW:  opts.CanvasWidth,
		canvasH:  opts.CanvasHeight,
		logger:   logging.NewComponentLogger(opts.Logger, "render"),
	}, nil
}

// SetCanvas updates the output dimensions on a UI resize.
func (r *Renderer) SetCanvas(width, height int) {
	if width > 0 && height > 0 {
		r.canvasW, r.canvasH = width, height
	}
}

// Render produces the frame for req.Time. A layer that cannot produce a frame
// contributes nothing; it never aborts the pass for other layers.
func (r *Renderer) Render(ctx context.Context, req Request) Output {
	stats := newStats()
	logger := r.logger.With(logging.String(logging.FieldRenderID, stats.RenderID))

	// Playback advances monotonically; scrubbing jumps. The decoder falls
	// back to a seek on its own when the forward delta is too large.
	sequential := r.hasLast && req.Time > r.lastTime
	r.lastTime, r.hasLast = req.Time, true

	out := Output{Width: r.canvasW, Height: r.canvasH, Stats: stats}

	for trackIdx, track := range req.Snapshot.Tracks {
		if !track.Visible {
			continue
		}
		clip, ok := track.ClipAt(req.Time)
		if !ok {
			continue
		}
		asset, ok := r.resolver.Resolve(clip.AssetID)
		if !ok {
			logger.Warn("unresolved asset",
				logging.String("clip", clip.ID),
				logging.String("asset", clip.AssetID))
			continue
		}
		if asset.Kind == timeline.KindAudio {
			continue
		}

		frame, ok := r.frameFor(ctx, req.Time, clip, asset, trackIdx, req.AllowHW, sequential, stats, logger)
		if !ok {
			continue
		}
		placement, ok := placeLayer(clip.Transform, frame.SourceWidth, frame.SourceHeight, r.canvasW, r.canvasH)
		if !ok {
			continue
		}
		out.Layers = append(out.Layers, Layer{ClipID: clip.ID, Frame: frame, Placement: placement})
	}
	stats.LayersDrawn = len(out.Layers)

	if req.LayersOnly {
		return out
	}

	start := time.Now()
	canvas := image.NewRGBA(image.Rect(0, 0, r.canvasW, r.canvasH))
	for _, layer := range out.Layers {
		compose(canvas, layer.Frame.Image, layer.Placement)
	}
	stats.Composite = time.Since(start)

	if r.store != nil {
		out.Version = r.store.StoreFrame(r.canvasW, r.canvasH, canvas.Pix)
	}
	return out
}

// frameFor resolves one clip to a decoded frame, through the cache when
// possible.
func (r *Renderer) frameFor(ctx context.Context, at float64, clip timeline.Clip, asset timeline.Asset, lane int, allowHW, sequential bool, stats *Stats, logger *slog.Logger) (framecache.Frame, bool) {
	local := clip.LocalTime(at)

	key := framecache.Key{Path: asset.Path}
	if asset.Kind == timeline.KindVideo {
		key.Frame = timeline.FrameIndex(local, asset.FPS)
	}

	if frame, ok := r.cache.Get(key); ok {
		stats.CacheHits++
		return frame, true
	}
	stats.CacheMisses++

	if asset.Kind != timeline.KindVideo {
		frame, err := r.loadStill(asset.Path)
		if err != nil {
			logger.Warn("still decode failed",
				logging.String(logging.FieldSource, asset.Path),
				logging.Error(err))
			return framecache.Frame{}, false
		}
		r.cache.Insert(key, frame.Image, frame.SourceWidth, frame.SourceHeight)
		return frame, true
	}

	dreq := decode.Request{Source: asset.Path, TargetTime: local, Lane: lane, AllowHW: allowHW}
	var resp decode.Response
	if sequential {
		resp = r.pool.DecodeSequential(ctx, dreq)
	} else {
		resp = r.pool.Decode(ctx, dreq)
	}
	if resp.Err != nil || resp.Image == nil {
		logger.Warn("decode failed",
			logging.String(logging.FieldSource, asset.Path),
			logging.Int64(logging.FieldFrame, key.Frame),
			logging.Error(resp.Err))
		return framecache.Frame{}, false
	}
	stats.recordDecode(resp)

	r.cache.Insert(key, resp.Image, resp.SourceWidth, resp.SourceHeight)
	return framecache.Frame{
		Image:        resp.Image,
		SourceWidth:  resp.SourceWidth,
		SourceHeight: resp.SourceHeight,
	}, true
}

// loadStill decodes a still image and fits it inside the canvas. Stills never
// round-trip through the decode pool.
func (r *Renderer) loadStill(path string) (framecache.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return framecache.Frame{}, fmt.Errorf("render: open still: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return framecache.Frame{}, fmt.Errorf("render: decode still %s: %w", path, err)
	}
	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW <= 0 || srcH <= 0 {
		return framecache.Frame{}, fmt.Errorf("render: still %s has no pixels", path)
	}

	w, h := srcW, srcH
	if srcW > r.canvasW || srcH > r.canvasH {
		ratio := math.Min(float64(r.canvasW)/float64(srcW), float64(r.canvasH)/float64(srcH))
		w = max(1, int(math.Round(float64(srcW)*ratio)))
		h = max(1, int(math.Round(float64(srcH)*ratio)))
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == srcW && h == srcH {
		draw.Copy(rgba, image.Point{}, src, bounds, draw.Src, nil)
	} else {
		draw.ApproxBiLinear.Scale(rgba, rgba.Bounds(), src, bounds, draw.Src, nil)
	}
	return framecache.Frame{Image: rgba, SourceWidth: srcW, SourceHeight: srcH}, nil
}
