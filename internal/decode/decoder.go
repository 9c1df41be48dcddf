package decode

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"lightcut/internal/logging"
	"lightcut/internal/mediainfo"
)

// Prober resolves a source's native dimensions, frame rate, and duration.
// *mediainfo.Store satisfies it; tests supply fixed values.
type Prober interface {
	Probe(ctx context.Context, binary, path string) (mediainfo.Info, error)
}

// decoderConfig carries the pool-level settings each decoder needs.
type decoderConfig struct {
	maxWidth     int
	maxHeight    int
	seqWindow    float64
	hwCandidates []string
	ffmpegBinary string
	probeBinary  string
	opener       SessionOpener
	logger       *slog.Logger
}

// Decoder owns the decode pipeline for one (source, lane, hw-allowed) key.
// It is confined to a single worker goroutine; no internal locking.
type Decoder struct {
	cfg     decoderConfig
	source  string
	allowHW bool

	info mediainfo.Info
	outW int
	outH int

	sess       FrameSession
	accel      string
	sessFrames int64
	lastPTS    float64
	hasLast    bool
	hwDisabled bool
}

// openDecoder probes the source and prepares a decoder. The output size is
// fixed at open time by fitting the native resolution into the configured
// bounds. No pipeline is launched until the first decode.
func openDecoder(ctx context.Context, source string, allowHW bool, cfg decoderConfig, prober Prober) (*Decoder, error) {
	info, err := prober.Probe(ctx, cfg.probeBinary, source)
	if err != nil {
		return nil, fmt.Errorf("decode: probe %s: %w", source, err)
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("decode: %s has no usable video stream", source)
	}
	fps := info.FPS
	if fps <= 0 {
		return nil, fmt.Errorf("decode: %s reports no frame rate", source)
	}

	outW, outH := fitWithin(info.Width, info.Height, cfg.maxWidth, cfg.maxHeight)
	return &Decoder{
		cfg:     cfg,
		source:  source,
		allowHW: allowHW,
		info:    info,
		outW:    outW,
		outH:    outH,
	}, nil
}

// Decode produces the frame at target seconds. In sequential mode a target
// shortly ahead of the last decoded position reads forward on the open
// pipeline; anything else (behind, too far ahead, cold decoder, or explicit
// seek mode) restarts the pipeline at the target. Failures yield a Response
// with a nil Image and the error recorded; the decoder stays usable.
func (d *Decoder) Decode(ctx context.Context, target float64, mode Mode) Response {
	resp := Response{
		SourceWidth:  d.info.Width,
		SourceHeight: d.info.Height,
		FPS:          d.info.FPS,
	}

	fps := d.info.FPS
	halfFrame := 0.5 / fps

	sequential := mode == ModeSequential && d.sess != nil && d.hasLast
	if sequential {
		delta := target - d.lastPTS
		sequential = delta > 0 && delta <= d.cfg.seqWindow
	}

	if !sequential {
		if err := d.reopen(ctx, target, &resp.Timings); err != nil {
			resp.Err = err
			return resp
		}
	}

	pix, pts, err := d.readUntil(ctx, target, halfFrame, &resp.Timings)
	if err != nil {
		d.closeSession()
		resp.Err = err
		return resp
	}

	copyStart := time.Now()
	img := image.NewRGBA(image.Rect(0, 0, d.outW, d.outH))
	copy(img.Pix, pix)
	resp.Timings.Copy = time.Since(copyStart)

	d.lastPTS = pts
	d.hasLast = true
	resp.Image = img
	resp.UsedHW = d.accel != ""
	return resp
}

// reopen restarts the pipeline at start, probing hardware candidates when
// permitted. The whole restart is accounted as seek time.
func (d *Decoder) reopen(ctx context.Context, start float64, timings *Timings) error {
	seekStart := time.Now()
	defer func() { timings.Seek += time.Since(seekStart) }()

	d.closeSession()
	if start < 0 {
		start = 0
	}

	spec := SessionSpec{
		Source:    d.source,
		StartTime: start,
		Width:     d.outW,
		Height:    d.outH,
		FPS:       d.info.FPS,
		Binary:    d.cfg.ffmpegBinary,
	}

	if d.allowHW && !d.hwDisabled {
		for _, candidate := range d.cfg.hwCandidates {
			spec.HWAccel = candidate
			sess, err := d.cfg.opener.OpenSession(ctx, spec)
			if err != nil {
				d.cfg.logger.Debug("hardware decode candidate rejected",
					logging.String("accel", candidate),
					logging.String(logging.FieldSource, d.source),
					logging.Error(err))
				continue
			}
			d.sess = sess
			d.accel = candidate
			d.sessFrames = 0
			return nil
		}
	}

	spec.HWAccel = ""
	sess, err := d.cfg.opener.OpenSession(ctx, spec)
	if err != nil {
		return fmt.Errorf("decode: open %s: %w", d.source, err)
	}
	d.sess = sess
	d.accel = ""
	d.sessFrames = 0
	return nil
}

// readUntil advances the pipeline until a frame's presentation time reaches
// the target. A hardware session that fails before delivering its first frame
// is torn down and replaced by a software session at the same position;
// hardware stays disabled for this decoder afterwards.
func (d *Decoder) readUntil(ctx context.Context, target, halfFrame float64, timings *Timings) ([]byte, float64, error) {
	packetStart := time.Now()
	defer func() { timings.Packet += time.Since(packetStart) }()

	// Bound forward decoding so a pipeline that can never reach the target
	// (EOF, timestamp gaps) fails instead of spinning.
	maxFrames := int64(d.cfg.seqWindow*d.info.FPS) + int64(d.info.FPS) + 8

	for read := int64(0); read <= maxFrames; read++ {
		pix, pts, err := d.sess.ReadFrame()
		if err != nil {
			if d.accel != "" && d.sessFrames == 0 {
				// Hardware path produced nothing; fall back to software.
				d.hwDisabled = true
				d.cfg.logger.Debug("hardware decode failed; falling back to software",
					logging.String("accel", d.accel),
					logging.String(logging.FieldSource, d.source),
					logging.Error(err))
				if reopenErr := d.reopen(ctx, target, timings); reopenErr != nil {
					return nil, 0, reopenErr
				}
				continue
			}
			return nil, 0, fmt.Errorf("decode: %s at %.3fs: %w", d.source, target, err)
		}
		d.sessFrames++
		if pts+halfFrame >= target {
			return pix, pts, nil
		}
	}
	return nil, 0, fmt.Errorf("decode: %s: target %.3fs not reached after %d frames", d.source, target, maxFrames)
}

func (d *Decoder) closeSession() {
	if d.sess != nil {
		_ = d.sess.Close()
		d.sess = nil
	}
	d.hasLast = false
	d.sessFrames = 0
}

// Close releases the pipeline and any hardware state.
func (d *Decoder) Close() {
	d.closeSession()
}

// OutputSize reports the fitted decode size chosen at open time.
func (d *Decoder) OutputSize() (int, int) {
	return d.outW, d.outH
}
