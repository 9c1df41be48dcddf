package decode

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"lightcut/internal/logging"
	"lightcut/internal/mediainfo"
)

const (
	// maxWorkers caps the pool regardless of available CPUs; decode work is
	// pipe-bound and more workers mostly add decoder churn.
	maxWorkers = 4
	// defaultOpenDecoderCap bounds open decoders per worker.
	defaultOpenDecoderCap = 8
	// defaultSequentialWindow is how far ahead a sequential request may be
	// before it degrades to a seek.
	defaultSequentialWindow = 2.0
	// requestQueueDepth is the per-worker channel buffer.
	requestQueueDepth = 16
)

// Options configures a decode pool. Zero values select defaults.
type Options struct {
	// MaxWidth/MaxHeight bound decoded frame size; sources are fitted inside
	// while preserving aspect ratio.
	MaxWidth  int
	MaxHeight int
	// Workers overrides the worker count; 0 derives it from available CPUs,
	// clamped to [1, 4].
	Workers int
	// MaxOpenDecoders caps open decoders per worker before LRU eviction.
	MaxOpenDecoders int
	// SequentialWindowSeconds is the forward window for sequential decode.
	SequentialWindowSeconds float64
	// HardwareCandidates overrides the platform hardware probe order. nil
	// selects platform defaults; an empty non-nil slice disables hardware.
	HardwareCandidates []string
	FFmpegBinary       string
	FFprobeBinary      string
	// Opener creates decode sessions; defaults to the ffmpeg pipe opener.
	Opener SessionOpener
	// Prober resolves source metadata; defaults to direct ffprobe runs.
	Prober Prober
	Logger *slog.Logger
}

// Pool is a fixed set of decode workers. Requests route to a worker by lane
// id, so repeated requests for the same timeline lane share one decoder and
// decode sequentially without reseeking.
type Pool struct {
	logger    *slog.Logger
	workers   []*worker
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type request struct {
	Request
	mode Mode
	resp chan Response
}

type worker struct {
	id       int
	requests chan *request
	decoders *decoderMap
	cfg      decoderConfig
	prober   Prober
	logger   *slog.Logger
}

// NewPool starts the workers and returns the pool.
func NewPool(opts Options) *Pool {
	logger := logging.NewComponentLogger(opts.Logger, "decodepool")

	count := opts.Workers
	if count <= 0 {
		count = runtime.NumCPU()
	}
	if count > maxWorkers {
		count = maxWorkers
	}
	if count < 1 {
		count = 1
	}

	openCap := opts.MaxOpenDecoders
	if openCap <= 0 {
		openCap = defaultOpenDecoderCap
	}
	window := opts.SequentialWindowSeconds
	if window <= 0 {
		window = defaultSequentialWindow
	}
	candidates := opts.HardwareCandidates
	if candidates == nil {
		candidates = defaultHardwareCandidates()
	}
	opener := opts.Opener
	if opener == nil {
		opener = FFmpegOpener{}
	}
	prober := opts.Prober
	if prober == nil {
		prober = (*mediainfo.Store)(nil)
	}

	pool := &Pool{logger: logger}
	for i := 0; i < count; i++ {
		w := &worker{
			id:       i,
			requests: make(chan *request, requestQueueDepth),
			decoders: newDecoderMap(openCap),
			cfg: decoderConfig{
				maxWidth:     opts.MaxWidth,
				maxHeight:    opts.MaxHeight,
				seqWindow:    window,
				hwCandidates: candidates,
				ffmpegBinary: opts.FFmpegBinary,
				probeBinary:  opts.FFprobeBinary,
				opener:       opener,
				logger:       logger,
			},
			prober: prober,
			logger: logger.With(logging.Int("worker", i)),
		}
		pool.workers = append(pool.workers, w)
		pool.wg.Add(1)
		go func() {
			defer pool.wg.Done()
			w.run()
		}()
	}
	logger.Info("decode pool started",
		logging.Int("workers", count),
		logging.Int("open_decoder_cap", openCap))
	return pool
}

// Workers reports the pool's worker count.
func (p *Pool) Workers() int {
	return len(p.workers)
}

// Decode blocks for a seek-mode decode of req.
func (p *Pool) Decode(ctx context.Context, req Request) Response {
	return p.wait(ctx, p.submit(req, ModeSeek))
}

// DecodeSequential blocks for a sequential-mode decode of req.
func (p *Pool) DecodeSequential(ctx context.Context, req Request) Response {
	return p.wait(ctx, p.submit(req, ModeSequential))
}

// DecodeAsync submits req and returns a receiver for the eventual response.
// Dropping the receiver discards the result; the decode still completes.
func (p *Pool) DecodeAsync(req Request, mode Mode) <-chan Response {
	return p.submit(req, mode)
}

func (p *Pool) submit(req Request, mode Mode) chan Response {
	r := &request{Request: req, mode: mode, resp: make(chan Response, 1)}
	w := p.workers[laneIndex(req.Lane, len(p.workers))]
	w.requests <- r
	return r.resp
}

func (p *Pool) wait(ctx context.Context, resp chan Response) Response {
	select {
	case r := <-resp:
		return r
	case <-ctx.Done():
		return Response{Err: ctx.Err()}
	}
}

// Close drains the workers and releases every open decoder. The pool must
// not be used afterwards.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		for _, w := range p.workers {
			close(w.requests)
		}
		p.wg.Wait()
		p.logger.Info("decode pool stopped")
	})
}

func laneIndex(lane, workers int) int {
	idx := lane % workers
	if idx < 0 {
		idx += workers
	}
	return idx
}

func (w *worker) run() {
	defer w.decoders.closeAll()
	for req := range w.requests {
		req.resp <- w.handle(req)
	}
}

// handle serves one request. A panic in decoder code is contained to the
// request so a bad source cannot shrink the pool.
func (w *worker) handle(req *request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("decode worker recovered from panic",
				logging.String(logging.FieldSource, req.Source),
				logging.Any("panic", r))
			resp = Response{Err: fmt.Errorf("decode: panic serving %s: %v", req.Source, r)}
		}
	}()

	ctx := context.Background()

	key := decoderKey{source: req.Source, lane: req.Lane, allowHW: req.AllowHW}
	dec, ok := w.decoders.get(key)
	if !ok {
		opened, err := openDecoder(ctx, req.Source, req.AllowHW, w.cfg, w.prober)
		if err != nil {
			w.logger.Warn("decoder open failed",
				logging.String(logging.FieldSource, req.Source),
				logging.Int(logging.FieldLane, req.Lane),
				logging.Error(err))
			return Response{Err: err}
		}
		w.decoders.put(key, opened)
		dec = opened
	}

	return dec.Decode(ctx, req.TargetTime, req.mode)
}
