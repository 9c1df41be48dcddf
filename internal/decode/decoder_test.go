package decode

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"lightcut/internal/logging"
	"lightcut/internal/mediainfo"
)

// fakeProber returns fixed metadata without touching ffprobe.
type fakeProber struct {
	info mediainfo.Info
	err  error
}

func (p fakeProber) Probe(_ context.Context, _, path string) (mediainfo.Info, error) {
	if p.err != nil {
		return mediainfo.Info{}, p.err
	}
	info := p.info
	info.Path = path
	return info, nil
}

// fakeOpener synthesizes rawvideo-like sessions with deterministic timing.
type fakeOpener struct {
	mu         sync.Mutex
	opened     []SessionSpec
	failAccels map[string]bool
	failOpen   bool
	duration   float64
}

func (f *fakeOpener) OpenSession(_ context.Context, spec SessionSpec) (FrameSession, error) {
	f.mu.Lock()
	f.opened = append(f.opened, spec)
	f.mu.Unlock()
	if f.failOpen {
		return nil, errors.New("fake open failure")
	}
	return &fakeSession{
		spec:     spec,
		fail:     f.failAccels[spec.HWAccel] && spec.HWAccel != "",
		duration: f.duration,
		buf:      make([]byte, spec.Width*spec.Height*4),
	}, nil
}

func (f *fakeOpener) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opened)
}

func (f *fakeOpener) lastSpec() SessionSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened[len(f.opened)-1]
}

type fakeSession struct {
	spec     SessionSpec
	frames   int64
	fail     bool
	closed   bool
	duration float64
	buf      []byte
}

func (s *fakeSession) ReadFrame() ([]byte, float64, error) {
	if s.fail {
		return nil, 0, errors.New("fake hardware failure")
	}
	pts := s.spec.StartTime + float64(s.frames)/s.spec.FPS
	if s.duration > 0 && pts >= s.duration {
		return nil, 0, io.EOF
	}
	for i := range s.buf {
		s.buf[i] = byte(s.frames)
	}
	s.frames++
	return s.buf, pts, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func testConfig(opener SessionOpener) decoderConfig {
	return decoderConfig{
		maxWidth:  640,
		maxHeight: 360,
		seqWindow: defaultSequentialWindow,
		logger:    logging.NewNop(),
		opener:    opener,
	}
}

func testInfo() mediainfo.Info {
	return mediainfo.Info{Kind: "video", Width: 1280, Height: 720, FPS: 25, DurationSeconds: 60}
}

func openTestDecoder(t *testing.T, opener SessionOpener, allowHW bool, candidates []string) *Decoder {
	t.Helper()
	cfg := testConfig(opener)
	cfg.hwCandidates = candidates
	dec, err := openDecoder(context.Background(), "/media/clip.mp4", allowHW, cfg, fakeProber{info: testInfo()})
	if err != nil {
		t.Fatalf("open decoder: %v", err)
	}
	t.Cleanup(dec.Close)
	return dec
}

func TestOpenDecoderFitsOutput(t *testing.T) {
	dec := openTestDecoder(t, &fakeOpener{}, false, nil)
	w, h := dec.OutputSize()
	if w != 640 || h != 360 {
		t.Fatalf("expected fitted 640x360, got %dx%d", w, h)
	}
}

func TestOpenDecoderRejectsNonVideo(t *testing.T) {
	cfg := testConfig(&fakeOpener{})
	_, err := openDecoder(context.Background(), "/media/notes.txt", false, cfg,
		fakeProber{info: mediainfo.Info{Kind: "audio"}})
	if err == nil {
		t.Fatalf("expected open failure for non-video source")
	}
}

func TestSeekDecodeProducesFrame(t *testing.T) {
	opener := &fakeOpener{}
	dec := openTestDecoder(t, opener, false, nil)

	resp := dec.Decode(context.Background(), 1.0, ModeSeek)
	if resp.Err != nil {
		t.Fatalf("decode: %v", resp.Err)
	}
	if resp.Image == nil {
		t.Fatalf("expected image")
	}
	if resp.SourceWidth != 1280 || resp.SourceHeight != 720 {
		t.Fatalf("source dims lost: %dx%d", resp.SourceWidth, resp.SourceHeight)
	}
	if got := resp.Image.Bounds(); got.Dx() != 640 || got.Dy() != 360 {
		t.Fatalf("unexpected output size: %v", got)
	}
	if opener.lastSpec().StartTime != 1.0 {
		t.Fatalf("expected container seek to 1.0, got %v", opener.lastSpec().StartTime)
	}
}

func TestSequentialReusesSession(t *testing.T) {
	opener := &fakeOpener{}
	dec := openTestDecoder(t, opener, false, nil)

	first := dec.Decode(context.Background(), 1.0, ModeSeek)
	if first.Err != nil {
		t.Fatalf("seek decode: %v", first.Err)
	}
	if first.Timings.Seek <= 0 {
		t.Fatalf("seek decode should account seek time")
	}

	second := dec.Decode(context.Background(), 1.1, ModeSequential)
	if second.Err != nil {
		t.Fatalf("sequential decode: %v", second.Err)
	}
	if second.Timings.Seek != 0 {
		t.Fatalf("sequential decode must not seek, got %v", second.Timings.Seek)
	}
	if opener.openCount() != 1 {
		t.Fatalf("sequential decode must reuse the session, opened %d", opener.openCount())
	}
}

func TestSequentialFallsBackWhenBehind(t *testing.T) {
	opener := &fakeOpener{}
	dec := openTestDecoder(t, opener, false, nil)

	if resp := dec.Decode(context.Background(), 6.0, ModeSeek); resp.Err != nil {
		t.Fatalf("seek decode: %v", resp.Err)
	}
	resp := dec.Decode(context.Background(), 1.0, ModeSequential)
	if resp.Err != nil {
		t.Fatalf("fallback decode: %v", resp.Err)
	}
	if resp.Timings.Seek <= 0 {
		t.Fatalf("backward request must reseek")
	}
	if opener.openCount() != 2 {
		t.Fatalf("expected a second session, got %d", opener.openCount())
	}
	if opener.lastSpec().StartTime != 1.0 {
		t.Fatalf("expected reseek to 1.0, got %v", opener.lastSpec().StartTime)
	}
}

func TestSequentialFallsBackWhenTooFarAhead(t *testing.T) {
	opener := &fakeOpener{}
	dec := openTestDecoder(t, opener, false, nil)

	if resp := dec.Decode(context.Background(), 1.0, ModeSeek); resp.Err != nil {
		t.Fatalf("seek decode: %v", resp.Err)
	}
	resp := dec.Decode(context.Background(), 1.0+defaultSequentialWindow+1, ModeSequential)
	if resp.Err != nil {
		t.Fatalf("fallback decode: %v", resp.Err)
	}
	if opener.openCount() != 2 {
		t.Fatalf("far-ahead request must open a new session, got %d", opener.openCount())
	}
}

func TestHardwareUsedWhenAvailable(t *testing.T) {
	opener := &fakeOpener{}
	dec := openTestDecoder(t, opener, true, []string{"videotoolbox"})

	resp := dec.Decode(context.Background(), 0.5, ModeSeek)
	if resp.Err != nil {
		t.Fatalf("decode: %v", resp.Err)
	}
	if !resp.UsedHW {
		t.Fatalf("expected hardware path")
	}
	if opener.lastSpec().HWAccel != "videotoolbox" {
		t.Fatalf("expected hw session, got %q", opener.lastSpec().HWAccel)
	}
}

func TestHardwareFailureFallsBackToSoftware(t *testing.T) {
	opener := &fakeOpener{failAccels: map[string]bool{"vaapi": true}}
	dec := openTestDecoder(t, opener, true, []string{"vaapi"})

	resp := dec.Decode(context.Background(), 0.5, ModeSeek)
	if resp.Err != nil {
		t.Fatalf("decode must survive hw failure: %v", resp.Err)
	}
	if resp.UsedHW {
		t.Fatalf("expected software fallback")
	}
	if resp.Image == nil {
		t.Fatalf("expected decoded frame via software")
	}
	// hw then sw
	if opener.openCount() != 2 {
		t.Fatalf("expected hw probe then software session, got %d opens", opener.openCount())
	}

	// Hardware stays disabled on later seeks: exactly one more (software) open.
	if resp := dec.Decode(context.Background(), 10, ModeSeek); resp.Err != nil {
		t.Fatalf("later decode: %v", resp.Err)
	}
	if opener.openCount() != 3 || opener.lastSpec().HWAccel != "" {
		t.Fatalf("hardware must stay disabled after probe failure")
	}
}

func TestNoHardwareCandidatesIsSoftware(t *testing.T) {
	opener := &fakeOpener{}
	dec := openTestDecoder(t, opener, true, []string{})

	resp := dec.Decode(context.Background(), 0.5, ModeSeek)
	if resp.Err != nil || resp.Image == nil {
		t.Fatalf("decode: err=%v image=%v", resp.Err, resp.Image != nil)
	}
	if resp.UsedHW {
		t.Fatalf("no candidates must mean software decode")
	}
}

func TestDecodePastEndReportsNoFrame(t *testing.T) {
	opener := &fakeOpener{duration: 2.0}
	dec := openTestDecoder(t, opener, false, nil)

	resp := dec.Decode(context.Background(), 5.0, ModeSeek)
	if resp.Err == nil {
		t.Fatalf("expected error past end of media")
	}
	if resp.Image != nil {
		t.Fatalf("failed decode must carry no image")
	}

	// The decoder recovers on the next valid request.
	resp = dec.Decode(context.Background(), 1.0, ModeSeek)
	if resp.Err != nil || resp.Image == nil {
		t.Fatalf("decoder should recover: err=%v", resp.Err)
	}
}
