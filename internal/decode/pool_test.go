package decode

import (
	"context"
	"errors"
	"testing"

	"lightcut/internal/mediainfo"
)

func newTestPool(t *testing.T, opener SessionOpener, workers int) *Pool {
	t.Helper()
	pool := NewPool(Options{
		MaxWidth:  640,
		MaxHeight: 360,
		Workers:   workers,
		Opener:    opener,
		Prober:    fakeProber{info: testInfo()},
	})
	t.Cleanup(pool.Close)
	return pool
}

func TestPoolWorkerClamping(t *testing.T) {
	if got := newTestPool(t, &fakeOpener{}, 99).Workers(); got != maxWorkers {
		t.Fatalf("expected clamp to %d workers, got %d", maxWorkers, got)
	}
	if got := newTestPool(t, &fakeOpener{}, 2).Workers(); got != 2 {
		t.Fatalf("expected 2 workers, got %d", got)
	}
}

func TestPoolDecodeRoundTrip(t *testing.T) {
	pool := newTestPool(t, &fakeOpener{}, 1)
	resp := pool.Decode(context.Background(), Request{Source: "/media/a.mp4", TargetTime: 1.0, Lane: 3})
	if resp.Err != nil {
		t.Fatalf("decode: %v", resp.Err)
	}
	if resp.Image == nil {
		t.Fatalf("expected image")
	}
}

func TestPoolSequentialReusesLaneDecoder(t *testing.T) {
	opener := &fakeOpener{}
	pool := newTestPool(t, opener, 2)

	req := Request{Source: "/media/a.mp4", TargetTime: 1.0, Lane: 7}
	if resp := pool.Decode(context.Background(), req); resp.Err != nil {
		t.Fatalf("seek decode: %v", resp.Err)
	}
	req.TargetTime = 1.1
	resp := pool.DecodeSequential(context.Background(), req)
	if resp.Err != nil {
		t.Fatalf("sequential decode: %v", resp.Err)
	}
	if resp.Timings.Seek != 0 {
		t.Fatalf("same-lane sequential decode must not seek: %v", resp.Timings.Seek)
	}
	if opener.openCount() != 1 {
		t.Fatalf("lane routing should reuse one session, opened %d", opener.openCount())
	}
}

func TestPoolAsyncDeliversInSubmissionOrder(t *testing.T) {
	pool := newTestPool(t, &fakeOpener{}, 1)

	var receivers []<-chan Response
	targets := []float64{0.2, 0.4, 0.6}
	for _, target := range targets {
		receivers = append(receivers, pool.DecodeAsync(
			Request{Source: "/media/a.mp4", TargetTime: target, Lane: 1}, ModeSequential))
	}
	for i, recv := range receivers {
		resp := <-recv
		if resp.Err != nil {
			t.Fatalf("async decode %d: %v", i, resp.Err)
		}
		if resp.Image == nil {
			t.Fatalf("async decode %d returned no image", i)
		}
	}
}

func TestPoolBadSourceIsContained(t *testing.T) {
	opener := &fakeOpener{}
	pool := NewPool(Options{
		Workers: 1,
		Opener:  opener,
		Prober:  fakeProber{err: errors.New("no such file")},
	})
	t.Cleanup(pool.Close)

	resp := pool.Decode(context.Background(), Request{Source: "/missing.mp4", TargetTime: 0, Lane: 0})
	if resp.Err == nil || resp.Image != nil {
		t.Fatalf("expected contained failure, got err=%v image=%v", resp.Err, resp.Image != nil)
	}
}

func TestPoolRecoversAfterBadSource(t *testing.T) {
	opener := &fakeOpener{}
	failing := &switchingProber{bad: "/missing.mp4", info: testInfo()}
	pool := NewPool(Options{
		MaxWidth:  640,
		MaxHeight: 360,
		Workers:   1,
		Opener:    opener,
		Prober:    failing,
	})
	t.Cleanup(pool.Close)

	if resp := pool.Decode(context.Background(), Request{Source: "/missing.mp4", Lane: 0}); resp.Err == nil {
		t.Fatalf("expected failure for bad source")
	}
	resp := pool.Decode(context.Background(), Request{Source: "/media/ok.mp4", TargetTime: 0.5, Lane: 0})
	if resp.Err != nil || resp.Image == nil {
		t.Fatalf("worker must keep serving after a bad source: err=%v", resp.Err)
	}
}

// switchingProber fails for one path and succeeds for all others.
type switchingProber struct {
	bad  string
	info mediainfo.Info
}

func (p *switchingProber) Probe(_ context.Context, _, path string) (mediainfo.Info, error) {
	if path == p.bad {
		return mediainfo.Info{}, errors.New("probe failed")
	}
	info := p.info
	info.Path = path
	return info, nil
}

func TestLaneIndexHandlesNegatives(t *testing.T) {
	cases := []struct {
		lane, workers, want int
	}{
		{0, 4, 0},
		{5, 4, 1},
		{-1, 4, 3},
		{-4, 4, 0},
	}
	for _, tc := range cases {
		if got := laneIndex(tc.lane, tc.workers); got != tc.want {
			t.Fatalf("laneIndex(%d,%d) = %d, want %d", tc.lane, tc.workers, got, tc.want)
		}
	}
}
