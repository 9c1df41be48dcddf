package peakcache

import "testing"

func TestBuildBaseLevel(t *testing.T) {
	// Two channels, six frames, block size 2: three base blocks.
	samples := []int16{
		// frame: L, R
		10, -10,
		20, -20,
		-5, 5,
		30, -30,
		0, 0,
		100, -100,
	}

	f, err := Build(samples, 2, 48000, 2, 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if f.FrameCount != 6 || f.Channels != 2 {
		t.Fatalf("header mismatch: %+v", f)
	}
	if len(f.Levels) != 1 {
		t.Fatalf("expected 1 level, got %d", len(f.Levels))
	}

	want := []Peak{
		{Min: 10, Max: 20}, {Min: -20, Max: -10},
		{Min: -5, Max: 30}, {Min: -30, Max: 5},
		{Min: 0, Max: 100}, {Min: -100, Max: 0},
	}
	got := f.Levels[0].Peaks
	if len(got) != len(want) {
		t.Fatalf("peak count mismatch: %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("peak %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestBuildReducesLevels(t *testing.T) {
	samples := make([]int16, 64)
	for i := range samples {
		samples[i] = int16(i - 32)
	}

	f, err := Build(samples, 1, 44100, 4, 4)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(f.Levels) != 4 {
		t.Fatalf("expected 4 levels, got %d", len(f.Levels))
	}
	for i, level := range f.Levels {
		wantBlock := uint32(4 << i)
		if level.BlockSize != wantBlock {
			t.Fatalf("level %d block size %d, want %d", i, level.BlockSize, wantBlock)
		}
	}
	// Each level preserves the global extremes.
	top := f.Levels[3]
	if len(top.Peaks) != 2 {
		t.Fatalf("top level should have 2 peaks, got %d", len(top.Peaks))
	}
	if top.Peaks[0].Min != -32 || top.Peaks[1].Max != 31 {
		t.Fatalf("extremes lost in reduction: %+v", top.Peaks)
	}
}

func TestBuildStopsAtSinglePeak(t *testing.T) {
	samples := make([]int16, 8)

	f, err := Build(samples, 1, 44100, 8, 10)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(f.Levels) != 1 {
		t.Fatalf("single-block input must stop reducing, got %d levels", len(f.Levels))
	}
}

func TestBuildPartialFinalBlock(t *testing.T) {
	samples := []int16{1, 2, 3, 4, 5} // block size 2 leaves a 1-frame tail

	f, err := Build(samples, 1, 44100, 2, 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	peaks := f.Levels[0].Peaks
	if len(peaks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(peaks))
	}
	if peaks[2].Min != 5 || peaks[2].Max != 5 {
		t.Fatalf("tail block must cover remaining frames: %+v", peaks[2])
	}
}

func TestBuildRejectsBadInputs(t *testing.T) {
	cases := []struct {
		name     string
		samples  []int16
		channels int
		rate     int
		block    int
		levels   int
	}{
		{"zero channels", []int16{1, 2}, 0, 44100, 2, 1},
		{"zero rate", []int16{1, 2}, 1, 0, 2, 1},
		{"zero block", []int16{1, 2}, 1, 44100, 0, 1},
		{"zero levels", []int16{1, 2}, 1, 44100, 2, 0},
		{"ragged samples", []int16{1, 2, 3}, 2, 44100, 2, 1},
	}
	for _, tc := range cases {
		if _, err := Build(tc.samples, tc.channels, tc.rate, tc.block, tc.levels); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
