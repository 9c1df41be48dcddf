package peakcache

import "fmt"

// Build computes waveform peak levels from interleaved PCM samples. Level 0
// summarizes baseBlock frames per peak; each further level doubles the block
// size and reduces from the level below. levelCount levels are produced, or
// fewer once a level collapses to a single peak.
func Build(samples []int16, channels, sampleRate, baseBlock, levelCount int) (*File, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("peakcache: build: invalid channel count %d", channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("peakcache: build: invalid sample rate %d", sampleRate)
	}
	if baseBlock <= 0 {
		return nil, fmt.Errorf("peakcache: build: invalid block size %d", baseBlock)
	}
	if levelCount <= 0 || levelCount > maxLevels {
		return nil, fmt.Errorf("peakcache: build: invalid level count %d", levelCount)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("peakcache: build: %d samples not divisible by %d channels", len(samples), channels)
	}

	frames := len(samples) / channels
	f := &File{
		SampleRate: uint32(sampleRate),
		Channels:   uint16(channels),
		FrameCount: uint64(frames),
	}

	base := buildBase(samples, channels, baseBlock)
	f.Levels = append(f.Levels, Level{BlockSize: uint32(baseBlock), Peaks: base})

	for len(f.Levels) < levelCount {
		prev := f.Levels[len(f.Levels)-1]
		if prev.peakCount(f.Channels) <= 1 {
			break
		}
		f.Levels = append(f.Levels, Level{
			BlockSize: prev.BlockSize * 2,
			Peaks:     reduceLevel(prev.Peaks, channels),
		})
	}
	return f, nil
}

// buildBase scans the raw samples once, emitting one peak per channel per
// block of frames.
func buildBase(samples []int16, channels, blockFrames int) []Peak {
	frames := len(samples) / channels
	blocks := (frames + blockFrames - 1) / blockFrames

	peaks := make([]Peak, 0, blocks*channels)
	for b := 0; b < blocks; b++ {
		startFrame := b * blockFrames
		endFrame := min(startFrame+blockFrames, frames)
		for c := 0; c < channels; c++ {
			p := Peak{Min: 32767, Max: -32768}
			for frame := startFrame; frame < endFrame; frame++ {
				s := samples[frame*channels+c]
				if s < p.Min {
					p.Min = s
				}
				if s > p.Max {
					p.Max = s
				}
			}
			peaks = append(peaks, p)
		}
	}
	return peaks
}

// reduceLevel merges adjacent block pairs of the previous level.
func reduceLevel(prev []Peak, channels int) []Peak {
	blocks := len(prev) / channels
	outBlocks := (blocks + 1) / 2

	peaks := make([]Peak, 0, outBlocks*channels)
	for b := 0; b < outBlocks; b++ {
		first := b * 2
		second := first + 1
		for c := 0; c < channels; c++ {
			p := prev[first*channels+c]
			if second < blocks {
				other := prev[second*channels+c]
				if other.Min < p.Min {
					p.Min = other.Min
				}
				if other.Max > p.Max {
					p.Max = other.Max
				}
			}
			peaks = append(peaks, p)
		}
	}
	return peaks
}
