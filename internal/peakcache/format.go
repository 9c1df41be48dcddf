package peakcache

import (
	"encoding/binary"
	"fmt"
	"io"
)

// On-disk layout, all little-endian fixed-width integers:
//
//	magic "LCPK" | version u32
//	sample rate u32 | channels u16 | reserved u16 | frame count u64 | level count u32
//	per level: block size u32 | peak count u32
//	per level, per peak, per channel: min i16 | max i16
//
// The layout is stable across releases; readers reject unknown versions
// rather than guessing.

const (
	magic         = "LCPK"
	formatVersion = uint32(1)

	// maxLevels bounds the level table so a corrupt header cannot drive a
	// huge allocation.
	maxLevels = 32
)

// Peak is one min/max sample pair.
type Peak struct {
	Min int16
	Max int16
}

// Level holds one mip level of waveform peaks. Peaks are block-major with
// channels interleaved inside each block: [b0c0, b0c1, b1c0, b1c1, ...].
type Level struct {
	// BlockSize is the number of source frames summarized per peak.
	BlockSize uint32
	Peaks     []Peak
}

// File is a complete waveform peak cache for one audio source.
type File struct {
	SampleRate uint32
	Channels   uint16
	FrameCount uint64
	Levels     []Level
}

// PeakCount returns the number of blocks in a level.
func (l Level) peakCount(channels uint16) uint32 {
	if channels == 0 {
		return 0
	}
	return uint32(len(l.Peaks) / int(channels))
}

// Encode writes the file in the binary cache layout.
func (f *File) Encode(w io.Writer) error {
	if f.Channels == 0 {
		return fmt.Errorf("peakcache: encode: zero channels")
	}
	for i, level := range f.Levels {
		if level.BlockSize == 0 {
			return fmt.Errorf("peakcache: encode: level %d has zero block size", i)
		}
		if len(level.Peaks)%int(f.Channels) != 0 {
			return fmt.Errorf("peakcache: encode: level %d peak count not divisible by channels", i)
		}
	}

	if _, err := w.Write([]byte(magic)); err != nil {
		return fmt.Errorf("peakcache: write magic: %w", err)
	}
	header := []any{
		formatVersion,
		f.SampleRate,
		f.Channels,
		uint16(0),
		f.FrameCount,
		uint32(len(f.Levels)),
	}
	for _, field := range header {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("peakcache: write header: %w", err)
		}
	}
	for _, level := range f.Levels {
		if err := binary.Write(w, binary.LittleEndian, level.BlockSize); err != nil {
			return fmt.Errorf("peakcache: write level table: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, level.peakCount(f.Channels)); err != nil {
			return fmt.Errorf("peakcache: write level table: %w", err)
		}
	}
	for _, level := range f.Levels {
		if err := binary.Write(w, binary.LittleEndian, level.Peaks); err != nil {
			return fmt.Errorf("peakcache: write peaks: %w", err)
		}
	}
	return nil
}

// Decode reads a peak cache file, validating magic, version, and table
// consistency.
func Decode(r io.Reader) (*File, error) {
	head := make([]byte, len(magic))
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, fmt.Errorf("peakcache: read magic: %w", err)
	}
	if string(head) != magic {
		return nil, fmt.Errorf("peakcache: bad magic %q", head)
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("peakcache: read version: %w", err)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("peakcache: unsupported version %d", version)
	}

	f := &File{}
	var reserved uint16
	var levelCount uint32
	for _, field := range []any{&f.SampleRate, &f.Channels, &reserved, &f.FrameCount, &levelCount} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return nil, fmt.Errorf("peakcache: read header: %w", err)
		}
	}
	if f.Channels == 0 {
		return nil, fmt.Errorf("peakcache: zero channels")
	}
	if levelCount == 0 || levelCount > maxLevels {
		return nil, fmt.Errorf("peakcache: implausible level count %d", levelCount)
	}

	type tableEntry struct {
		blockSize uint32
		peakCount uint32
	}
	table := make([]tableEntry, levelCount)
	for i := range table {
		if err := binary.Read(r, binary.LittleEndian, &table[i].blockSize); err != nil {
			return nil, fmt.Errorf("peakcache: read level table: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &table[i].peakCount); err != nil {
			return nil, fmt.Errorf("peakcache: read level table: %w", err)
		}
		if table[i].blockSize == 0 {
			return nil, fmt.Errorf("peakcache: level %d has zero block size", i)
		}
	}

	f.Levels = make([]Level, levelCount)
	for i, entry := range table {
		peaks := make([]Peak, int(entry.peakCount)*int(f.Channels))
		if err := binary.Read(r, binary.LittleEndian, peaks); err != nil {
			return nil, fmt.Errorf("peakcache: read level %d peaks: %w", i, err)
		}
		f.Levels[i] = Level{BlockSize: entry.blockSize, Peaks: peaks}
	}
	return f, nil
}
