package decode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// SessionSpec describes one decode session: a source opened at a start time,
// producing RGBA frames at a fixed output size.
type SessionSpec struct {
	Source    string
	StartTime float64
	Width     int
	Height    int
	FPS       float64
	// HWAccel names the hardware device type to decode with; empty selects
	// pure software decoding.
	HWAccel string
	Binary  string
}

// FrameSession is a running decode pipeline. ReadFrame returns the pixel
// buffer of the next frame and its presentation time; the buffer is only
// valid until the next ReadFrame call. Sessions are owned by exactly one
// decoder and are not safe for concurrent use.
type FrameSession interface {
	ReadFrame() ([]byte, float64, error)
	Close() error
}

// SessionOpener creates decode sessions. The production opener launches an
// ffmpeg process; tests substitute synthetic frame generators.
type SessionOpener interface {
	OpenSession(ctx context.Context, spec SessionSpec) (FrameSession, error)
}

// FFmpegOpener launches ffmpeg with a rawvideo RGBA pipe. Container-level
// seeking uses -ss before -i; scaling to the output size happens inside
// ffmpeg so each delivered frame is exactly Width*Height*4 bytes.
type FFmpegOpener struct{}

func (FFmpegOpener) OpenSession(ctx context.Context, spec SessionSpec) (FrameSession, error) {
	if spec.Width <= 0 || spec.Height <= 0 {
		return nil, fmt.Errorf("decode: invalid session size %dx%d", spec.Width, spec.Height)
	}
	if spec.FPS <= 0 {
		return nil, fmt.Errorf("decode: invalid session frame rate %v", spec.FPS)
	}
	binary := strings.TrimSpace(spec.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}

	args := []string{"-nostdin", "-v", "error"}
	if spec.HWAccel != "" {
		args = append(args, "-hwaccel", spec.HWAccel)
	}
	if spec.StartTime > 0 {
		args = append(args, "-ss", strconv.FormatFloat(spec.StartTime, 'f', 6, 64))
	}
	args = append(args,
		"-i", spec.Source,
		"-an", "-sn",
		"-vf", fmt.Sprintf("scale=%d:%d", spec.Width, spec.Height),
		"-pix_fmt", "rgba",
		"-f", "rawvideo",
		"-",
	)

	cmd := exec.CommandContext(ctx, binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("decode: stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("decode: start %s: %w", binary, err)
	}

	return &ffmpegSession{
		cmd:    cmd,
		stdout: bufio.NewReaderSize(stdout, 1<<16),
		stderr: &stderr,
		buf:    make([]byte, spec.Width*spec.Height*4),
		start:  spec.StartTime,
		fps:    spec.FPS,
	}, nil
}

type ffmpegSession struct {
	cmd    *exec.Cmd
	stdout *bufio.Reader
	stderr *strings.Builder
	buf    []byte
	start  float64
	fps    float64
	frames int64
}

// ReadFrame fills the session buffer with the next frame. The presentation
// time is reconstructed from the seek origin and the delivered frame count;
// rawvideo output carries no timestamps.
func (s *ffmpegSession) ReadFrame() ([]byte, float64, error) {
	if _, err := io.ReadFull(s.stdout, s.buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			if msg := strings.TrimSpace(s.stderr.String()); msg != "" {
				return nil, 0, fmt.Errorf("decode: pipeline ended: %s", msg)
			}
			return nil, 0, io.EOF
		}
		return nil, 0, fmt.Errorf("decode: read frame: %w", err)
	}
	pts := s.start + float64(s.frames)/s.fps
	s.frames++
	return s.buf, pts, nil
}

func (s *ffmpegSession) Close() error {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(syscall.SIGTERM)
	}
	_ = s.cmd.Wait()
	return nil
}
