package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func newBufferLogger(t *testing.T, format string) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelDebug)
	var handler slog.Handler
	if format == "json" {
		handler = newJSONHandler(buf, levelVar, false)
	} else {
		handler = newConsoleHandler(buf, levelVar, false)
	}
	return slog.New(handler), buf
}

func TestConsoleHandlerPromotesComponent(t *testing.T) {
	logger, buf := newBufferLogger(t, "console")
	logger = NewComponentLogger(logger, "framecache")
	logger.Info("evicted entry", Int("bytes", 4096), String("path", "/a b.mp4"))

	line := buf.String()
	if !strings.Contains(line, "framecache: evicted entry") {
		t.Fatalf("component not promoted into message: %q", line)
	}
	if !strings.Contains(line, "bytes=4096") {
		t.Fatalf("missing int attr: %q", line)
	}
	if !strings.Contains(line, `path="/a b.mp4"`) {
		t.Fatalf("string with spaces should be quoted: %q", line)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(buf, levelVar, false))

	logger.Info("quiet")
	if buf.Len() != 0 {
		t.Fatalf("info should be suppressed at warn level: %q", buf.String())
	}
	logger.Warn("loud")
	if !strings.Contains(buf.String(), "WARN loud") {
		t.Fatalf("warn should be emitted: %q", buf.String())
	}
}

func TestJSONHandlerLowercasesLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, "json")
	logger.Error("decode failed", Error(context.DeadlineExceeded))
	line := buf.String()
	if !strings.Contains(line, `"level":"error"`) {
		t.Fatalf("expected lowercase level: %q", line)
	}
	if !strings.Contains(line, "decode failed") {
		t.Fatalf("missing message: %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	// Must not panic and must report disabled.
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("nop logger should be disabled")
	}
	logger.Info("ignored")
}
