// Package ffprobe shells out to ffprobe for container and stream inspection.
//
// The preview core uses it to learn a source's dimensions, frame rate, and
// duration before opening a decoder. Results are plain values; callers that
// want persistence wrap this package with the mediainfo store.
package ffprobe
