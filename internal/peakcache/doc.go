// Package peakcache builds, serializes, and stores waveform peak summaries
// for audio assets. Peaks are min/max sample pairs at several block-size
// levels so the timeline can draw waveforms at any zoom without rescanning
// audio. Files live in a disk cache pruned by byte budget and free-space
// floor; the binary layout is versioned and stable across releases.
package peakcache
