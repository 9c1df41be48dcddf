// Package decode turns (source path, target time) into RGBA frames through a
// fixed pool of worker goroutines.
//
// Each worker owns a bounded LRU map of open decoders keyed by
// (source, lane, hw-allowed); requests route to workers by lane id so
// playback on one timeline lane sticks to one decoder and decodes forward
// without reseeking. Decoding shells out to ffmpeg with a rawvideo RGBA pipe:
// seeks restart the process with -ss, sequential decode reads further frames
// from the running pipe. Hardware acceleration is probed from an ordered
// candidate list and degrades silently to software.
//
// All failures surface as responses with a nil image; a worker never dies on
// a bad source. Timing buckets that happen inside the ffmpeg process
// (hardware transfer, scaling) are reported as zero; seek time covers process
// restarts and packet time the frame read loop.
package decode
