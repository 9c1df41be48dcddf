// Command lightcut is the CLI for the Lightcut preview core: probing media,
// rendering preview frames, building waveform peaks, managing on-disk caches,
// and serving frames to the UI process.
package main
