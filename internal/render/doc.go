// Package render turns timeline state at a playhead time into a composited
// preview frame. The renderer resolves the active clip per visible track,
// fetches each clip's frame through the frame cache (decoding on miss via the
// pool, or the stdlib image registry for stills), computes per-layer canvas
// placement, and composites layers back-to-front. Composited frames push into
// the preview store; callers that composite on the GPU ask for the layer
// stack instead.
package render
