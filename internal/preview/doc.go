// Package preview holds the composited output frames the UI reads. The store
// is a small versioned ring: the render path writes frames, the byte-serving
// boundary reads them by version, and a request for an aged-out version falls
// back to the newest frame rather than failing.
package preview
