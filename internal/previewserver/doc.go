// Package previewserver serves composited preview frames to the UI process:
// raw RGBA bytes by version over HTTP, new-version notifications over a
// websocket. It is a thin read-only boundary over the preview store.
package previewserver
