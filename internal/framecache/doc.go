// Package framecache holds decoded RGBA frames under a byte budget with LRU
// eviction.
//
// Entries are keyed by (source path, frame index) and handed out as shared
// read-only references. Eviction validates queued LRU records against each
// entry's freshness stamp so repeated Gets never require rebuilding a
// secondary index: stale records are simply skipped. Invalidation by exact
// path or by directory prefix supports asset re-render workflows.
package framecache
