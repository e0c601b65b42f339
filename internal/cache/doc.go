// Package cache provides a thread-safe keyed cache with capacity-based LRU
// eviction and per-entry time-to-live.
//
// The gateway uses it to hold one Lightning client per device so that
// concurrent commands reuse a live connection handle instead of building a
// new client per request. The cache is generic and carries no protocol
// knowledge of its own.
//
// Thread Safety: all operations are safe for concurrent use.
package cache
