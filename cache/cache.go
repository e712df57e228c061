// Package cache provides the bounded resolution cache.
package cache

import "github.com/ZaguanLabs/livetl"

// ResolutionCache is the interface for resolution caching.
type ResolutionCache interface {
	// Get retrieves a cached resolution, refreshing its recency on hit.
	Get(key string) (livetl.Resolution, bool)

	// Set stores a resolution, evicting entries if the cache is full.
	Set(key string, value livetl.Resolution) error

	// Delete removes a single entry.
	Delete(key string)

	// Clear removes all entries.
	Clear()

	// Len returns the number of entries.
	Len() int
}
