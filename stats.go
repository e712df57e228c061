package livetl

import "sync/atomic"

// Stats holds the engine performance counters. The zero value is ready to use
// and all methods are safe for concurrent use.
type Stats struct {
	elementsProcessed atomic.Int64
	textsTranslated   atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	batches           atomic.Int64
	passes            atomic.Int64
}

// StatsSnapshot is a read-only copy of the counters for external export.
type StatsSnapshot struct {
	ElementsProcessed int64 `json:"elements_processed"`
	TextsTranslated   int64 `json:"texts_translated"`
	CacheHits         int64 `json:"cache_hits"`
	CacheMisses       int64 `json:"cache_misses"`
	Batches           int64 `json:"batches"`
	Passes            int64 `json:"passes"`
}

func (s *Stats) AddElementsProcessed(n int) { s.elementsProcessed.Add(int64(n)) }
func (s *Stats) AddTextsTranslated(n int)   { s.textsTranslated.Add(int64(n)) }
func (s *Stats) CacheHit()                  { s.cacheHits.Add(1) }
func (s *Stats) CacheMiss()                 { s.cacheMisses.Add(1) }
func (s *Stats) Batch()                     { s.batches.Add(1) }
func (s *Stats) Pass()                      { s.passes.Add(1) }

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		ElementsProcessed: s.elementsProcessed.Load(),
		TextsTranslated:   s.textsTranslated.Load(),
		CacheHits:         s.cacheHits.Load(),
		CacheMisses:       s.cacheMisses.Load(),
		Batches:           s.batches.Load(),
		Passes:            s.passes.Load(),
	}
}

// HitRatio returns the cache hit ratio, or 0 when nothing was looked up.
func (s StatsSnapshot) HitRatio() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}
