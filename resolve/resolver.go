// Package resolve answers "translate this fragment" from the dictionary index,
// the resolution cache and the partial-match engine. It never touches the
// document.
package resolve

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ZaguanLabs/livetl"
	"github.com/ZaguanLabs/livetl/cache"
	"github.com/ZaguanLabs/livetl/dictionary"
	"github.com/ZaguanLabs/livetl/match"
)

const (
	// DefaultMinTextLength is the shortest fragment, in runes, worth resolving.
	DefaultMinTextLength = 1
	// DefaultMaxCacheableLength is the longest fragment, in runes, whose
	// outcome is cached.
	DefaultMaxCacheableLength = 500
)

// IndexSource provides the current dictionary index.
type IndexSource interface {
	Load() *dictionary.Index
}

// Resolver orchestrates index, cache and partial matching.
type Resolver struct {
	index        IndexSource
	cache        cache.ResolutionCache
	partial      *match.Engine
	stats        *livetl.Stats
	logger       *slog.Logger
	minLength    int
	maxCacheable int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache sets the resolution cache. Without one, nothing is cached.
func WithCache(c cache.ResolutionCache) Option {
	return func(r *Resolver) {
		r.cache = c
	}
}

// WithPartialEngine sets the partial-match engine.
func WithPartialEngine(e *match.Engine) Option {
	return func(r *Resolver) {
		if e != nil {
			r.partial = e
		}
	}
}

// WithStats sets the counters updated on cache hits and misses.
func WithStats(s *livetl.Stats) Option {
	return func(r *Resolver) {
		if s != nil {
			r.stats = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMinTextLength sets the shortest fragment worth resolving.
func WithMinTextLength(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.minLength = n
		}
	}
}

// WithMaxCacheableLength sets the longest fragment whose outcome is cached.
func WithMaxCacheableLength(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxCacheable = n
		}
	}
}

// New creates a Resolver reading from index.
func New(index IndexSource, opts ...Option) *Resolver {
	r := &Resolver{
		index:        index,
		stats:        &livetl.Stats{},
		logger:       slog.Default(),
		minLength:    DefaultMinTextLength,
		maxCacheable: DefaultMaxCacheableLength,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.partial == nil {
		r.partial = match.NewEngine(match.WithLogger(r.logger))
	}
	return r
}

// Resolve translates one fragment. Surrounding whitespace is ignored.
// The result is livetl.NoMatch when nothing in the dictionary applies.
func (r *Resolver) Resolve(text string, opts livetl.ResolveOptions) livetl.Resolution {
	normalized := strings.TrimSpace(text)
	length := utf8.RuneCountInString(normalized)
	if length < r.minLength || normalized == "" {
		return livetl.NoMatch
	}

	key := livetl.CacheKey(normalized, opts.AllowPartial)
	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			r.stats.CacheHit()
			return cached
		}
		r.stats.CacheMiss()
	}

	res := r.lookup(r.index.Load(), normalized, length, opts)

	if r.cache != nil && length <= r.maxCacheable {
		if err := r.cache.Set(key, res); err != nil {
			r.logger.Debug("resolution not cached", "error", err)
		}
	}
	return res
}

func (r *Resolver) lookup(idx *dictionary.Index, text string, length int, opts livetl.ResolveOptions) livetl.Resolution {
	if v, ok := idx.Exact(text); ok {
		return livetl.Resolution{Text: v, Found: true, Kind: livetl.MatchExact}
	}
	// Already-translated output is left alone.
	if idx.IsTarget(text) {
		return livetl.NoMatch
	}
	if length <= livetl.MaxFoldedKeyLength {
		if v, ok := idx.Folded(text); ok {
			return livetl.Resolution{Text: v, Found: true, Kind: livetl.MatchFolded}
		}
	}
	if opts.AllowPartial {
		if v, ok := r.partial.Replace(idx, text); ok {
			return livetl.Resolution{Text: v, Found: true, Kind: livetl.MatchPartial}
		}
	}
	return livetl.NoMatch
}

// Forget drops the cached outcomes of text, for both partial settings.
func (r *Resolver) Forget(text string) {
	if r.cache == nil {
		return
	}
	normalized := strings.TrimSpace(text)
	r.cache.Delete(livetl.CacheKey(normalized, false))
	r.cache.Delete(livetl.CacheKey(normalized, true))
}

// Stats returns the counters the resolver updates.
func (r *Resolver) Stats() *livetl.Stats {
	return r.stats
}
