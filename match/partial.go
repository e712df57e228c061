package match

import (
	"log/slog"
	"sort"
	"time"
	"unicode"

	"github.com/dlclark/regexp2"

	"github.com/ZaguanLabs/livetl/dictionary"
)

const (
	// DefaultMinKeyLength is the floor of the candidate key length.
	DefaultMinKeyLength = 4
	// DefaultMaxReplacements is the number of ranked candidates applied.
	DefaultMaxReplacements = 5
)

// Engine finds dictionary keys inside a fragment and rewrites them.
type Engine struct {
	patterns        *PatternCache
	minKeyLength    int
	maxReplacements int
	logger          *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for skipped candidates.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMatchTimeout bounds each pattern evaluation.
func WithMatchTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.patterns = NewPatternCache(e.patterns.size, timeout)
	}
}

// WithMaxReplacements sets how many ranked candidates are applied.
func WithMaxReplacements(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxReplacements = n
		}
	}
}

// NewEngine creates a partial-match engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		patterns:        NewPatternCache(DefaultPatternCacheSize, DefaultMatchTimeout),
		minKeyLength:    DefaultMinKeyLength,
		maxReplacements: DefaultMaxReplacements,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Candidate is a key found in a fragment, with its true occurrence count.
type Candidate struct {
	Key         string
	Value       string
	Length      int
	Occurrences int
	pattern     *regexp2.Regexp
}

// MinKeyLength returns the shortest key considered for text: half the
// number of letters and digits in text, but never below the engine floor.
func (e *Engine) MinKeyLength(text string) int {
	n := 0
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return max(e.minKeyLength, n/2)
}

// Candidates returns the ranked candidates for text. Keys whose pattern is
// unsafe or never matches are left out.
func (e *Engine) Candidates(idx *dictionary.Index, text string) []Candidate {
	found := idx.Substrings(text, e.MinKeyLength(text))
	candidates := make([]Candidate, 0, len(found))

	for _, m := range found {
		re, err := e.patterns.Get(m.Key)
		if err != nil {
			e.logger.Debug("skipping partial-match candidate", "key", m.Key, "error", err)
			continue
		}
		n, err := countMatches(re, text)
		if err != nil {
			e.logger.Debug("partial-match count failed", "key", m.Key, "error", err)
			continue
		}
		if n == 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			Key:         m.Key,
			Value:       m.Value,
			Length:      m.Length,
			Occurrences: n,
			pattern:     re,
		})
	}

	rankCandidates(candidates)
	return candidates
}

// rankCandidates orders candidates: longer keys first, then more
// occurrences, then key order.
func rankCandidates(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Length != b.Length {
			return a.Length > b.Length
		}
		if a.Occurrences != b.Occurrences {
			return a.Occurrences > b.Occurrences
		}
		return a.Key < b.Key
	})
}

// Replace rewrites text with the top ranked candidates. Replacements are
// applied one after another to the same string, so a later candidate sees
// text already rewritten by earlier ones. It reports false when nothing was
// replaced.
func (e *Engine) Replace(idx *dictionary.Index, text string) (string, bool) {
	candidates := e.Candidates(idx, text)
	if len(candidates) > e.maxReplacements {
		candidates = candidates[:e.maxReplacements]
	}

	result := text
	changed := false
	for _, c := range candidates {
		value := c.Value
		out, err := c.pattern.ReplaceFunc(result, func(regexp2.Match) string { return value }, -1, -1)
		if err != nil {
			e.logger.Debug("partial-match replace failed", "key", c.Key, "error", err)
			continue
		}
		if out != result {
			result = out
			changed = true
		}
	}
	return result, changed
}
