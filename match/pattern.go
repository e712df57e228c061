package match

import (
	"regexp"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

const (
	// DefaultMatchTimeout bounds a single pattern evaluation.
	DefaultMatchTimeout = 50 * time.Millisecond
	// DefaultPatternCacheSize is the number of compiled patterns kept.
	DefaultPatternCacheSize = 2000
)

// BuildPattern returns the pattern used to find key in text. Word boundaries
// are added on the sides where the key starts or ends with a word character;
// keys without word characters at their edges become literal patterns.
func BuildPattern(key string) string {
	pattern := regexp.QuoteMeta(key)
	first, _ := utf8.DecodeRuneInString(key)
	last, _ := utf8.DecodeLastRuneInString(key)
	if isWordRune(first) {
		pattern = `\b` + pattern
	}
	if isWordRune(last) {
		pattern += `\b`
	}
	return pattern
}

// isWordRune matches the ASCII word class used by \b in ECMAScript mode.
func isWordRune(r rune) bool {
	return r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

type compiled struct {
	re  *regexp2.Regexp
	err error
}

// PatternCache compiles and caches one pattern per key, including rejections.
// When full it is cleared wholesale.
type PatternCache struct {
	mu       sync.Mutex
	patterns map[string]compiled
	size     int
	timeout  time.Duration
}

// NewPatternCache creates a cache holding up to size patterns, each bounded by
// timeout per evaluation. Non-positive values select the defaults.
func NewPatternCache(size int, timeout time.Duration) *PatternCache {
	if size <= 0 {
		size = DefaultPatternCacheSize
	}
	if timeout <= 0 {
		timeout = DefaultMatchTimeout
	}
	return &PatternCache{
		patterns: make(map[string]compiled),
		size:     size,
		timeout:  timeout,
	}
}

// Get returns the compiled pattern for key. Patterns failing the safety
// filter return *livetl.UnsafeExpressionError.
func (c *PatternCache) Get(key string) (*regexp2.Regexp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.patterns[key]; ok {
		return p.re, p.err
	}

	p := c.compile(key)
	if len(c.patterns) >= c.size {
		c.patterns = make(map[string]compiled)
	}
	c.patterns[key] = p
	return p.re, p.err
}

// Len returns the number of cached patterns.
func (c *PatternCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.patterns)
}

func (c *PatternCache) compile(key string) compiled {
	pattern := BuildPattern(key)
	if err := CheckPattern(pattern); err != nil {
		return compiled{err: err}
	}
	re, err := regexp2.Compile(pattern, regexp2.ECMAScript)
	if err != nil {
		return compiled{err: err}
	}
	re.MatchTimeout = c.timeout
	return compiled{re: re}
}

// countMatches counts non-overlapping occurrences of re in text.
func countMatches(re *regexp2.Regexp, text string) (int, error) {
	n := 0
	m, err := re.FindStringMatch(text)
	for m != nil && err == nil {
		n++
		m, err = re.FindNextMatch(m)
	}
	return n, err
}
