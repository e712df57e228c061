package dictionary

import (
	"strings"
	"unicode/utf8"

	"github.com/ZaguanLabs/livetl"
)

// Index is an immutable set of lookup structures built from one dictionary.
type Index struct {
	exact     map[string]string
	folded    map[string]string
	targets   map[string]bool
	trie      *trieNode
	maxKeyLen int
	skipped   int
}

// BuildOption configures Build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	placeholderPrefix string
}

// WithPlaceholderPrefix sets the value prefix that marks untranslated entries.
// An empty prefix disables placeholder filtering.
func WithPlaceholderPrefix(prefix string) BuildOption {
	return func(c *buildConfig) {
		c.placeholderPrefix = prefix
	}
}

// Empty returns an index with no entries.
func Empty() *Index {
	return &Index{
		exact:   make(map[string]string),
		folded:  make(map[string]string),
		targets: make(map[string]bool),
		trie:    newTrieNode(),
	}
}

// Build indexes the entries. Malformed entries are skipped and returned as
// *livetl.IndexBuildError values; placeholder entries are skipped silently.
// When two keys fold to the same variant, the first one in entry order wins.
func Build(entries []Entry, opts ...BuildOption) (*Index, []error) {
	cfg := buildConfig{placeholderPrefix: livetl.DefaultPlaceholderPrefix}
	for _, opt := range opts {
		opt(&cfg)
	}

	idx := Empty()
	var errs []error

	for _, e := range entries {
		key, err := validate(e)
		if err != nil {
			errs = append(errs, err)
			idx.skipped++
			continue
		}
		if cfg.placeholderPrefix != "" && strings.HasPrefix(e.Target, cfg.placeholderPrefix) {
			idx.skipped++
			continue
		}
		if _, dup := idx.exact[key]; dup {
			// Keys differing only by surrounding whitespace collapse to one.
			continue
		}

		idx.exact[key] = e.Target
		idx.targets[strings.TrimSpace(e.Target)] = true
		idx.trie.insert(key, e.Target)

		n := utf8.RuneCountInString(key)
		if n > idx.maxKeyLen {
			idx.maxKeyLen = n
		}
		if n <= livetl.MaxFoldedKeyLength {
			for _, variant := range []string{strings.ToLower(key), strings.ToUpper(key)} {
				if _, taken := idx.folded[variant]; !taken {
					idx.folded[variant] = e.Target
				}
			}
		}
	}

	return idx, errs
}

// Exact looks up a normalized key.
func (i *Index) Exact(key string) (string, bool) {
	v, ok := i.exact[key]
	return v, ok
}

// Folded looks up the lower-case then the upper-case variant of text.
// Text longer than the folding limit never matches.
func (i *Index) Folded(text string) (string, bool) {
	if utf8.RuneCountInString(text) > livetl.MaxFoldedKeyLength {
		return "", false
	}
	if v, ok := i.folded[strings.ToLower(text)]; ok {
		return v, true
	}
	v, ok := i.folded[strings.ToUpper(text)]
	return v, ok
}

// IsTarget reports whether text is the value of some indexed entry.
func (i *Index) IsTarget(text string) bool {
	return i.targets[text]
}

// Substrings returns every distinct key of at least minLength runes that
// occurs in text, by walking the trie from each rune offset.
func (i *Index) Substrings(text string, minLength int) []Match {
	runes := []rune(text)
	seen := make(map[string]bool)
	var matches []Match

	for start := range runes {
		if len(runes)-start < minLength {
			break
		}
		i.trie.walk(runes, start, minLength, func(m Match) bool {
			if !seen[m.Key] {
				seen[m.Key] = true
				matches = append(matches, m)
			}
			return true
		})
	}
	return matches
}

// Len returns the number of indexed keys.
func (i *Index) Len() int {
	return len(i.exact)
}

// Skipped returns how many entries were excluded at build time.
func (i *Index) Skipped() int {
	return i.skipped
}

// MaxKeyLength returns the longest indexed key in runes.
func (i *Index) MaxKeyLength() int {
	return i.maxKeyLen
}
