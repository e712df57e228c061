// Package dictionary builds the lookup structures used to resolve fragments:
// an exact map, a case-folded map and a trie over all keys.
package dictionary

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ZaguanLabs/livetl"
)

// Entry is one source→target dictionary pair.
type Entry struct {
	Source string
	Target string
}

// FromRaw validates loosely-shaped dictionary data into entries.
// Malformed entries are skipped and reported; the returned entries are sorted
// by source so builds are deterministic.
func FromRaw(raw map[string]any) ([]Entry, []error) {
	entries := make([]Entry, 0, len(raw))
	var errs []error

	for key, v := range raw {
		value, ok := v.(string)
		if !ok {
			errs = append(errs, &livetl.IndexBuildError{
				Key:     key,
				Message: fmt.Sprintf("value must be a string, got %T", v),
			})
			continue
		}
		entries = append(entries, Entry{Source: key, Target: value})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Source < entries[j].Source })
	return entries, errs
}

// FromMap converts a string map into sorted entries.
func FromMap(m map[string]string) []Entry {
	entries := make([]Entry, 0, len(m))
	for k, v := range m {
		entries = append(entries, Entry{Source: k, Target: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Source < entries[j].Source })
	return entries
}

// validate normalizes an entry, returning the trimmed key or an error.
func validate(e Entry) (string, error) {
	key := strings.TrimSpace(e.Source)
	switch {
	case key == "":
		return "", &livetl.IndexBuildError{Key: e.Source, Message: "empty key"}
	case !utf8.ValidString(key):
		return "", &livetl.IndexBuildError{Key: e.Source, Message: "key is not valid UTF-8"}
	case strings.TrimSpace(e.Target) == "":
		return "", &livetl.IndexBuildError{Key: e.Source, Message: "empty value"}
	case !utf8.ValidString(e.Target):
		return "", &livetl.IndexBuildError{Key: e.Source, Message: "value is not valid UTF-8"}
	}
	return key, nil
}
