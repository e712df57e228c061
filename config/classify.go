package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

type compiledRule struct {
	name        string
	re          *regexp.Regexp
	specificity int
	order       int
}

// Classifier maps a page path to a context name.
type Classifier struct {
	rules []compiledRule
}

// NewClassifier compiles rules. Rules are tried most specific first, where
// specificity is the number of literal path segments in the pattern; ties
// keep declaration order.
func NewClassifier(rules []ContextRule) (*Classifier, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		if r.Name == "" {
			return nil, fmt.Errorf("context rule %d: empty name", i)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("context rule %q: %w", r.Name, err)
		}
		compiled = append(compiled, compiledRule{
			name:        r.Name,
			re:          re,
			specificity: specificity(r.Pattern),
			order:       i,
		})
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		if compiled[i].specificity != compiled[j].specificity {
			return compiled[i].specificity > compiled[j].specificity
		}
		return compiled[i].order < compiled[j].order
	})
	return &Classifier{rules: compiled}, nil
}

// Classify returns the context of path, or DefaultContext.
func (c *Classifier) Classify(path string) string {
	if c == nil {
		return DefaultContext
	}
	for _, r := range c.rules {
		if r.re.MatchString(path) {
			return r.name
		}
	}
	return DefaultContext
}

// specificity counts the '/'-separated segments of a pattern that contain
// no regular-expression metacharacters.
func specificity(pattern string) int {
	p := strings.TrimPrefix(pattern, "^")
	p = strings.TrimSuffix(p, "$")
	n := 0
	for _, seg := range strings.Split(p, "/") {
		if seg != "" && regexp.QuoteMeta(seg) == seg {
			n++
		}
	}
	return n
}
