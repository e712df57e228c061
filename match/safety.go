// Package match implements partial matching: discovering dictionary keys that
// occur inside a fragment and replacing them through guarded patterns.
package match

import (
	"fmt"
	"unicode/utf8"

	"github.com/ZaguanLabs/livetl"
)

const (
	// MaxPatternLength is the longest pattern, in characters, that may be compiled.
	MaxPatternLength = 100
	// MaxRepetitions is the largest number of repetition operators allowed.
	MaxRepetitions = 5
)

// CheckPattern applies the backtracking safety filter. It rejects patterns
// longer than MaxPatternLength, patterns with more than MaxRepetitions
// repetition operators, and repetition applied to a group that itself
// contains repetition. Rejections are *livetl.UnsafeExpressionError.
func CheckPattern(pattern string) error {
	if n := utf8.RuneCountInString(pattern); n > MaxPatternLength {
		return &livetl.UnsafeExpressionError{
			Pattern: pattern,
			Reason:  fmt.Sprintf("pattern is %d characters, limit is %d", n, MaxPatternLength),
		}
	}

	runes := []rune(pattern)
	var groups []bool // per open group: contains repetition
	var (
		reps           int
		inClass        bool
		closedGroup    bool // previous token closed a group
		closedRepeated bool // that group contained repetition
		prevQuantifier bool
	)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == '\\' {
			i++
			closedGroup, prevQuantifier = false, false
			continue
		}
		if inClass {
			if r == ']' {
				inClass = false
			}
			continue
		}

		quantifier := false
		switch r {
		case '[':
			inClass = true
		case '(':
			groups = append(groups, false)
			if i+1 < len(runes) && runes[i+1] == '?' {
				i++ // group modifier, not a quantifier
			}
		case ')':
			if len(groups) > 0 {
				repeated := groups[len(groups)-1]
				groups = groups[:len(groups)-1]
				if repeated && len(groups) > 0 {
					groups[len(groups)-1] = true
				}
				closedGroup, closedRepeated, prevQuantifier = true, repeated, false
				continue
			}
		case '?':
			if prevQuantifier {
				prevQuantifier = false // lazy modifier
				continue
			}
			quantifier = true
		case '*', '+':
			quantifier = true
		case '{':
			if end, ok := braceQuantifier(runes, i); ok {
				i = end
				quantifier = true
			}
		}

		if quantifier {
			reps++
			if closedGroup && closedRepeated {
				return &livetl.UnsafeExpressionError{Pattern: pattern, Reason: "nested repetition inside a group"}
			}
			if len(groups) > 0 {
				groups[len(groups)-1] = true
			}
		}
		closedGroup, prevQuantifier = false, quantifier
	}

	if reps > MaxRepetitions {
		return &livetl.UnsafeExpressionError{
			Pattern: pattern,
			Reason:  fmt.Sprintf("%d repetition operators, limit is %d", reps, MaxRepetitions),
		}
	}
	return nil
}

// braceQuantifier reports whether runes[start:] begins a {n}, {n,} or {n,m}
// quantifier and returns the index of its closing brace.
func braceQuantifier(runes []rune, start int) (int, bool) {
	digits := 0
	for i := start + 1; i < len(runes); i++ {
		switch r := runes[i]; {
		case r >= '0' && r <= '9':
			digits++
		case r == ',':
		case r == '}':
			return i, digits > 0
		default:
			return 0, false
		}
	}
	return 0, false
}
