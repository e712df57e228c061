// Package scheduler decides when the document needs translating again: it
// filters and scores mutation batches, debounces and throttles requests, and
// runs translation passes one at a time.
package scheduler

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/ZaguanLabs/livetl/config"
	"github.com/ZaguanLabs/livetl/dom"
	"github.com/ZaguanLabs/livetl/processor"
)

// Path names the inspection strategy used for a batch.
type Path string

const (
	FastPath Path = "fast"
	SlowPath Path = "slow"
)

// Verdict is the outcome of classifying a batch of mutation records.
type Verdict struct {
	Translate bool
	Path      Path
	Inspected int
	Dropped   int // ignored, internal or without translatable content
	Content   int
	Important int
	Score     float64
}

// Detector classifies mutation records. It keeps no state between calls.
// Its methods read nodes, so callers must hold the document.
type Detector struct {
	tuning    config.Tuning
	ignore    []string
	important []string
	watched   map[string]bool
}

// NewDetector creates a detector for one context's tuning.
func NewDetector(tuning config.Tuning, cfg *config.Config) *Detector {
	d := &Detector{
		tuning:  tuning,
		ignore:  cfg.IgnoreSelectors,
		watched: make(map[string]bool, len(cfg.WatchedAttributes)),
	}
	d.important = append(d.important, cfg.ImportantSelectors...)
	d.important = append(d.important, cfg.Locators.Transient...)
	for _, name := range cfg.WatchedAttributes {
		d.watched[name] = true
	}
	return d
}

// Classify decides whether a batch warrants a translation pass. Batches
// smaller than FastPathThreshold trigger on any relevant record. Larger
// batches are inspected up to MaxInspect records and trigger when an
// important element appeared or the weighted score per inspected record
// exceeds TriggerRatio.
func (d *Detector) Classify(records []dom.MutationRecord) Verdict {
	var v Verdict
	inspect := records
	v.Path = FastPath
	if len(records) >= d.tuning.FastPathThreshold {
		v.Path = SlowPath
		if len(inspect) > d.tuning.MaxInspect {
			inspect = inspect[:d.tuning.MaxInspect]
		}
	}

	for _, r := range inspect {
		v.Inspected++
		if !d.Relevant(r) {
			v.Dropped++
			continue
		}
		v.Content++
		if d.isImportant(r) {
			v.Important++
		}
	}

	v.Score = float64(v.Content)*d.tuning.ContentWeight + float64(v.Important)*d.tuning.ImportanceWeight
	switch v.Path {
	case FastPath:
		v.Translate = v.Content > 0
	case SlowPath:
		v.Translate = v.Important > 0 || (v.Inspected > 0 && v.Score/float64(v.Inspected) > d.tuning.TriggerRatio)
	}
	return v
}

type recordKey struct {
	kind      dom.RecordKind
	target    *html.Node
	attribute string
	added     *html.Node
	removed   *html.Node
	oldValue  string
}

func keyOf(r dom.MutationRecord) recordKey {
	k := recordKey{kind: r.Kind, target: r.Target, attribute: r.Attribute, oldValue: r.OldValue}
	if len(r.Added) > 0 {
		k.added = r.Added[0]
	}
	if len(r.Removed) > 0 {
		k.removed = r.Removed[0]
	}
	return k
}

// Filter drops records that cannot need translation, and duplicates delivered
// by overlapping observers, and reports whether any remaining record added an
// important element.
func (d *Detector) Filter(records []dom.MutationRecord) (kept []dom.MutationRecord, urgent bool) {
	seen := make(map[recordKey]bool, len(records))
	for _, r := range records {
		k := keyOf(r)
		if seen[k] || !d.Relevant(r) {
			continue
		}
		seen[k] = true
		kept = append(kept, r)
		if !urgent && d.isImportant(r) {
			urgent = true
		}
	}
	return kept, urgent
}

// Relevant reports whether r may carry translatable content.
func (d *Detector) Relevant(r dom.MutationRecord) bool {
	if r.Origin == dom.OriginInternal || r.Target == nil {
		return false
	}
	if r.Kind == dom.Attributes && (dom.IsMarkerAttr(r.Attribute) || !d.watched[r.Attribute]) {
		return false
	}

	container := r.Target
	if container.Type == html.TextNode {
		container = container.Parent
	}
	if container == nil || processor.Ignored(container, d.ignore) {
		return false
	}

	switch r.Kind {
	case dom.ChildList:
		for _, n := range r.Added {
			if d.hasContent(n) {
				return true
			}
		}
		return false
	case dom.CharacterData:
		return strings.TrimSpace(r.Target.Data) != ""
	default:
		v, _ := dom.Attr(r.Target, r.Attribute)
		return strings.TrimSpace(v) != ""
	}
}

func (d *Detector) hasContent(n *html.Node) bool {
	switch n.Type {
	case html.TextNode:
		return strings.TrimSpace(n.Data) != ""
	case html.ElementNode:
		if processor.Ignored(n, d.ignore) {
			return false
		}
		return strings.TrimSpace(dom.TextContent(n)) != ""
	}
	return false
}

// isImportant reports whether r added an element matching an important
// selector, directly or within its subtree.
func (d *Detector) isImportant(r dom.MutationRecord) bool {
	if r.Kind != dom.ChildList {
		return false
	}
	for _, n := range r.Added {
		if d.containsImportant(n) {
			return true
		}
	}
	return false
}

func (d *Detector) containsImportant(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, sel := range d.important {
		if dom.Match(n, sel) {
			return true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if d.containsImportant(c) {
			return true
		}
	}
	return false
}
