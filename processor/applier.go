// Package processor applies dictionary translations to the elements of a live
// document in bounded batches.
package processor

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/ZaguanLabs/livetl"
	"github.com/ZaguanLabs/livetl/dom"
)

// DefaultBatchSize is used when no batch size is configured.
const DefaultBatchSize = 50

// Resolver translates fragments. *resolve.Resolver satisfies it.
type Resolver interface {
	Resolve(text string, opts livetl.ResolveOptions) livetl.Resolution
	Forget(text string)
}

// Applier translates elements in place.
type Applier struct {
	resolver     Resolver
	stats        *livetl.Stats
	logger       *slog.Logger
	yielder      Yielder
	batchSize    int
	allowPartial bool
	attributes   []string
	ignore       []string
}

// Option configures an Applier.
type Option func(*Applier)

// WithStats sets the counters updated by Apply.
func WithStats(s *livetl.Stats) Option {
	return func(a *Applier) {
		if s != nil {
			a.stats = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Applier) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithYielder sets what runs between batches.
func WithYielder(y Yielder) Option {
	return func(a *Applier) {
		if y != nil {
			a.yielder = y
		}
	}
}

// WithBatchSize sets the number of elements per batch.
func WithBatchSize(n int) Option {
	return func(a *Applier) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithPartialMatch enables substring translation.
func WithPartialMatch(enabled bool) Option {
	return func(a *Applier) { a.allowPartial = enabled }
}

// WithAttributes sets the attributes translated like text (title, aria-label, ...).
func WithAttributes(names ...string) Option {
	return func(a *Applier) { a.attributes = append([]string(nil), names...) }
}

// WithIgnoreSelectors excludes matching containers and their subtrees.
func WithIgnoreSelectors(selectors ...string) Option {
	return func(a *Applier) { a.ignore = append([]string(nil), selectors...) }
}

// New creates an Applier.
func New(resolver Resolver, opts ...Option) *Applier {
	a := &Applier{
		resolver:  resolver,
		stats:     &livetl.Stats{},
		logger:    slog.Default(),
		yielder:   FrameYielder{},
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// With returns a copy of a using a different batch size and partial setting.
func (a *Applier) With(batchSize int, allowPartial bool) *Applier {
	c := *a
	if batchSize > 0 {
		c.batchSize = batchSize
	}
	c.allowPartial = allowPartial
	return &c
}

// Result summarizes one Apply call.
type Result struct {
	Pending    int   // elements left after filtering
	Skipped    int   // elements already done and unchanged, or ignored
	Processed  int   // elements visited, including descendants
	Translated int   // fragments rewritten
	Failed     int   // elements whose update failed and were marked checked
	BatchSizes []int // elements handled per quantum
}

// Apply translates elements. Elements that are marked and whose content is
// unchanged are skipped; the rest are processed BatchSize at a time with the
// Yielder running between batches. A cancelled context stops Apply between
// batches.
func (a *Applier) Apply(ctx context.Context, doc *dom.Document, elements []*html.Node) (Result, error) {
	var res Result
	a.stats.Pass()

	var pending []*html.Node
	doc.View(func() {
		for _, n := range elements {
			if n == nil || n.Type != html.ElementNode || Ignored(n, a.ignore) || a.upToDate(n) {
				res.Skipped++
				continue
			}
			pending = append(pending, n)
		}
	})
	res.Pending = len(pending)

	for start := 0; start < len(pending); start += a.batchSize {
		if start > 0 {
			if err := a.yielder.Yield(ctx); err != nil {
				return res, err
			}
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		end := min(start+a.batchSize, len(pending))
		for _, n := range pending[start:end] {
			a.process(doc, n, &res)
		}
		res.BatchSizes = append(res.BatchSizes, end-start)
		a.stats.Batch()
	}

	a.stats.AddElementsProcessed(res.Processed)
	a.stats.AddTextsTranslated(res.Translated)
	a.logger.Debug("apply finished",
		"pending", res.Pending,
		"skipped", res.Skipped,
		"processed", res.Processed,
		"translated", res.Translated,
		"batches", len(res.BatchSizes),
	)
	return res, nil
}

// upToDate reports whether n is marked done with an unchanged signature.
// Callers must hold the document.
func (a *Applier) upToDate(n *html.Node) bool {
	state, sig := dom.Marker(n)
	return state.Done() && sig == dom.ContentSignature(n, a.attributes)
}

type textChange struct {
	node     *html.Node
	original string
	updated  string
}

type attrChange struct {
	name     string
	original string
	updated  string
}

// snapshot is the part of an element read under the document lock.
type snapshot struct {
	attached bool
	skip     bool
	stale    bool // marked before but content changed since
	state    livetl.MarkerState
	texts    []*html.Node
	values   []string
	attrs    []attrChange
	children []*html.Node
}

func (a *Applier) snapshot(doc *dom.Document, n *html.Node) snapshot {
	var s snapshot
	doc.View(func() {
		s.attached = dom.Within(doc.Root(), n)
		if !s.attached {
			return
		}
		if a.upToDate(n) {
			s.skip = true
			return
		}
		s.state, _ = dom.Marker(n)
		s.stale = s.state.Done()

		for _, c := range dom.Children(n) {
			switch c.Type {
			case html.TextNode:
				if strings.TrimSpace(c.Data) != "" {
					s.texts = append(s.texts, c)
					s.values = append(s.values, c.Data)
				}
			case html.ElementNode:
				if !ignoredElement(c, a.ignore) {
					s.children = append(s.children, c)
				}
			}
		}
		for _, name := range a.attributes {
			if v, ok := dom.Attr(n, name); ok && strings.TrimSpace(v) != "" {
				s.attrs = append(s.attrs, attrChange{name: name, original: v})
			}
		}
	})
	return s
}

// process translates n and its descendants depth-first.
func (a *Applier) process(doc *dom.Document, n *html.Node, res *Result) {
	s := a.snapshot(doc, n)
	if !s.attached || s.skip {
		return
	}
	res.Processed++

	for _, c := range s.children {
		a.process(doc, c, res)
	}

	opts := livetl.ResolveOptions{AllowPartial: a.allowPartial}
	var texts []textChange
	for i, t := range s.texts {
		original := s.values[i]
		if s.stale {
			a.resolver.Forget(original)
		}
		r := a.resolver.Resolve(original, opts)
		if !r.Found {
			continue
		}
		updated := preserveWhitespace(original, r.Text)
		if updated != original {
			texts = append(texts, textChange{node: t, original: original, updated: updated})
		}
	}
	var attrs []attrChange
	for _, at := range s.attrs {
		if s.stale {
			a.resolver.Forget(at.original)
		}
		r := a.resolver.Resolve(at.original, opts)
		if !r.Found {
			continue
		}
		if updated := preserveWhitespace(at.original, r.Text); updated != at.original {
			at.updated = updated
			attrs = append(attrs, at)
		}
	}

	changed := len(texts) + len(attrs)
	state := livetl.MarkerChecked
	if changed > 0 || s.state == livetl.MarkerTranslated {
		state = livetl.MarkerTranslated
	}

	// Everything read in the snapshot is verified before anything is written,
	// so a failed update leaves the element untouched.
	err := doc.Update(dom.OriginInternal, func(tx *dom.Tx) error {
		for i, t := range s.texts {
			if err := tx.ExpectText(t, s.values[i]); err != nil {
				return err
			}
		}
		for _, at := range s.attrs {
			if err := tx.ExpectAttr(n, at.name, at.original); err != nil {
				return err
			}
		}
		for _, c := range texts {
			if err := tx.SetText(c.node, c.updated); err != nil {
				return err
			}
		}
		for _, c := range attrs {
			if err := tx.SetAttr(n, c.name, c.updated); err != nil {
				return err
			}
		}
		return tx.Mark(n, state, dom.ContentSignature(n, a.attributes))
	})
	if err == nil {
		res.Translated += changed
		return
	}

	var applyErr *livetl.MutationApplyError
	if !errors.As(err, &applyErr) {
		a.logger.Warn("element update failed", "element", dom.Describe(n), "error", err)
		return
	}
	res.Failed++
	a.logger.Debug("element changed during update, marking checked", "element", dom.Describe(n), "error", err)
	err = doc.Update(dom.OriginInternal, func(tx *dom.Tx) error {
		return tx.Mark(n, livetl.MarkerChecked, dom.ContentSignature(n, a.attributes))
	})
	if err != nil {
		a.logger.Debug("marking element checked failed", "element", dom.Describe(n), "error", err)
	}
}

// Ignored reports whether n or one of its ancestors is excluded from
// translation. Callers must hold the document.
func Ignored(n *html.Node, selectors []string) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && ignoredElement(cur, selectors) {
			return true
		}
	}
	return false
}

func ignoredElement(n *html.Node, selectors []string) bool {
	if livetl.IgnoredTags[strings.ToLower(n.Data)] {
		return true
	}
	if _, ok := dom.Attr(n, livetl.NoTranslateAttr); ok {
		return true
	}
	for _, sel := range selectors {
		if dom.Match(n, sel) {
			return true
		}
	}
	return false
}

// preserveWhitespace keeps the leading and trailing whitespace of the original
// text around the translation.
func preserveWhitespace(original, translated string) string {
	leadingLen := len(original) - len(strings.TrimLeft(original, " \t\n\r"))
	leading := original[:leadingLen]

	trailingLen := len(original) - len(strings.TrimRight(original, " \t\n\r"))
	trailing := ""
	if trailingLen > 0 {
		trailing = original[len(original)-trailingLen:]
	}

	return leading + translated + trailing
}
