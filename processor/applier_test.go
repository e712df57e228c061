package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/ZaguanLabs/livetl"
	"github.com/ZaguanLabs/livetl/cache"
	"github.com/ZaguanLabs/livetl/config"
	"github.com/ZaguanLabs/livetl/dictionary"
	"github.com/ZaguanLabs/livetl/dom"
	"github.com/ZaguanLabs/livetl/resolve"
)

var noYield = YielderFunc(func(context.Context) error { return nil })

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newResolver(t *testing.T, m map[string]string) *resolve.Resolver {
	t.Helper()
	store := dictionary.NewStore(dictionary.WithLogger(quiet()))
	if err := store.Rebuild(dictionary.FromMap(m)); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	return resolve.New(store,
		resolve.WithCache(cache.NewMemory(100, cache.WithLogger(quiet()))),
		resolve.WithLogger(quiet()),
	)
}

var dict = map[string]string{
	"Pull requests": "拉取请求",
	"Issues":        "问题",
}

func parse(t *testing.T, content string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(content)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	return doc
}

func first(t *testing.T, doc *dom.Document, selector string) *html.Node {
	t.Helper()
	nodes := doc.Query(doc.Root(), selector)
	if len(nodes) == 0 {
		t.Fatalf("no element matches %q", selector)
	}
	return nodes[0]
}

func text(doc *dom.Document, n *html.Node) string {
	var s string
	doc.View(func() { s = dom.TextContent(n) })
	return s
}

func attr(doc *dom.Document, n *html.Node, key string) string {
	var s string
	doc.View(func() { s, _ = dom.Attr(n, key) })
	return s
}

func TestApply_TranslatesTextAndAttributes(t *testing.T) {
	doc := parse(t, `<main><h1> Pull requests </h1><button title="Issues">Issues</button><p>Unknown</p></main>`)
	a := New(newResolver(t, dict), WithLogger(quiet()), WithYielder(noYield), WithAttributes("title"))

	res, err := a.Apply(context.Background(), doc, []*html.Node{first(t, doc, "main")})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	h1 := first(t, doc, "h1")
	if got := text(doc, h1); got != " 拉取请求 " {
		t.Errorf("h1 text = %q, want whitespace preserved", got)
	}
	button := first(t, doc, "button")
	if got := text(doc, button); got != "问题" {
		t.Errorf("button text = %q", got)
	}
	if got := attr(doc, button, "title"); got != "问题" {
		t.Errorf("button title = %q", got)
	}
	if res.Translated != 3 || res.Processed != 4 {
		t.Errorf("Result = %+v, want 3 translated of 4 processed", res)
	}

	for sel, want := range map[string]livetl.MarkerState{
		"main":   livetl.MarkerChecked,
		"h1":     livetl.MarkerTranslated,
		"button": livetl.MarkerTranslated,
		"p":      livetl.MarkerChecked,
	} {
		if got, _ := doc.Marker(first(t, doc, sel)); got != want {
			t.Errorf("marker of %s = %q, want %q", sel, got, want)
		}
	}
}

func TestApply_ScenarioD_Batches(t *testing.T) {
	var b strings.Builder
	b.WriteString("<ul>")
	for i := 0; i < 120; i++ {
		b.WriteString("<li>Issues</li>")
	}
	b.WriteString("</ul>")
	doc := parse(t, b.String())

	yields := 0
	stats := &livetl.Stats{}
	a := New(newResolver(t, dict),
		WithLogger(quiet()),
		WithStats(stats),
		WithBatchSize(50),
		WithYielder(YielderFunc(func(context.Context) error {
			yields++
			return nil
		})),
	)

	res, err := a.Apply(context.Background(), doc, doc.Query(doc.Root(), "li"))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if want := []int{50, 50, 20}; !reflect.DeepEqual(res.BatchSizes, want) {
		t.Errorf("BatchSizes = %v, want %v", res.BatchSizes, want)
	}
	if yields != 2 {
		t.Errorf("yields = %d, want 2", yields)
	}
	snap := stats.Snapshot()
	if snap.Batches != 3 || snap.ElementsProcessed != 120 || snap.TextsTranslated != 120 {
		t.Errorf("stats = %+v", snap)
	}
}

func TestApply_SkipsUnchanged(t *testing.T) {
	doc := parse(t, `<nav><a>Issues</a><a>Pull requests</a></nav>`)
	a := New(newResolver(t, dict), WithLogger(quiet()), WithYielder(noYield))
	links := doc.Query(doc.Root(), "a")

	if _, err := a.Apply(context.Background(), doc, links); err != nil {
		t.Fatal(err)
	}
	res, err := a.Apply(context.Background(), doc, links)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pending != 0 || res.Skipped != 2 || len(res.BatchSizes) != 0 {
		t.Errorf("second Apply = %+v, want everything skipped", res)
	}
}

func TestApply_RetranslatesChangedContent(t *testing.T) {
	doc := parse(t, `<h1>Issues</h1>`)
	a := New(newResolver(t, dict), WithLogger(quiet()), WithYielder(noYield))
	h1 := first(t, doc, "h1")

	if _, err := a.Apply(context.Background(), doc, []*html.Node{h1}); err != nil {
		t.Fatal(err)
	}

	// The page re-renders the heading.
	err := doc.Update(dom.OriginPage, func(tx *dom.Tx) error {
		return tx.SetText(h1.FirstChild, "Pull requests")
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := a.Apply(context.Background(), doc, []*html.Node{h1})
	if err != nil {
		t.Fatal(err)
	}
	if res.Pending != 1 || text(doc, h1) != "拉取请求" {
		t.Errorf("Result = %+v, text = %q", res, text(doc, h1))
	}
}

func TestApply_IgnoredContent(t *testing.T) {
	doc := parse(t, `<div id="root">
		<code>Issues</code>
		<span data-no-translate>Issues</span>
		<div class="markdown-body"><p>Issues</p></div>
		<span class="ok">Issues</span>
	</div>`)
	a := New(newResolver(t, dict),
		WithLogger(quiet()),
		WithYielder(noYield),
		WithIgnoreSelectors(".markdown-body"),
	)

	res, err := a.Apply(context.Background(), doc, []*html.Node{
		first(t, doc, "#root"),
		first(t, doc, ".markdown-body p"),
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := text(doc, first(t, doc, ".ok")); got != "问题" {
		t.Errorf("span.ok = %q", got)
	}
	for _, sel := range []string{"code", "span[data-no-translate]", ".markdown-body p"} {
		if got := text(doc, first(t, doc, sel)); got != "Issues" {
			t.Errorf("%s = %q, want untouched", sel, got)
		}
	}
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1 (element inside ignored container)", res.Skipped)
	}
}

func TestApply_CancelledBetweenBatches(t *testing.T) {
	doc := parse(t, `<p>Issues</p><p>Issues</p><p>Issues</p>`)
	ctx, cancel := context.WithCancel(context.Background())
	a := New(newResolver(t, dict),
		WithLogger(quiet()),
		WithBatchSize(1),
		WithYielder(YielderFunc(func(ctx context.Context) error {
			cancel()
			return ctx.Err()
		})),
	)

	res, err := a.Apply(ctx, doc, doc.Query(doc.Root(), "p"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Apply() error = %v, want context.Canceled", err)
	}
	if len(res.BatchSizes) != 1 {
		t.Errorf("BatchSizes = %v, want one batch before cancellation", res.BatchSizes)
	}
}

// racingResolver rewrites the element's text while its translation is being
// looked up, as a page re-render would.
type racingResolver struct {
	*resolve.Resolver
	doc  *dom.Document
	node *html.Node
}

func (r *racingResolver) Resolve(text string, opts livetl.ResolveOptions) livetl.Resolution {
	_ = r.doc.Update(dom.OriginPage, func(tx *dom.Tx) error {
		return tx.SetText(r.node, "Rewritten")
	})
	return r.Resolver.Resolve(text, opts)
}

func TestApply_ChangedDuringUpdateMarksChecked(t *testing.T) {
	doc := parse(t, `<h1>Issues</h1>`)
	h1 := first(t, doc, "h1")
	var textNode *html.Node
	doc.View(func() { textNode = h1.FirstChild })

	a := New(&racingResolver{Resolver: newResolver(t, dict), doc: doc, node: textNode},
		WithLogger(quiet()), WithYielder(noYield))

	res, err := a.Apply(context.Background(), doc, []*html.Node{h1})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Failed != 1 || res.Translated != 0 {
		t.Errorf("Result = %+v, want one failure", res)
	}
	if got, _ := doc.Marker(h1); got != livetl.MarkerChecked {
		t.Errorf("marker = %q, want checked", got)
	}
	if got := text(doc, h1); got != "Rewritten" {
		t.Errorf("text = %q, page edit must win", got)
	}
}

// rewriteOn edits node when the fragment trigger is looked up.
type rewriteOn struct {
	*resolve.Resolver
	doc     *dom.Document
	trigger string
	edit    func(*dom.Tx) error
	done    bool
}

func (r *rewriteOn) Resolve(text string, opts livetl.ResolveOptions) livetl.Resolution {
	if !r.done && strings.TrimSpace(text) == r.trigger {
		r.done = true
		_ = r.doc.Update(dom.OriginPage, r.edit)
	}
	return r.Resolver.Resolve(text, opts)
}

func TestApply_FailedUpdateLeavesElementUntouched(t *testing.T) {
	doc := parse(t, `<p>Pull requests<b>!</b>Issues</p>`)
	p := first(t, doc, "p")
	var second *html.Node
	doc.View(func() { second = p.LastChild })

	r := &rewriteOn{
		Resolver: newResolver(t, dict),
		doc:      doc,
		trigger:  "Pull requests",
		edit:     func(tx *dom.Tx) error { return tx.SetText(second, "Issues changed") },
	}
	a := New(r, WithLogger(quiet()), WithYielder(noYield))

	res, err := a.Apply(context.Background(), doc, []*html.Node{p})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Failed != 1 {
		t.Errorf("Failed = %d, want 1", res.Failed)
	}
	var firstText string
	doc.View(func() { firstText = p.FirstChild.Data })
	if firstText != "Pull requests" {
		t.Errorf("first text = %q, want it untouched", firstText)
	}
	if got := text(doc, p); got != "Pull requests!Issues changed" {
		t.Errorf("text = %q", got)
	}
}

func TestApply_FailedMarkIsLogged(t *testing.T) {
	doc := parse(t, `<main><p>Issues</p></main>`)
	p := first(t, doc, "p")

	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := &rewriteOn{
		Resolver: newResolver(t, dict),
		doc:      doc,
		trigger:  "Issues",
		edit:     func(tx *dom.Tx) error { return tx.RemoveChild(p) },
	}
	a := New(r, WithLogger(logger), WithYielder(noYield))

	res, err := a.Apply(context.Background(), doc, []*html.Node{p})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Failed != 1 {
		t.Errorf("Failed = %d, want 1", res.Failed)
	}
	if !strings.Contains(buf.String(), "marking element checked failed") {
		t.Errorf("log = %q, want the failed mark logged", buf.String())
	}
}

func TestApply_DetachedElementIsSkipped(t *testing.T) {
	doc := parse(t, `<p>Issues</p>`)
	p := first(t, doc, "p")
	if err := doc.Update(dom.OriginPage, func(tx *dom.Tx) error { return tx.RemoveChild(p) }); err != nil {
		t.Fatal(err)
	}

	a := New(newResolver(t, dict), WithLogger(quiet()), WithYielder(noYield))
	res, err := a.Apply(context.Background(), doc, []*html.Node{p})
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 0 {
		t.Errorf("Processed = %d, want 0", res.Processed)
	}
}

func TestCollect(t *testing.T) {
	doc := parse(t, `
		<header id="top">Issues</header>
		<main><nav id="tabs">Issues</nav><section>Issues</section></main>
		<div class="Popover">Issues</div>`)

	roots := doc.Query(doc.Root(), "main")
	got := Collect(doc, roots, config.Locators{
		Primary:   []string{"nav", "main"},
		Transient: []string{".Popover", "nav"},
	})

	var names []string
	doc.View(func() {
		for _, n := range got {
			names = append(names, dom.Describe(n))
		}
	})
	want := []string{"main", "nav#tabs", "div.Popover"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Collect() = %v, want %v", names, want)
	}
}

func TestCollect_NoPrimaryUsesRoots(t *testing.T) {
	doc := parse(t, `<main>Issues</main>`)
	got := Collect(doc, []*html.Node{doc.Root()}, config.Locators{})
	if len(got) != 1 || got[0] != doc.Body() {
		t.Errorf("Collect() = %v, want the body", got)
	}
}

func TestPreserveWhitespace(t *testing.T) {
	tests := []struct {
		original, translated, want string
	}{
		{"Hello", "Hola", "Hola"},
		{"  Hello", "Hola", "  Hola"},
		{"Hello  ", "Hola", "Hola  "},
		{"\n\tHello\n", "Hola", "\n\tHola\n"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.original), func(t *testing.T) {
			if got := preserveWhitespace(tt.original, tt.translated); got != tt.want {
				t.Errorf("preserveWhitespace() = %q, want %q", got, tt.want)
			}
		})
	}
}
