// Package dom wraps an HTML node tree as a live document: every change goes
// through an update transaction that records mutations and delivers them to
// observers, the way a browser reports DOM mutations.
package dom

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a mutable HTML document. All reads and updates are serialized;
// callers reading nodes directly must do so inside View or Update.
type Document struct {
	mu        sync.Mutex
	doc       *goquery.Document
	observers []*Observer
	visible   bool
	noObserve bool
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return &Document{doc: doc, visible: true}, nil
}

// ParseString reads an HTML document from a string.
func ParseString(content string) (*Document, error) {
	return Parse(strings.NewReader(content))
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.doc.Nodes[0]
}

// Body returns the <body> element, or the document node if there is none.
func (d *Document) Body() *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	if body := d.doc.Find("body"); body.Length() > 0 {
		return body.Nodes[0]
	}
	return d.Root()
}

// HTML serializes the document.
func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out, err := d.doc.Html()
	if err != nil {
		return "", fmt.Errorf("serializing HTML: %w", err)
	}
	return out, nil
}

// View runs fn with the document locked for reading.
func (d *Document) View(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

// Query returns the elements within n (n included) matching selector, in
// document order. An invalid selector matches nothing.
func (d *Document) Query(within *html.Node, selector string) []*html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return query(within, selector)
}

func query(within *html.Node, selector string) []*html.Node {
	if within == nil || selector == "" {
		return nil
	}
	sel := goquery.NewDocumentFromNode(within).Selection
	var out []*html.Node
	if within.Type == html.ElementNode && sel.Is(selector) {
		out = append(out, within)
	}
	return append(out, sel.Find(selector).Nodes...)
}

// Match reports whether element n matches selector. Callers must hold the
// document.
func Match(n *html.Node, selector string) bool {
	return matches(n, selector)
}

func matches(n *html.Node, selector string) bool {
	if n == nil || n.Type != html.ElementNode || selector == "" {
		return false
	}
	return goquery.NewDocumentFromNode(n).Selection.Is(selector)
}

// Contains reports whether n is attached to the document.
func (d *Document) Contains(n *html.Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.contains(n)
}

func (d *Document) contains(n *html.Node) bool {
	return Within(d.Root(), n)
}

// Within reports whether n is root or one of its descendants.
func Within(root, n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == root {
			return true
		}
	}
	return false
}

// SetVisible records whether the document is currently shown to the user.
func (d *Document) SetVisible(visible bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.visible = visible
}

// Visible reports whether the document is currently shown to the user.
func (d *Document) Visible() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.visible
}

// SetObserversSupported toggles whether observers can be attached, for hosts
// that cannot report mutations.
func (d *Document) SetObserversSupported(ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.noObserve = !ok
}

// Children returns a snapshot of n's children. Callers must hold the
// document through View or Update.
func Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// TextContent returns the concatenated text of n's subtree.
func TextContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}

// Describe returns a short label for n, used in logs and errors.
func Describe(n *html.Node) string {
	if n == nil {
		return "<nil>"
	}
	switch n.Type {
	case html.DocumentNode:
		return "#document"
	case html.TextNode:
		return "#text"
	case html.ElementNode:
		label := n.Data
		if id, ok := Attr(n, "id"); ok && id != "" {
			label += "#" + id
		}
		if class, ok := Attr(n, "class"); ok && class != "" {
			label += "." + strings.Join(strings.Fields(class), ".")
		}
		return label
	default:
		return fmt.Sprintf("node(%d)", n.Type)
	}
}
