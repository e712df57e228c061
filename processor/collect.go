package processor

import (
	"golang.org/x/net/html"

	"github.com/ZaguanLabs/livetl/config"
	"github.com/ZaguanLabs/livetl/dom"
)

// Collect returns the elements to translate: primary locators matched within
// roots (the roots themselves when there are no primary locators) and
// transient locators matched anywhere in the document. The result is
// de-duplicated and in document order.
func Collect(doc *dom.Document, roots []*html.Node, locators config.Locators) []*html.Node {
	seen := make(map[*html.Node]bool)
	add := func(nodes ...*html.Node) {
		for _, n := range nodes {
			if n != nil {
				seen[n] = true
			}
		}
	}

	for _, root := range roots {
		if len(locators.Primary) == 0 {
			if root.Type == html.DocumentNode {
				add(doc.Body())
			} else {
				add(root)
			}
			continue
		}
		for _, sel := range locators.Primary {
			add(doc.Query(root, sel)...)
		}
	}
	for _, sel := range locators.Transient {
		add(doc.Query(doc.Root(), sel)...)
	}

	return inDocumentOrder(doc, seen)
}

func inDocumentOrder(doc *dom.Document, want map[*html.Node]bool) []*html.Node {
	ordered := make([]*html.Node, 0, len(want))
	doc.View(func() {
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if want[n] {
				ordered = append(ordered, n)
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(doc.Root())
	})
	return ordered
}
