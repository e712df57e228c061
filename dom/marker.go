package dom

import (
	"golang.org/x/net/html"

	"github.com/ZaguanLabs/livetl"
)

// Marker returns the translation state and signature recorded on n.
// Callers must hold the document through View or Update.
func Marker(n *html.Node) (livetl.MarkerState, string) {
	state, _ := Attr(n, livetl.MarkerAttr)
	sig, _ := Attr(n, livetl.SignatureAttr)
	return livetl.MarkerState(state), sig
}

// Marker returns the translation state and signature recorded on n.
func (d *Document) Marker(n *html.Node) (livetl.MarkerState, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Marker(n)
}

// Mark records the translation state and content signature on n.
func (tx *Tx) Mark(n *html.Node, state livetl.MarkerState, signature string) error {
	if err := tx.SetAttr(n, livetl.MarkerAttr, string(state)); err != nil {
		return err
	}
	return tx.SetAttr(n, livetl.SignatureAttr, signature)
}

// Unmark removes the translation marker from n.
func (tx *Tx) Unmark(n *html.Node) error {
	if err := tx.RemoveAttr(n, livetl.MarkerAttr); err != nil {
		return err
	}
	return tx.RemoveAttr(n, livetl.SignatureAttr)
}

// IsMarkerAttr reports whether name is one of the translator's own attributes.
func IsMarkerAttr(name string) bool {
	return name == livetl.MarkerAttr || name == livetl.SignatureAttr
}

// ContentSignature summarizes n's text content and the values of the
// watched attributes in its subtree. Callers must hold the document.
func ContentSignature(n *html.Node, watched []string) string {
	parts := []string{TextContent(n)}
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.ElementNode {
			for _, name := range watched {
				if v, ok := Attr(c, name); ok {
					parts = append(parts, name+"="+v)
				}
			}
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return livetl.Signature(parts...)
}

// clearMarkers strips translation markers from a detached subtree.
func clearMarkers(n *html.Node) {
	if n.Type == html.ElementNode {
		kept := n.Attr[:0]
		for _, a := range n.Attr {
			if !IsMarkerAttr(a.Key) {
				kept = append(kept, a)
			}
		}
		n.Attr = kept
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		clearMarkers(c)
	}
}
