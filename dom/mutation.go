package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/ZaguanLabs/livetl"
)

// RecordKind is the kind of a mutation record.
type RecordKind int

const (
	ChildList RecordKind = iota
	CharacterData
	Attributes
)

func (k RecordKind) String() string {
	switch k {
	case ChildList:
		return "childList"
	case CharacterData:
		return "characterData"
	case Attributes:
		return "attributes"
	default:
		return fmt.Sprintf("RecordKind(%d)", int(k))
	}
}

// Origin tells who made a change.
type Origin int

const (
	// OriginPage is a change made by the page or its host.
	OriginPage Origin = iota
	// OriginInternal is a change made by the translator itself.
	OriginInternal
)

// MutationRecord describes one change.
type MutationRecord struct {
	Kind      RecordKind
	Target    *html.Node
	Added     []*html.Node
	Removed   []*html.Node
	Attribute string
	OldValue  string
	Origin    Origin
}

// ObserveOptions selects which records an observer receives. Observation
// always covers the whole subtree of the root.
type ObserveOptions struct {
	ChildList     bool
	CharacterData bool
	// Attributes lists the attribute names to report; empty means none.
	Attributes []string
}

// Observer receives the records of changes under its root.
type Observer struct {
	doc      *Document
	root     *html.Node
	opts     ObserveOptions
	callback func([]MutationRecord)
}

// Root returns the observed root.
func (o *Observer) Root() *html.Node {
	return o.root
}

// Disconnect stops delivery to the observer.
func (o *Observer) Disconnect() {
	d := o.doc
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, obs := range d.observers {
		if obs == o {
			d.observers = append(d.observers[:i], d.observers[i+1:]...)
			return
		}
	}
}

func (o *Observer) wants(r MutationRecord) bool {
	switch r.Kind {
	case ChildList:
		if !o.opts.ChildList {
			return false
		}
	case CharacterData:
		if !o.opts.CharacterData {
			return false
		}
	case Attributes:
		found := false
		for _, name := range o.opts.Attributes {
			if name == r.Attribute {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for cur := r.Target; cur != nil; cur = cur.Parent {
		if cur == o.root {
			return true
		}
	}
	return false
}

// Observe attaches an observer to root. It fails with
// *livetl.ObserverAttachError when root is not attached to the document or
// the document cannot report mutations.
func (d *Document) Observe(root *html.Node, opts ObserveOptions, callback func([]MutationRecord)) (*Observer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	label := Describe(root)
	switch {
	case d.noObserve:
		return nil, &livetl.ObserverAttachError{Root: label, Message: "document does not support observers"}
	case root == nil || !d.contains(root):
		return nil, &livetl.ObserverAttachError{Root: label, Message: "root is not attached to the document"}
	case callback == nil:
		return nil, &livetl.ObserverAttachError{Root: label, Message: "nil callback"}
	}

	o := &Observer{doc: d, root: root, opts: opts, callback: callback}
	d.observers = append(d.observers, o)
	return o, nil
}

// Update runs fn as one transaction. Records produced by fn are delivered to
// matching observers after the document is unlocked, even if fn fails part
// way through.
func (d *Document) Update(origin Origin, fn func(*Tx) error) error {
	d.mu.Lock()
	tx := &Tx{doc: d, origin: origin}
	err := fn(tx)

	type delivery struct {
		observer *Observer
		records  []MutationRecord
	}
	var deliveries []delivery
	for _, o := range d.observers {
		var records []MutationRecord
		for _, r := range tx.records {
			if o.wants(r) {
				records = append(records, r)
			}
		}
		if len(records) > 0 {
			deliveries = append(deliveries, delivery{o, records})
		}
	}
	d.mu.Unlock()

	for _, dl := range deliveries {
		dl.observer.callback(dl.records)
	}
	return err
}

// Tx is an update transaction. Its methods must only be used inside the
// Update call that created it.
type Tx struct {
	doc     *Document
	origin  Origin
	records []MutationRecord
}

func (tx *Tx) record(r MutationRecord) {
	r.Origin = tx.origin
	tx.records = append(tx.records, r)
}

func (tx *Tx) attached(n *html.Node) error {
	if n == nil || !tx.doc.contains(n) {
		return &livetl.MutationApplyError{Message: fmt.Sprintf("%s is detached", Describe(n))}
	}
	return nil
}

// SetText replaces the data of a text node.
func (tx *Tx) SetText(n *html.Node, text string) error {
	if err := tx.attached(n); err != nil {
		return err
	}
	if n.Type != html.TextNode {
		return &livetl.MutationApplyError{Message: fmt.Sprintf("%s is not a text node", Describe(n))}
	}
	if n.Data == text {
		return nil
	}
	old := n.Data
	n.Data = text
	tx.record(MutationRecord{Kind: CharacterData, Target: n, OldValue: old})
	return nil
}

// ExpectText fails unless n is an attached text node still holding expected.
// It records nothing.
func (tx *Tx) ExpectText(n *html.Node, expected string) error {
	if err := tx.attached(n); err != nil {
		return err
	}
	if n.Type != html.TextNode || n.Data != expected {
		return &livetl.MutationApplyError{Message: "text node changed since it was read"}
	}
	return nil
}

// ExpectAttr fails unless n is attached and its key attribute holds expected.
func (tx *Tx) ExpectAttr(n *html.Node, key, expected string) error {
	if err := tx.attached(n); err != nil {
		return err
	}
	if v, _ := Attr(n, key); v != expected {
		return &livetl.MutationApplyError{Message: fmt.Sprintf("attribute %s changed since it was read", key)}
	}
	return nil
}

// ReplaceText sets the data of a text node only if it still holds expected.
func (tx *Tx) ReplaceText(n *html.Node, expected, text string) error {
	if err := tx.ExpectText(n, expected); err != nil {
		return err
	}
	return tx.SetText(n, text)
}

// SetAttr sets an attribute on an element.
func (tx *Tx) SetAttr(n *html.Node, key, val string) error {
	if err := tx.attached(n); err != nil {
		return err
	}
	for i, a := range n.Attr {
		if a.Key == key {
			if a.Val == val {
				return nil
			}
			n.Attr[i].Val = val
			tx.record(MutationRecord{Kind: Attributes, Target: n, Attribute: key, OldValue: a.Val})
			return nil
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	tx.record(MutationRecord{Kind: Attributes, Target: n, Attribute: key})
	return nil
}

// RemoveAttr removes an attribute from an element.
func (tx *Tx) RemoveAttr(n *html.Node, key string) error {
	if err := tx.attached(n); err != nil {
		return err
	}
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			tx.record(MutationRecord{Kind: Attributes, Target: n, Attribute: key, OldValue: a.Val})
			return nil
		}
	}
	return nil
}

// AppendChild appends a detached node to parent.
func (tx *Tx) AppendChild(parent, child *html.Node) error {
	if err := tx.attached(parent); err != nil {
		return err
	}
	if child.Parent != nil {
		return &livetl.MutationApplyError{Message: "child is already attached"}
	}
	parent.AppendChild(child)
	tx.record(MutationRecord{Kind: ChildList, Target: parent, Added: []*html.Node{child}})
	return nil
}

// AppendHTML parses fragment in the context of parent and appends the result.
func (tx *Tx) AppendHTML(parent *html.Node, fragment string) ([]*html.Node, error) {
	if err := tx.attached(parent); err != nil {
		return nil, err
	}
	context := parent
	if parent.Type != html.ElementNode {
		context = &html.Node{Type: html.ElementNode, Data: "body"}
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), context)
	if err != nil {
		return nil, &livetl.MutationApplyError{Message: "parsing fragment", Cause: err}
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	if len(nodes) > 0 {
		tx.record(MutationRecord{Kind: ChildList, Target: parent, Added: nodes})
	}
	return nodes, nil
}

// RemoveChild detaches n from its parent. Translation markers in the removed
// subtree are dropped.
func (tx *Tx) RemoveChild(n *html.Node) error {
	if err := tx.attached(n); err != nil {
		return err
	}
	parent := n.Parent
	if parent == nil {
		return &livetl.MutationApplyError{Message: "cannot remove the document node"}
	}
	parent.RemoveChild(n)
	clearMarkers(n)
	tx.record(MutationRecord{Kind: ChildList, Target: parent, Removed: []*html.Node{n}})
	return nil
}
