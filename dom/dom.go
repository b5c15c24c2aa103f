// Package dom builds the immutable document tree that accessibility rules
// evaluate.
//
// Parsing delegates to golang.org/x/net/html, which implements the WHATWG
// tree-construction algorithm, so malformed markup is recovered the same way
// a browser would recover it. The conversion walk attaches everything a rule
// needs in O(1): a unique selector path, the opening tag, parsed inline style
// declarations, depth and document-order index.
//
// Usage:
//
//	doc, err := dom.Parse(ctx, src, dom.DefaultLimits())
//	for _, img := range doc.Elements("img") {
//	    alt, ok := img.Attr("alt")
//	    ...
//	}
package dom

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// ErrTooDeep is returned when the parsed tree nests deeper than Limits.MaxDepth.
var ErrTooDeep = errors.New("dom: document nesting exceeds maximum depth")

// ErrTooManyNodes is returned when the parsed tree holds more elements than Limits.MaxNodes.
var ErrTooManyNodes = errors.New("dom: document exceeds maximum element count")

// Limits bounds the shape of a parsed document.
type Limits struct {
	MaxDepth int // deepest element nesting accepted, html element is depth 0
	MaxNodes int // total element count accepted
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{MaxDepth: 256, MaxNodes: 100_000}
}

func (l *Limits) defaults() {
	d := DefaultLimits()
	if l.MaxDepth <= 0 {
		l.MaxDepth = d.MaxDepth
	}
	if l.MaxNodes <= 0 {
		l.MaxNodes = d.MaxNodes
	}
}

// Attr is one element attribute. Namespaced attributes carry a "ns:" prefix.
type Attr struct {
	Key string
	Val string
}

// Node is one element of the document tree.
type Node struct {
	Tag      string
	Attrs    []Attr
	Parent   *Node
	Children []*Node
	Depth    int
	Index    int // position in document order

	selector string
	openTag  string
	style    []Declaration
	raw      *html.Node

	snippetOnce sync.Once
	snippet     string
}

// Selector returns the CSS selector path that uniquely locates n.
func (n *Node) Selector() string { return n.selector }

// OpenTag returns the serialized opening tag of n.
func (n *Node) OpenTag() string { return n.openTag }

// Style returns the inline style declarations of n in source order.
func (n *Node) Style() []Declaration { return n.style }

// Is reports whether n has the given tag name, compared case-insensitively.
func (n *Node) Is(tag string) bool { return strings.EqualFold(n.Tag, tag) }

// Attr returns the value of the named attribute and whether it is present.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the named attribute value or def when it is absent.
func (n *Node) AttrOr(name, def string) string {
	if v, ok := n.Attr(name); ok {
		return v
	}
	return def
}

// Snippet returns the outer HTML of n as produced by the HTML serializer.
// The result is rendered once and cached; concurrent callers are safe.
func (n *Node) Snippet() string {
	n.snippetOnce.Do(func() {
		var buf bytes.Buffer
		if err := html.Render(&buf, n.raw); err != nil {
			n.snippet = n.openTag
			return
		}
		n.snippet = buf.String()
	})
	return n.snippet
}

// Document is a parsed HTML document. It is immutable once Parse returns.
type Document struct {
	Root  *Node // the html element, nil for empty input
	nodes []*Node
}

// Len returns the number of elements in the document.
func (d *Document) Len() int { return len(d.nodes) }

// Nodes returns every element in document order.
func (d *Document) Nodes() []*Node { return d.nodes }

// Elements returns the elements with any of the given tag names in document order.
func (d *Document) Elements(tags ...string) []*Node {
	var out []*Node
	for _, n := range d.nodes {
		for _, t := range tags {
			if n.Is(t) {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// MaxDepth returns the deepest nesting level present in the document.
func (d *Document) MaxDepth() int {
	deepest := 0
	for _, n := range d.nodes {
		if n.Depth > deepest {
			deepest = n.Depth
		}
	}
	return deepest
}

// Parse builds a Document from src. Empty or whitespace-only input yields an
// empty Document. Malformed markup is never an error; only limit violations
// and context cancellation are.
func Parse(ctx context.Context, src string, lim Limits) (*Document, error) {
	lim.defaults()
	if strings.TrimSpace(src) == "" {
		return &Document{}, nil
	}
	if err := prescan(ctx, src, lim); err != nil {
		return nil, err
	}

	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := &builder{ctx: ctx, lim: lim}
	doc := &Document{}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		n, err := b.build(c, nil, 1, 1)
		if err != nil {
			return nil, err
		}
		doc.Root = n
		break
	}
	doc.nodes = b.nodes
	return doc, nil
}

type builder struct {
	ctx   context.Context
	lim   Limits
	nodes []*Node
}

// build converts raw and its element descendants. nth and total give the
// position of raw among its same-tag siblings.
func (b *builder) build(raw *html.Node, parent *Node, nth, total int) (*Node, error) {
	depth := 0
	if parent != nil {
		depth = parent.Depth + 1
	}
	if depth > b.lim.MaxDepth {
		return nil, fmt.Errorf("%w (%d)", ErrTooDeep, b.lim.MaxDepth)
	}
	if len(b.nodes) >= b.lim.MaxNodes {
		return nil, fmt.Errorf("%w (%d)", ErrTooManyNodes, b.lim.MaxNodes)
	}
	if len(b.nodes)%1024 == 0 {
		if err := b.ctx.Err(); err != nil {
			return nil, err
		}
	}

	n := &Node{
		Tag:    raw.Data,
		Attrs:  uniqueAttrs(raw.Attr),
		Parent: parent,
		Depth:  depth,
		Index:  len(b.nodes),
		raw:    raw,
	}
	n.openTag = openTag(n)
	if style, ok := n.Attr("style"); ok {
		n.style = ParseStyle(style)
	}
	step := selectorStep(n, nth, total)
	if parent == nil {
		n.selector = step
	} else {
		n.selector = parent.selector + " > " + step
	}
	b.nodes = append(b.nodes, n)

	counts := make(map[string]int)
	for c := raw.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			counts[c.Data]++
		}
	}
	seen := make(map[string]int)
	for c := raw.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		seen[c.Data]++
		child, err := b.build(c, n, seen[c.Data], counts[c.Data])
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}

// uniqueAttrs keeps the first occurrence of each attribute key, preserving order.
func uniqueAttrs(in []html.Attribute) []Attr {
	out := make([]Attr, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, a := range in {
		key := a.Key
		if a.Namespace != "" {
			key = a.Namespace + ":" + a.Key
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Attr{Key: key, Val: a.Val})
	}
	return out
}

func openTag(n *Node) string {
	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(n.Tag)
	for _, a := range n.Attrs {
		sb.WriteByte(' ')
		sb.WriteString(a.Key)
		sb.WriteString(`="`)
		sb.WriteString(html.EscapeString(a.Val))
		sb.WriteByte('"')
	}
	sb.WriteByte('>')
	return sb.String()
}
