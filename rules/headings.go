package rules

import (
	"context"
	"fmt"

	"github.com/hazyhaar/a11y/dom"
)

var headingTags = []string{"h1", "h2", "h3", "h4", "h5", "h6"}

func headingLevel(n *dom.Node) int {
	for i, t := range headingTags {
		if n.Is(t) {
			return i + 1
		}
	}
	return 0
}

// NewHeadingOrder flags a heading whose level is more than one deeper than
// the heading before it in document order. Going back up any number of
// levels is allowed.
func NewHeadingOrder() Rule {
	return Func(HeadingOrder,
		"Heading levels must increase by one at a time.",
		func(_ context.Context, doc *dom.Document) []Violation {
			var out []Violation
			var prev *dom.Node
			for _, h := range doc.Elements(headingTags...) {
				if prev != nil && headingLevel(h) > headingLevel(prev)+1 {
					out = append(out, NewViolation(HeadingOrder, h,
						fmt.Sprintf("Heading levels must not be skipped. Found %s followed by %s.", prev.Tag, h.Tag)))
				}
				prev = h
			}
			return out
		})
}

// NewMultipleH1 flags every h1 after the first.
func NewMultipleH1() Rule {
	return Func(HeadingMultipleH1,
		"A page should have a single top-level <h1> heading.",
		func(_ context.Context, doc *dom.Document) []Violation {
			var out []Violation
			for i, h := range doc.Elements("h1") {
				if i == 0 {
					continue
				}
				out = append(out, NewViolation(HeadingMultipleH1, h,
					"There should be only one <h1> tag per page."))
			}
			return out
		})
}
