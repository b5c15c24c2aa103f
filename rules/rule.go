// Package rules holds the accessibility rules and the ordered registry the
// checker evaluates.
//
// A rule is a stateless evaluator over an immutable dom.Document. Rules never
// mutate the tree and never share state, so the checker may run them in any
// order or concurrently. Absent attributes are a normal input: each rule
// decides whether absence is a violation or a pass.
//
// Usage:
//
//	reg, err := rules.Default(rules.DefaultOptions())
//	for _, r := range reg.Enabled() {
//	    vs, err := r.Evaluate(ctx, doc)
//	}
package rules

import (
	"context"

	"github.com/hazyhaar/a11y/dom"
)

// Rule IDs of the built-in rules.
const (
	DocLangMissing    = "DOC_LANG_MISSING"
	DocTitleMissing   = "DOC_TITLE_MISSING"
	ColorContrast     = "COLOR_CONTRAST"
	ImgAltMissing     = "IMG_ALT_MISSING"
	ImgAltLength      = "IMG_ALT_LENGTH"
	LinkGenericText   = "LINK_GENERIC_TEXT"
	HeadingOrder      = "HEADING_ORDER"
	HeadingMultipleH1 = "HEADING_MULTIPLE_H1"
)

// Rule evaluates one accessibility requirement over a document.
type Rule interface {
	ID() string
	Description() string
	Evaluate(ctx context.Context, doc *dom.Document) ([]Violation, error)
}

// Violation is one rule failure on one element.
type Violation struct {
	RuleID      string `json:"ruleId"`
	Message     string `json:"message"`
	Element     string `json:"element"`
	Selector    string `json:"selector"`
	CodeSnippet string `json:"codeSnippet"`

	// Index is the document-order position of the element.
	Index int `json:"-"`
}

// NewViolation builds a violation located on n.
func NewViolation(ruleID string, n *dom.Node, message string) Violation {
	return Violation{
		RuleID:      ruleID,
		Message:     message,
		Element:     n.Tag,
		Selector:    n.Selector(),
		CodeSnippet: n.Snippet(),
		Index:       n.Index,
	}
}

// ruleFunc adapts a per-document function to the Rule interface.
type ruleFunc struct {
	id   string
	desc string
	fn   func(ctx context.Context, doc *dom.Document) []Violation
}

func (r ruleFunc) ID() string          { return r.id }
func (r ruleFunc) Description() string { return r.desc }

func (r ruleFunc) Evaluate(ctx context.Context, doc *dom.Document) ([]Violation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc == nil || doc.Root == nil {
		return nil, nil
	}
	return r.fn(ctx, doc), nil
}

// Func returns a Rule backed by fn. fn is only called for non-empty documents.
func Func(id, description string, fn func(ctx context.Context, doc *dom.Document) []Violation) Rule {
	return ruleFunc{id: id, desc: description, fn: fn}
}
