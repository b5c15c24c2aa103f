package rules

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/hazyhaar/a11y/dom"
)

// NewGenericLinkText flags anchors whose visible text is a low-information
// phrase from phrases; aria-label is not consulted. Text is compared after
// lower-casing, collapsing whitespace and stripping surrounding punctuation.
// Empty text, in-page "#" links and javascript: links are not checked.
func NewGenericLinkText(phrases []string) Rule {
	deny := make(map[string]bool, len(phrases))
	for _, p := range phrases {
		if p = normalizeLinkText(p); p != "" {
			deny[p] = true
		}
	}
	return Func(LinkGenericText,
		"Link text must describe the link target; generic phrases such as 'click here' are not allowed.",
		func(_ context.Context, doc *dom.Document) []Violation {
			var out []Violation
			for _, a := range doc.Elements("a") {
				href := strings.TrimSpace(a.AttrOr("href", ""))
				if strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
					continue
				}
				norm := normalizeLinkText(a.Text())
				if norm == "" || !deny[norm] {
					continue
				}
				out = append(out, NewViolation(LinkGenericText, a,
					fmt.Sprintf("Link text should be descriptive. Avoid generic phrases like '%s'.", norm)))
			}
			return out
		})
}

func normalizeLinkText(s string) string {
	s = dom.NormalizeText(s)
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r)
	})
}
