package rules

import (
	"context"
	"strings"

	"github.com/hazyhaar/a11y/dom"
)

// NewDocLang flags a root html element whose lang attribute is absent or blank.
func NewDocLang() Rule {
	return Func(DocLangMissing,
		"The root <html> element must declare the page language with a non-empty lang attribute.",
		func(_ context.Context, doc *dom.Document) []Violation {
			root := doc.Root
			if !root.Is("html") {
				return nil
			}
			lang, ok := root.Attr("lang")
			switch {
			case !ok:
				return []Violation{NewViolation(DocLangMissing, root,
					"The document's primary language is not declared: the <html> element has no 'lang' attribute.")}
			case strings.TrimSpace(lang) == "":
				return []Violation{NewViolation(DocLangMissing, root,
					"The document's primary language is not declared: the 'lang' attribute of <html> is empty.")}
			}
			return nil
		})
}

// NewDocTitle flags a document without a non-empty title. The violation sits
// on the empty title element when there is one, otherwise on head.
func NewDocTitle() Rule {
	return Func(DocTitleMissing,
		"Every page must have a non-empty <title> element.",
		func(_ context.Context, doc *dom.Document) []Violation {
			const msg = "Every page must have a non-empty <title> tag."
			titles := doc.Elements("title")
			for _, t := range titles {
				if t.Text() != "" {
					return nil
				}
			}
			if len(titles) > 0 {
				return []Violation{NewViolation(DocTitleMissing, titles[0], msg)}
			}
			if heads := doc.Elements("head"); len(heads) > 0 {
				return []Violation{NewViolation(DocTitleMissing, heads[0], msg)}
			}
			return []Violation{NewViolation(DocTitleMissing, doc.Root, msg)}
		})
}
