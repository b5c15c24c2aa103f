package rules

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/a11y/dom"
)

// NewImgAlt flags img elements with an absent or blank alt attribute. An
// image is decorative, and exempt, only when its role is one of
// decorativeRoles; aria-hidden alone does not exempt it.
func NewImgAlt(decorativeRoles []string) Rule {
	roles := make(map[string]bool, len(decorativeRoles))
	for _, r := range decorativeRoles {
		roles[strings.ToLower(strings.TrimSpace(r))] = true
	}
	return Func(ImgAltMissing,
		"Informative images must have a descriptive alt attribute; decorative images must say so with an explicit role.",
		func(_ context.Context, doc *dom.Document) []Violation {
			var out []Violation
			for _, img := range doc.Elements("img") {
				if isDecorative(img, roles) {
					continue
				}
				if alt, _ := img.Attr("alt"); strings.TrimSpace(alt) == "" {
					out = append(out, NewViolation(ImgAltMissing, img,
						"Informative images must have a descriptive 'alt' attribute."))
				}
			}
			return out
		})
}

func isDecorative(img *dom.Node, roles map[string]bool) bool {
	role, ok := img.Attr("role")
	if !ok {
		return false
	}
	// role is a token list.
	for _, tok := range strings.Fields(strings.ToLower(role)) {
		if roles[tok] {
			return true
		}
	}
	return false
}

// NewImgAltLength flags alt text longer than maxLen characters.
func NewImgAltLength(maxLen int) Rule {
	return Func(ImgAltLength,
		fmt.Sprintf("Alt text should be concise, at most %d characters.", maxLen),
		func(_ context.Context, doc *dom.Document) []Violation {
			var out []Violation
			for _, img := range doc.Elements("img") {
				alt, ok := img.Attr("alt")
				if !ok || strings.TrimSpace(alt) == "" {
					continue
				}
				if n := utf8.RuneCountInString(alt); n > maxLen {
					out = append(out, NewViolation(ImgAltLength, img,
						fmt.Sprintf("Alt text should not exceed %d characters (currently %d).", maxLen, n)))
				}
			}
			return out
		})
}
