package rules

import (
	"context"
	"fmt"
	"math"

	"github.com/hazyhaar/a11y/contrast"
	"github.com/hazyhaar/a11y/dom"
)

// NewColorContrast flags elements whose inline text colour and background
// colour do not reach the minimum contrast ratio. Only pairs fully declared
// in the element's own style attribute are checked; values that need the
// cascade to resolve (currentcolor, var(), gradients) are skipped.
func NewColorContrast(normal, large float64) Rule {
	return Func(ColorContrast,
		fmt.Sprintf("Inline text and background colours must reach a contrast ratio of %.1f:1 (%.1f:1 for large text).", normal, large),
		func(ctx context.Context, doc *dom.Document) []Violation {
			var out []Violation
			for i, n := range doc.Nodes() {
				if i%1024 == 0 && ctx.Err() != nil {
					return out
				}
				if len(n.Style()) == 0 {
					continue
				}
				fg, bg, ok := inlineColors(n)
				if !ok {
					continue
				}
				isLarge := largeText(n)
				minRatio, kind := normal, "normal"
				if isLarge {
					minRatio, kind = large, "large"
				}
				ratio := contrast.Ratio(fg, bg)
				if ratio >= minRatio {
					continue
				}
				out = append(out, NewViolation(ColorContrast, n,
					fmt.Sprintf("Low contrast ratio: %.2f. Minimum expected is %.1f for %s text.",
						math.Floor(ratio*100)/100, minRatio, kind)))
			}
			return out
		})
}

func inlineColors(n *dom.Node) (fg, bg contrast.Color, ok bool) {
	fgRaw, found := n.StyleValue("color")
	if !found {
		return fg, bg, false
	}
	// The later of background-color and the background shorthand wins; the
	// shorthand counts only when it is a single colour.
	_, bgRaw, found := n.CascadedStyle("background-color", "background")
	if !found {
		return fg, bg, false
	}
	var err error
	if fg, err = contrast.Parse(fgRaw); err != nil {
		return fg, bg, false
	}
	if bg, err = contrast.Parse(bgRaw); err != nil {
		return fg, bg, false
	}
	return fg, bg, true
}

func largeText(n *dom.Node) bool {
	px := 16.0
	if v, ok := n.StyleValue("font-size"); ok {
		if size, ok := contrast.FontSizePx(v); ok {
			px = size
		}
	}
	bold := false
	if v, ok := n.StyleValue("font-weight"); ok {
		bold = contrast.IsBold(v)
	} else if n.Is("b") || n.Is("strong") || n.Is("th") ||
		n.Is("h1") || n.Is("h2") || n.Is("h3") || n.Is("h4") || n.Is("h5") || n.Is("h6") {
		bold = true
	}
	return contrast.IsLargeText(px, bold)
}
