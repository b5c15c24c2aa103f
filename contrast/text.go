package contrast

import (
	"strconv"
	"strings"
)

const basePx = 16.0

var keywordSizes = map[string]float64{
	"xx-small":  9,
	"x-small":   10,
	"small":     13,
	"medium":    16,
	"large":     18,
	"x-large":   24,
	"xx-large":  32,
	"xxx-large": 48,
}

// FontSizePx converts an inline font-size value to CSS pixels. Relative units
// resolve against the 16px browser default. ok is false for values that
// cannot be resolved without the cascade (calc(), var(), smaller, larger).
func FontSizePx(v string) (px float64, ok bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if size, found := keywordSizes[v]; found {
		return size, true
	}
	units := []struct {
		suffix string
		scale  float64
	}{
		{"px", 1},
		{"pt", 4.0 / 3.0},
		{"pc", 16},
		{"rem", basePx},
		{"em", basePx},
		{"%", basePx / 100},
		{"in", 96},
		{"cm", 96 / 2.54},
		{"mm", 96 / 25.4},
	}
	for _, u := range units {
		if !strings.HasSuffix(v, u.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(v, u.suffix)), 64)
		if err != nil || n < 0 {
			return 0, false
		}
		return n * u.scale, true
	}
	return 0, false
}

// IsBold reports whether a font-weight value is bold (700 or heavier).
func IsBold(weight string) bool {
	weight = strings.ToLower(strings.TrimSpace(weight))
	switch weight {
	case "bold", "bolder":
		return true
	}
	n, err := strconv.Atoi(weight)
	return err == nil && n >= 700
}

// Large text thresholds in CSS pixels: 18pt, and 14pt for bold text.
const (
	LargePx     = 24.0
	LargeBoldPx = 18.66
)

// IsLargeText applies the WCAG definition of large scale text.
func IsLargeText(px float64, bold bool) bool {
	if px >= LargePx {
		return true
	}
	return bold && px >= LargeBoldPx
}
