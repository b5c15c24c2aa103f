// Package contrast parses CSS colour literals and computes WCAG 2.x
// relative luminance and contrast ratios.
//
// The functions are pure and independent of the document tree so they can be
// tested and reused on their own:
//
//	fg, _ := contrast.Parse("lightgreen")
//	bg, _ := contrast.Parse("#008000")
//	ratio := contrast.Ratio(fg, bg) // 3.63
package contrast

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ErrUnsupported is returned for syntactically valid CSS values that do not
// denote a fixed colour (currentcolor, inherit, var(), gradients...).
var ErrUnsupported = errors.New("contrast: colour value cannot be resolved statically")

// WCAG 2.1 AA minimum ratios.
const (
	MinRatioNormal = 4.5
	MinRatioLarge  = 3.0
)

// Color is an sRGB colour with straight alpha in [0,1].
type Color struct {
	colorful.Color
	A float64
}

var (
	White = Color{Color: colorful.Color{R: 1, G: 1, B: 1}, A: 1}
	Black = Color{Color: colorful.Color{}, A: 1}
)

// Opaque reports whether c has full alpha.
func (c Color) Opaque() bool { return c.A >= 1 }

// String returns c as #rrggbb, or #rrggbbaa when translucent.
func (c Color) String() string {
	if c.Opaque() {
		return c.Color.Clamped().Hex()
	}
	return fmt.Sprintf("%s%02x", c.Color.Clamped().Hex(), uint8(c.A*255+0.5))
}

// Parse reads a CSS colour literal: hex (#rgb, #rgba, #rrggbb, #rrggbbaa),
// rgb()/rgba(), hsl()/hsla(), a named colour or transparent.
func Parse(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return Color{}, errors.New("contrast: empty colour")
	case s == "transparent":
		return Color{}, nil
	case strings.HasPrefix(s, "#"):
		return parseHex(s)
	case strings.HasPrefix(s, "rgb(") || strings.HasPrefix(s, "rgba("):
		return parseRGB(s)
	case strings.HasPrefix(s, "hsl(") || strings.HasPrefix(s, "hsla("):
		return parseHSL(s)
	}
	if v, ok := namedColors[s]; ok {
		return fromUint(v), nil
	}
	switch s {
	case "currentcolor", "inherit", "initial", "unset", "revert", "revert-layer":
		return Color{}, fmt.Errorf("%w: %q", ErrUnsupported, s)
	}
	if strings.Contains(s, "(") {
		return Color{}, fmt.Errorf("%w: %q", ErrUnsupported, s)
	}
	return Color{}, fmt.Errorf("contrast: unknown colour %q", s)
}

func fromUint(v uint32) Color {
	return Color{
		Color: colorful.Color{
			R: float64(v>>16&0xff) / 255,
			G: float64(v>>8&0xff) / 255,
			B: float64(v&0xff) / 255,
		},
		A: 1,
	}
}

func parseHex(s string) (Color, error) {
	alpha := 1.0
	switch len(s) {
	case 5: // #rgba
		a, err := strconv.ParseUint(s[4:5], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("contrast: bad hex colour %q: %w", s, err)
		}
		alpha = float64(a) / 15
		s = s[:4]
	case 9: // #rrggbbaa
		a, err := strconv.ParseUint(s[7:9], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("contrast: bad hex colour %q: %w", s, err)
		}
		alpha = float64(a) / 255
		s = s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("contrast: %w", err)
	}
	return Color{Color: c, A: alpha}, nil
}

// args extracts the components of a functional notation, accepting both the
// legacy comma syntax and the space syntax with an optional "/ alpha".
func args(s string) ([]string, string, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return nil, "", fmt.Errorf("contrast: malformed colour function %q", s)
	}
	body := s[open+1 : len(s)-1]
	var alpha string
	if i := strings.IndexByte(body, '/'); i >= 0 {
		alpha = strings.TrimSpace(body[i+1:])
		body = body[:i]
	}
	var parts []string
	if strings.Contains(body, ",") {
		for _, p := range strings.Split(body, ",") {
			parts = append(parts, strings.TrimSpace(p))
		}
	} else {
		parts = strings.Fields(body)
	}
	if len(parts) == 4 && alpha == "" {
		alpha, parts = parts[3], parts[:3]
	}
	if len(parts) != 3 {
		return nil, "", fmt.Errorf("contrast: expected 3 components in %q", s)
	}
	for _, p := range parts {
		if p == "" || strings.HasPrefix(p, "var(") || strings.HasPrefix(p, "calc(") {
			return nil, "", fmt.Errorf("%w: %q", ErrUnsupported, s)
		}
	}
	return parts, alpha, nil
}

// number parses a CSS number or percentage; percentages scale to full.
func number(s string, full float64) (float64, error) {
	if strings.HasSuffix(s, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, err
		}
		return v / 100 * full, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseAlpha(s string) (float64, error) {
	if s == "" {
		return 1, nil
	}
	a, err := number(s, 1)
	if err != nil {
		return 0, fmt.Errorf("contrast: bad alpha %q: %w", s, err)
	}
	return clamp(a, 0, 1), nil
}

func parseRGB(s string) (Color, error) {
	parts, alpha, err := args(s)
	if err != nil {
		return Color{}, err
	}
	var ch [3]float64
	for i, p := range parts {
		v, err := number(p, 255)
		if err != nil {
			return Color{}, fmt.Errorf("contrast: bad rgb component %q: %w", p, err)
		}
		ch[i] = clamp(v, 0, 255) / 255
	}
	a, err := parseAlpha(alpha)
	if err != nil {
		return Color{}, err
	}
	return Color{Color: colorful.Color{R: ch[0], G: ch[1], B: ch[2]}, A: a}, nil
}

func parseHSL(s string) (Color, error) {
	parts, alpha, err := args(s)
	if err != nil {
		return Color{}, err
	}
	h, err := hue(parts[0])
	if err != nil {
		return Color{}, err
	}
	sat, err := percent(parts[1])
	if err != nil {
		return Color{}, fmt.Errorf("contrast: bad saturation %q: %w", parts[1], err)
	}
	light, err := percent(parts[2])
	if err != nil {
		return Color{}, fmt.Errorf("contrast: bad lightness %q: %w", parts[2], err)
	}
	a, err := parseAlpha(alpha)
	if err != nil {
		return Color{}, err
	}
	c := colorful.Hsl(h, clamp(sat, 0, 1), clamp(light, 0, 1))
	return Color{Color: c.Clamped(), A: a}, nil
}

// percent parses an hsl() saturation or lightness. The space syntax allows
// the % sign to be omitted; the value is still a percentage.
func percent(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, err
	}
	return v / 100, nil
}

func hue(s string) (float64, error) {
	scale := 1.0
	for _, u := range []struct {
		suffix string
		scale  float64
	}{{"deg", 1}, {"grad", 0.9}, {"rad", 180 / math.Pi}, {"turn", 360}} {
		if strings.HasSuffix(s, u.suffix) {
			s, scale = strings.TrimSuffix(s, u.suffix), u.scale
			break
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("contrast: bad hue %q: %w", s, err)
	}
	v = math.Mod(v*scale, 360)
	if v < 0 {
		v += 360
	}
	return v, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Composite paints fg over bg using source-over alpha compositing in sRGB,
// which is what browsers do for translucent text and backgrounds.
func Composite(fg, bg Color) Color {
	if fg.A >= 1 {
		return fg
	}
	if bg.A >= 1 {
		return Color{Color: bg.Color.BlendRgb(fg.Color, fg.A), A: 1}
	}
	a := fg.A + bg.A*(1-fg.A)
	if a == 0 {
		return Color{}
	}
	mix := func(f, b float64) float64 {
		return (f*fg.A + b*bg.A*(1-fg.A)) / a
	}
	return Color{
		Color: colorful.Color{R: mix(fg.R, bg.R), G: mix(fg.G, bg.G), B: mix(fg.B, bg.B)},
		A:     a,
	}
}

// RelativeLuminance returns the WCAG relative luminance of c, ignoring alpha.
func RelativeLuminance(c Color) float64 {
	r, g, b := c.Clamped().LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// Ratio returns the contrast ratio between fg and bg, in [1, 21]. A
// translucent bg is first composited over white, then fg over the result.
func Ratio(fg, bg Color) float64 {
	if !bg.Opaque() {
		bg = Composite(bg, White)
	}
	fg = Composite(fg, bg)
	l1, l2 := RelativeLuminance(fg), RelativeLuminance(bg)
	if l1 < l2 {
		l1, l2 = l2, l1
	}
	return (l1 + 0.05) / (l2 + 0.05)
}

// Threshold returns the AA minimum ratio for normal or large text.
func Threshold(large bool) float64 {
	if large {
		return MinRatioLarge
	}
	return MinRatioNormal
}
