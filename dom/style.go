package dom

import (
	"strings"

	"github.com/aymerick/douceur/parser"
)

// Declaration is one inline CSS declaration.
type Declaration struct {
	Property string // lower-cased
	Value    string
	// Important is set for "!important" declarations.
	Important bool
}

// ParseStyle parses an inline style attribute into declarations in source
// order. Parsing stops at the first malformed declaration; the ones before it
// are kept.
func ParseStyle(s string) []Declaration {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	decls, _ := parser.ParseDeclarations(s)
	out := make([]Declaration, 0, len(decls))
	for _, d := range decls {
		if d == nil {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(d.Property))
		val := strings.TrimSpace(d.Value)
		if prop == "" || val == "" {
			continue
		}
		out = append(out, Declaration{Property: prop, Value: val, Important: d.Important})
	}
	return out
}

// StyleValue returns the effective value of an inline property. Later
// declarations win unless an earlier one is !important.
func (n *Node) StyleValue(prop string) (string, bool) {
	_, val, ok := n.CascadedStyle(prop)
	return val, ok
}

// CascadedStyle resolves properties that set the same value, such as a
// longhand and its shorthand, and reports which of them wins. Later
// declarations win unless an earlier one is !important.
func (n *Node) CascadedStyle(props ...string) (prop, val string, ok bool) {
	important := false
	for _, d := range n.style {
		if !matchProp(d.Property, props) {
			continue
		}
		if important && !d.Important {
			continue
		}
		prop, val, ok, important = d.Property, d.Value, true, d.Important
	}
	return prop, val, ok
}

func matchProp(p string, props []string) bool {
	for _, q := range props {
		if strings.EqualFold(p, q) {
			return true
		}
	}
	return false
}
