package dom

import (
	"errors"
	"testing"
)

func TestEscapeIdent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"main", "main"},
		{"a b", `a\ b`},
		{"1st", `\31 st`},
		{"-2x", `-\32 x`},
		{"-", `\-`},
		{"x.y", `x\.y`},
		{"a:b", `a\:b`},
		{"café", "café"},
		{"_under-score", "_under-score"},
	}
	for _, tt := range tests {
		if got := escapeIdent(tt.in); got != tt.want {
			t.Errorf("escapeIdent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQuery_RoundTrip(t *testing.T) {
	// WHAT: every generated selector resolves back to exactly its node.
	// WHY: external highlighters re-apply selectors to the same document.
	src := `<html lang="en"><head><title>t</title></head><body>
		<div id="a b"><span>1</span><span>2</span></div>
		<div id="1st" class="ignored"></div>
		<div class="x y"><p>p1</p><p class="x">p2</p><p>p3</p></div>
		<div class="x y"></div>
		<div id="dup"></div><div id="dup"></div>
		<div class="q:w [e] >gt"></div>
		<table><tr><td>c1</td><td>c2</td></tr></table>
		<svg><clipPath id="c"></clipPath></svg>
	</body></html>`
	doc := mustParse(t, src)

	for _, n := range doc.Nodes() {
		got, err := doc.Query(n.Selector())
		if err != nil {
			t.Errorf("Query(%q): %v", n.Selector(), err)
			continue
		}
		if got != n {
			t.Errorf("Query(%q) resolved to node %d, want %d", n.Selector(), got.Index, n.Index)
		}
	}
}

func TestQuery_Errors(t *testing.T) {
	doc := mustParse(t, `<body><p>a</p><p>b</p></body>`)

	if _, err := doc.Query("html > body > div"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch, got %v", err)
	}
	if _, err := doc.Query("html > body > p"); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("expected ErrAmbiguous, got %v", err)
	}
	if _, err := doc.Query("html > > p"); err == nil {
		t.Error("expected error for empty step")
	}
	if _, err := doc.Query("html > body > p:hover"); err == nil {
		t.Error("expected error for unsupported pseudo-class")
	}

	empty := mustParse(t, "")
	if _, err := empty.Query("html"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch on empty document, got %v", err)
	}
}
