package dom

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Parse(context.Background(), src, DefaultLimits())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestParse_Empty(t *testing.T) {
	for _, src := range []string{"", "   ", "\n\t"} {
		doc := mustParse(t, src)
		if doc.Root != nil {
			t.Errorf("Parse(%q): expected nil root", src)
		}
		if doc.Len() != 0 {
			t.Errorf("Parse(%q): expected 0 nodes, got %d", src, doc.Len())
		}
	}
}

func TestParse_Selectors(t *testing.T) {
	doc := mustParse(t, `<html lang="en"><body><p>a</p><p id="two">b</p><ul class="nav main"><li>x</li></ul></body></html>`)

	want := []string{
		"html",
		"html > head",
		"html > body",
		"html > body > p:nth-of-type(1)",
		"html > body > p#two:nth-of-type(2)",
		"html > body > ul.nav.main",
		"html > body > ul.nav.main > li",
	}
	nodes := doc.Nodes()
	if len(nodes) != len(want) {
		t.Fatalf("expected %d nodes, got %d", len(want), len(nodes))
	}
	for i, n := range nodes {
		if n.Selector() != want[i] {
			t.Errorf("node %d: selector = %q, want %q", i, n.Selector(), want[i])
		}
		if n.Index != i {
			t.Errorf("node %d: index = %d", i, n.Index)
		}
	}
	if got := doc.MaxDepth(); got != 3 {
		t.Errorf("MaxDepth = %d, want 3", got)
	}
}

func TestParse_MalformedRecovers(t *testing.T) {
	// WHAT: unclosed and misnested tags are repaired, never rejected.
	doc := mustParse(t, `<div><p>one<p>two<b><i>x</b></i><img src=a`)
	if doc.Root == nil || !doc.Root.Is("html") {
		t.Fatal("expected synthesized html root")
	}
	if got := len(doc.Elements("p")); got != 2 {
		t.Errorf("expected 2 p elements, got %d", got)
	}
}

func TestParse_NonHTMLText(t *testing.T) {
	doc := mustParse(t, "just some words")
	if doc.Root == nil {
		t.Fatal("expected a minimal tree")
	}
	if got := doc.Elements("body"); len(got) != 1 || got[0].Text() != "just some words" {
		t.Errorf("unexpected body: %+v", got)
	}
}

func TestParse_TooDeep(t *testing.T) {
	src := strings.Repeat("<div>", 300)
	_, err := Parse(context.Background(), src, Limits{MaxDepth: 256})
	if !errors.Is(err, ErrTooDeep) {
		t.Fatalf("expected ErrTooDeep, got %v", err)
	}
}

func TestParse_TooManyNodes(t *testing.T) {
	src := strings.Repeat("<span></span>", 20)
	_, err := Parse(context.Background(), src, Limits{MaxNodes: 10})
	if !errors.Is(err, ErrTooManyNodes) {
		t.Fatalf("expected ErrTooManyNodes, got %v", err)
	}
}

func TestParse_ImplicitCloseDoesNotCountAsDepth(t *testing.T) {
	// 300 unclosed <p> are siblings once the tree builder closes them.
	src := "<body>" + strings.Repeat("<p>x", 300)
	doc, err := Parse(context.Background(), src, Limits{MaxDepth: 16})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := len(doc.Elements("p")); got != 300 {
		t.Errorf("expected 300 p elements, got %d", got)
	}
}

func TestParse_UnclosedReopenedElementsStayShallow(t *testing.T) {
	// An <a> or <hN> start tag closes the open element of the same kind.
	for _, src := range []string{
		"<body>" + strings.Repeat(`<a href="/x">item `, 300),
		"<body>" + strings.Repeat("<h2>title ", 300),
	} {
		doc, err := Parse(context.Background(), src, DefaultLimits())
		if err != nil {
			t.Fatalf("parse %.30q: %v", src, err)
		}
		if got := doc.MaxDepth(); got > 3 {
			t.Errorf("%.30q: depth = %d, want <= 3", src, got)
		}
		if got := len(doc.Elements("a")) + len(doc.Elements("h2")); got != 300 {
			t.Errorf("%.30q: %d elements, want 300", src, got)
		}
	}
}

func TestParse_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Parse(ctx, "<p>x</p>", DefaultLimits())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNode_Attr(t *testing.T) {
	doc := mustParse(t, `<img src="a.png" ALT="" id="first" id="second">`)
	img := doc.Elements("img")[0]

	if v, ok := img.Attr("alt"); !ok || v != "" {
		t.Errorf("alt = %q, %v; want empty, present", v, ok)
	}
	if _, ok := img.Attr("title"); ok {
		t.Error("title should be absent")
	}
	if got := img.AttrOr("id", ""); got != "first" {
		t.Errorf("duplicate attribute: got %q, want first occurrence", got)
	}
	if got := img.AttrOr("title", "none"); got != "none" {
		t.Errorf("AttrOr default = %q", got)
	}
}

func TestNode_SnippetAndOpenTag(t *testing.T) {
	doc := mustParse(t, `<html><body><a href="/x" class="btn">Go <b>now</b></a><img src="x"></body></html>`)

	a := doc.Elements("a")[0]
	if got := a.Snippet(); got != `<a href="/x" class="btn">Go <b>now</b></a>` {
		t.Errorf("a snippet = %q", got)
	}
	if got := a.OpenTag(); got != `<a href="/x" class="btn">` {
		t.Errorf("a open tag = %q", got)
	}
	img := doc.Elements("img")[0]
	if got := img.Snippet(); got != `<img src="x"/>` {
		t.Errorf("img snippet = %q", got)
	}
}

func TestNode_Text(t *testing.T) {
	doc := mustParse(t, "<a href=\"#\">\n  Click <span>here</span><script>var x</script>\n</a>")
	a := doc.Elements("a")[0]
	if got := a.Text(); got != "Click here" {
		t.Errorf("Text = %q", got)
	}
	tests := []struct{ src, want string }{
		{`<a href="/x">click<b>here</b></a>`, "clickhere"},
		{`<a href="/x">Read <em>more</em>!</a>`, "Read more!"},
		{`<a href="/x"><div>Annual</div><div>report</div></a>`, "Annual report"},
		{`<a href="/x">line<br>break</a>`, "line break"},
	}
	for _, tt := range tests {
		if got := mustParse(t, tt.src).Elements("a")[0].Text(); got != tt.want {
			t.Errorf("%s: Text = %q, want %q", tt.src, got, tt.want)
		}
	}
	if got := NormalizeText("  Click\n\tHERE  "); got != "click here" {
		t.Errorf("NormalizeText = %q", got)
	}
}

func TestDocument_Elements(t *testing.T) {
	doc := mustParse(t, `<h2>a</h2><h1>b</h1><p>c</p><h3>d</h3>`)
	var got []string
	for _, n := range doc.Elements("h1", "h2", "h3") {
		got = append(got, n.Tag)
	}
	if strings.Join(got, ",") != "h2,h1,h3" {
		t.Errorf("Elements order = %v", got)
	}
}
