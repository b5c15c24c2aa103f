package report

import (
	"fmt"
	"html"
	"html/template"
	"io"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// HTMLFormatter writes a standalone HTML page.
type HTMLFormatter struct{}

func (HTMLFormatter) Format(w io.Writer, r *Report) error {
	return renderHTML(w, r, true)
}

var (
	// Element references such as <html> in rule messages are shown as code.
	tagRef = regexp.MustCompile(`&lt;[a-z][a-z0-9]*&gt;`)

	policy = bluemonday.UGCPolicy()

	pageTmpl = template.Must(template.New("report").Parse(`{{if .Standalone}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Accessibility report</title>
<style>
body{font-family:system-ui,sans-serif;margin:2rem;color:#1a1a1a}
table{border-collapse:collapse;width:100%;margin-bottom:2rem}
th,td{border:1px solid #ccc;padding:.4rem .6rem;text-align:left;vertical-align:top}
th{background:#f0f0f0}
pre{margin:0;white-space:pre-wrap}
</style>
</head>
<body>
{{end}}<h1>Accessibility report</h1>
<p>{{.Total}} violation(s) in {{len .Docs}} document(s).</p>
{{- if .Summary}}
<h2>Summary</h2>
<table>
<thead><tr><th>Rule</th><th>Violations</th></tr></thead>
<tbody>
{{- range .Summary}}
<tr><td>{{.RuleID}}</td><td>{{.Count}}</td></tr>
{{- end}}
</tbody>
</table>
{{- end}}
{{- range .Docs}}
<h2>{{if .Source}}{{.Source}}{{else}}Submitted document{{end}}</h2>
{{- if .Violations}}
<table>
<thead><tr><th>Rule</th><th>Selector</th><th>Message</th><th>Snippet</th></tr></thead>
<tbody>
{{- range .Violations}}
<tr><td>{{.RuleID}}</td><td><code>{{.Selector}}</code></td><td>{{.Message}}</td><td><pre><code>{{.Snippet}}</code></pre></td></tr>
{{- end}}
</tbody>
</table>
{{- else}}
<p>No violations found.</p>
{{- end}}
{{- range .Failures}}
<p>Rule {{.RuleID}} could not be evaluated: {{.Error}}</p>
{{- end}}
{{- end}}
{{- if .Rules}}
<h2>Rules</h2>
<ul>
{{- range .Rules}}
<li><strong>{{.ID}}</strong>{{if not .Enabled}} (disabled){{end}}: {{.Description}}</li>
{{- end}}
</ul>
{{- end}}
{{if .Standalone}}</body>
</html>
{{end}}`))
)

type htmlPage struct {
	Standalone bool
	Total      int
	Summary    []ruleCount
	Docs       []htmlDoc
	Rules      []htmlRule
}

type htmlDoc struct {
	Source     string
	Violations []htmlViolation
	Failures   []htmlFailure
}

type htmlViolation struct {
	RuleID   string
	Selector string
	Message  template.HTML
	Snippet  string
}

type htmlFailure struct {
	RuleID string
	Error  string
}

type htmlRule struct {
	ID          string
	Enabled     bool
	Description template.HTML
}

// richText escapes s, marks element references as code, and passes the
// result through the sanitizer before it is trusted by the template.
func richText(s string) template.HTML {
	escaped := tagRef.ReplaceAllStringFunc(html.EscapeString(s), func(m string) string {
		return "<code>" + m + "</code>"
	})
	return template.HTML(policy.Sanitize(escaped))
}

func renderHTML(w io.Writer, r *Report, standalone bool) error {
	page := htmlPage{Standalone: standalone, Total: r.Violations(), Summary: r.byRule()}
	for _, d := range r.Documents {
		hd := htmlDoc{Source: d.Source}
		if hd.Source == "-" {
			hd.Source = "stdin"
		}
		for _, v := range d.Result.Violations {
			hd.Violations = append(hd.Violations, htmlViolation{
				RuleID:   v.RuleID,
				Selector: v.Selector,
				Message:  richText(v.Message),
				Snippet:  v.CodeSnippet,
			})
		}
		for _, f := range d.Result.Failures {
			hd.Failures = append(hd.Failures, htmlFailure{RuleID: f.RuleID, Error: f.Error})
		}
		page.Docs = append(page.Docs, hd)
	}
	for _, info := range r.Rules {
		page.Rules = append(page.Rules, htmlRule{ID: info.ID, Enabled: info.Enabled, Description: richText(info.Description)})
	}
	if err := pageTmpl.Execute(w, page); err != nil {
		return fmt.Errorf("report: html: %w", err)
	}
	return nil
}
