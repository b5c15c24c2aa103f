// Package report renders check results for people and tools: JSON (the HTTP
// contract), a plain-text table, SARIF 2.1.0, a standalone HTML page and
// Markdown.
//
// Usage:
//
//	f, err := report.New("sarif")
//	rep := &report.Report{Rules: reg.Describe()}
//	rep.Add("index.html", res)
//	err = f.Format(os.Stdout, rep)
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hazyhaar/a11y/checker"
	"github.com/hazyhaar/a11y/rules"
)

// ToolName is the driver name written into machine-readable reports.
const ToolName = "a11y"

// Version is stamped into SARIF output; overridden at link time.
var Version = "dev"

// Document is the result of checking one source.
type Document struct {
	Source string // file path, "-" for stdin, or empty for an inline check
	Result *checker.Result
}

// Report groups the results of one or more checks with the rules that ran.
type Report struct {
	Rules     []rules.Info
	Documents []Document
}

// Add appends a checked document. A nil result is recorded as empty.
func (r *Report) Add(source string, res *checker.Result) {
	if res == nil {
		res = &checker.Result{Violations: []rules.Violation{}}
	}
	r.Documents = append(r.Documents, Document{Source: source, Result: res})
}

// Violations counts violations over every document.
func (r *Report) Violations() int {
	n := 0
	for _, d := range r.Documents {
		n += len(d.Result.Violations)
	}
	return n
}

// byRule counts violations per rule ID, sorted by ID.
func (r *Report) byRule() []ruleCount {
	counts := map[string]int{}
	for _, d := range r.Documents {
		for _, v := range d.Result.Violations {
			counts[v.RuleID]++
		}
	}
	out := make([]ruleCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, ruleCount{RuleID: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out
}

type ruleCount struct {
	RuleID string
	Count  int
}

// Formatter writes a report.
type Formatter interface {
	Format(w io.Writer, r *Report) error
}

// New returns the formatter for format.
func New(format string) (Formatter, error) {
	switch strings.ToLower(format) {
	case "json":
		return JSONFormatter{}, nil
	case "table", "text", "":
		return TableFormatter{}, nil
	case "sarif":
		return SARIFFormatter{}, nil
	case "html":
		return HTMLFormatter{}, nil
	case "markdown", "md":
		return NewMarkdownFormatter(), nil
	}
	return nil, fmt.Errorf("report: unknown format %q (supported: %s)", format, strings.Join(Formats(), ", "))
}

// Formats lists the supported format names.
func Formats() []string {
	return []string{"table", "json", "sarif", "html", "markdown"}
}
