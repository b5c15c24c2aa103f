package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// TableFormatter writes one aligned line per violation followed by a summary.
type TableFormatter struct{}

func (TableFormatter) Format(w io.Writer, r *Report) error {
	if r.Violations() == 0 {
		_, err := fmt.Fprintf(w, "No violations found in %d document(s).\n", len(r.Documents))
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tRULE\tSELECTOR\tMESSAGE")
	for _, d := range r.Documents {
		src := d.Source
		if src == "" {
			src = "-"
		}
		for _, v := range d.Result.Violations {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", src, v.RuleID, v.Selector, oneLine(v.Message))
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("report: table: %w", err)
	}

	fmt.Fprintln(w)
	for _, rc := range r.byRule() {
		fmt.Fprintf(w, "  %-24s %d\n", rc.RuleID, rc.Count)
	}
	for _, d := range r.Documents {
		for _, f := range d.Result.Failures {
			fmt.Fprintf(w, "  rule %s failed on %s: %s\n", f.RuleID, d.Source, f.Error)
		}
	}
	_, err := fmt.Fprintf(w, "%d violation(s) in %d document(s).\n", r.Violations(), len(r.Documents))
	return err
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
