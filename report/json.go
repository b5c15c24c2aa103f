package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hazyhaar/a11y/checker"
	"github.com/hazyhaar/a11y/rules"
)

// JSONFormatter writes the HTTP response shape. A single document is written
// as {"violations": [...]}; several are written as a list with their source.
type JSONFormatter struct{}

type jsonDocument struct {
	Source     string                `json:"source"`
	Violations []rules.Violation     `json:"violations"`
	Failures   []checker.RuleFailure `json:"failures,omitempty"`
}

func (JSONFormatter) Format(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	var v any
	switch len(r.Documents) {
	case 0:
		v = &checker.Result{Violations: []rules.Violation{}}
	case 1:
		v = r.Documents[0].Result
	default:
		docs := make([]jsonDocument, len(r.Documents))
		for i, d := range r.Documents {
			docs[i] = jsonDocument{Source: d.Source, Violations: d.Result.Violations, Failures: d.Result.Failures}
		}
		v = map[string]any{"documents": docs}
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("report: json: %w", err)
	}
	return nil
}
