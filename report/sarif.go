package report

import (
	"fmt"
	"io"

	"github.com/owenrumney/go-sarif/v3/pkg/report/v210/sarif"
)

const informationURI = "https://www.w3.org/WAI/WCAG21/quickref/"

// SARIFFormatter writes SARIF 2.1.0. Every registered rule becomes a
// reportingDescriptor and every violation a result located in its source file,
// with the CSS selector and snippet as result properties.
type SARIFFormatter struct{}

func (SARIFFormatter) Format(w io.Writer, r *Report) error {
	rep := sarif.NewReport()

	run := sarif.NewRunWithInformationURI(ToolName, informationURI)
	version := Version
	run.Tool.Driver.Version = &version

	known := map[string]bool{}
	for _, info := range r.Rules {
		addRule(run, info.ID, info.Description, info.Enabled)
		known[info.ID] = true
	}

	for _, d := range r.Documents {
		for _, v := range d.Result.Violations {
			if !known[v.RuleID] {
				addRule(run, v.RuleID, v.RuleID, true)
				known[v.RuleID] = true
			}
			res := sarif.NewRuleResult(v.RuleID)
			res.Level = "error"
			res.Kind = "fail"
			res.Message = sarif.NewTextMessage(v.Message)
			if d.Source != "" && d.Source != "-" {
				loc := sarif.NewLocation().WithPhysicalLocation(
					sarif.NewPhysicalLocation().WithArtifactLocation(sarif.NewArtifactLocation().WithURI(d.Source)))
				res.Locations = []*sarif.Location{loc}
			}
			props := sarif.NewPropertyBag()
			props.Add("selector", v.Selector)
			props.Add("element", v.Element)
			props.Add("codeSnippet", v.CodeSnippet)
			res.WithProperties(props)
			run.AddResult(res)
		}
	}

	inv := sarif.NewInvocation()
	ok := true
	for _, d := range r.Documents {
		if len(d.Result.Failures) > 0 {
			ok = false
		}
	}
	inv.ExecutionSuccessful = &ok
	run.AddInvocation(inv)

	rep.AddRun(run)
	if err := rep.Write(w); err != nil {
		return fmt.Errorf("report: sarif: %w", err)
	}
	_, err := w.Write([]byte("\n"))
	return err
}

func addRule(run *sarif.Run, id, desc string, enabled bool) {
	rule := sarif.NewReportingDescriptor().WithID(id)
	rule.WithName(id)
	rule.WithShortDescription(&sarif.MultiformatMessageString{Text: &desc})
	level := "error"
	if !enabled {
		level = "none"
	}
	rule.WithDefaultConfiguration(&sarif.ReportingConfiguration{Level: level})
	props := sarif.NewPropertyBag()
	props.WithTags([]string{"accessibility"})
	rule.WithProperties(props)
	run.Tool.Driver.AddRule(rule)
}
