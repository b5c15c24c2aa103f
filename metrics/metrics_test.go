package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hazyhaar/a11y/checker"
	"github.com/hazyhaar/a11y/rules"
)

func TestObserveCheck(t *testing.T) {
	c := NewCollector()

	c.ObserveCheck(context.Background(), checker.Report{
		Outcome:    checker.OutcomeRuleError,
		InputBytes: 120,
		Duration:   3 * time.Millisecond,
		Result: &checker.Result{
			Violations: []rules.Violation{
				{RuleID: rules.ImgAltMissing},
				{RuleID: rules.ImgAltMissing},
				{RuleID: rules.DocLangMissing},
			},
			Failures: []checker.RuleFailure{{RuleID: "BROKEN", Error: "boom"}},
		},
	})
	c.ObserveCheck(context.Background(), checker.Report{
		Outcome:    checker.OutcomeTooLarge,
		InputBytes: 1 << 21,
		Err:        errors.New("too large"),
	})

	if got := testutil.ToFloat64(c.checks.WithLabelValues("rule_error")); got != 1 {
		t.Errorf("checks{rule_error} = %v", got)
	}
	if got := testutil.ToFloat64(c.checks.WithLabelValues("too_large")); got != 1 {
		t.Errorf("checks{too_large} = %v", got)
	}
	if got := testutil.ToFloat64(c.violations.WithLabelValues(rules.ImgAltMissing)); got != 2 {
		t.Errorf("violations{IMG_ALT_MISSING} = %v", got)
	}
	if got := testutil.ToFloat64(c.ruleFailure.WithLabelValues("BROKEN")); got != 1 {
		t.Errorf("rule_failures{BROKEN} = %v", got)
	}
	if n := testutil.CollectAndCount(c.inputBytes); n != 1 {
		t.Errorf("input_bytes series = %d", n)
	}
}

func TestHandler(t *testing.T) {
	c := NewCollector(WithProcessCollectors())
	c.ObserveCheck(context.Background(), checker.Report{Outcome: checker.OutcomeOK, Result: &checker.Result{}})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{`a11y_checks_total{outcome="ok"} 1`, "a11y_check_duration_seconds_bucket", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestCollectorAsObserver(t *testing.T) {
	// WHAT: the collector plugs into a real checker.
	// WHY: it is wired as an observer in the service, not called directly.
	c := NewCollector()
	reg, err := rules.Default(rules.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	chk := checker.New(checker.Config{}, reg, checker.WithObserver(c))
	if _, err := chk.Check(context.Background(), `<html><body><img src="x"></body></html>`); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(c.checks.WithLabelValues("ok")); got != 1 {
		t.Errorf("checks{ok} = %v", got)
	}
	if got := testutil.ToFloat64(c.violations.WithLabelValues(rules.DocLangMissing)); got != 1 {
		t.Errorf("violations{DOC_LANG_MISSING} = %v", got)
	}
}
