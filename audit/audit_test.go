package audit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/a11y/checker"
	"github.com/hazyhaar/a11y/dbopen"
	"github.com/hazyhaar/a11y/idgen"
	"github.com/hazyhaar/a11y/kit"
	"github.com/hazyhaar/a11y/rules"
)

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	st, err := New(db, append([]Option{quiet()}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestObserveCheck_RecordsAndFlushesOnClose(t *testing.T) {
	st := newTestStore(t, WithIDGenerator(idgen.Sequence("chk_")))

	ctx := kit.WithTransport(kit.WithTraceID(context.Background(), "deadbeef"), "mcp")
	st.ObserveCheck(ctx, checker.Report{
		Outcome:    checker.OutcomeRuleError,
		InputBytes: 42,
		InputHash:  strings.Repeat("a", 64),
		Duration:   1500 * time.Microsecond,
		Result: &checker.Result{
			Violations: []rules.Violation{
				{RuleID: rules.ImgAltMissing}, {RuleID: rules.ImgAltMissing}, {RuleID: rules.DocLangMissing},
			},
			Failures: []checker.RuleFailure{{RuleID: "BROKEN", Error: "boom"}},
		},
	})
	st.ObserveCheck(context.Background(), checker.Report{
		Outcome:    checker.OutcomeTooLarge,
		InputBytes: 1 << 21,
		InputHash:  strings.Repeat("b", 64),
		Err:        errors.New("checker: input exceeds maximum size"),
	})
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	recs, err := st.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}

	got, err := st.Get(context.Background(), "chk_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.TraceID != "deadbeef" || got.Transport != "mcp" || got.Outcome != "rule_error" {
		t.Errorf("record = %+v", got)
	}
	if got.Violations != 3 || got.RuleCounts[rules.ImgAltMissing] != 2 || got.RuleCounts[rules.DocLangMissing] != 1 {
		t.Errorf("counts = %d %v", got.Violations, got.RuleCounts)
	}
	if len(got.FailedRules) != 1 || got.FailedRules[0] != "BROKEN" {
		t.Errorf("failed rules = %v", got.FailedRules)
	}
	if got.Duration != 1500*time.Microsecond || got.DurationMs != 1.5 {
		t.Errorf("duration = %v / %v", got.Duration, got.DurationMs)
	}

	tooLarge, err := st.Get(context.Background(), "chk_2")
	if err != nil {
		t.Fatal(err)
	}
	if tooLarge.Error == "" || tooLarge.Violations != 0 || len(tooLarge.RuleCounts) != 0 {
		t.Errorf("too large record = %+v", tooLarge)
	}

	stats, err := st.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats["rule_error"] != 1 || stats["too_large"] != 1 {
		t.Errorf("stats = %v", stats)
	}
}

func TestGet_NotFound(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	if _, err := st.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNoHTMLStored(t *testing.T) {
	// WHAT: a real check through the checker leaves no trace of the markup.
	// WHY: submitted pages may contain private content.
	db := dbopen.OpenMemory(t)
	st, err := New(db, quiet())
	if err != nil {
		t.Fatal(err)
	}
	reg, err := rules.Default(rules.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	c := checker.New(checker.Config{}, reg, checker.WithObserver(st))
	secret := `<html><body><p>secret-token-1234</p><img src="x"></body></html>`
	if _, err := c.Check(context.Background(), secret); err != nil {
		t.Fatal(err)
	}
	st.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM checks WHERE
		rule_counts LIKE '%secret%' OR failed_rules LIKE '%secret%' OR error LIKE '%secret%'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatal("markup leaked into the audit table")
	}
	recs, _ := st.Recent(context.Background(), 1)
	if len(recs) != 1 || len(recs[0].InputSHA256) != 64 || recs[0].Violations != 2 {
		t.Fatalf("record = %+v", recs)
	}
}

func TestSmallBuffer_NoRecordLost(t *testing.T) {
	// WHAT: with an unbuffered queue some writes take the synchronous path.
	// WHY: a slow database must not silently drop audit records.
	st := newTestStore(t, WithBuffer(0), WithFlushInterval(time.Hour))
	for i := 0; i < 20; i++ {
		st.ObserveCheck(context.Background(), checker.Report{Outcome: checker.OutcomeOK, InputHash: "h"})
	}
	st.Close()

	recs, err := st.Recent(context.Background(), 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 20 {
		t.Fatalf("records = %d, want 20", len(recs))
	}
}

func TestRecent_OrderAndLimit(t *testing.T) {
	st := newTestStore(t, WithIDGenerator(idgen.Sequence("c")))
	for i := 0; i < 5; i++ {
		st.ObserveCheck(context.Background(), checker.Report{Outcome: checker.OutcomeOK, InputHash: "h"})
		time.Sleep(2 * time.Millisecond)
	}
	st.Close()

	recs, err := st.Recent(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 || recs[0].ID != "c5" || recs[2].ID != "c3" {
		t.Fatalf("recent = %+v", recs)
	}
}

func TestCleanup(t *testing.T) {
	st := newTestStore(t)
	st.ObserveCheck(context.Background(), checker.Report{Outcome: checker.OutcomeOK, InputHash: "h"})
	st.Close()

	n, err := st.Cleanup(context.Background(), time.Hour)
	if err != nil || n != 0 {
		t.Fatalf("Cleanup(1h) = %d, %v", n, err)
	}
	n, err = st.Cleanup(context.Background(), -time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("Cleanup(-1m) = %d, %v", n, err)
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "audit.db")
	st, err := Open(path, quiet())
	if err != nil {
		t.Fatal(err)
	}
	st.ObserveCheck(context.Background(), checker.Report{Outcome: checker.OutcomeOK, InputHash: "h"})
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	st, err = Open(path, quiet())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	recs, err := st.Recent(context.Background(), 10)
	if err != nil || len(recs) != 1 {
		t.Fatalf("reopened store: %d records, %v", len(recs), err)
	}
}

func TestOpen_SQLTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	st, err := Open(path, quiet(), WithSQLTrace())
	if err != nil {
		t.Fatal(err)
	}
	st.ObserveCheck(context.Background(), checker.Report{Outcome: checker.OutcomeOK, InputHash: "h"})
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	if st.driver != dbopen.TraceDriver {
		t.Fatalf("driver = %q", st.driver)
	}
}

func TestClose_ConcurrentObserveLosesNothingSilently(t *testing.T) {
	// Every record is either stored or logged as dropped.
	var logs bytes.Buffer
	st := newTestStore(t, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))), WithFlushInterval(time.Hour))

	const n = 200
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			st.ObserveCheck(context.Background(), checker.Report{Outcome: checker.OutcomeOK, InputHash: "h"})
		}()
	}
	close(start)
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	wg.Wait()

	recs, err := st.Recent(context.Background(), 1000)
	if err != nil {
		t.Fatal(err)
	}
	dropped := strings.Count(logs.String(), "record dropped")
	if len(recs)+dropped != n {
		t.Fatalf("stored %d + dropped %d, want %d", len(recs), dropped, n)
	}
}
