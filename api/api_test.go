package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/a11y/audit"
	"github.com/hazyhaar/a11y/checker"
	"github.com/hazyhaar/a11y/dbopen"
	"github.com/hazyhaar/a11y/dom"
	"github.com/hazyhaar/a11y/metrics"
	"github.com/hazyhaar/a11y/rules"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestChecker(t *testing.T, cfg checker.Config, opts ...checker.Option) *checker.Checker {
	t.Helper()
	reg, err := rules.Default(rules.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	return checker.New(cfg, reg, append([]checker.Option{checker.WithLogger(quietLogger())}, opts...)...)
}

func newTestServer(t *testing.T, c *checker.Checker, cfg Config, opts ...Option) http.Handler {
	t.Helper()
	s := New(c, cfg, append([]Option{WithLogger(quietLogger())}, opts...)...)
	t.Cleanup(s.Close)
	return s.Handler()
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/check-accessibility", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

func TestBannerAndHealth(t *testing.T) {
	h := newTestServer(t, newTestChecker(t, checker.Config{}), Config{})

	w := get(h, "/")
	if w.Code != 200 || !strings.Contains(w.Body.String(), `"ADA Compliance Checker API"`) {
		t.Fatalf("GET / = %d %s", w.Code, w.Body)
	}
	w = get(h, "/health")
	if w.Code != 200 || strings.TrimSpace(w.Body.String()) != `{"status":"healthy"}` {
		t.Fatalf("GET /health = %d %s", w.Code, w.Body)
	}
	if w.Header().Get("X-Trace-ID") == "" {
		t.Error("missing X-Trace-ID")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestCheck_Violations(t *testing.T) {
	h := newTestServer(t, newTestChecker(t, checker.Config{}), Config{})

	body, _ := json.Marshal(map[string]string{
		"html": `<html lang="en"><head><title>T</title></head><body><h1>A</h1><img src="x.png"></body></html>`,
	})
	w := post(h, string(body))
	if w.Code != 200 {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	var res struct {
		Violations []rules.Violation `json:"violations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Violations) != 1 || res.Violations[0].RuleID != rules.ImgAltMissing {
		t.Fatalf("violations = %+v", res.Violations)
	}
	if res.Violations[0].Selector == "" || res.Violations[0].Element != "img" {
		t.Errorf("violation = %+v", res.Violations[0])
	}
	if w.Header().Get(RuleFailuresHeader) != "" {
		t.Error("unexpected rule failure header")
	}
}

func TestCheck_EmptyHTML(t *testing.T) {
	h := newTestServer(t, newTestChecker(t, checker.Config{}), Config{})
	w := post(h, `{"html": ""}`)
	if w.Code != 200 || strings.TrimSpace(w.Body.String()) != `{"violations":[]}` {
		t.Fatalf("got %d %s", w.Code, w.Body)
	}
}

func TestCheck_BadRequests(t *testing.T) {
	h := newTestServer(t, newTestChecker(t, checker.Config{}), Config{})
	for name, body := range map[string]string{
		"invalid json": `{"html": `,
		"missing html": `{"markup": "<p>x</p>"}`,
		"wrong type":   `{"html": 12}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := post(h, body)
			if w.Code != 400 {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body)
			}
			if !strings.Contains(w.Body.String(), `"error"`) {
				t.Errorf("body = %s", w.Body)
			}
		})
	}
}

func TestCheck_TooLarge(t *testing.T) {
	h := newTestServer(t, newTestChecker(t, checker.Config{MaxInputBytes: 1024}), Config{})

	// Within the body cap but above the input cap.
	body, _ := json.Marshal(map[string]string{"html": strings.Repeat("a", 2000)})
	if w := post(h, string(body)); w.Code != 413 {
		t.Fatalf("input cap: status = %d", w.Code)
	}

	// Above the body cap.
	body, _ = json.Marshal(map[string]string{"html": strings.Repeat("a", 200<<10)})
	if w := post(h, string(body)); w.Code != 413 {
		t.Fatalf("body cap: status = %d", w.Code)
	}
}

func TestCheck_TooDeep(t *testing.T) {
	h := newTestServer(t, newTestChecker(t, checker.Config{Limits: dom.Limits{MaxDepth: 10}}), Config{})
	html := strings.Repeat("<div>", 50) + strings.Repeat("</div>", 50)
	body, _ := json.Marshal(map[string]string{"html": html})
	if w := post(h, string(body)); w.Code != 422 {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
}

func TestCheck_RuleFailureHeader(t *testing.T) {
	reg := rules.NewRegistry()
	if err := reg.Register(rules.NewDocLang()); err != nil {
		t.Fatal(err)
	}
	broken := rules.Func("BROKEN", "always panics", func(context.Context, *dom.Document) []rules.Violation {
		panic("boom")
	})
	if err := reg.Register(broken); err != nil {
		t.Fatal(err)
	}
	c := checker.New(checker.Config{}, reg, checker.WithLogger(quietLogger()))
	h := newTestServer(t, c, Config{})

	w := post(h, `{"html": "<html><body></body></html>"}`)
	if w.Code != 200 {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if got := w.Header().Get(RuleFailuresHeader); got != "BROKEN" {
		t.Errorf("%s = %q", RuleFailuresHeader, got)
	}
	if !strings.Contains(w.Body.String(), rules.DocLangMissing) {
		t.Errorf("surviving rule missing from body: %s", w.Body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{checker.ErrInputTooLarge, 413},
		{errBadRequest, 400},
		{dom.ErrTooDeep, 422},
		{dom.ErrTooManyNodes, 422},
		{checker.ErrTimeout, 422},
		{context.Canceled, 408},
		{io.ErrUnexpectedEOF, 500},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRules(t *testing.T) {
	h := newTestServer(t, newTestChecker(t, checker.Config{}), Config{})
	w := get(h, "/rules")
	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	var resp RulesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Rules) < 8 || resp.Rules[0].ID != rules.DocLangMissing {
		t.Fatalf("rules = %+v", resp.Rules)
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, newTestChecker(t, checker.Config{}), Config{RateLimit: 2, RateWindow: time.Minute})
	for i := 0; i < 2; i++ {
		if w := post(h, `{"html": "<p>x</p>"}`); w.Code != 200 {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}
	w := post(h, `{"html": "<p>x</p>"}`)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Fatalf("status = %d, Retry-After = %q", w.Code, w.Header().Get("Retry-After"))
	}
	if w := get(h, "/health"); w.Code != 200 {
		t.Fatalf("/health limited: %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, newTestChecker(t, checker.Config{}), Config{CORSOrigins: []string{"https://app.example"}})

	req := httptest.NewRequest("OPTIONS", "/check-accessibility", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("Allow-Origin = %q (status %d)", got, w.Code)
	}

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin allowed: %q", got)
	}
}

func TestMetricsAndAudit(t *testing.T) {
	m := metrics.NewCollector()
	st, err := audit.New(dbopen.OpenMemory(t), audit.WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	c := newTestChecker(t, checker.Config{}, checker.WithObserver(m), checker.WithObserver(st))
	h := newTestServer(t, c, Config{}, WithMetrics(m), WithAudit(st))

	if w := post(h, `{"html": "<img src=x>"}`); w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	st.Close()

	w := get(h, "/metrics")
	if w.Code != 200 || !strings.Contains(w.Body.String(), `a11y_checks_total{outcome="ok"} 1`) {
		t.Fatalf("metrics = %d %s", w.Code, w.Body)
	}

	w = get(h, "/api/checks?limit=5")
	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	var list struct {
		Checks []audit.Record `json:"checks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Checks) != 1 || list.Checks[0].Transport != "http" || list.Checks[0].TraceID == "" {
		t.Fatalf("checks = %+v", list.Checks)
	}

	if w := get(h, "/api/checks/"+list.Checks[0].ID); w.Code != 200 {
		t.Fatalf("get check = %d", w.Code)
	}
	if w := get(h, "/api/checks/missing"); w.Code != 404 {
		t.Fatalf("missing check = %d", w.Code)
	}

	w = get(h, "/api/stats")
	if w.Code != 200 || !strings.Contains(w.Body.String(), `"ok":1`) {
		t.Fatalf("stats = %d %s", w.Code, w.Body)
	}
}

func TestOptionalRoutesDisabled(t *testing.T) {
	h := newTestServer(t, newTestChecker(t, checker.Config{}), Config{})
	for _, p := range []string{"/metrics", "/api/checks", "/api/stats"} {
		if w := get(h, p); w.Code != 404 {
			t.Errorf("GET %s = %d, want 404", p, w.Code)
		}
	}
}
