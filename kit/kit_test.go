package kit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}

	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	chained := Chain(mw("a"), mw("b"), mw("c"))(base)
	resp, err := chained(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Fatalf("response: got %v", resp)
	}

	expected := []string{"a_before", "b_before", "c_before", "endpoint", "c_after", "b_after", "a_after"}
	if len(order) != len(expected) {
		t.Fatalf("order length: got %d, want %d", len(order), len(expected))
	}
	for i, v := range expected {
		if order[i] != v {
			t.Fatalf("order[%d]: got %q, want %q", i, order[i], v)
		}
	}
}

func TestChain_ErrorPropagation(t *testing.T) {
	errFail := errors.New("fail")
	base := func(_ context.Context, _ any) (any, error) {
		return nil, errFail
	}

	noop := func(next Endpoint) Endpoint { return next }
	chained := Chain(noop)(base)

	_, err := chained(context.Background(), nil)
	if !errors.Is(err, errFail) {
		t.Fatalf("error: got %v, want %v", err, errFail)
	}
}

func TestContext_Transport_Default(t *testing.T) {
	if v := GetTransport(context.Background()); v != "http" {
		t.Fatalf("default transport: got %q, want 'http'", v)
	}
}

func TestContext_Values(t *testing.T) {
	ctx := WithRemoteAddr(WithTraceID(WithTransport(context.Background(), "cli"), "0badc0de"), "10.0.0.1:5555")
	if v := GetTransport(ctx); v != "cli" {
		t.Fatalf("transport: got %q", v)
	}
	if v := GetTraceID(ctx); v != "0badc0de" {
		t.Fatalf("trace_id: got %q", v)
	}
	if v := GetRemoteAddr(ctx); v != "10.0.0.1:5555" {
		t.Fatalf("remote_addr: got %q", v)
	}
	if v := GetTraceID(context.Background()); v != "" {
		t.Fatalf("trace_id default: got %q", v)
	}
}

func TestTransport_KeepsExisting(t *testing.T) {
	var seen string
	ep := Transport("http")(func(ctx context.Context, _ any) (any, error) {
		seen = GetTransport(ctx)
		return nil, nil
	})

	ep(context.Background(), nil)
	if seen != "http" {
		t.Fatalf("untagged context: got %q", seen)
	}
	ep(WithTransport(context.Background(), "mcp"), nil)
	if seen != "mcp" {
		t.Fatalf("tagged context: got %q", seen)
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	errFail := errors.New("fail")

	ep := Logging(logger, "check")(func(context.Context, any) (any, error) { return nil, errFail })
	if _, err := ep(WithTraceID(context.Background(), "t1"), nil); !errors.Is(err, errFail) {
		t.Fatalf("error not propagated: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"endpoint":"check"`, `"trace_id":"t1"`, `"error":"fail"`, `"level":"WARN"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log %s missing %s", out, want)
		}
	}
}
