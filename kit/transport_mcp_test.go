package kit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type echoReq struct {
	Text string `json:"text"`
}

func callReq(args string) *mcp.CallToolRequest {
	return &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Name: "echo", Arguments: json.RawMessage(args)}}
}

func TestDecodeArgs(t *testing.T) {
	dec := DecodeArgs(func(r *echoReq) error {
		if r.Text == "" {
			return errors.New("text is required")
		}
		return nil
	})

	got, err := dec(callReq(`{"text":"hi"}`))
	if err != nil {
		t.Fatal(err)
	}
	if r := got.Request.(*echoReq); r.Text != "hi" {
		t.Fatalf("request = %+v", r)
	}

	if _, err := dec(callReq(`{}`)); err == nil || !strings.Contains(err.Error(), "required") {
		t.Fatalf("validate not applied: %v", err)
	}
	if _, err := dec(callReq(`{"text":`)); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := DecodeArgs[echoReq](nil)(callReq(``)); err != nil {
		t.Fatalf("empty arguments: %v", err)
	}
}

func TestRegisterMCPTool(t *testing.T) {
	srv := mcp.NewServer(&mcp.Implementation{Name: "kit-test", Version: "0.1.0"}, nil)
	var transport string
	endpoint := func(ctx context.Context, req any) (any, error) {
		transport = GetTransport(ctx)
		r := req.(*echoReq)
		if r.Text == "fail" {
			return nil, errors.New("endpoint failed")
		}
		return map[string]string{"echo": r.Text}, nil
	}
	RegisterMCPTool(srv, &mcp.Tool{
		Name:        "echo",
		InputSchema: map[string]any{"type": "object"},
	}, endpoint, DecodeArgs[echoReq](nil))

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()
	session, err := mcp.NewClient(&mcp.Implementation{Name: "kit-client", Version: "0.1.0"}, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"text": "hi"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %v", res.GetError())
	}
	if text := res.Content[0].(*mcp.TextContent).Text; text != `{"echo":"hi"}` {
		t.Fatalf("text = %s", text)
	}
	if transport != TransportMCP {
		t.Fatalf("transport = %q", transport)
	}

	res, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"text": "fail"}})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError || !strings.Contains(res.GetError().Error(), "endpoint failed") {
		t.Fatalf("expected tool error, got %+v", res)
	}
}
