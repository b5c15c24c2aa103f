package api

import (
	"bytes"
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/a11y/checker"
	"github.com/hazyhaar/a11y/kit"
	"github.com/hazyhaar/a11y/report"
)

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (s *Server) registerMCP(srv *mcp.Server) {
	s.registerCheckTool(srv)
	s.registerReportTool(srv)
	s.registerRulesTool(srv)
}

// --- a11y_check ---

func requireHTML(r *CheckRequest) error {
	if r.HTML == nil {
		return errors.New("field 'html' is required")
	}
	return nil
}

func (s *Server) registerCheckTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "a11y_check",
		Description: "Check an HTML document for accessibility violations. Returns the violations as JSON.",
		InputSchema: inputSchema(map[string]any{
			"html": map[string]any{"type": "string", "description": "HTML document or fragment"},
		}, []string{"html"}),
	}
	kit.RegisterMCPTool(srv, tool, s.check, kit.DecodeArgs(requireHTML))
}

// --- a11y_report ---

type reportReq struct {
	HTML   *string `json:"html"`
	Source string  `json:"source"`
	Format string  `json:"format"`
}

type reportResp struct {
	Format     string `json:"format"`
	Violations int    `json:"violations"`
	Report     string `json:"report"`
}

func (s *Server) registerReportTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "a11y_report",
		Description: "Check an HTML document and render the findings as markdown, sarif, table, html or json.",
		InputSchema: inputSchema(map[string]any{
			"html":   map[string]any{"type": "string", "description": "HTML document or fragment"},
			"source": map[string]any{"type": "string", "description": "Name shown for the document (optional)"},
			"format": map[string]any{"type": "string", "enum": report.Formats(), "description": "Output format (default markdown)"},
		}, []string{"html"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*reportReq)
		f, err := report.New(r.Format)
		if err != nil {
			return nil, err
		}
		resp, err := s.check(ctx, &CheckRequest{HTML: r.HTML})
		if err != nil {
			return nil, err
		}
		res := resp.(*checker.Result)
		rep := &report.Report{Rules: s.checker.Registry().Describe()}
		rep.Add(r.Source, res)
		var buf bytes.Buffer
		if err := f.Format(&buf, rep); err != nil {
			return nil, err
		}
		return &reportResp{Format: r.Format, Violations: len(res.Violations), Report: buf.String()}, nil
	}

	decode := kit.DecodeArgs(func(r *reportReq) error {
		if r.HTML == nil {
			return errors.New("field 'html' is required")
		}
		if r.Format == "" {
			r.Format = "markdown"
		}
		return nil
	})

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- a11y_list_rules ---

func (s *Server) registerRulesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "a11y_list_rules",
		Description: "List the registered accessibility rules and whether each is enabled.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	kit.RegisterMCPTool(srv, tool, s.rules, kit.NoArgs)
}
