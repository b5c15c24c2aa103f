// Package api exposes the checker over HTTP and MCP.
//
// Routes:
//
//	GET  /                     banner
//	GET  /health               liveness
//	POST /check-accessibility  {"html": "..."} -> {"violations": [...]}
//	GET  /rules                registered rules
//	GET  /api/checks           recent checks (audit store enabled)
//	GET  /api/checks/{id}      one check
//	GET  /api/stats            stored checks by outcome
//	GET  /metrics              Prometheus (metrics enabled)
//	*    /mcp                  MCP streamable HTTP
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/a11y/audit"
	"github.com/hazyhaar/a11y/checker"
	"github.com/hazyhaar/a11y/dom"
	"github.com/hazyhaar/a11y/kit"
	"github.com/hazyhaar/a11y/metrics"
	"github.com/hazyhaar/a11y/rules"
	"github.com/hazyhaar/a11y/shield"
)

// RuleFailuresHeader lists, comma-separated, the rules whose evaluation
// failed and whose violations are therefore missing from the response.
const RuleFailuresHeader = "X-A11y-Rule-Failures"

// errBadRequest marks client errors in the request envelope.
var errBadRequest = errors.New("invalid request")

// Config controls the HTTP surface.
type Config struct {
	CORSOrigins []string
	RateLimit   int           // requests per RateWindow per client IP, 0 disables
	RateWindow  time.Duration // default 1m
	Version     string
}

// CheckRequest is the POST /check-accessibility body.
type CheckRequest struct {
	HTML *string `json:"html"`
}

// RulesResponse lists registered rules.
type RulesResponse struct {
	Rules []rules.Info `json:"rules"`
}

// Server wires the checker to its transports.
type Server struct {
	cfg     Config
	checker *checker.Checker
	audit   *audit.Store
	metrics *metrics.Collector
	logger  *slog.Logger
	mcp     *mcp.Server
	done    chan struct{}

	check kit.Endpoint
	rules kit.Endpoint
}

// Option configures a Server.
type Option func(*Server)

// WithAudit enables /api/checks backed by st.
func WithAudit(st *audit.Store) Option { return func(s *Server) { s.audit = st } }

// WithMetrics enables /metrics.
func WithMetrics(m *metrics.Collector) Option { return func(s *Server) { s.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// New creates the server. The checker's observers (audit, metrics) are
// attached by the caller; options here only expose their read side.
func New(c *checker.Checker, cfg Config, opts ...Option) *Server {
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	s := &Server{
		cfg:     cfg,
		checker: c,
		logger:  slog.Default(),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}

	s.check = kit.Chain(kit.Transport(kit.TransportHTTP), kit.Logging(s.logger, "check"))(s.checkEndpoint)
	s.rules = kit.Chain(kit.Transport(kit.TransportHTTP), kit.Logging(s.logger, "rules"))(s.rulesEndpoint)

	s.mcp = mcp.NewServer(&mcp.Implementation{Name: "a11y", Version: cfg.Version}, nil)
	s.registerMCP(s.mcp)
	return s
}

// MCPServer returns the MCP server carrying the a11y tools.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// Close stops background work started by Handler.
func (s *Server) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// MaxBodyBytes is the HTTP body cap derived from the checker's input cap:
// JSON string escaping can double the markup, plus envelope slack.
func (s *Server) MaxBodyBytes() int64 {
	return 2*int64(s.checker.Config().MaxInputBytes) + 64<<10
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Mcp-Session-Id", "Mcp-Protocol-Version"},
		ExposedHeaders:   []string{"X-Trace-ID", RuleFailuresHeader, "Mcp-Session-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	for _, mw := range shield.DefaultStack(s.MaxBodyBytes()) {
		r.Use(mw)
	}

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"message": "ADA Compliance Checker API"})
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "healthy"})
	})
	r.Get("/rules", s.handleRules)

	rl := shield.NewRateLimiter(s.cfg.RateLimit, s.cfg.RateWindow)
	rl.StartGC(s.done)
	r.Group(func(r chi.Router) {
		r.Use(rl.Middleware)
		r.Post("/check-accessibility", s.handleCheck)
		mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
		r.Handle("/mcp", mcpHandler)
	})

	if s.audit != nil {
		r.Get("/api/checks", s.handleRecent)
		r.Get("/api/checks/{id}", s.handleGetCheck)
		r.Get("/api/stats", s.handleStats)
	}
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	return r
}

func (s *Server) checkEndpoint(ctx context.Context, req any) (any, error) {
	r := req.(*CheckRequest)
	return s.checker.Check(ctx, *r.HTML)
}

func (s *Server) rulesEndpoint(_ context.Context, _ any) (any, error) {
	return &RulesResponse{Rules: s.checker.Registry().Describe()}, nil
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCheck(r)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	resp, err := s.check(r.Context(), req)
	if err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			shield.GetLogger(r.Context()).Error("check failed", "error", err)
			err = errors.New("internal error")
		}
		writeError(w, code, err)
		return
	}
	res := resp.(*checker.Result)
	if failed := res.FailedRules(); len(failed) > 0 {
		w.Header().Set(RuleFailuresHeader, strings.Join(failed, ","))
	}
	writeJSON(w, 200, res)
}

func decodeCheck(r *http.Request) (*CheckRequest, error) {
	var req CheckRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, fmt.Errorf("%w: body exceeds %d bytes", checker.ErrInputTooLarge, mbe.Limit)
		}
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if req.HTML == nil {
		return nil, fmt.Errorf("%w: field 'html' is required", errBadRequest)
	}
	return &req, nil
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	resp, err := s.rules(r.Context(), nil)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, resp)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	recs, err := s.audit.Recent(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		shield.GetLogger(r.Context()).Error("audit recent", "error", err)
		writeError(w, 500, errors.New("internal error"))
		return
	}
	writeJSON(w, 200, map[string]any{"checks": recs})
}

func (s *Server) handleGetCheck(w http.ResponseWriter, r *http.Request) {
	rec, err := s.audit.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, audit.ErrNotFound) {
		writeError(w, 404, err)
		return
	}
	if err != nil {
		shield.GetLogger(r.Context()).Error("audit get", "error", err)
		writeError(w, 500, errors.New("internal error"))
		return
	}
	writeJSON(w, 200, rec)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.audit.Stats(r.Context())
	if err != nil {
		shield.GetLogger(r.Context()).Error("audit stats", "error", err)
		writeError(w, 500, errors.New("internal error"))
		return
	}
	writeJSON(w, 200, map[string]any{"outcomes": stats})
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, checker.ErrInputTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, dom.ErrTooDeep), errors.Is(err, dom.ErrTooManyNodes), errors.Is(err, checker.ErrTimeout):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
