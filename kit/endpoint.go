// Package kit holds the transport-agnostic plumbing shared by the HTTP API,
// the MCP tools and the CLI: endpoints, endpoint middleware and request
// context values.
package kit

import (
	"context"
	"log/slog"
	"time"
)

// Endpoint is a transport-agnostic handler: the HTTP and MCP transports both
// decode into a request value and call the same Endpoint.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware decorates an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so that the first one is the outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging logs every call with its transport, trace ID and duration.
func Logging(logger *slog.Logger, name string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"endpoint", name,
				"transport", GetTransport(ctx),
				"trace_id", GetTraceID(ctx),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if err != nil {
				logger.Warn("endpoint failed", append(attrs, "error", err)...)
			} else {
				logger.Debug("endpoint ok", attrs...)
			}
			return resp, err
		}
	}
}

// Transport tags the context with the transport name unless one is set.
func Transport(name string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			if !HasTransport(ctx) {
				ctx = WithTransport(ctx, name)
			}
			return next(ctx, req)
		}
	}
}
