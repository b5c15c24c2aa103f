package kit

import "context"

// Transports a check can arrive through. Audit records and logs carry them.
const (
	TransportHTTP = "http"
	TransportMCP  = "mcp"
	TransportCLI  = "cli"
)

type ctxKey int

const (
	traceIDKey ctxKey = iota
	transportKey
	remoteAddrKey
)

func str(ctx context.Context, k ctxKey) (string, bool) {
	v, ok := ctx.Value(k).(string)
	return v, ok
}

// WithTraceID tags ctx with the request trace ID.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// GetTraceID returns the trace ID, or "" outside a request.
func GetTraceID(ctx context.Context) string {
	v, _ := str(ctx, traceIDKey)
	return v
}

// WithTransport tags ctx with one of the Transport* names.
func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, transportKey, t)
}

// GetTransport defaults to TransportHTTP.
func GetTransport(ctx context.Context) string {
	if v, ok := str(ctx, transportKey); ok {
		return v
	}
	return TransportHTTP
}

// HasTransport reports whether a transport was set explicitly.
func HasTransport(ctx context.Context) bool {
	_, ok := str(ctx, transportKey)
	return ok
}

func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, remoteAddrKey, addr)
}

func GetRemoteAddr(ctx context.Context) string {
	v, _ := str(ctx, remoteAddrKey)
	return v
}
