package shield

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/a11y/kit"
)

// TraceHeader carries the request trace ID in both directions.
const TraceHeader = "X-Trace-ID"

// TraceID tags each request with a trace ID (kit.WithTraceID), echoes it in
// TraceHeader and stores a per-request logger under LoggerKey. An incoming
// TraceHeader of 8 to 32 lowercase hex digits is kept so that a proxy's ID
// follows the request; anything else is replaced by a random 8-digit ID.
//
// One access line is logged when the handler returns: Error for 5xx, Warn
// for 4xx, Info otherwise.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		traceID := r.Header.Get(TraceHeader)
		if !validTraceID(traceID) {
			traceID = newTraceID()
		}
		ip := ExtractIP(r)

		ctx := kit.WithRemoteAddr(kit.WithTraceID(r.Context(), traceID), ip)
		logger := slog.Default().With(
			"trace_id", traceID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", ip,
		)
		ctx = context.WithValue(ctx, LoggerKey, logger)
		w.Header().Set(TraceHeader, traceID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "request",
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func newTraceID() string {
	id := make([]byte, 4)
	rand.Read(id)
	return hex.EncodeToString(id)
}

func validTraceID(s string) bool {
	if len(s) < 8 || len(s) > 32 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
