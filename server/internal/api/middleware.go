package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Options configures the middleware chain.
type Options struct {
	// RequestTimeout bounds the context of every request. Zero disables it.
	RequestTimeout time.Duration
	// CORSOrigins enables CORS for the listed origins. Empty disables CORS.
	CORSOrigins []string
}

type ctxKey struct{}

// RequestID returns the id assigned to the request carried by ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Wrap applies, outermost first: panic recovery, CORS, request id, access
// log and request timeout.
func Wrap(next http.Handler, logger *slog.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := withTimeout(next, opts.RequestTimeout)
	h = accessLog(h, logger)
	h = withRequestID(h)
	if len(opts.CORSOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(opts.CORSOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type", RequestIDHeader}),
		)(h)
	}
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger}),
		handlers.PrintRecoveryStack(true),
	)(h)
}

// withRequestID reuses an incoming X-Request-ID or assigns a new UUID.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// accessLog logs one line per request. httpsnoop keeps the Hijacker of the
// underlying writer so websocket upgrades pass through.
func accessLog(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"bytes", m.Written,
			"duration_ms", m.Duration.Milliseconds(),
			"request_id", RequestID(r.Context()),
		)
	})
}

func withTimeout(next http.Handler, d time.Duration) http.Handler {
	if d <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// recoveryLogger adapts slog to handlers.RecoveryHandlerLogger.
type recoveryLogger struct {
	log *slog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error("http: panic recovered", "panic", fmt.Sprint(v...))
}
