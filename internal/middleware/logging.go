package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// RequestLogger logs HTTP requests with timing and status information.
type RequestLogger struct {
	logger *slog.Logger
}

// NewRequestLogger creates a request logging middleware.
func NewRequestLogger(logger *slog.Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

// Handler returns middleware that logs each request after it completes.
func (m *RequestLogger) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skipLogging(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		attrs := []any{
			"method", r.Method,
			"path", safePath(r.URL.Path, r.URL.RawQuery),
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", clientIP(r),
		}
		if userID := UserID(r.Context()); userID != "" {
			attrs = append(attrs, "user_id", userID)
		}

		if wrapped.status >= 500 {
			m.logger.Warn("request", attrs...)
		} else {
			m.logger.Info("request", attrs...)
		}
	})
}

// skipLogging returns true for noisy endpoints.
func skipLogging(path string) bool {
	return path == "/health" || path == "/metrics"
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// sensitiveParams lists query parameter names redacted from logs.
var sensitiveParams = map[string]bool{
	"token":         true,
	"code":          true,
	"key":           true,
	"secret":        true,
	"api_key":       true,
	"access_token":  true,
	"refresh_token": true,
}

// safePath redacts sensitive query parameters for logging.
func safePath(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}

	parts := strings.Split(rawQuery, "&")
	safe := parts[:0]
	for _, part := range parts {
		name, _, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		if sensitiveParams[strings.ToLower(name)] {
			safe = append(safe, name+"=[REDACTED]")
		} else {
			safe = append(safe, part)
		}
	}
	if len(safe) == 0 {
		return path
	}
	return path + "?" + strings.Join(safe, "&")
}
