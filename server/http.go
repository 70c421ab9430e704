package server

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

func HTTPLogger(logger *slog.Logger, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		initialTime := time.Now()
		wr := NewStatusCodeRecorderResponseWriter(w)
		handler.ServeHTTP(wr, r)
		logger.InfoContext(r.Context(), "http: request",
			"duration_ms", time.Since(initialTime).Milliseconds(),
			"status", wr.Status,
			"method", r.Method,
			"path", r.URL.String(),
			"request_id", GetRequestID(r.Context()),
		)
	})
}

type StatusCodeRecorderResponseWriter struct {
	http.ResponseWriter
	Status int
}

func (r *StatusCodeRecorderResponseWriter) WriteHeader(status int) {
	r.Status = status
	r.ResponseWriter.WriteHeader(status)
}

func NewStatusCodeRecorderResponseWriter(w http.ResponseWriter) *StatusCodeRecorderResponseWriter {
	return &StatusCodeRecorderResponseWriter{ResponseWriter: w, Status: 200}
}

// rateLimited answers 429 once limiter runs out of tokens. A nil limiter
// lets everything through.
func rateLimited(limiter *rate.Limiter, handler http.Handler) http.Handler {
	if limiter == nil {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
