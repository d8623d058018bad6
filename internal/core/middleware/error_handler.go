package middleware

import (
	"net/http"
	"time"

	"github.com/Nzyazin/miniwallet/internal/core/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type ErrorHandler struct {
	handler http.Handler
	log     logger.Logger
}

// WithErrorHandler logs every request that ends with a 4xx or 5xx status.
// Client errors go to warn, server errors to error.
func WithErrorHandler(log logger.Logger) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return &ErrorHandler{handler: h, log: log}
	}
}

func (eh *ErrorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	started := time.Now()

	eh.handler.ServeHTTP(rec, r)

	if rec.status < http.StatusBadRequest {
		return
	}
	fields := []logger.Field{
		logger.StringField("method", r.Method),
		logger.StringField("path", r.URL.Path),
		logger.IntField("status", rec.status),
		logger.StringField("duration", time.Since(started).String()),
	}
	if rec.status >= http.StatusInternalServerError {
		eh.log.Error("request failed", fields...)
		return
	}
	eh.log.Warn("request rejected", fields...)
}

// NotFound and MethodNotAllowed answer unmatched routes with the JSON envelope.
func NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
}

func MethodNotAllowed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}
