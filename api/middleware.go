package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// RequestIDHeader carries the id assigned to every request.
const RequestIDHeader = "X-Request-ID"

type ctxKey int

const loggerKey ctxKey = iota

// statusRecorder remembers the status written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestLogging assigns a request id, exposes it in the response and logs
// the start and completion of the request.
func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		logger := log.WithFields(log.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
		})
		logger.WithField("remote", r.RemoteAddr).Debug("Request started")

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), loggerKey, logger)))

		entry := logger.WithFields(log.Fields{
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if rec.status >= http.StatusInternalServerError {
			entry.Warn("Request completed")
		} else {
			entry.Info("Request completed")
		}
	})
}

// withRecovery turns a handler panic into a 500 response.
func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				requestLogger(r).WithField("panic", rec).Error("Handler panicked")
				writeJSON(w, r, http.StatusInternalServerError, errorBody("internal server error", "", nil, ""))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestLogger returns the logger tagged with the request id.
func requestLogger(r *http.Request) *log.Entry {
	if logger, ok := r.Context().Value(loggerKey).(*log.Entry); ok {
		return logger
	}
	return log.NewEntry(log.StandardLogger())
}
