package http

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Gateway lifecycle events passed to a Recorder.
const (
	EventReceived       = "received"
	EventAuthorized     = "authorized"
	EventRejected       = "rejected"
	EventBackendSuccess = "backend_success"
	EventBackendFailure = "backend_failure"
)

// Recorder counts gateway lifecycle events. metrics.Metrics implements it.
type Recorder interface {
	RecordEvent(event string)
}

func record(rec Recorder, r *http.Request, event string) {
	slog.Debug("gateway event", "event", event, "method", r.Method, "path", r.URL.Path)
	if rec != nil {
		rec.RecordEvent(event)
	}
}

// ReceivedMiddleware records EventReceived for every request it sees.
func ReceivedMiddleware(rec Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			record(rec, r, EventReceived)
			next.ServeHTTP(w, r)
		})
	}
}

// AuthMiddleware admits requests carrying "Authorization: Bearer <token>"
// equal to expectedToken. Rejected requests get 401 and never reach next.
// An empty expectedToken rejects everything with 500.
func AuthMiddleware(expectedToken string, rec Recorder) func(http.Handler) http.Handler {
	expected := []byte(expectedToken)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				slog.Error("inbound bearer token is not configured; refusing request", "path", r.URL.Path)
				record(rec, r, EventRejected)
				WriteError(w, http.StatusInternalServerError, CodeMisconfigured, "Server is misconfigured")
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok || subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
				record(rec, r, EventRejected)
				w.Header().Set("WWW-Authenticate", `Bearer realm="docgate"`)
				WriteError(w, http.StatusUnauthorized, CodeUnauthorized, "Missing or invalid bearer token")
				return
			}

			record(rec, r, EventAuthorized)
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AccessLogMiddleware logs one line per request with its status, size and
// duration.
func AccessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		slog.Info("http request",
			"remote", r.RemoteAddr,
			"method", r.Method,
			"path", r.URL.Path,
			"proto", r.Proto,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
