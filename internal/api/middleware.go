package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade-rasp/internal/auth"
	"github.com/triage-ai/palisade-rasp/internal/engine"
)

// contextKey is an unexported type for context keys to avoid collisions.
type contextKey int

const appCtxKey contextKey = iota

// appFromContext extracts the authenticated app from the request context.
func appFromContext(ctx context.Context) *auth.AppContext {
	v, _ := ctx.Value(appCtxKey).(*auth.AppContext)
	return v
}

// authMiddleware validates the app secret and app ID headers and injects
// the authenticated app into the request context. Caching lives in the
// Authenticator, shared with the gRPC transport.
func (d *Dependencies) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds, err := auth.FromHeader(r.Header)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, ErrorResp{Detail: err.Error()})
			return
		}

		app, err := d.Auth.Authenticate(r.Context(), creds)
		if err != nil {
			d.Logger.Warn("auth failed", zap.String("app_id", creds.AppID), zap.Error(err))
			writeJSON(w, authStatus(err), ErrorResp{Detail: "Invalid app credentials"})
			return
		}

		ctx := context.WithValue(r.Context(), appCtxKey, app)
		next(w, r.WithContext(ctx))
	}
}

// authStatus maps auth errors to HTTP status codes.
func authStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrAuthUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrUnknownApp):
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

func (d *Dependencies) requireStore(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Store == nil {
			writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
			return
		}
		next(w, r)
	}
}

func (d *Dependencies) requireReader(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Reader == nil {
			writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
			return
		}
		next(w, r)
	}
}

// --- JSON helpers ---

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// readJSON decodes a JSON request body into the given pointer.
func readJSON(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Request logging ---

func requestLogging(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// --- CORS ---

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Rasp-App-Id")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
