package server

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotremote/internal/auth"
	"github.com/desertthunder/spotremote/internal/shared"
	"github.com/go-chi/httplog/v3"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// Recovery turns a handler panic into a 500 response.
func Recovery(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic in handler", "path", r.URL.Path, "panic", rec, "stack", string(debug.Stack()))
					writeError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Logging writes one access log line per request.
//
// Headers are limited to Content-Type and Origin, bodies are never logged.
func Logging(logger *slog.Logger) Middleware {
	return httplog.RequestLogger(logger, &httplog.Options{
		Schema:             httplog.SchemaECS.Concise(true),
		LogRequestHeaders:  []string{"Content-Type", "Origin"},
		LogResponseHeaders: []string{},
		RecoverPanics:      false,
	})
}

// RequestID propagates or assigns an X-Request-ID and adds it to the access log.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = shared.GenerateID()
		}
		w.Header().Set(requestIDHeader, id)
		httplog.SetAttrs(r.Context(), slog.String("request_id", id))

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// RequestIDFrom returns the request ID set by [RequestID].
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequireToken answers 401 unless the session holds an access token. Expiry is not checked.
func RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := auth.RequireToken(SessionFrom(r.Context())); err != nil {
			writeError(w, http.StatusUnauthorized, "Not authenticated. Please log in.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
