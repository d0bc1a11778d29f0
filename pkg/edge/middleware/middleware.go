// Package middleware provides chainable wrappers for the edge router's
// HTTP handlers.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// Middleware is a function that intercepts the execution of an HTTP handler.
type Middleware func(http.Handler) http.Handler

// Wrap is a chain of middlewares.
func Wrap(base http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}

// Chain chains the middlewares.
func Chain(mws ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		return Wrap(next, mws...)
	}
}

// AppInfo adds the app info to the response headers.
func AppInfo(app, author, version string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Server", app+"/"+version)
			w.Header().Set("App-Author", author)
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

// RequestID assigns a unique identifier to each request, exposes it in
// the X-Request-ID response header and keeps it in the context.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := uuid.NewString()
			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID returns the request ID from the context, if set.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Recoverer recovers from panics, logs the panic and responds
// with a plain 500.
func Recoverer() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					slog.ErrorContext(r.Context(), "handler panic",
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("remote", r.RemoteAddr),
						slog.Any("panic", rvr))
					http.Error(w, "internal error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Maybe conditionally applies the given middleware.
func Maybe(apply bool, mw Middleware) Middleware {
	if !apply {
		return func(next http.Handler) http.Handler { return next }
	}
	return mw
}
