package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/foodgram/edge/pkg/routes"
)

// Log logs the HTTP requests. Rules marked quiet (content-hashed
// assets) are not logged. In debug mode the request and response
// headers are logged as well.
func Log(debug bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			start := time.Now()
			defer func() {
				rule, _ := routes.FromContext(ctx)
				if rule != nil && rule.Quiet {
					return
				}

				remote := r.RemoteAddr
				if host, _, err := net.SplitHostPort(remote); err == nil {
					remote = host
				}

				attrs := []any{
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("remote", remote),
					slog.Int("status", sw.status),
					slog.Int64("size", sw.size),
					slog.Duration("elapsed", time.Since(start)),
				}
				if rule != nil {
					attrs = append(attrs, slog.String("rule", rule.String()))
				}
				if id := GetRequestID(ctx); id != "" {
					attrs = append(attrs, slog.String("request_id", id))
				}

				if debug {
					attrs = append(attrs,
						slog.Any("request_header", filterHeader(r.Header)),
						slog.Any("response_header", filterHeader(sw.Header())),
					)
				}

				slog.InfoContext(ctx, "request", attrs...)
			}()

			next.ServeHTTP(sw, r)
		})
	}
}

var hideHeaders = map[string]struct{}{
	"Authorization": {},
	"Cookie":        {},
	"Set-Cookie":    {},
}

func filterHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		if _, ok := hideHeaders[k]; ok {
			out[k] = []string{"***"}
			continue
		}
		out[k] = v
	}
	return out
}

// statusWriter captures the status code and the size of the response.
type statusWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += int64(n)
	return n, err
}

// Flush keeps streaming responses working through the recorder.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
