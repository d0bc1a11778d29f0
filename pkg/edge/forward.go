package edge

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/cappuccinotm/slogx"
)

const defaultErrorPage = `<!DOCTYPE html>
<html>
<head><title>Server Error</title></head>
<body>
<h1>Server Error</h1>
<p>The server encountered a temporary error and could not complete your request.</p>
</body>
</html>
`

// upstreamError marks a 5xx response from the upstream, so that the
// error handler can substitute the body with the static error page.
type upstreamError struct{ status int }

func (e *upstreamError) Error() string {
	return fmt.Sprintf("upstream replied with status %d", e.status)
}

// newProxy builds a reverse proxy to the given upstream. The original
// Host header is preserved, the client IP and the forwarding protocol
// travel in X-Real-IP, X-Forwarded-For and X-Forwarded-Proto, so the
// backend can reconstruct the real client context.
func (s *Server) newProxy(name string, target *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			// req.Host is deliberately left untouched: the backend sees
			// the host the client asked for, not the upstream's address.

			proto := "http"
			if req.TLS != nil {
				proto = "https"
			}
			req.Header.Set("X-Forwarded-Proto", proto)
			req.Header.Set("X-Forwarded-Host", req.Host)

			// X-Forwarded-For is appended by ReverseProxy itself.
			if ip, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
				req.Header.Set("X-Real-IP", ip)
			}
		},
		ModifyResponse: func(resp *http.Response) error {
			if resp.StatusCode >= http.StatusInternalServerError {
				return &upstreamError{status: resp.StatusCode}
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			status := http.StatusBadGateway
			var ue *upstreamError
			if errors.As(err, &ue) {
				status = ue.status
			}

			slog.WarnContext(r.Context(), "upstream failure",
				slog.String("upstream", name),
				slog.String("path", r.URL.Path),
				slogx.Error(err))

			s.serveErrorPage(w, status)
		},
	}
}

func (s *Server) serveErrorPage(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(s.errorPage)
}
