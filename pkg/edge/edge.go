// Package edge implements the single network entry point of the
// platform: it terminates TLS, redirects plaintext traffic and
// dispatches requests between the application server, static assets
// and the SPA bundle according to the routing table.
package edge

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/cappuccinotm/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/foodgram/edge/pkg/edge/middleware"
	"github.com/foodgram/edge/pkg/routes"
)

// Server is the edge router.
type Server struct {
	version      string
	table        *routes.Table
	certFile     string
	keyFile      string
	errorPage    []byte
	readTimeout  time.Duration
	writeTimeout time.Duration
	debug        bool

	registry *prometheus.Registry
	proxies  map[string]*httputil.ReverseProxy
	handler  http.Handler

	redirect *http.Server
	secure   *http.Server
}

// NewServer creates a new server over the given routing table.
// The table must be validated by the caller.
func NewServer(t *routes.Table, opts ...Option) *Server {
	s := &Server{
		table:        t,
		errorPage:    []byte(defaultErrorPage),
		readTimeout:  5 * time.Second,
		writeTimeout: 60 * time.Second,
		registry:     prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.proxies = make(map[string]*httputil.ReverseProxy, len(t.Upstreams))
	for name, target := range t.Upstreams {
		s.proxies[name] = s.newProxy(name, target)
	}

	s.handler = middleware.Wrap(http.HandlerFunc(s.dispatch),
		middleware.Recoverer(),
		middleware.AppInfo("edge", "foodgram", s.version),
		middleware.RequestID(),
		middleware.Metrics(s.registry),
		middleware.Log(s.debug),
	)

	return s
}

// Listen starts the redirect listener on redirectAddr and the TLS
// listener on addr. Certificate material is loaded once at startup;
// rotation requires a restart. Blocking call.
func (s *Server) Listen(redirectAddr, addr string) (err error) {
	slog.Info("starting edge router",
		slog.String("redirect_addr", redirectAddr),
		slog.String("addr", addr),
		slog.Bool("tls", s.certFile != ""))
	defer func() { slog.Warn("edge router stopped", slogx.Error(err)) }()

	s.redirect = &http.Server{
		Addr:         redirectAddr,
		Handler:      Redirect(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	s.secure = &http.Server{
		Addr:         addr,
		Handler:      http.HandlerFunc(s.serve),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	if s.certFile != "" {
		cert, lerr := tls.LoadX509KeyPair(s.certFile, s.keyFile)
		if lerr != nil {
			return fmt.Errorf("load key pair: %w", lerr)
		}
		s.secure.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	ewg := &errgroup.Group{}
	ewg.Go(func() error {
		if err := s.redirect.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("redirect listener: %w", err)
		}
		return nil
	})
	ewg.Go(func() error {
		serve := s.secure.ListenAndServe
		if s.secure.TLSConfig != nil {
			serve = func() error { return s.secure.ListenAndServeTLS("", "") }
		}
		if err := serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("secure listener: %w", err)
		}
		return nil
	})

	return ewg.Wait()
}

// Close gracefully stops both listeners.
func (s *Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.redirect != nil {
		_ = s.redirect.Shutdown(ctx)
	}
	if s.secure != nil {
		_ = s.secure.Shutdown(ctx)
	}
}

// Handler returns the dispatching handler of the secure listener,
// with the full middleware chain applied.
func (s *Server) Handler() http.Handler { return http.HandlerFunc(s.serve) }

// serve matches the request against the routing table and runs the
// middleware chain with the matched rule in the context, so that
// logging and metrics see which rule handled the request.
func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if rule, ok := s.table.Match(r.URL.Path); ok {
		r = r.WithContext(routes.ToContext(r.Context(), rule))
	}
	s.handler.ServeHTTP(w, r)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	rule, ok := routes.FromContext(r.Context())
	if !ok {
		http.NotFound(w, r)
		return
	}

	for k, v := range rule.Headers {
		w.Header().Set(k, v)
	}

	switch rule.Action {
	case routes.ActionForward:
		s.proxies[rule.Upstream].ServeHTTP(w, r)
	case routes.ActionStatic:
		s.serveStatic(w, r, rule)
	case routes.ActionSPA:
		s.serveSPA(w, r, rule)
	default:
		slog.ErrorContext(r.Context(), "rule with unknown action",
			slog.String("rule", rule.String()))
		s.serveErrorPage(w, http.StatusInternalServerError)
	}
}
