package edge

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ops returns the private operational endpoint of the router:
// health probe, routing table dump and prometheus metrics. It is
// meant for an internal address, never for the public listeners.
func (s *Server) Ops() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/routes", func(w http.ResponseWriter, _ *http.Request) {
		type rule struct {
			Name     string `json:"name"`
			Prefix   string `json:"prefix"`
			Action   string `json:"action"`
			Upstream string `json:"upstream,omitempty"`
			Root     string `json:"root,omitempty"`
			Cache    string `json:"cache,omitempty"`
			Quiet    bool   `json:"quiet,omitempty"`
		}

		rules := make([]rule, 0, len(s.table.Rules))
		for _, rr := range s.table.Rules {
			rules = append(rules, rule{
				Name:     rr.Name,
				Prefix:   rr.Prefix,
				Action:   string(rr.Action),
				Upstream: rr.Upstream,
				Root:     rr.Root,
				Cache:    rr.Cache.Header(),
				Quiet:    rr.Quiet,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rules)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return r
}
