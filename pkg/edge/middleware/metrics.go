package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/foodgram/edge/pkg/routes"
)

// Metrics counts requests and their latencies per rule.
func Metrics(reg prometheus.Registerer) Middleware {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edge",
		Name:      "requests_total",
		Help:      "Total number of handled requests.",
	}, []string{"rule", "method", "status"})

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "edge",
		Name:      "request_duration_seconds",
		Help:      "Request handling duration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"rule"})

	reg.MustRegister(requests, latency)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			start := time.Now()
			defer func() {
				name := "unmatched"
				if rule, ok := routes.FromContext(r.Context()); ok {
					if name = rule.Name; name == "" {
						name = rule.Prefix
					}
				}

				requests.WithLabelValues(name, r.Method, strconv.Itoa(sw.status)).Inc()
				latency.WithLabelValues(name).Observe(time.Since(start).Seconds())
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
