package edge

import (
	"net"
	"net/http"
)

// Redirect answers every plaintext request with a permanent redirect
// to the encrypted equivalent of the same host and path. No exceptions:
// even well-known paths go through the secure listener.
func Redirect() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}

		u := *r.URL
		u.Scheme = "https"
		u.Host = host

		http.Redirect(w, r, u.String(), http.StatusMovedPermanently)
	})
}
