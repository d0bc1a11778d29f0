package routes

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"
)

const (
	yearCache  = 365 * 24 * time.Hour
	monthCache = 30 * 24 * time.Hour
)

// Default builds the stock routing table of the recipe platform:
// admin assets and media are served from disk, API, admin and auth
// traffic goes to the backend, everything else falls through to the
// SPA bundle.
func Default(backendAddr, staticRoot, mediaRoot, spaRoot string) (*Table, error) {
	backend, err := url.Parse(backendAddr)
	if err != nil {
		return nil, fmt.Errorf("parse backend address: %w", err)
	}

	t := &Table{
		Upstreams: map[string]*url.URL{"backend": backend},
		Rules: []*Rule{
			{
				Name:   "admin-static",
				Prefix: "/static/admin/",
				Action: ActionStatic,
				Root:   filepath.Join(staticRoot, "admin"),
				Cache:  CachePolicy{MaxAge: yearCache, Immutable: true},
				Quiet:  true,
			},
			{
				Name:   "drf-static",
				Prefix: "/static/rest_framework/",
				Action: ActionStatic,
				Root:   filepath.Join(staticRoot, "rest_framework"),
				Cache:  CachePolicy{MaxAge: yearCache, Immutable: true},
				Quiet:  true,
			},
			{Name: "api", Prefix: "/api/", Action: ActionForward, Upstream: "backend"},
			{Name: "admin", Prefix: "/admin/", Action: ActionForward, Upstream: "backend"},
			{Name: "auth", Prefix: "/auth/", Action: ActionForward, Upstream: "backend"},
			{
				Name:   "media",
				Prefix: "/media/",
				Action: ActionStatic,
				Root:   mediaRoot,
				Cache:  CachePolicy{MaxAge: monthCache},
			},
			{Name: "spa", Prefix: "/", Action: ActionSPA, Root: spaRoot, Index: "index.html"},
		},
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	return t, nil
}
