package edge

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/foodgram/edge/pkg/routes"
)

// immutableCache is applied to content-hashed bundle assets.
const immutableCache = "public, max-age=31536000, immutable"

// staticExt lists the extensions of bundle files that are safe to
// cache forever: the build pipeline content-hashes their names.
var staticExt = map[string]struct{}{
	".js": {}, ".mjs": {}, ".css": {}, ".map": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {},
	".ico": {}, ".webp": {}, ".avif": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {},
}

func hasStaticExt(p string) bool {
	_, ok := staticExt[strings.ToLower(path.Ext(p))]
	return ok
}

// resolve maps the request path onto the rule's root directory,
// alias-style: the rule prefix is stripped and the remainder is
// joined with the root. The leading slash before Clean discards
// any ".." segments.
func resolve(rule *routes.Rule, reqPath string) string {
	rel := path.Clean("/" + strings.TrimPrefix(reqPath, rule.Prefix))
	return filepath.Join(rule.Root, filepath.FromSlash(rel))
}

func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request, rule *routes.Rule) {
	name := resolve(rule, r.URL.Path)

	fi, err := os.Stat(name)
	if err != nil || fi.IsDir() {
		http.NotFound(w, r)
		return
	}

	if cc := rule.Cache.Header(); cc != "" {
		w.Header().Set("Cache-Control", cc)
	}

	http.ServeFile(w, r, name)
}

// serveSPA serves the frontend bundle: existing files are served
// as-is, with long-lived immutable cache headers for content-hashed
// assets; everything else resolves to the index document, so the
// client-side router can take over.
func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request, rule *routes.Rule) {
	name := resolve(rule, r.URL.Path)

	if fi, err := os.Stat(name); err == nil && !fi.IsDir() {
		if hasStaticExt(name) {
			w.Header().Set("Cache-Control", immutableCache)
		}
		http.ServeFile(w, r, name)
		return
	}

	// the index document must be revalidated on each visit, otherwise
	// clients would keep loading a stale bundle after a deploy
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, filepath.Join(rule.Root, rule.Index))
}
