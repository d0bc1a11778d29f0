package edge

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodgram/edge/pkg/routes"
)

func TestServer_Forward(t *testing.T) {
	var gotHeader http.Header
	var gotHost string
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotHost = r.Host
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("backend ok"))
	}))
	defer up.Close()

	ts := httptest.NewServer(newTestServer(t, up.URL).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/recipes/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "backend ok", string(body))

	// the backend must be able to reconstruct the real client context
	assert.NotEmpty(t, gotHeader.Get("X-Forwarded-For"))
	assert.NotEmpty(t, gotHeader.Get("X-Real-IP"))
	assert.Equal(t, "http", gotHeader.Get("X-Forwarded-Proto"))

	// the original host, not the upstream's
	edgeURL, err := url.Parse(ts.URL)
	require.NoError(t, err)
	assert.Equal(t, edgeURL.Host, gotHost)
	assert.Equal(t, edgeURL.Host, gotHeader.Get("X-Forwarded-Host"))
}

func TestServer_UpstreamErrors(t *testing.T) {
	t.Run("5xx body is replaced with the error page", func(t *testing.T) {
		up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("stack trace with secrets"))
		}))
		defer up.Close()

		ts := httptest.NewServer(newTestServer(t, up.URL).Handler())
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/api/recipes/")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Contains(t, string(body), "Server Error")
		assert.NotContains(t, string(body), "secrets")
	})

	t.Run("unreachable upstream", func(t *testing.T) {
		ts := httptest.NewServer(newTestServer(t, "http://127.0.0.1:1").Handler())
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/api/recipes/")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Contains(t, string(body), "Server Error")
	})

	t.Run("4xx passes through untouched", func(t *testing.T) {
		up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "not found", http.StatusNotFound)
		}))
		defer up.Close()

		ts := httptest.NewServer(newTestServer(t, up.URL).Handler())
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/api/recipes/9000/")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, string(body), "not found")
	})
}

func TestServer_Static(t *testing.T) {
	mediaRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(mediaRoot, "recipes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(mediaRoot, "recipes", "soup.jpg"), []byte("jpeg bytes"), 0o644))

	tbl := &routes.Table{Rules: []*routes.Rule{{
		Name:   "media",
		Prefix: "/media/",
		Action: routes.ActionStatic,
		Root:   mediaRoot,
		Cache:  routes.CachePolicy{MaxAge: 720 * time.Hour},
	}}}

	ts := httptest.NewServer(NewServer(tbl, Version("test")).Handler())
	defer ts.Close()

	t.Run("existing file with cache header", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/media/recipes/soup.jpg")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "jpeg bytes", string(body))
		assert.Equal(t, "public, max-age=2592000", resp.Header.Get("Cache-Control"))
	})

	t.Run("missing file", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/media/nope.jpg")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("directory is not listed", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/media/recipes/")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("traversal is contained", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/media/recipes/soup.jpg", nil)
		require.NoError(t, err)
		req.URL.Path = "/media/../../../etc/passwd"

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.NotEqual(t, http.StatusOK, resp.StatusCode)
	})
}

func TestServer_SPA(t *testing.T) {
	spaRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(spaRoot, "index.html"), []byte("<html>spa</html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(spaRoot, "static", "js"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(spaRoot, "static", "js", "main.3f2a.js"), []byte("js bytes"), 0o644))

	tbl := &routes.Table{Rules: []*routes.Rule{{
		Name:   "spa",
		Prefix: "/",
		Action: routes.ActionSPA,
		Root:   spaRoot,
		Index:  "index.html",
	}}}

	ts := httptest.NewServer(NewServer(tbl, Version("test")).Handler())
	defer ts.Close()

	t.Run("bundle asset with immutable cache", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/static/js/main.3f2a.js")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "js bytes", string(body))
		assert.Equal(t, "public, max-age=31536000, immutable", resp.Header.Get("Cache-Control"))
	})

	t.Run("unmatched path falls back to index", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/recipes/42")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "<html>spa</html>", string(body))
		assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	})

	t.Run("root serves index", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "<html>spa</html>", string(body))
	})
}

func TestRedirect(t *testing.T) {
	ts := httptest.NewServer(Redirect())
	defer ts.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	tests := []string{"/", "/api/recipes/?page=2", "/admin/", "/media/x.jpg"}
	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			resp, err := client.Get(ts.URL + path)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, http.StatusMovedPermanently, resp.StatusCode)

			loc, err := url.Parse(resp.Header.Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, "https", loc.Scheme)
			assert.Equal(t, "127.0.0.1", loc.Hostname()) // port stripped, https default
			assert.Equal(t, path, loc.Path+pathQuery(loc))
		})
	}
}

func pathQuery(u *url.URL) string {
	if u.RawQuery == "" {
		return ""
	}
	return "?" + u.RawQuery
}

func TestServer_Ops(t *testing.T) {
	srv := newTestServer(t, "http://backend:8000")
	ts := httptest.NewServer(srv.Ops())
	defer ts.Close()

	t.Run("healthz", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("routes dump", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/routes")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.Contains(t, string(body), `"prefix":"/api/"`)
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

// newTestServer builds a server over a minimal api+spa table.
func newTestServer(t *testing.T, backendURL string) *Server {
	t.Helper()

	backend, err := url.Parse(backendURL)
	require.NoError(t, err)

	tbl := &routes.Table{
		Upstreams: map[string]*url.URL{"backend": backend},
		Rules: []*routes.Rule{
			{Name: "api", Prefix: "/api/", Action: routes.ActionForward, Upstream: "backend"},
			{Name: "spa", Prefix: "/", Action: routes.ActionSPA, Root: t.TempDir(), Index: "index.html"},
		},
	}
	require.NoError(t, tbl.Validate())

	return NewServer(tbl, Version("test"))
}
