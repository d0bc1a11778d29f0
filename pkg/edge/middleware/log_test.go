package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/foodgram/edge/pkg/routes"
)

func TestLog(t *testing.T) {
	t.Run("logs request details", func(t *testing.T) {
		buf := captureLog(t)

		Log(false)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("short"))
		})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/recipes/", nil))

		out := buf.String()
		assert.Contains(t, out, "path=/api/recipes/")
		assert.Contains(t, out, "status=418")
		assert.Contains(t, out, "size=5")
	})

	t.Run("quiet rule suppresses logging", func(t *testing.T) {
		buf := captureLog(t)

		req := httptest.NewRequest(http.MethodGet, "/static/admin/base.css", nil)
		rule := &routes.Rule{Name: "admin-static", Prefix: "/static/admin/", Quiet: true}
		req = req.WithContext(routes.ToContext(req.Context(), rule))

		Log(false)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})).ServeHTTP(httptest.NewRecorder(), req)

		assert.Empty(t, buf.String())
	})

	t.Run("debug hides sensitive headers", func(t *testing.T) {
		buf := captureLog(t)

		req := httptest.NewRequest(http.MethodGet, "/api/", nil)
		req.Header.Set("Authorization", "Token hunter2")

		Log(true)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})).ServeHTTP(httptest.NewRecorder(), req)

		out := buf.String()
		assert.NotContains(t, out, "hunter2")
		assert.Contains(t, out, "***")
	})
}

// captureLog redirects the default logger into a buffer for the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()

	buf := bytes.NewBuffer(nil)
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{})))
	t.Cleanup(func() { slog.SetDefault(old) })

	return buf
}
