package pages

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newRouter(t *testing.T, files ...string) http.Handler {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("<html>"+f+"</html>"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	r := chi.NewRouter()
	(&Handler{Dir: dir}).Mount(r)
	return r
}

func TestRewrites(t *testing.T) {
	r := newRouter(t, "home.html", "legal.html", "contributors.html", "roadmap.html", "video.html")
	tests := map[string]string{
		"/home":         "home.html",
		"/legal":        "legal.html",
		"/contributors": "contributors.html",
		"/roadmap":      "roadmap.html",
		"/video/abc":    "video.html",
	}
	for path, file := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, rec.Code)
			continue
		}
		if !strings.Contains(rec.Body.String(), file) {
			t.Errorf("%s: body = %q, want %s", path, rec.Body.String(), file)
		}
	}
}

func TestMissingPage(t *testing.T) {
	r := newRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/roadmap", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
