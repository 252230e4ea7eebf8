// Package pages maps friendly URLs onto the static front-end files.
package pages

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"openstream/httputil"
)

// Rewrites maps a friendly path to a file under the static directory.
var Rewrites = map[string]string{
	"/home":         "home.html",
	"/legal":        "legal.html",
	"/contributors": "contributors.html",
	"/roadmap":      "roadmap.html",
}

// VideoPage renders one video; the page reads the id from its own URL.
const VideoPage = "video.html"

// Handler serves files from Dir.
type Handler struct {
	Dir string
}

func (h *Handler) serve(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(h.Dir, name)
		if _, err := os.Stat(path); err != nil {
			httputil.WriteError(w, http.StatusNotFound, "page not found")
			return
		}
		http.ServeFile(w, r, path)
	}
}

// Mount registers every rewrite and the video detail page on r.
func (h *Handler) Mount(r chi.Router) {
	for from, to := range Rewrites {
		r.Get(from, h.serve(to))
	}
	r.Get("/video/{id}", h.serve(VideoPage))
}
