// Package publicapi serves the versioned, unauthenticated read API.
package publicapi

import (
	"context"
	"net/http"

	"openstream/httputil"
	"openstream/logging"
	"openstream/videos"
)

type catalog interface {
	ListPublished(ctx context.Context, order videos.Order, limit int) ([]videos.Video, error)
}

// Handler serves /api/v1.
type Handler struct {
	Videos catalog
}

// Index is the discovery document served at /api/v1.
type Index struct {
	Message   string   `json:"message"`
	Endpoints []string `json:"endpoints"`
}

// HandleIndex lists the available v1 endpoints.
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, Index{
		Message:   "OpenStream API v1",
		Endpoints: []string{"/api/v1/videos"},
	})
}

// HandleVideos returns every published video, newest first, as a bare
// array of public projections.
func (h *Handler) HandleVideos(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	list, err := h.Videos.ListPublished(r.Context(), videos.NewestFirst, 0)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("public video list failed")
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]videos.PublicVideo, 0, len(list))
	for i := range list {
		out = append(out, list[i].Public())
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
