package feed

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"openstream/auth"
	"openstream/httputil"
	"openstream/logging"
	"openstream/videos"
	"openstream/youtube"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Handler holds dependencies for the feed endpoints.
type Handler struct {
	Store       *videos.Store
	Recommender *Recommender
	// YouTube fills in missing durations of link videos; optional.
	YouTube *youtube.Client
}

func limitParam(r *http.Request, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= maxLimit {
		return n
	}
	return def
}

// HandleFeed serves the home feed. Signed-in viewers get the
// recommendation order; anonymous viewers get the best rated videos first.
// ?category= narrows the feed to one theme.
func (h *Handler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, signedIn := auth.ExtractUserID(r)

	var list []Scored
	if signedIn {
		list = h.Recommender.Recommend(ctx, userID)
	} else {
		catalog, err := h.Store.ListPublished(ctx, videos.BestRatedFirst, 0)
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("feed: catalog fetch failed")
		}
		list = Rank(catalog, nil)
	}

	if cat := r.URL.Query().Get("category"); cat != "" {
		list = filterCategory(list, cat)
	}
	if limit := limitParam(r, defaultLimit); len(list) > limit {
		list = list[:limit]
	}
	h.enrichDurations(ctx, list)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"videos": list, "count": len(list)})
}

func filterCategory(list []Scored, category string) []Scored {
	out := make([]Scored, 0, len(list))
	for i := range list {
		if list[i].InCategory(category) {
			out = append(out, list[i])
		}
	}
	return out
}

// enrichDurations looks up missing YouTube durations and stores what it finds.
// Lookup failures leave the placeholder display.
func (h *Handler) enrichDurations(ctx context.Context, list []Scored) {
	if !h.YouTube.Available() {
		return
	}
	var ids []string
	for i := range list {
		v := &list[i].Video
		if v.Type == videos.TypeYouTube && v.YouTubeID != nil && (v.Duration == nil || *v.Duration == "") {
			ids = append(ids, *v.YouTubeID)
		}
	}
	if len(ids) == 0 {
		return
	}
	found, err := h.YouTube.Durations(ctx, ids)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int("requested", len(ids)).Int("found", len(found)).Msg("feed: youtube durations incomplete")
	}
	for i := range list {
		v := &list[i].Video
		if v.YouTubeID == nil {
			continue
		}
		iso, ok := found[*v.YouTubeID]
		if !ok || (v.Duration != nil && *v.Duration != "") {
			continue
		}
		v.Duration = &iso
		v.DurationDisplay = videos.FormatDuration(iso)
		if err := h.Store.SetDuration(ctx, v.ID, iso); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("video_id", v.ID).Msg("feed: storing duration failed")
		}
	}
}

// HandleSimilar lists published videos sharing themes with the given one.
func (h *Handler) HandleSimilar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref, err := h.Store.Get(ctx, chi.URLParam(r, "id"))
	if err != nil && !errors.Is(err, videos.ErrNotFound) {
		logging.Ctx(ctx).Error().Err(err).Msg("similar: video lookup failed")
		httputil.WriteError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if err != nil || !ref.Published() {
		httputil.WriteError(w, http.StatusNotFound, videos.ErrNotFound.Error())
		return
	}
	catalog, err := h.Store.ListPublished(ctx, videos.NewestFirst, 0)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("similar: catalog fetch failed")
		httputil.WriteError(w, http.StatusInternalServerError, "query failed")
		return
	}
	list := Similar(ref, catalog, limitParam(r, 10))
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"videos": list, "count": len(list)})
}
