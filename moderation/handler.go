package moderation

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"openstream/auth"
	"openstream/httputil"
	"openstream/logging"
	"openstream/metrics"
	"openstream/videos"
)

// Handler serves the moderation queue and actions. Routes must be guarded
// by the moderator role.
type Handler struct {
	Store  *Store
	Videos *videos.Store
}

// HandleQueue lists videos awaiting a final decision, oldest first.
func (h *Handler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	list, err := h.Videos.ListPending(r.Context(), 0)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("moderation queue failed")
		httputil.WriteError(w, http.StatusInternalServerError, "query failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"videos": list, "count": len(list)})
}

// HandleApprove records the caller's approval.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "approve", Approve, nil)
}

// HandleRefuse records the caller's refusal with an optional {"reason": ...}.
func (h *Handler) HandleRefuse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := httputil.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, httputil.ErrEmptyBody) {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var reason *string
	if s := strings.TrimSpace(req.Reason); s != "" {
		reason = &s
	}
	h.act(w, r, "refuse", Refuse, reason)
}

func (h *Handler) act(w http.ResponseWriter, r *http.Request, name string, action Action, reason *string) {
	actor, ok := auth.ExtractUserID(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ctx := r.Context()
	videoID := chi.URLParam(r, "id")
	flags, err := h.Store.Apply(ctx, videoID, actor, action, reason)
	switch {
	case err == nil:
	case errors.Is(err, videos.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, ErrAlreadyApproved), errors.Is(err, ErrAlreadyRefused), errors.Is(err, ErrFinalized), errors.Is(err, ErrConflict):
		metrics.ModerationActions.WithLabelValues(name, "rejected").Inc()
		httputil.WriteError(w, http.StatusConflict, err.Error())
		return
	default:
		logging.Ctx(ctx).Error().Err(err).Str("video_id", videoID).Msg("moderation failed")
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	state := flags.State()
	metrics.ModerationActions.WithLabelValues(name, state.String()).Inc()
	logging.Ctx(ctx).Info().Str("video_id", videoID).Str("moderator", actor).Str("action", name).Str("state", state.String()).Msg("moderation action")
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"video_id":    videoID,
		"state":       state.String(),
		"is_verified": flags.IsVerified,
		"is_refused":  flags.IsRefused,
	})
}
