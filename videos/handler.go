package videos

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"openstream/auth"
	"openstream/httputil"
	"openstream/logging"
	"openstream/storage"
)

// Handler serves the video endpoints.
type Handler struct {
	Store    *Store
	Uploader *Uploader
	Objects  storage.ObjectStore
	// TempDir receives spooled uploads; empty means the OS temp dir.
	TempDir string
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var inputErr *InputError
	var stageErr *StageError
	switch {
	case errors.Is(err, ErrUploadsDisabled):
		httputil.WriteError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &inputErr):
		httputil.WriteError(w, http.StatusBadRequest, inputErr.Error())
	case errors.Is(err, ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, ErrNotFound.Error())
	case errors.Is(err, ErrForbidden):
		httputil.WriteError(w, http.StatusForbidden, ErrForbidden.Error())
	case errors.As(err, &stageErr) && stageErr.Stage == StageUploadingFile:
		logging.Ctx(r.Context()).Error().Err(err).Msg("video upload failed")
		httputil.WriteError(w, http.StatusBadGateway, "failed to store the video file")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("video request failed")
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func toFile(sf *httputil.SpooledFile) *File {
	if sf == nil {
		return nil
	}
	return &File{Name: sf.Name, Path: sf.Path, Size: sf.Size, ContentType: sf.ContentType}
}

// formThemes accepts repeated "themes" fields or a single JSON/plain value.
func formThemes(form *httputil.Form) []string {
	vs := form.Values["themes"]
	if len(vs) == 1 {
		return NormalizeThemes(vs[0])
	}
	return vs
}

// HandleUpload accepts a multipart submission with a "file" or an
// "external_url", plus title, description, themes and an optional thumbnail.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.ExtractUserID(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	enabled, err := h.Store.UploadsEnabled(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if !enabled {
		h.writeErr(w, r, ErrUploadsDisabled)
		return
	}

	form, err := httputil.SpoolMultipart(w, r, httputil.UploadBodyLimit, h.TempDir)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer form.Close()

	sub := Submission{
		UserID:      userID,
		Title:       form.Value("title"),
		Description: form.Value("description"),
		Themes:      formThemes(form),
		File:        toFile(form.Files["file"]),
		ExternalURL: form.Value("external_url"),
		Thumbnail:   toFile(form.Files["thumbnail"]),
	}
	if raw := form.Value("duration_seconds"); raw != "" {
		if secs, err := strconv.ParseFloat(raw, 64); err == nil {
			sub.DurationSeconds = &secs
		}
	}

	v, err := h.Uploader.Submit(r.Context(), sub)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, v)
}

type videoDetail struct {
	Video
	MyRating int `json:"my_rating,omitempty"`
}

// HandleGet returns one video. Unpublished videos are visible to their owner only.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	v, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	userID, signedIn := auth.ExtractUserID(r)
	if !v.Published() && (!signedIn || userID != v.UserID) {
		h.writeErr(w, r, ErrNotFound)
		return
	}
	out := videoDetail{Video: v}
	if signedIn {
		if out.MyRating, err = h.Store.UserRating(r.Context(), v.ID, userID); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("rating lookup failed")
		}
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

type editRequest struct {
	Title       *string     `json:"title"`
	Description *string     `json:"description"`
	Themes      *ThemeField `json:"themes"`
}

// HandleEdit updates title, description, themes and optionally the
// thumbnail. It accepts JSON or multipart.
func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.ExtractUserID(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	v, err := h.Store.Get(ctx, id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if v.UserID != userID {
		h.writeErr(w, r, ErrForbidden)
		return
	}

	var edit Edit
	var thumb *File
	if httputil.IsMultipart(r) {
		form, err := httputil.SpoolMultipart(w, r, httputil.UploadBodyLimit, h.TempDir)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
		defer form.Close()
		for _, f := range []struct {
			name string
			dst  **string
		}{{"title", &edit.Title}, {"description", &edit.Description}} {
			if form.Has(f.name) {
				val := form.Value(f.name)
				*f.dst = &val
			}
		}
		if form.Has("themes") {
			edit.Themes = CleanThemes(formThemes(form))
		}
		thumb = toFile(form.Files["thumbnail"])
	} else {
		var req editRequest
		if err := httputil.DecodeJSON(w, r, &req); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		edit.Title, edit.Description = req.Title, req.Description
		if req.Themes != nil {
			edit.Themes = CleanThemes(req.Themes.List())
		}
	}
	if edit.Title != nil {
		t := strings.TrimSpace(*edit.Title)
		if t == "" {
			h.writeErr(w, r, ErrTitleRequired)
			return
		}
		edit.Title = &t
	}

	var newKey string
	if thumb != nil {
		newKey = storage.ObjectName(h.Uploader.now(), thumb.Name)
		if err := h.Uploader.putFile(ctx, storage.BucketThumbnails, newKey, thumb); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("video_id", id).Msg("thumbnail upload failed, keeping the current one")
			newKey = ""
		} else {
			url := h.Objects.PublicURL(storage.BucketThumbnails, newKey)
			edit.Thumbnail, edit.ThumbnailPath = &url, &newKey
		}
	}

	if err := h.Store.Update(ctx, id, userID, edit); err != nil {
		if newKey != "" {
			h.removeObject(ctx, storage.BucketThumbnails, newKey)
		}
		h.writeErr(w, r, err)
		return
	}
	if newKey != "" && v.ThumbnailPath != nil && *v.ThumbnailPath != newKey {
		h.removeObject(ctx, storage.BucketThumbnails, *v.ThumbnailPath)
	}

	updated, err := h.Store.Get(ctx, id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

// HandleDelete removes the caller's video and, best effort, its objects.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.ExtractUserID(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	v, err := h.Store.Get(ctx, id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if err := h.Store.Delete(ctx, id, userID); err != nil {
		h.writeErr(w, r, err)
		return
	}
	if v.StoragePath != nil {
		h.removeObject(ctx, storage.BucketVideos, *v.StoragePath)
	}
	if v.ThumbnailPath != nil {
		h.removeObject(ctx, storage.BucketThumbnails, *v.ThumbnailPath)
	}
	logging.Ctx(ctx).Info().Str("video_id", id).Msg("video deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeObject(ctx context.Context, bucket, key string) {
	if err := h.Objects.Remove(context.WithoutCancel(ctx), bucket, key); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("bucket", bucket).Str("key", key).Msg("object cleanup failed")
	}
}

// HandleMyVideos lists every video of the caller, moderated or not.
func (h *Handler) HandleMyVideos(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.ExtractUserID(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.Store.ListByUser(r.Context(), userID)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"videos": list})
}

// HandleUserVideos lists another user's published videos.
func (h *Handler) HandleUserVideos(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListPublishedByUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"videos": list})
}

// HandleRate stores the caller's 1-5 rating.
func (h *Handler) HandleRate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.ExtractUserID(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		Score int `json:"score"`
	}
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	quality, err := h.Store.Rate(r.Context(), chi.URLParam(r, "id"), userID, req.Score)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"score": req.Score, "quality_score": quality})
}

// HandleSuggestThemes serves tag suggestions for "/"-prefixed input in ?q=.
func (h *Handler) HandleSuggestThemes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if !strings.HasPrefix(q, "/") {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"suggestions": []string{}})
		return
	}
	known, err := h.Store.KnownThemes(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"suggestions": SuggestThemes(q, known)})
}

// HandleCategories lists "All" followed by the themes of published videos.
func (h *Handler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListPublished(r.Context(), NewestFirst, 0)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"categories": Categories(list)})
}
