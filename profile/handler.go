// Package profile serves the signed-in user's public profile, profile
// images and explicitly liked themes.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"openstream/auth"
	"openstream/db"
	"openstream/httputil"
	"openstream/logging"
	"openstream/storage"
	"openstream/validation"
	"openstream/videos"
)

// ImageBodyLimit caps avatar and banner uploads.
const ImageBodyLimit int64 = 10 << 20

// Handler holds dependencies for profile endpoints.
type Handler struct {
	DB      *db.CompatDB
	Videos  *videos.Store
	Objects storage.ObjectStore
	TempDir string
	Now     func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Profile is the signed-in user's view of their account.
type Profile struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Username    *string  `json:"username"`
	DisplayName *string  `json:"display_name"`
	AvatarURL   *string  `json:"avatar_url"`
	BannerURL   *string  `json:"banner_url"`
	IsAdmin     bool     `json:"is_admin"`
	IsModerator bool     `json:"is_moderator"`
	CreatedAt   string   `json:"created_at"`
	LikedThemes []string `json:"liked_themes"`
}

func (h *Handler) load(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	err := h.DB.QueryRowContext(ctx, `
		SELECT u.id, u.email, p.username, p.display_name, p.avatar_url, p.banner_url,
		       COALESCE(p.is_admin, FALSE), COALESCE(p.is_moderator, FALSE), u.created_at
		FROM users u
		LEFT JOIN profiles p ON p.id = u.id
		WHERE u.id = ?
	`, userID).Scan(&p.ID, &p.Email, &p.Username, &p.DisplayName, &p.AvatarURL, &p.BannerURL,
		&p.IsAdmin, &p.IsModerator, &p.CreatedAt)
	if err != nil {
		return p, err
	}
	p.LikedThemes, err = h.Videos.LikedThemes(ctx, userID)
	return p, err
}

// HandleGet returns the authenticated user's profile.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.ExtractUserID(r)
	p, err := h.load(r.Context(), userID)
	if errors.Is(err, sql.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("load profile failed")
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

type updateRequest struct {
	Username    *string `json:"username" validate:"omitempty,min=3,max=32"`
	DisplayName *string `json:"display_name" validate:"omitempty,max=64"`
}

// HandleUpdate changes username and/or display name.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.ExtractUserID(r)
	var req updateRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username != nil {
		u := strings.TrimSpace(*req.Username)
		req.Username = &u
	}
	if req.DisplayName != nil {
		d := strings.TrimSpace(*req.DisplayName)
		req.DisplayName = &d
	}
	if err := validation.Struct(req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username != nil && *req.Username == "" {
		httputil.WriteError(w, http.StatusBadRequest, "username cannot be empty")
		return
	}

	sets := []string{}
	args := []any{}
	if req.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, *req.Username)
	}
	if req.DisplayName != nil {
		sets = append(sets, "display_name = ?")
		args = append(args, *req.DisplayName)
	}
	if len(sets) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	args = append(args, userID)
	_, err := h.DB.ExecContext(r.Context(),
		`UPDATE profiles SET `+strings.Join(sets, ", ")+`, updated_at = `+h.DB.NowUTC()+` WHERE id = ?`, args...)
	if db.IsUniqueViolation(err) {
		httputil.WriteError(w, http.StatusConflict, "username already taken")
		return
	}
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("update profile failed")
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	h.HandleGet(w, r)
}

// HandleAvatar replaces the profile picture.
func (h *Handler) HandleAvatar(w http.ResponseWriter, r *http.Request) {
	h.handleImage(w, r, "avatar", "avatar_url")
}

// HandleBanner replaces the profile banner.
func (h *Handler) HandleBanner(w http.ResponseWriter, r *http.Request) {
	h.handleImage(w, r, "banner", "banner_url")
}

func (h *Handler) handleImage(w http.ResponseWriter, r *http.Request, kind, column string) {
	userID, _ := auth.ExtractUserID(r)
	ctx := r.Context()

	form, err := httputil.SpoolMultipart(w, r, ImageBodyLimit, h.TempDir)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer form.Close()

	f := form.Files["file"]
	if f == nil {
		httputil.WriteError(w, http.StatusBadRequest, "no file selected")
		return
	}
	if !strings.HasPrefix(f.ContentType, "image/") {
		httputil.WriteError(w, http.StatusBadRequest, "file must be an image")
		return
	}

	key := fmt.Sprintf("%s/%s_%s", userID, kind, storage.ObjectName(h.now(), f.Name))
	file, err := os.Open(f.Path)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to read upload")
		return
	}
	defer file.Close()
	if err := h.Objects.Put(ctx, storage.BucketAvatars, key, file, f.Size, f.ContentType); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("kind", kind).Msg("profile image upload failed")
		httputil.WriteError(w, http.StatusBadGateway, "failed to store image")
		return
	}

	url := h.Objects.PublicURL(storage.BucketAvatars, key)
	if _, err := h.DB.ExecContext(ctx,
		`UPDATE profiles SET `+column+` = ?, updated_at = `+h.DB.NowUTC()+` WHERE id = ?`, url, userID); err != nil {
		if rmErr := h.Objects.Remove(context.WithoutCancel(ctx), storage.BucketAvatars, key); rmErr != nil {
			logging.Ctx(ctx).Warn().Err(rmErr).Str("key", key).Msg("orphaned profile image")
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{column: url})
}

// HandleListThemes returns the user's liked themes.
func (h *Handler) HandleListThemes(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.ExtractUserID(r)
	themes, err := h.Videos.LikedThemes(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load themes")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"themes": themes})
}

// HandleLikeThemes adds {"themes": [...]} to the user's liked themes.
func (h *Handler) HandleLikeThemes(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.ExtractUserID(r)
	var req struct {
		Themes videos.ThemeField `json:"themes"`
	}
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	themes := videos.CleanThemes(req.Themes.List())
	if len(themes) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "themes is required")
		return
	}
	if err := videos.LikeThemes(r.Context(), h.DB, userID, themes); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("like themes failed")
		httputil.WriteError(w, http.StatusInternalServerError, "failed to save themes")
		return
	}
	h.HandleListThemes(w, r)
}

// HandleUnlikeTheme removes one liked theme.
func (h *Handler) HandleUnlikeTheme(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.ExtractUserID(r)
	if err := h.Videos.UnlikeTheme(r.Context(), userID, chi.URLParam(r, "theme")); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to remove theme")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
