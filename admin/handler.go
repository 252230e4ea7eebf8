// Package admin serves operator endpoints: service status, boolean settings
// and user roles. Every route requires the admin role.
package admin

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"

	"openstream/auth"
	"openstream/cache"
	"openstream/db"
	"openstream/httputil"
	"openstream/logging"
	"openstream/youtube"
)

// SettingUploadsEnabled gates new video submissions.
const SettingUploadsEnabled = "is_uploading_enable"

// KnownSettings lists the settings an admin may change.
var KnownSettings = []string{SettingUploadsEnabled}

func knownSetting(name string) bool {
	for _, s := range KnownSettings {
		if s == name {
			return true
		}
	}
	return false
}

// Handler holds dependencies for admin endpoints.
type Handler struct {
	DB      *db.CompatDB
	Cache   *cache.Cache
	YouTube *youtube.Client
}

type DailyStat struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// HandleStatus returns runtime, database and catalog counters.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.Ctx(ctx)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats := map[string]any{
		"system": map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory_mb":  m.Alloc / 1024 / 1024,
			"os_threads": runtime.GOMAXPROCS(0),
			"go_version": runtime.Version(),
		},
	}

	var users, ratings, published, pending, refused, native, linked int
	var dbSizeMB float64
	if err := h.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM ratings),
			%s,
			(SELECT COUNT(*) FROM videos WHERE is_verified = TRUE AND is_refused = FALSE),
			(SELECT COUNT(*) FROM videos WHERE is_verified = FALSE AND is_refused = FALSE),
			(SELECT COUNT(*) FROM videos WHERE is_refused = TRUE),
			(SELECT COUNT(*) FROM videos WHERE type = 'native'),
			(SELECT COUNT(*) FROM videos WHERE type = 'youtube')
	`, h.DB.DBSizeExpr())).Scan(&users, &ratings, &dbSizeMB, &published, &pending, &refused, &native, &linked); err != nil {
		log.Error().Err(err).Msg("admin status: stats query failed")
	}

	stats["database"] = map[string]any{
		"dialect":       string(h.DB.Dialect),
		"total_users":   users,
		"total_ratings": ratings,
		"size_mb":       dbSizeMB,
	}
	stats["content"] = map[string]any{
		"published": published, "pending": pending, "refused": refused,
		"native": native, "youtube": linked,
	}

	fetchDailyStats := func(table string) []DailyStat {
		rows, err := h.DB.QueryContext(ctx, fmt.Sprintf(
			`SELECT %s AS d, COUNT(*) FROM %s WHERE created_at >= %s GROUP BY d ORDER BY d ASC`,
			h.DB.DateOfExpr("created_at"), table, h.DB.DateExpr("-7 days")))
		if err != nil {
			log.Warn().Err(err).Str("table", table).Msg("admin status: daily stats failed")
			return []DailyStat{}
		}
		defer rows.Close()
		res := []DailyStat{}
		for rows.Next() {
			var ds DailyStat
			if err := rows.Scan(&ds.Date, &ds.Count); err == nil {
				res = append(res, ds)
			}
		}
		return res
	}
	stats["graphs"] = map[string]any{
		"uploads_7d": fetchDailyStats("videos"),
		"ratings_7d": fetchDailyStats("ratings"),
	}

	cacheStatus := "disabled"
	if h.Cache.Enabled() {
		cacheStatus = "ok"
		if err := h.Cache.Ping(ctx); err != nil {
			cacheStatus = "error"
		}
	}
	stats["dependencies"] = map[string]any{
		"cache":   cacheStatus,
		"youtube": h.YouTube.Available(),
	}

	httputil.WriteJSON(w, http.StatusOK, stats)
}

// Setting is one boolean admin setting.
type Setting struct {
	Name      string `json:"name"`
	Value     bool   `json:"value"`
	UpdatedAt string `json:"updated_at"`
}

// HandleListSettings returns every stored setting.
func (h *Handler) HandleListSettings(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.QueryContext(r.Context(), `SELECT name, bool_value, updated_at FROM settings ORDER BY name`)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to query settings")
		return
	}
	defer rows.Close()
	out := []Setting{}
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Name, &s.Value, &s.UpdatedAt); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to read settings")
			return
		}
		out = append(out, s)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"settings": out})
}

// HandleUpdateSetting sets a known setting from {"value": bool}.
func (h *Handler) HandleUpdateSetting(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !knownSetting(name) {
		httputil.WriteError(w, http.StatusNotFound, "unknown setting")
		return
	}
	var req struct {
		Value *bool `json:"value"`
	}
	if err := httputil.DecodeJSON(w, r, &req); err != nil || req.Value == nil {
		httputil.WriteError(w, http.StatusBadRequest, "value must be true or false")
		return
	}
	_, err := h.DB.ExecContext(r.Context(), `
		INSERT INTO settings (name, bool_value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET bool_value = excluded.bool_value, updated_at = `+h.DB.NowUTC(),
		name, *req.Value)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("setting", name).Msg("setting update failed")
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update setting")
		return
	}
	logging.Ctx(r.Context()).Info().Str("setting", name).Bool("value", *req.Value).Msg("setting updated")
	httputil.WriteJSON(w, http.StatusOK, Setting{Name: name, Value: *req.Value})
}

var errSelfDemotion = errors.New("admins cannot remove their own admin role")

// HandleUpdateRoles sets is_admin and/or is_moderator on a profile.
func (h *Handler) HandleUpdateRoles(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "id")
	var req struct {
		IsAdmin     *bool `json:"is_admin"`
		IsModerator *bool `json:"is_moderator"`
	}
	if err := httputil.DecodeJSON(w, r, &req); err != nil || (req.IsAdmin == nil && req.IsModerator == nil) {
		httputil.WriteError(w, http.StatusBadRequest, "is_admin or is_moderator is required")
		return
	}
	if actor, _ := auth.ExtractUserID(r); actor == target && req.IsAdmin != nil && !*req.IsAdmin {
		httputil.WriteError(w, http.StatusBadRequest, errSelfDemotion.Error())
		return
	}

	ctx := r.Context()
	var isAdmin, isModerator bool
	err := db.WithTx(ctx, h.DB, func(conn *db.CompatConn) error {
		if err := conn.QueryRowContext(ctx, `SELECT is_admin, is_moderator FROM profiles WHERE id = ?`, target).
			Scan(&isAdmin, &isModerator); err != nil {
			return err
		}
		if req.IsAdmin != nil {
			isAdmin = *req.IsAdmin
		}
		if req.IsModerator != nil {
			isModerator = *req.IsModerator
		}
		_, err := conn.ExecContext(ctx,
			`UPDATE profiles SET is_admin = ?, is_moderator = ?, updated_at = `+h.DB.NowUTC()+` WHERE id = ?`,
			isAdmin, isModerator, target)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("user_id", target).Msg("role update failed")
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update roles")
		return
	}
	logging.Ctx(ctx).Info().Str("user_id", target).Bool("is_admin", isAdmin).Bool("is_moderator", isModerator).Msg("roles updated")
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"user_id": target, "is_admin": isAdmin, "is_moderator": isModerator})
}
