package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"openstream/auth"
	"openstream/db"
	"openstream/dbtest"
)

func newTestRouter(t *testing.T) (http.Handler, *db.CompatDB) {
	t.Helper()
	d := dbtest.New(t)
	dbtest.SeedUser(t, d, "root", "root")
	dbtest.SetRole(t, d, "root", true, false)
	dbtest.SeedUser(t, d, "u1", "alice")

	h := &Handler{DB: d}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), "root")))
		})
	})
	r.Get("/api/admin/status", h.HandleStatus)
	r.Get("/api/admin/settings", h.HandleListSettings)
	r.Put("/api/admin/settings/{name}", h.HandleUpdateSetting)
	r.Put("/api/admin/users/{id}/roles", h.HandleUpdateRoles)
	return r, d
}

func do(h http.Handler, method, url, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleStatus(t *testing.T) {
	r, d := newTestRouter(t)
	if _, err := d.DB.Exec(`INSERT INTO videos (id, title, type, user_id, is_verified) VALUES ('v1', 'a', 'native', 'u1', TRUE), ('v2', 'b', 'youtube', 'u1', FALSE)`); err != nil {
		t.Fatal(err)
	}

	rec := do(r, "GET", "/api/admin/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Database struct {
			TotalUsers int `json:"total_users"`
		} `json:"database"`
		Content map[string]int `json:"content"`
		Graphs  struct {
			Uploads []DailyStat `json:"uploads_7d"`
		} `json:"graphs"`
		Dependencies map[string]any `json:"dependencies"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Database.TotalUsers != 2 {
		t.Errorf("total_users = %d, want 2", body.Database.TotalUsers)
	}
	if body.Content["published"] != 1 || body.Content["pending"] != 1 {
		t.Errorf("content = %v", body.Content)
	}
	if body.Content["native"] != 1 || body.Content["youtube"] != 1 {
		t.Errorf("content = %v", body.Content)
	}
	if len(body.Graphs.Uploads) != 1 || body.Graphs.Uploads[0].Count != 2 {
		t.Errorf("uploads_7d = %+v", body.Graphs.Uploads)
	}
	if body.Dependencies["cache"] != "disabled" || body.Dependencies["youtube"] != false {
		t.Errorf("dependencies = %v", body.Dependencies)
	}
}

func TestSettings(t *testing.T) {
	r, d := newTestRouter(t)

	rec := do(r, "PUT", "/api/admin/settings/is_uploading_enable", `{"value":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body.String())
	}
	var enabled bool
	if err := d.DB.QueryRow(`SELECT bool_value FROM settings WHERE name = 'is_uploading_enable'`).Scan(&enabled); err != nil {
		t.Fatal(err)
	}
	if enabled {
		t.Error("uploads still enabled")
	}

	rec = do(r, "GET", "/api/admin/settings", "")
	var list struct {
		Settings []Setting `json:"settings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Settings) != 1 || list.Settings[0].Name != SettingUploadsEnabled || list.Settings[0].Value {
		t.Errorf("settings = %+v", list.Settings)
	}
}

func TestSettingsRejects(t *testing.T) {
	r, _ := newTestRouter(t)
	tests := []struct {
		name, url, body string
		want            int
	}{
		{"unknown setting", "/api/admin/settings/dark_mode", `{"value":true}`, http.StatusNotFound},
		{"missing value", "/api/admin/settings/is_uploading_enable", `{}`, http.StatusBadRequest},
		{"not a bool", "/api/admin/settings/is_uploading_enable", `{"value":"yes"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(r, "PUT", tt.url, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestUpdateRoles(t *testing.T) {
	r, d := newTestRouter(t)

	rec := do(r, "PUT", "/api/admin/users/u1/roles", `{"is_moderator":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var admin, mod bool
	if err := d.DB.QueryRow(`SELECT is_admin, is_moderator FROM profiles WHERE id = 'u1'`).Scan(&admin, &mod); err != nil {
		t.Fatal(err)
	}
	if admin || !mod {
		t.Errorf("roles = admin:%v moderator:%v", admin, mod)
	}

	if rec := do(r, "PUT", "/api/admin/users/ghost/roles", `{"is_admin":true}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d", rec.Code)
	}
	if rec := do(r, "PUT", "/api/admin/users/u1/roles", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty body status = %d", rec.Code)
	}
	if rec := do(r, "PUT", "/api/admin/users/root/roles", `{"is_admin":false}`); rec.Code != http.StatusBadRequest {
		t.Errorf("self demotion status = %d", rec.Code)
	}
}
