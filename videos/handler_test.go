package videos

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"openstream/auth"
	"openstream/storage"
	"openstream/storage/storagetest"
)

// testUserHeader stands in for the JWT middleware in these tests.
const testUserHeader = "X-Test-User"

func newTestRouter(t *testing.T) (http.Handler, *Store, *storagetest.Memory) {
	t.Helper()
	s, _ := newTestStore(t)
	objects := storagetest.New()
	h := &Handler{
		Store:    s,
		Uploader: &Uploader{Records: s, Objects: objects},
		Objects:  objects,
		TempDir:  t.TempDir(),
	}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if uid := r.Header.Get(testUserHeader); uid != "" {
				r = r.WithContext(auth.WithUserID(r.Context(), uid))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Post("/api/videos", h.HandleUpload)
	r.Get("/api/videos/{id}", h.HandleGet)
	r.Patch("/api/videos/{id}", h.HandleEdit)
	r.Delete("/api/videos/{id}", h.HandleDelete)
	r.Put("/api/videos/{id}/rating", h.HandleRate)
	r.Get("/api/me/videos", h.HandleMyVideos)
	r.Get("/api/users/{id}/videos", h.HandleUserVideos)
	r.Get("/api/themes/suggest", h.HandleSuggestThemes)
	r.Get("/api/categories", h.HandleCategories)
	return r, s, objects
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".bin")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func serve(h http.Handler, req *http.Request, user string) *httptest.ResponseRecorder {
	if user != "" {
		req.Header.Set(testUserHeader, user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleUpload(t *testing.T) {
	h, s, objects := newTestRouter(t)
	body, ct := multipartBody(t,
		map[string]string{"title": "Clip", "themes": `["music","live"]`, "duration_seconds": "61"},
		map[string]string{"file": "video-bytes"})
	req := httptest.NewRequest("POST", "/api/videos", body)
	req.Header.Set("Content-Type", ct)

	rec := serve(h, req, "owner")
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	var v Video
	json.NewDecoder(rec.Body).Decode(&v)
	if v.DurationDisplay != "1:01" || len(v.Themes) != 2 {
		t.Errorf("unexpected video %+v", v)
	}
	if objects.Count(storage.BucketVideos) != 1 {
		t.Error("file not stored")
	}
	if got, err := s.Get(req.Context(), v.ID); err != nil || got.IsVerified {
		t.Errorf("stored video %+v, %v", got, err)
	}
}

func TestHandleUploadValidation(t *testing.T) {
	h, _, objects := newTestRouter(t)
	body, ct := multipartBody(t, map[string]string{"title": "Clip"}, nil)
	req := httptest.NewRequest("POST", "/api/videos", body)
	req.Header.Set("Content-Type", ct)

	rec := serve(h, req, "owner")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "no file selected") {
		t.Errorf("got %d %s", rec.Code, rec.Body.String())
	}
	if objects.Count(storage.BucketVideos) != 0 {
		t.Error("storage touched")
	}
}

func TestHandleUploadDisabled(t *testing.T) {
	h, s, _ := newTestRouter(t)
	s.DB.DB.Exec(`UPDATE settings SET bool_value = FALSE WHERE name = 'is_uploading_enable'`)
	body, ct := multipartBody(t, map[string]string{"title": "Clip"}, map[string]string{"file": "x"})
	req := httptest.NewRequest("POST", "/api/videos", body)
	req.Header.Set("Content-Type", ct)
	if rec := serve(h, req, "owner"); rec.Code != http.StatusForbidden {
		t.Errorf("got %d, want 403", rec.Code)
	}
}

func TestHandleUploadRequiresAuth(t *testing.T) {
	h, _, _ := newTestRouter(t)
	req := httptest.NewRequest("POST", "/api/videos", nil)
	if rec := serve(h, req, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("got %d, want 401", rec.Code)
	}
}

func TestHandleGetVisibility(t *testing.T) {
	h, s, _ := newTestRouter(t)
	insertVideo(t, s, "pending", nil, false)
	insertVideo(t, s, "public", nil, true)

	if rec := serve(h, httptest.NewRequest("GET", "/api/videos/pending", nil), "rater"); rec.Code != http.StatusNotFound {
		t.Errorf("pending for stranger: %d", rec.Code)
	}
	if rec := serve(h, httptest.NewRequest("GET", "/api/videos/pending", nil), "owner"); rec.Code != http.StatusOK {
		t.Errorf("pending for owner: %d", rec.Code)
	}
	if rec := serve(h, httptest.NewRequest("GET", "/api/videos/public", nil), ""); rec.Code != http.StatusOK {
		t.Errorf("public anonymous: %d", rec.Code)
	}
	if rec := serve(h, httptest.NewRequest("GET", "/api/videos/nope", nil), ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing: %d", rec.Code)
	}
}

func TestHandleEditJSON(t *testing.T) {
	h, s, _ := newTestRouter(t)
	insertVideo(t, s, "v", []string{"old"}, false)

	req := httptest.NewRequest("PATCH", "/api/videos/v", strings.NewReader(`{"title":"  New ","themes":"[\"a\",\"/b\"]"}`))
	rec := serve(h, req, "owner")
	if rec.Code != http.StatusOK {
		t.Fatalf("edit: %d %s", rec.Code, rec.Body.String())
	}
	v, _ := s.Get(req.Context(), "v")
	if v.Title != "New" || strings.Join(v.Themes, ",") != "a,b" {
		t.Errorf("after edit: %q %v", v.Title, v.Themes)
	}

	req = httptest.NewRequest("PATCH", "/api/videos/v", strings.NewReader(`{"title":" "}`))
	if rec := serve(h, req, "owner"); rec.Code != http.StatusBadRequest {
		t.Errorf("blank title: %d", rec.Code)
	}
	req = httptest.NewRequest("PATCH", "/api/videos/v", strings.NewReader(`{"title":"x"}`))
	if rec := serve(h, req, "rater"); rec.Code != http.StatusForbidden {
		t.Errorf("foreign edit: %d", rec.Code)
	}
}

func TestHandleEditThumbnailReplacesOld(t *testing.T) {
	h, s, objects := newTestRouter(t)
	body, ct := multipartBody(t, map[string]string{"title": "Clip"},
		map[string]string{"file": "x", "thumbnail": "first"})
	req := httptest.NewRequest("POST", "/api/videos", body)
	req.Header.Set("Content-Type", ct)
	rec := serve(h, req, "owner")
	var v Video
	json.NewDecoder(rec.Body).Decode(&v)

	body, ct = multipartBody(t, map[string]string{"description": "d"}, map[string]string{"thumbnail": "second"})
	req = httptest.NewRequest("PATCH", "/api/videos/"+v.ID, body)
	req.Header.Set("Content-Type", ct)
	if rec := serve(h, req, "owner"); rec.Code != http.StatusOK {
		t.Fatalf("edit: %d %s", rec.Code, rec.Body.String())
	}
	updated, _ := s.Get(req.Context(), v.ID)
	if updated.ThumbnailPath == nil || !objects.Has(storage.BucketThumbnails, *updated.ThumbnailPath) {
		t.Errorf("thumbnail not stored: %v", updated.ThumbnailPath)
	}
	if n := objects.Count(storage.BucketThumbnails); n != 1 {
		t.Errorf("%d thumbnails stored, want the old one replaced", n)
	}
	if updated.Description == nil || *updated.Description != "d" || updated.Title != "Clip" {
		t.Errorf("fields after edit: %+v", updated)
	}
}

func TestHandleEditThumbnailFailureKeepsEdit(t *testing.T) {
	h, s, objects := newTestRouter(t)
	insertVideo(t, s, "v", nil, false)
	objects.FailBucket = storage.BucketThumbnails

	body, ct := multipartBody(t, map[string]string{"title": "Renamed"}, map[string]string{"thumbnail": "img"})
	req := httptest.NewRequest("PATCH", "/api/videos/v", body)
	req.Header.Set("Content-Type", ct)
	if rec := serve(h, req, "owner"); rec.Code != http.StatusOK {
		t.Fatalf("edit: %d %s", rec.Code, rec.Body.String())
	}
	v, _ := s.Get(req.Context(), "v")
	if v.Title != "Renamed" {
		t.Errorf("title = %q", v.Title)
	}
	if v.Thumbnail != nil || v.ThumbnailPath != nil {
		t.Errorf("thumbnail set after failed upload: %v %v", v.Thumbnail, v.ThumbnailPath)
	}
}

func TestHandleEditBlankDescriptionClears(t *testing.T) {
	h, s, _ := newTestRouter(t)
	insertVideo(t, s, "v", nil, false)

	req := httptest.NewRequest("PATCH", "/api/videos/v", strings.NewReader(`{"description":"  about  "}`))
	if rec := serve(h, req, "owner"); rec.Code != http.StatusOK {
		t.Fatalf("edit: %d %s", rec.Code, rec.Body.String())
	}
	v, _ := s.Get(req.Context(), "v")
	if v.Description == nil || *v.Description != "about" {
		t.Fatalf("description = %v", v.Description)
	}

	req = httptest.NewRequest("PATCH", "/api/videos/v", strings.NewReader(`{"description":"   "}`))
	if rec := serve(h, req, "owner"); rec.Code != http.StatusOK {
		t.Fatalf("edit: %d %s", rec.Code, rec.Body.String())
	}
	v, _ = s.Get(req.Context(), "v")
	if v.Description != nil {
		t.Errorf("blank description stored as %q, want NULL", *v.Description)
	}
}

func TestHandleDeleteRemovesObjects(t *testing.T) {
	h, _, objects := newTestRouter(t)
	body, ct := multipartBody(t, map[string]string{"title": "Clip"}, map[string]string{"file": "x", "thumbnail": "y"})
	req := httptest.NewRequest("POST", "/api/videos", body)
	req.Header.Set("Content-Type", ct)
	rec := serve(h, req, "owner")
	var v Video
	json.NewDecoder(rec.Body).Decode(&v)

	if rec := serve(h, httptest.NewRequest("DELETE", "/api/videos/"+v.ID, nil), "rater"); rec.Code != http.StatusForbidden {
		t.Errorf("foreign delete: %d", rec.Code)
	}
	if rec := serve(h, httptest.NewRequest("DELETE", "/api/videos/"+v.ID, nil), "owner"); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	if objects.Count(storage.BucketVideos) != 0 || objects.Count(storage.BucketThumbnails) != 0 {
		t.Error("objects left behind")
	}
}

func TestHandleRate(t *testing.T) {
	h, s, _ := newTestRouter(t)
	insertVideo(t, s, "v", []string{"music"}, true)

	rec := serve(h, httptest.NewRequest("PUT", "/api/videos/v/rating", strings.NewReader(`{"score":4}`)), "rater")
	if rec.Code != http.StatusOK {
		t.Fatalf("rate: %d %s", rec.Code, rec.Body.String())
	}
	var resp map[string]float64
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["quality_score"] != 4 {
		t.Errorf("quality_score = %v", resp["quality_score"])
	}
	rec = serve(h, httptest.NewRequest("PUT", "/api/videos/v/rating", strings.NewReader(`{"score":0}`)), "rater")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("score 0: %d", rec.Code)
	}
}

func TestHandleSuggestAndCategories(t *testing.T) {
	h, s, _ := newTestRouter(t)
	insertVideo(t, s, "a", []string{"Music", "Live"}, true)
	insertVideo(t, s, "b", []string{"Mumble"}, true)
	insertVideo(t, s, "c", []string{"Hidden"}, false)

	rec := serve(h, httptest.NewRequest("GET", "/api/themes/suggest?q=/mu", nil), "")
	var sug map[string][]string
	json.NewDecoder(rec.Body).Decode(&sug)
	if len(sug["suggestions"]) != 2 {
		t.Errorf("suggestions = %v", sug["suggestions"])
	}

	rec = serve(h, httptest.NewRequest("GET", "/api/categories", nil), "")
	var cats map[string][]string
	json.NewDecoder(rec.Body).Decode(&cats)
	got := cats["categories"]
	if len(got) != 4 || got[0] != AllCategory {
		t.Errorf("categories = %v", got)
	}
	for _, c := range got {
		if c == "Hidden" {
			t.Error("unpublished themes leaked into categories")
		}
	}
}
