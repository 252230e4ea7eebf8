package httputil

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// DefaultBodyLimit is the default maximum JSON request body size (1 MB).
const DefaultBodyLimit int64 = 1 << 20

// UploadBodyLimit caps multipart uploads (video plus thumbnail).
const UploadBodyLimit int64 = 512 << 20

// WriteJSON sends a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteError sends {"error": msg}.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// MaxBody wraps r.Body with a size limit to prevent oversized payloads.
func MaxBody(w http.ResponseWriter, r *http.Request, n int64) {
	r.Body = http.MaxBytesReader(w, r.Body, n)
}

// ErrEmptyBody is returned by DecodeJSON when the request has no body.
var ErrEmptyBody = errors.New("empty request body")

// DecodeJSON reads a size-limited JSON body into dst.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	MaxBody(w, r, DefaultBodyLimit)
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return ErrEmptyBody
	}
	return err
}

// RequireMethod writes 405 with an Allow header when r.Method is not one of
// allowed. It reports whether the handler may continue.
func RequireMethod(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	for _, m := range allowed {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}
