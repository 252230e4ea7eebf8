// Package videos owns the video catalog: the record type, its storage,
// the upload workflow and the video HTTP endpoints.
package videos

import (
	"errors"
	"strings"
)

// Type distinguishes hosted files from external links.
type Type string

const (
	TypeNative  Type = "native"
	TypeYouTube Type = "youtube"
)

var (
	ErrNotFound  = errors.New("video not found")
	ErrForbidden = errors.New("only the owner can change this video")
)

// Video is a catalog entry. Themes are normalized on read.
type Video struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        *string  `json:"description"`
	Type               Type     `json:"type"`
	URL                *string  `json:"url"`
	YouTubeID          *string  `json:"youtube_id"`
	UserID             string   `json:"user_id"`
	QualityScore       *float64 `json:"quality_score"`
	Themes             []string `json:"themes"`
	Duration           *string  `json:"duration,omitempty"`
	DurationDisplay    string   `json:"duration_display"`
	Thumbnail          *string  `json:"thumbnail,omitempty"`
	IsVerified         bool     `json:"is_verified"`
	IsRefused          bool     `json:"is_refused"`
	VerifiedOnce       bool     `json:"verified_once"`
	VerifiedOnceUserID *string  `json:"verified_once_user_id"`
	RefusedOnce        bool     `json:"refused_once"`
	RefusedOnceUserID  *string  `json:"refused_once_user_id"`
	RefusalReason      *string  `json:"refusal_reason,omitempty"`
	CreatedAt          string   `json:"created_at"`

	StoragePath   *string `json:"-"`
	ThumbnailPath *string `json:"-"`
}

// Published reports whether the video is visible in public listings.
func (v *Video) Published() bool {
	return v.IsVerified && !v.IsRefused
}

// HasTheme reports whether the video carries theme, ignoring case.
func (v *Video) HasTheme(theme string) bool {
	for _, t := range v.Themes {
		if strings.EqualFold(t, theme) {
			return true
		}
	}
	return false
}

// PublicVideo is the fixed projection served by the versioned public API.
type PublicVideo struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  *string  `json:"description"`
	Type         Type     `json:"type"`
	URL          *string  `json:"url"`
	YouTubeID    *string  `json:"youtube_id"`
	QualityScore *float64 `json:"quality_score"`
	Themes       []string `json:"themes"`
}

func (v *Video) Public() PublicVideo {
	return PublicVideo{
		ID:           v.ID,
		Title:        v.Title,
		Description:  v.Description,
		Type:         v.Type,
		URL:          v.URL,
		YouTubeID:    v.YouTubeID,
		QualityScore: v.QualityScore,
		Themes:       v.Themes,
	}
}

// AllCategory is the catch-all category that disables filtering.
const AllCategory = "All"

// Categories returns AllCategory followed by every distinct theme in
// first-seen order.
func Categories(list []Video) []string {
	out := []string{AllCategory}
	seen := map[string]bool{}
	for _, v := range list {
		for _, t := range v.Themes {
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// InCategory reports whether v belongs in the category listing. An empty
// category or AllCategory matches everything.
func (v *Video) InCategory(category string) bool {
	category = strings.TrimSpace(category)
	if category == "" || strings.EqualFold(category, AllCategory) {
		return true
	}
	return v.HasTheme(category)
}
