package videos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"openstream/db"
)

const videoColumns = `id, title, description, type, url, youtube_id, user_id, quality_score,
	themes, duration, thumbnail, storage_path, thumbnail_path,
	is_verified, is_refused, verified_once, verified_once_user_id,
	refused_once, refused_once_user_id, refusal_reason, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (Video, error) {
	var v Video
	var themes ThemeField
	err := row.Scan(&v.ID, &v.Title, &v.Description, &v.Type, &v.URL, &v.YouTubeID, &v.UserID, &v.QualityScore,
		&themes, &v.Duration, &v.Thumbnail, &v.StoragePath, &v.ThumbnailPath,
		&v.IsVerified, &v.IsRefused, &v.VerifiedOnce, &v.VerifiedOnceUserID,
		&v.RefusedOnce, &v.RefusedOnceUserID, &v.RefusalReason, &v.CreatedAt)
	if err != nil {
		return v, err
	}
	v.Themes = themes.List()
	v.DurationDisplay = FormatDuration(v.Duration)
	return v, nil
}

func scanVideos(rows *sql.Rows) ([]Video, error) {
	defer rows.Close()
	out := []Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Order selects the sort order of a listing.
type Order int

const (
	NewestFirst Order = iota
	OldestFirst
	BestRatedFirst
)

func (o Order) sql() string {
	switch o {
	case OldestFirst:
		return "created_at ASC, id ASC"
	case BestRatedFirst:
		return "COALESCE(quality_score, -1) DESC, created_at DESC, id ASC"
	}
	return "created_at DESC, id ASC"
}

// Store reads and writes videos and the tables that hang off them.
type Store struct {
	DB *db.CompatDB
}

func (s *Store) query(ctx context.Context, where string, order Order, limit int, args ...any) ([]Video, error) {
	q := "SELECT " + videoColumns + " FROM videos"
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY " + order.sql()
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	return scanVideos(rows)
}

// ListPublished returns verified, non-refused videos.
func (s *Store) ListPublished(ctx context.Context, order Order, limit int) ([]Video, error) {
	return s.query(ctx, "is_verified = TRUE AND is_refused = FALSE", order, limit)
}

// ListPending returns videos awaiting a final moderation decision, oldest first.
func (s *Store) ListPending(ctx context.Context, limit int) ([]Video, error) {
	return s.query(ctx, "is_verified = FALSE AND is_refused = FALSE", OldestFirst, limit)
}

// ListByUser returns every video owned by userID, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Video, error) {
	return s.query(ctx, "user_id = ?", NewestFirst, 0, userID)
}

// ListPublishedByUser returns userID's published videos, newest first.
func (s *Store) ListPublishedByUser(ctx context.Context, userID string) ([]Video, error) {
	return s.query(ctx, "user_id = ? AND is_verified = TRUE AND is_refused = FALSE", NewestFirst, 0, userID)
}

// Get loads one video.
func (s *Store) Get(ctx context.Context, id string) (Video, error) {
	return getVideo(ctx, s.DB, id)
}

func getVideo(ctx context.Context, q db.Queryer, id string) (Video, error) {
	v, err := scanVideo(q.QueryRowContext(ctx, "SELECT "+videoColumns+" FROM videos WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return v, ErrNotFound
	}
	return v, err
}

// Insert stores a new, unmoderated video.
func (s *Store) Insert(ctx context.Context, v *Video) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO videos (id, title, description, type, url, youtube_id, user_id,
			themes, duration, thumbnail, storage_path, thumbnail_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Title, v.Description, string(v.Type), v.URL, v.YouTubeID, v.UserID,
		ThemesOf(v.Themes), v.Duration, v.Thumbnail, v.StoragePath, v.ThumbnailPath)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

// Edit holds the owner-editable fields. Nil fields are left unchanged.
type Edit struct {
	Title         *string
	Description   *string
	Themes        []string
	Thumbnail     *string
	ThumbnailPath *string
}

// blankToNull trims s and maps an empty result to SQL NULL.
func blankToNull(s string) any {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return nil
}

// Update applies e to the video when ownerID owns it.
func (s *Store) Update(ctx context.Context, id, ownerID string, e Edit) error {
	sets := []string{"updated_at = " + s.DB.NowUTC()}
	var args []any
	if e.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *e.Title)
	}
	if e.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, blankToNull(*e.Description))
	}
	if e.Themes != nil {
		sets = append(sets, "themes = ?")
		args = append(args, ThemesOf(e.Themes))
	}
	if e.Thumbnail != nil {
		sets = append(sets, "thumbnail = ?", "thumbnail_path = ?")
		args = append(args, *e.Thumbnail, e.ThumbnailPath)
	}
	args = append(args, id, ownerID)

	res, err := s.DB.ExecContext(ctx,
		"UPDATE videos SET "+strings.Join(sets, ", ")+" WHERE id = ? AND user_id = ?", args...)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	return s.ownedRowAffected(ctx, res, id)
}

// Delete removes the video when ownerID owns it.
func (s *Store) Delete(ctx context.Context, id, ownerID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM videos WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	return s.ownedRowAffected(ctx, res, id)
}

// ownedRowAffected tells a missing video apart from someone else's.
func (s *Store) ownedRowAffected(ctx context.Context, res sql.Result, id string) error {
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	err := s.DB.QueryRowContext(ctx, `SELECT 1 FROM videos WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrForbidden
}

// SetDuration records an ISO-8601 duration.
func (s *Store) SetDuration(ctx context.Context, id, iso string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE videos SET duration = ? WHERE id = ?`, iso, id)
	return err
}

// MissingYouTubeDurations lists YouTube videos that have no stored duration.
func (s *Store) MissingYouTubeDurations(ctx context.Context, limit int) ([]Video, error) {
	return s.query(ctx, "type = 'youtube' AND youtube_id IS NOT NULL AND (duration IS NULL OR duration = '')", OldestFirst, limit)
}

// KnownThemes returns every theme used by published videos.
func (s *Store) KnownThemes(ctx context.Context) ([]string, error) {
	list, err := s.ListPublished(ctx, NewestFirst, 0)
	if err != nil {
		return nil, err
	}
	return Categories(list)[1:], nil
}

// LikedThemes returns the themes userID has liked.
func (s *Store) LikedThemes(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT theme FROM user_theme_preferences WHERE user_id = ? ORDER BY created_at ASC, theme ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query liked themes: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LikeThemes records themes as liked by userID. Existing likes are kept.
func LikeThemes(ctx context.Context, q db.Queryer, userID string, themes []string) error {
	for _, t := range CleanThemes(themes) {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO user_theme_preferences (user_id, theme) VALUES (?, ?) ON CONFLICT (user_id, theme) DO NOTHING`,
			userID, t); err != nil {
			return fmt.Errorf("like theme %q: %w", t, err)
		}
	}
	return nil
}

// UnlikeTheme removes one liked theme.
func (s *Store) UnlikeTheme(ctx context.Context, userID, theme string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM user_theme_preferences WHERE user_id = ? AND theme = ?`, userID, theme)
	return err
}

// UploadsEnabled reads the is_uploading_enable admin setting. A missing
// row counts as enabled.
func (s *Store) UploadsEnabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := s.DB.QueryRowContext(ctx, `SELECT bool_value FROM settings WHERE name = 'is_uploading_enable'`).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	return enabled, err
}
