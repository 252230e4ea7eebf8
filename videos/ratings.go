package videos

import (
	"context"
	"fmt"

	"openstream/db"
)

// LikeThreshold is the lowest rating that counts as liking a video's themes.
const LikeThreshold = 4

// ErrInvalidScore rejects ratings outside 1..5.
var ErrInvalidScore = &InputError{"score must be between 1 and 5"}

// Rate records userID's score for a published video, refreshes the video's
// quality_score to the average rating and, for scores of LikeThreshold or
// more, adds the video's themes to the user's liked themes. It returns the
// new quality score.
func (s *Store) Rate(ctx context.Context, videoID, userID string, score int) (float64, error) {
	if score < 1 || score > 5 {
		return 0, ErrInvalidScore
	}
	var quality float64
	err := db.WithTx(ctx, s.DB, func(conn *db.CompatConn) error {
		v, err := getVideo(ctx, conn, videoID)
		if err != nil {
			return err
		}
		if !v.Published() {
			return ErrNotFound
		}

		if _, err := conn.ExecContext(ctx, `
			INSERT INTO ratings (video_id, user_id, score) VALUES (?, ?, ?)
			ON CONFLICT (video_id, user_id) DO UPDATE SET score = excluded.score, updated_at = `+s.DB.NowUTC(),
			videoID, userID, score); err != nil {
			return fmt.Errorf("upsert rating: %w", err)
		}

		if err := conn.QueryRowContext(ctx,
			`SELECT AVG(CAST(score AS REAL)) FROM ratings WHERE video_id = ?`, videoID).Scan(&quality); err != nil {
			return fmt.Errorf("average rating: %w", err)
		}
		if _, err := conn.ExecContext(ctx,
			`UPDATE videos SET quality_score = ? WHERE id = ?`, quality, videoID); err != nil {
			return fmt.Errorf("update quality score: %w", err)
		}

		if score >= LikeThreshold {
			return LikeThemes(ctx, conn, userID, v.Themes)
		}
		return nil
	})
	return quality, err
}

// UserRating returns userID's score for videoID, or 0 when unrated.
func (s *Store) UserRating(ctx context.Context, videoID, userID string) (int, error) {
	var score int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(score), 0) FROM ratings WHERE video_id = ? AND user_id = ?`, videoID, userID).Scan(&score)
	return score, err
}
