package moderation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"openstream/db"
	"openstream/videos"
)

// Store reads and conditionally writes moderation flags.
type Store struct {
	DB *db.CompatDB
}

// Load returns the current flags of a video. A first-reviewer flag without
// an owner is read as withdrawn.
func (s *Store) Load(ctx context.Context, videoID string) (Flags, error) {
	var f Flags
	var verifiedBy, refusedBy sql.NullString
	var verifiedOnce, refusedOnce bool
	err := s.DB.QueryRowContext(ctx, `
		SELECT is_verified, is_refused, verified_once, verified_once_user_id, refused_once, refused_once_user_id
		FROM videos WHERE id = ?`, videoID,
	).Scan(&f.IsVerified, &f.IsRefused, &verifiedOnce, &verifiedBy, &refusedOnce, &refusedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return f, videos.ErrNotFound
	}
	if err != nil {
		return f, fmt.Errorf("load moderation flags: %w", err)
	}
	if verifiedOnce {
		f.VerifiedBy = verifiedBy.String
	}
	if refusedOnce {
		f.RefusedBy = refusedBy.String
	}
	return f, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Save writes next only if the row still holds prev. A concurrent change
// yields ErrConflict. reason, when non-nil, replaces the refusal reason.
func (s *Store) Save(ctx context.Context, videoID string, prev, next Flags, reason *string) error {
	set := `is_verified = ?, is_refused = ?,
		verified_once = ?, verified_once_user_id = ?,
		refused_once = ?, refused_once_user_id = ?,
		updated_at = ` + s.DB.NowUTC()
	args := []any{
		next.IsVerified, next.IsRefused,
		next.VerifiedBy != "", nullable(next.VerifiedBy),
		next.RefusedBy != "", nullable(next.RefusedBy),
	}
	if reason != nil {
		set += ", refusal_reason = ?"
		args = append(args, *reason)
	}
	args = append(args, videoID,
		prev.IsVerified, prev.IsRefused,
		prev.VerifiedBy, prev.RefusedBy)

	// A first-reviewer slot counts as held only when both the flag and the
	// owner are set, the same reading Load applies.
	res, err := s.DB.ExecContext(ctx, `UPDATE videos SET `+set+`
		WHERE id = ? AND is_verified = ? AND is_refused = ?
		  AND (CASE WHEN verified_once THEN COALESCE(verified_once_user_id, '') ELSE '' END) = ?
		  AND (CASE WHEN refused_once THEN COALESCE(refused_once_user_id, '') ELSE '' END) = ?`, args...)
	if err != nil {
		return fmt.Errorf("save moderation flags: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// Action is a moderation transition.
type Action func(Flags, string) (Flags, error)

// Apply loads the flags, runs action for actor and saves the result
// conditionally.
func (s *Store) Apply(ctx context.Context, videoID, actor string, action Action, reason *string) (Flags, error) {
	prev, err := s.Load(ctx, videoID)
	if err != nil {
		return prev, err
	}
	next, err := action(prev, actor)
	if err != nil {
		return prev, err
	}
	if err := s.Save(ctx, videoID, prev, next, reason); err != nil {
		return prev, err
	}
	return next, nil
}
