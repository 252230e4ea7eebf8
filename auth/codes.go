package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"openstream/db"
)

// One-time code purposes.
const (
	PurposeLogin    = "login"
	PurposeRecovery = "recovery"
)

// DefaultCodeTTL applies when no code TTL is configured.
const DefaultCodeTTL = 15 * time.Minute

const codeTimeLayout = "2006-01-02T15:04:05.000Z"

// ErrInvalidCode covers wrong, expired and already used codes alike.
var ErrInvalidCode = errors.New("invalid or expired code")

// newCode returns a random six-digit code.
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// issueCode stores a fresh code for userID and returns it in clear text.
// Earlier unused codes of the same purpose are retired.
func issueCode(ctx context.Context, d *db.CompatDB, userID, purpose string, ttl time.Duration, now time.Time) (string, error) {
	code, err := newCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	expires := now.Add(ttl).UTC().Format(codeTimeLayout)
	err = db.WithTx(ctx, d, func(conn *db.CompatConn) error {
		if _, err := conn.ExecContext(ctx,
			`UPDATE login_codes SET used_at = `+d.NowUTC()+` WHERE user_id = ? AND purpose = ? AND used_at IS NULL`,
			userID, purpose); err != nil {
			return err
		}
		_, err := conn.ExecContext(ctx,
			`INSERT INTO login_codes (id, user_id, code_hash, purpose, expires_at) VALUES (?, ?, ?, ?, ?)`,
			uuid.New().String(), userID, hashCode(code), purpose, expires)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

// consumeCode checks code against userID's live code for purpose and marks
// it used. A code can be consumed once.
func consumeCode(ctx context.Context, d *db.CompatDB, userID, purpose, code string, now time.Time) error {
	var id, hash, expires string
	err := d.QueryRowContext(ctx, `
		SELECT id, code_hash, expires_at FROM login_codes
		WHERE user_id = ? AND purpose = ? AND used_at IS NULL
		ORDER BY created_at DESC LIMIT 1`, userID, purpose).Scan(&id, &hash, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidCode
	}
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(hash), []byte(hashCode(code))) != 1 {
		return ErrInvalidCode
	}
	exp, err := time.Parse(codeTimeLayout, expires)
	if err != nil || !now.Before(exp) {
		return ErrInvalidCode
	}
	res, err := d.ExecContext(ctx,
		`UPDATE login_codes SET used_at = `+d.NowUTC()+` WHERE id = ? AND used_at IS NULL`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvalidCode
	}
	return nil
}
