package db

import (
	"context"
	"fmt"

	"openstream/logging"
)

// WithTx runs fn inside a transaction on a dedicated connection. fn's error
// is returned unchanged so callers can match it with errors.Is. The
// transaction is rolled back when fn fails or panics; the rollback ignores
// cancellation of ctx so the connection never returns to the pool mid-transaction.
func WithTx(ctx context.Context, db *CompatDB, fn func(conn *CompatConn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, db.BeginTxSQL()); err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	done := false
	defer func() {
		if done {
			return
		}
		if _, rbErr := conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK"); rbErr != nil {
			logging.Ctx(ctx).Error().Err(rbErr).Msg("rollback failed")
		}
	}()

	if err := fn(conn); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	done = true
	return nil
}
