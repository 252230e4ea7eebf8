package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
	"PRAGMA synchronous=NORMAL",
}

// Open connects to the configured backend, applies connection settings for
// the dialect and runs migrations. dsn is a file path for SQLite and a
// connection URL for Postgres.
func Open(ctx context.Context, dialect Dialect, dsn string) (*CompatDB, error) {
	driver := "sqlite"
	if dialect == DialectPostgres {
		driver = "pgx"
	}

	raw, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// Single connection: prevents concurrent write conflicts
		raw.SetMaxOpenConns(1)
		raw.SetMaxIdleConns(1)
		raw.SetConnMaxLifetime(0)
		for _, pragma := range sqlitePragmas {
			if _, err := raw.ExecContext(ctx, pragma); err != nil {
				raw.Close()
				return nil, fmt.Errorf("pragma failed (%s): %w", pragma, err)
			}
		}
	} else {
		raw.SetMaxOpenConns(20)
		raw.SetMaxIdleConns(5)
		raw.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := raw.PingContext(pingCtx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	if err := RunMigrations(raw, dialect); err != nil {
		raw.Close()
		return nil, err
	}
	return NewCompatDB(raw, dialect), nil
}
