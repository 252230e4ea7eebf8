package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dialect represents the SQL database backend in use.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("unknown database driver %q", name)
}

// Queryer is the subset shared by CompatDB and CompatConn, so store
// functions can run either standalone or inside WithTx.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CompatDB wraps *sql.DB to provide transparent ? → $N placeholder
// conversion for Postgres while keeping SQLite queries unchanged.
type CompatDB struct {
	DB      *sql.DB
	Dialect Dialect
}

func NewCompatDB(db *sql.DB, dialect Dialect) *CompatDB {
	return &CompatDB{DB: db, Dialect: dialect}
}

func (d *CompatDB) Close() error                         { return d.DB.Close() }
func (d *CompatDB) SetMaxOpenConns(n int)                { d.DB.SetMaxOpenConns(n) }
func (d *CompatDB) SetConnMaxLifetime(dur time.Duration) { d.DB.SetConnMaxLifetime(dur) }
func (d *CompatDB) IsPostgres() bool                     { return d.Dialect == DialectPostgres }

func (d *CompatDB) PingContext(ctx context.Context) error { return d.DB.PingContext(ctx) }

func (d *CompatDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.DB.ExecContext(ctx, rewrite(d.Dialect, query), args...)
}

func (d *CompatDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.DB.QueryContext(ctx, rewrite(d.Dialect, query), args...)
}

func (d *CompatDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.DB.QueryRowContext(ctx, rewrite(d.Dialect, query), args...)
}

func (d *CompatDB) Conn(ctx context.Context) (*CompatConn, error) {
	conn, err := d.DB.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &CompatConn{Conn: conn, dialect: d.Dialect}, nil
}

// CompatConn wraps *sql.Conn with automatic placeholder conversion.
type CompatConn struct {
	Conn    *sql.Conn
	dialect Dialect
}

func (c *CompatConn) Close() error { return c.Conn.Close() }

func (c *CompatConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.Conn.ExecContext(ctx, rewrite(c.dialect, query), args...)
}

func (c *CompatConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.Conn.QueryContext(ctx, rewrite(c.dialect, query), args...)
}

func (c *CompatConn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.Conn.QueryRowContext(ctx, rewrite(c.dialect, query), args...)
}

func rewrite(dialect Dialect, query string) string {
	if dialect == DialectSQLite {
		return query
	}
	return rewritePlaceholders(query)
}

// rewritePlaceholders converts ? to $1, $2, ... for Postgres.
// Respects single-quoted string literals and escaped quotes ('').
func rewritePlaceholders(query string) string {
	var buf strings.Builder
	buf.Grow(len(query) + 16)
	n := 1
	inStr := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			if inStr && i+1 < len(query) && query[i+1] == '\'' {
				buf.WriteString("''")
				i++
				continue
			}
			inStr = !inStr
			buf.WriteByte(c)
		case c == '?' && !inStr:
			buf.WriteByte('$')
			buf.WriteString(strconv.Itoa(n))
			n++
		default:
			buf.WriteByte(c)
		}
	}
	return buf.String()
}

// NowUTC returns a SQL expression for the current UTC time as ISO 8601 text
// with millisecond precision, matching the column defaults in the migrations.
func (d *CompatDB) NowUTC() string {
	if d.IsPostgres() {
		return `to_char(now() AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.MS"Z"')`
	}
	return `strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`
}

// DateExpr returns a SQL expression for date('now', modifier) as YYYY-MM-DD text.
func (d *CompatDB) DateExpr(modifier string) string {
	if d.IsPostgres() {
		mod := strings.TrimPrefix(modifier, "-")
		return fmt.Sprintf("to_char((now() AT TIME ZONE 'UTC' - interval '%s')::date, 'YYYY-MM-DD')", mod)
	}
	return fmt.Sprintf("date('now', '%s')", modifier)
}

// DateOfExpr returns a SQL expression extracting the date from a text timestamp column.
func (d *CompatDB) DateOfExpr(col string) string {
	if d.IsPostgres() {
		return fmt.Sprintf("LEFT(%s, 10)", col)
	}
	return fmt.Sprintf("substr(%s, 1, 10)", col)
}

// DBSizeExpr returns a SQL expression for the database size in MB.
func (d *CompatDB) DBSizeExpr() string {
	if d.IsPostgres() {
		return "COALESCE(pg_database_size(current_database()) / 1024.0 / 1024.0, 0)"
	}
	return "COALESCE((SELECT page_count * page_size / 1024.0 / 1024.0 FROM pragma_page_count(), pragma_page_size()), 0)"
}

// BeginTxSQL returns the SQL statement to begin a write transaction.
func (d *CompatDB) BeginTxSQL() string {
	if d.IsPostgres() {
		return "BEGIN"
	}
	return "BEGIN IMMEDIATE"
}
