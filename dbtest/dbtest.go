// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"database/sql"
	"testing"

	"openstream/db"

	_ "modernc.org/sqlite"
)

// New returns a fresh migrated in-memory database. The pool is pinned to one
// connection because every :memory: connection is a separate database.
func New(t testing.TB) *db.CompatDB {
	t.Helper()
	raw, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	raw.SetMaxOpenConns(1)
	if _, err := raw.Exec("PRAGMA foreign_keys=ON"); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if err := db.RunMigrations(raw, db.DialectSQLite); err != nil {
		t.Fatalf("schema migration: %v", err)
	}
	t.Cleanup(func() { raw.Close() })
	return db.NewCompatDB(raw, db.DialectSQLite)
}

// SeedUser inserts a user with a profile and returns its id.
func SeedUser(t testing.TB, d *db.CompatDB, id, username string) string {
	t.Helper()
	if _, err := d.DB.Exec(`INSERT INTO users (id, email) VALUES (?, ?)`, id, username+"@test.local"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := d.DB.Exec(`INSERT INTO profiles (id, username, display_name) VALUES (?, ?, ?)`, id, username, username); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return id
}

// SetRole flips a profile's admin or moderator flag.
func SetRole(t testing.TB, d *db.CompatDB, id string, admin, moderator bool) {
	t.Helper()
	if _, err := d.DB.Exec(`UPDATE profiles SET is_admin = ?, is_moderator = ? WHERE id = ?`, admin, moderator, id); err != nil {
		t.Fatalf("set role: %v", err)
	}
}
