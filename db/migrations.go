package db

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"

	"openstream/logging"
)

//go:embed migrations/*
var migrationsFS embed.FS

// RunMigrations applies the embedded migrations for the dialect in file name
// order, recording each applied file in schema_migrations.
func RunMigrations(rawDB *sql.DB, dialect Dialect) error {
	createTableSQL := `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TEXT DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := rawDB.Exec(createTableSQL); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	dir := "migrations/" + string(dialect)
	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("no migrations for dialect %s: %w", dialect, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		var applied int
		checkErr := rawDB.QueryRow(rewrite(dialect, "SELECT 1 FROM schema_migrations WHERE version = ?"), file).Scan(&applied)
		if checkErr == nil && applied == 1 {
			continue
		}

		content, err := migrationsFS.ReadFile(dir + "/" + file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		tx, err := rawDB.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %s: %w", file, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(rewrite(dialect, "INSERT INTO schema_migrations (version) VALUES (?)"), file); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}

		logging.Info().Str("migration", file).Msg("applied migration")
	}

	return nil
}
