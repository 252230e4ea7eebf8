package db

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// rewritePlaceholders
// ---------------------------------------------------------------------------

func TestRewritePlaceholders_Empty(t *testing.T) {
	if got := rewritePlaceholders(""); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestRewritePlaceholders_Multiple(t *testing.T) {
	got := rewritePlaceholders("INSERT INTO videos (id, title, user_id) VALUES (?, ?, ?)")
	want := "INSERT INTO videos (id, title, user_id) VALUES ($1, $2, $3)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewritePlaceholders_QuestionInStringLiteral(t *testing.T) {
	got := rewritePlaceholders("SELECT '?' AS q FROM videos WHERE id = ?")
	want := "SELECT '?' AS q FROM videos WHERE id = $1"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewritePlaceholders_EscapedQuote(t *testing.T) {
	// '' inside a string is an escaped quote; the ? after the closing ' is a placeholder.
	got := rewritePlaceholders("SELECT 'it''s?' WHERE x = ?")
	want := "SELECT 'it''s?' WHERE x = $1"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewrite_SQLiteUnchanged(t *testing.T) {
	q := "SELECT * FROM videos WHERE id = ?"
	if got := rewrite(DialectSQLite, q); got != q {
		t.Errorf("sqlite rewrite = %q, want unchanged", got)
	}
}

// ---------------------------------------------------------------------------
// Dialect helpers
// ---------------------------------------------------------------------------

func sqliteDB() *CompatDB { return &CompatDB{Dialect: DialectSQLite} }
func pgDB() *CompatDB     { return &CompatDB{Dialect: DialectPostgres} }

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in   string
		want Dialect
	}{
		{"", DialectSQLite},
		{"sqlite", DialectSQLite},
		{"SQLite3", DialectSQLite},
		{"postgres", DialectPostgres},
		{"pgx", DialectPostgres},
	}
	for _, tc := range tests {
		got, err := ParseDialect(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("ParseDialect(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
	if _, err := ParseDialect("mysql"); err == nil {
		t.Error("ParseDialect(mysql) should fail")
	}
}

func TestBeginTxSQL(t *testing.T) {
	if got := sqliteDB().BeginTxSQL(); got != "BEGIN IMMEDIATE" {
		t.Errorf("SQLite = %q, want BEGIN IMMEDIATE", got)
	}
	if got := pgDB().BeginTxSQL(); got != "BEGIN" {
		t.Errorf("Postgres = %q, want BEGIN", got)
	}
}

func TestNowUTC(t *testing.T) {
	if got := sqliteDB().NowUTC(); !strings.Contains(got, "strftime") {
		t.Errorf("SQLite NowUTC = %q: expected strftime", got)
	}
	if got := pgDB().NowUTC(); !strings.Contains(got, "now()") {
		t.Errorf("Postgres NowUTC = %q: expected now()", got)
	}
}

func TestDateExpr_StripsMinus(t *testing.T) {
	mod := "-7 days"
	if got := sqliteDB().DateExpr(mod); !strings.Contains(got, "date('now', '-7 days')") {
		t.Errorf("SQLite DateExpr = %q", got)
	}
	pg := pgDB().DateExpr(mod)
	if !strings.Contains(pg, "interval '7 days'") || strings.Contains(pg, "-7") {
		t.Errorf("Postgres DateExpr = %q: should use interval and strip minus", pg)
	}
}

func TestDateOfExpr(t *testing.T) {
	if got := sqliteDB().DateOfExpr("created_at"); got != "substr(created_at, 1, 10)" {
		t.Errorf("SQLite DateOfExpr = %q", got)
	}
	if got := pgDB().DateOfExpr("created_at"); got != "LEFT(created_at, 10)" {
		t.Errorf("Postgres DateOfExpr = %q", got)
	}
}

func TestDBSizeExpr(t *testing.T) {
	if got := sqliteDB().DBSizeExpr(); !strings.Contains(got, "pragma_page") {
		t.Errorf("SQLite DBSizeExpr = %q", got)
	}
	if got := pgDB().DBSizeExpr(); !strings.Contains(got, "pg_database_size") {
		t.Errorf("Postgres DBSizeExpr = %q", got)
	}
}
