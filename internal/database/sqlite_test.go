package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/protocolzero/codepolice/internal/config"
)

type cacheRow struct {
	Key          string `db:"cache_key"`
	ModelVersion string `db:"model_version"`
	IssuesJSON   string `db:"issues_json"`
	CreatedAt    int64  `db:"created_at"`
}

func openTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLite(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestMigrateIsRepeatable(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestUpsertSelectDelete(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for _, r := range []cacheRow{
		{Key: "a", ModelVersion: "v1", IssuesJSON: "[]", CreatedAt: 100},
		{Key: "b", ModelVersion: "v1", IssuesJSON: "[]", CreatedAt: 200},
		{Key: "a", ModelVersion: "v2", IssuesJSON: `[{"id":"x"}]`, CreatedAt: 300},
	} {
		if err := db.Upsert(ctx, "analysis_cache", r, []string{"cache_key"}); err != nil {
			t.Fatalf("Upsert %s: %v", r.Key, err)
		}
	}

	var rows []cacheRow
	if err := db.Select(ctx, &rows, `SELECT cache_key, model_version, issues_json, created_at FROM analysis_cache ORDER BY cache_key`); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].ModelVersion != "v2" || rows[0].CreatedAt != 300 {
		t.Fatalf("upsert did not update row a: %+v", rows[0])
	}

	n, err := db.Delete(ctx, "analysis_cache", "created_at < ?", 250)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted %d rows, want 1", n)
	}
}

func TestSplitStatementsDropsComments(t *testing.T) {
	got := splitStatements("-- header\nCREATE TABLE a (x INT);\n\n-- tail only\n")
	if len(got) != 1 || got[0] != "CREATE TABLE a (x INT)" {
		t.Fatalf("splitStatements = %q", got)
	}
}

func TestMySQLAdaptAddsEngine(t *testing.T) {
	got := mysqlAdapt("CREATE TABLE t (id INTEGER PRIMARY KEY AUTOINCREMENT)")
	want := "CREATE TABLE t (id INT NOT NULL AUTO_INCREMENT PRIMARY KEY) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
	if got != want {
		t.Fatalf("mysqlAdapt = %q", got)
	}
}
