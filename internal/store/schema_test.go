package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func openRawDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "raw.db")+"?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitSchema_Fresh(t *testing.T) {
	ctx := context.Background()
	db := openRawDB(t)

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	version, err := getSchemaVersion(ctx, db)
	if err != nil {
		t.Fatalf("getSchemaVersion() error = %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("schema version = %d, want %d", version, SchemaVersion)
	}

	for _, table := range []string{"sweeps", "series", "cells", "schema_version"} {
		var name string
		err := db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := openRawDB(t)

	for i := 0; i < 2; i++ {
		if err := InitSchema(ctx, db); err != nil {
			t.Fatalf("InitSchema() run %d error = %v", i+1, err)
		}
	}
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		t.Fatalf("count schema_version: %v", err)
	}
	if count != 1 {
		t.Errorf("schema_version rows = %d, want 1", count)
	}
}

func TestInitSchema_NewerVersion(t *testing.T) {
	ctx := context.Background()
	db := openRawDB(t)

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`, SchemaVersion+1); err != nil {
		t.Fatalf("insert version: %v", err)
	}
	err := InitSchema(ctx, db)
	if err == nil || !strings.Contains(err.Error(), "newer") {
		t.Errorf("InitSchema() error = %v, want newer-version error", err)
	}
}

func TestInitSchema_OlderVersion(t *testing.T) {
	ctx := context.Background()
	db := openRawDB(t)

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	if _, err := db.ExecContext(ctx, `UPDATE schema_version SET version = ?`, SchemaVersion-1); err != nil {
		t.Fatalf("downgrade version: %v", err)
	}
	if err := InitSchema(ctx, db); err != nil {
		t.Errorf("InitSchema() on older schema error = %v", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteResultStore(filepath.Join(t.TempDir(), DatabaseFile))
	if err != nil {
		t.Fatalf("NewSQLiteResultStore() error = %v", err)
	}
	defer s.Close()

	id, err := s.SaveSweep(ctx, sampleRecord())
	if err != nil {
		t.Fatalf("SaveSweep() error = %v", err)
	}
	if err := s.DeleteSweep(ctx, id); err != nil {
		t.Fatalf("DeleteSweep() error = %v", err)
	}

	for _, table := range []string{"series", "cells"} {
		var count int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if count != 0 {
			t.Errorf("%s has %d rows after delete, want 0", table, count)
		}
	}
	if err := ValidateIntegrity(ctx, s.db); err != nil {
		t.Errorf("ValidateIntegrity() error = %v", err)
	}
}
