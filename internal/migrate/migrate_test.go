package migrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "test.db")+"?_busy_timeout=5000")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRun_CreatesAnnouncedSensors(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := Run(ctx, db, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO announced_sensors (sensor_id) VALUES ('a_b')`); err != nil {
		t.Fatalf("insert into announced_sensors: %v", err)
	}

	// second run is a no-op
	if err := Run(ctx, db, nil); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("schema_migrations rows = %d, want 1", n)
	}
}

func TestRun_OrderAndSkip(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"m/0002_second.sql": {Data: []byte(`INSERT INTO t (v) VALUES ('second');`)},
		"m/0001_first.sql":  {Data: []byte(`CREATE TABLE t (v TEXT);`)},
		"m/README.md":       {Data: []byte(`ignored`)},
		"m/01_bad.sql":      {Data: []byte(`not sql`)},
	}

	if err := run(context.Background(), db, fsys, "m", nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	var v string
	if err := db.QueryRow(`SELECT v FROM t`).Scan(&v); err != nil {
		t.Fatalf("select: %v", err)
	}
	if v != "second" {
		t.Errorf("v = %q, want second", v)
	}
}

func TestRun_FailedMigrationNotRecorded(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"m/0001_broken.sql": {Data: []byte(`CREATE TABLE broken (`)},
	}

	if err := run(context.Background(), db, fsys, "m", nil); err == nil {
		t.Fatal("run error = nil, want non-nil")
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("schema_migrations rows = %d, want 0", n)
	}
}
