package ledger

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "ledger", "test.db"), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func schemaVersion(t *testing.T, repo *SQLiteRepository) int {
	t.Helper()
	var v int
	if err := repo.db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		t.Fatalf("read user_version: %v", err)
	}
	return v
}

func TestOpen_CreatesSchema(t *testing.T) {
	repo := openTestRepo(t)

	var name string
	err := repo.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='conversions'",
	).Scan(&name)
	if err != nil {
		t.Fatalf("conversions table not found: %v", err)
	}

	steps, err := schemaSteps()
	if err != nil {
		t.Fatal(err)
	}
	if got := schemaVersion(t, repo); got != len(steps) {
		t.Errorf("user_version = %d, want %d", got, len(steps))
	}
}

func TestOpen_ReopenKeepsRows(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	first, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	if err := first.Record(ctx, &Entry{SourceHash: "abc", WindowEnd: 30, ClipHash: "1111", ClipBytes: 10}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	first.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	second, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer second.Close()

	entries, err := second.List(ctx, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("List() after reopen = %d entries, want 1", len(entries))
	}
	if strings.Contains(buf.String(), "ledger schema upgraded") {
		t.Errorf("reopen re-applied schema steps: %s", buf.String())
	}
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatal(err)
	}
	conn.Close()

	_, err = Open(dbPath, nil)
	if err == nil || !strings.Contains(err.Error(), "newer than this build") {
		t.Errorf("Open() error = %v, want newer-schema error", err)
	}
}

func TestOpen_RejectsForeignConversionsTable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	// Marked current so no step runs, leaving the incomplete table in place.
	for _, stmt := range []string{
		"CREATE TABLE conversions (id TEXT PRIMARY KEY, source_hash TEXT)",
		"PRAGMA user_version = 1",
	} {
		if _, err := conn.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}
	conn.Close()

	_, err = Open(dbPath, nil)
	if err == nil {
		t.Fatal("Open() succeeded on an incomplete conversions table")
	}
	for _, col := range []string{"clip_hash", "created_at"} {
		if !strings.Contains(err.Error(), col) {
			t.Errorf("error %q does not name missing column %s", err, col)
		}
	}
}

func TestRepository_RecordAndList(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	start := int64(5000)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	older := &Entry{
		SourceHash:  "abc",
		StartMs:     &start,
		WindowStart: 5,
		WindowEnd:   35,
		ClipHash:    "1111",
		ClipBytes:   480000,
		CreatedAt:   base,
	}
	newer := &Entry{
		SourceHash:  "def",
		WindowStart: 0,
		WindowEnd:   30,
		ClipHash:    "2222",
		ClipBytes:   470000,
		CreatedAt:   base.Add(1500 * time.Millisecond),
	}
	for _, e := range []*Entry{older, newer} {
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if e.ID == "" {
			t.Fatal("Record() did not assign an ID")
		}
	}

	entries, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() returned %d entries, want 2", len(entries))
	}
	if entries[0].ClipHash != "2222" || entries[1].ClipHash != "1111" {
		t.Errorf("List() order = [%s, %s], want newest first", entries[0].ClipHash, entries[1].ClipHash)
	}
	if entries[1].StartMs == nil || *entries[1].StartMs != 5000 {
		t.Errorf("StartMs = %v, want 5000", entries[1].StartMs)
	}
	if entries[1].EndMs != nil {
		t.Errorf("EndMs = %v, want nil", *entries[1].EndMs)
	}
	if !entries[0].CreatedAt.Equal(newer.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", entries[0].CreatedAt, newer.CreatedAt)
	}

	limited, err := repo.List(ctx, 1)
	if err != nil {
		t.Fatalf("List(1) error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("List(1) returned %d entries", len(limited))
	}
}

func TestClampLimit(t *testing.T) {
	tests := map[int]int{
		-1:   DefaultListLimit,
		0:    DefaultListLimit,
		1:    1,
		200:  200,
		9999: MaxListLimit,
	}
	for in, want := range tests {
		if got := ClampLimit(in); got != want {
			t.Errorf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
