// Package ledger keeps an optional SQLite record of published preview clips.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var schemaFS embed.FS

// conversionColumns are the columns Record and List read and write.
var conversionColumns = []string{
	"id", "source_hash", "start_ms", "end_ms", "window_start_s",
	"window_end_s", "clip_hash", "clip_bytes", "created_at",
}

// Open opens the ledger file at dbPath, creating it if needed, brings the
// schema up to date and returns a repository that owns the connection.
func Open(dbPath string, logger *slog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", dbPath, err)
	}
	conn.SetMaxOpenConns(1)

	// WAL lets `previewd history` read while serve is recording.
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	ctx := context.Background()
	if err := upgradeSchema(ctx, conn, logger); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger %s: %w", dbPath, err)
	}
	if err := checkSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger %s: %w", dbPath, err)
	}

	return &SQLiteRepository{db: conn}, nil
}

// schemaSteps lists the embedded migration files in apply order. Step i
// (zero-based) moves the schema to user_version i+1.
func schemaSteps() ([]string, error) {
	steps, err := fs.Glob(schemaFS, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(steps)
	return steps, nil
}

// upgradeSchema applies every step past the file's PRAGMA user_version, each
// in its own transaction together with the version bump.
func upgradeSchema(ctx context.Context, conn *sql.DB, logger *slog.Logger) error {
	steps, err := schemaSteps()
	if err != nil {
		return fmt.Errorf("list schema steps: %w", err)
	}

	var version int
	if err := conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > len(steps) {
		return fmt.Errorf("schema version %d is newer than this build supports (%d)", version, len(steps))
	}

	for i := version; i < len(steps); i++ {
		if err := applyStep(ctx, conn, steps[i], i+1); err != nil {
			return err
		}
		logger.Info("ledger schema upgraded", "version", i+1, "step", path.Base(steps[i]))
	}
	return nil
}

func applyStep(ctx context.Context, conn *sql.DB, step string, version int) error {
	ddl, err := schemaFS.ReadFile(step)
	if err != nil {
		return fmt.Errorf("read %s: %w", step, err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(ddl)); err != nil {
		return fmt.Errorf("apply %s: %w", path.Base(step), err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("set schema version %d: %w", version, err)
	}
	return tx.Commit()
}

// checkSchema fails when the conversions table lacks a column the repository
// needs, e.g. a file created by something other than this package.
func checkSchema(ctx context.Context, conn *sql.DB) error {
	rows, err := conn.QueryContext(ctx, "SELECT name FROM pragma_table_info('conversions')")
	if err != nil {
		return fmt.Errorf("inspect conversions table: %w", err)
	}
	defer rows.Close()

	have := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		have[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var missing []string
	for _, col := range conversionColumns {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("conversions table is missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}
