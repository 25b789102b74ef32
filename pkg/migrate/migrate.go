// Package migrate applies embedded SQL migrations to PostgreSQL, each file at
// most once, in lexical order.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	upMarker   = "-- +migrate Up"
	downMarker = "-- +migrate Down"

	// advisoryLockKey serializes concurrent runners across instances.
	advisoryLockKey = 7411203
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Apply runs every *.sql file under root in fsys that has not been recorded in
// schema_migrations. Each file runs in its own transaction. It returns the
// names of the files applied.
func Apply(ctx context.Context, db *sqlx.DB, fsys fs.FS, root string, logger *zap.Logger) ([]string, error) {
	if db == nil {
		return nil, errors.New("migrate: db is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(root) == "" {
		root = "."
	}

	files, err := sqlFiles(fsys, root)
	if err != nil {
		return nil, err
	}

	conn, err := db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire migration connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, advisoryLockKey); err != nil {
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, advisoryLockKey)
	}()

	if _, err := conn.ExecContext(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}

	var applied []string
	for _, name := range files {
		done, err := isApplied(ctx, conn, name)
		if err != nil {
			return applied, fmt.Errorf("check migration %s: %w", name, err)
		}
		if done {
			continue
		}

		content, err := fs.ReadFile(fsys, path.Join(root, name))
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", name, err)
		}
		up := strings.TrimSpace(ExtractUp(string(content)))

		if err := applyOne(ctx, conn, name, up); err != nil {
			return applied, err
		}
		logger.Info("migration applied", zap.String("name", name))
		applied = append(applied, name)
	}
	return applied, nil
}

// ExtractUp returns the SQL between the Up and Down markers. Files without
// markers are returned whole.
func ExtractUp(content string) string {
	upIdx := strings.Index(content, upMarker)
	if upIdx == -1 {
		return content
	}
	body := content[upIdx+len(upMarker):]
	if downIdx := strings.Index(body, downMarker); downIdx != -1 {
		body = body[:downIdx]
	}
	return body
}

func sqlFiles(fsys fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func isApplied(ctx context.Context, conn *sqlx.Conn, name string) (bool, error) {
	var found int
	err := conn.GetContext(ctx, &found, `SELECT 1 FROM schema_migrations WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func applyOne(ctx context.Context, conn *sqlx.Conn, name, up string) error {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}
	if up != "" {
		if _, err := tx.ExecContext(ctx, up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}
