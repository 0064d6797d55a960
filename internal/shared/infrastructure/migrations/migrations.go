// Package migrations embeds the schema for both supported database drivers.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/database"
)

//go:embed sqlite/*.sql postgres/*.sql
var migrationsFS embed.FS

const createVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    applied_at TEXT NOT NULL
)`

// Files returns the ordered .up.sql file names for a driver.
func Files(driver database.Driver) ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, driver.String())
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations for %s: %w", driver, err)
	}
	var files []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// Run applies every migration that is not yet recorded in schema_migrations.
// Each file runs in its own transaction together with its version row.
func Run(ctx context.Context, conn database.Connection) error {
	if _, err := conn.Exec(ctx, createVersionTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	files, err := Files(conn.Driver())
	if err != nil {
		return err
	}

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return err
	}

	for _, file := range files {
		version := strings.TrimSuffix(file, ".up.sql")
		if applied[version] {
			continue
		}
		body, err := migrationsFS.ReadFile(conn.Driver().String() + "/" + file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}
		if err := apply(ctx, conn, version, string(body)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", file, err)
		}
	}
	return nil
}

func apply(ctx context.Context, conn database.Connection, version, body string) error {
	tx, err := conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	for _, stmt := range statements(body) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
		version, time.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func appliedVersions(ctx context.Context, conn database.Connection) (map[string]bool, error) {
	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// statements splits a migration file on semicolons. The schema files carry
// no procedural bodies, so a plain split is enough.
func statements(body string) []string {
	var out []string
	for _, part := range strings.Split(body, ";") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
