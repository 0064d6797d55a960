// Package sqlite is the zero-config local driver, backed by the pure Go
// modernc.org/sqlite so the CLI and MCP server build without cgo.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/database"
)

func init() {
	database.Register(database.DriverSQLite, NewConnection)
}

// WAL lets readers run alongside the single writer; busy_timeout makes a
// second writer wait instead of failing with SQLITE_BUSY.
const pragmas = "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

type Connection struct {
	database.SQLExecutor
	db *sql.DB
}

// NewConnection opens (and creates if needed) the database file named by
// cfg.SQLitePath, a sqlite:// or file: URL, or the default path.
func NewConnection(ctx context.Context, cfg database.Config) (database.Connection, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = database.PathFromURL(cfg.URL)
	}
	if path == "" {
		path = database.DefaultSQLitePath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return &Connection{SQLExecutor: database.NewSQLExecutor(db), db: db}, nil
}

func (c *Connection) Driver() database.Driver { return database.DriverSQLite }

func (c *Connection) Close() error { return c.db.Close() }

func (c *Connection) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *Connection) BeginTx(ctx context.Context) (database.Transaction, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &transaction{SQLExecutor: database.NewSQLExecutor(tx), tx: tx}, nil
}

type transaction struct {
	database.SQLExecutor
	tx *sql.Tx
}

func (t *transaction) Commit(context.Context) error   { return t.tx.Commit() }
func (t *transaction) Rollback(context.Context) error { return t.tx.Rollback() }
