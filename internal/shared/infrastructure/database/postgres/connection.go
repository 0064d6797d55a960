// Package postgres is the server driver, a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/database"
)

func init() {
	database.Register(database.DriverPostgres, NewConnection)
}

// errNoLastInsertID is returned by Result.LastInsertId; use RETURNING.
var errNoLastInsertID = errors.New("postgres: LastInsertId is not supported, use RETURNING")

// querier is the part of *pgxpool.Pool and pgx.Tx the executor needs.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// executor rebinds '?' placeholders to $n before handing the query to pgx.
type executor struct {
	q querier
}

func (e executor) Exec(ctx context.Context, query string, args ...any) (database.Result, error) {
	tag, err := e.q.Exec(ctx, database.DriverPostgres.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return result(tag), nil
}

func (e executor) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return e.q.QueryRow(ctx, database.DriverPostgres.Rebind(query), args...)
}

func (e executor) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	r, err := e.q.Query(ctx, database.DriverPostgres.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return rows{r}, nil
}

type Connection struct {
	executor
	pool *pgxpool.Pool
}

// NewConnection opens a pool for cfg.URL and pings it.
func NewConnection(ctx context.Context, cfg database.Config) (database.Connection, error) {
	if cfg.URL == "" {
		return nil, errors.New("postgres: DATABASE_URL is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Connection{executor: executor{pool}, pool: pool}, nil
}

func (c *Connection) Driver() database.Driver { return database.DriverPostgres }

func (c *Connection) Close() error {
	c.pool.Close()
	return nil
}

func (c *Connection) Ping(ctx context.Context) error { return c.pool.Ping(ctx) }

func (c *Connection) BeginTx(ctx context.Context) (database.Transaction, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &transaction{executor: executor{tx}, tx: tx}, nil
}

type transaction struct {
	executor
	tx pgx.Tx
}

func (t *transaction) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *transaction) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

type result pgconn.CommandTag

func (r result) RowsAffected() (int64, error) { return pgconn.CommandTag(r).RowsAffected(), nil }
func (r result) LastInsertId() (int64, error) { return 0, errNoLastInsertID }

// rows adapts pgx.Rows, whose Close returns nothing.
type rows struct {
	pgx.Rows
}

func (r rows) Close() error {
	r.Rows.Close()
	return nil
}
