package database

import (
	"context"
	"database/sql"
)

// Row is satisfied by *sql.Row and pgx.Row.
type Row interface {
	Scan(dest ...any) error
}

// Rows is satisfied by *sql.Rows and, through a thin adapter, pgx.Rows.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Result is satisfied by sql.Result.
type Result interface {
	RowsAffected() (int64, error)
	LastInsertId() (int64, error)
}

// Executor runs queries written with '?' placeholders. Repositories take an
// Executor so the same code runs inside and outside a unit of work.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

type Transaction interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Connection is a pooled handle for one of the supported drivers.
type Connection interface {
	Executor
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
	Ping(ctx context.Context) error
	Driver() Driver
}

// sqlQuerier is the part of *sql.DB and *sql.Tx that SQLExecutor needs.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLExecutor adapts a database/sql handle, either a pool or a transaction,
// to Executor. Drivers built on database/sql embed it.
type SQLExecutor struct {
	q sqlQuerier
}

func NewSQLExecutor(q sqlQuerier) SQLExecutor {
	return SQLExecutor{q: q}
}

func (e SQLExecutor) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	res, err := e.q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e SQLExecutor) QueryRow(ctx context.Context, query string, args ...any) Row {
	return e.q.QueryRowContext(ctx, query, args...)
}

func (e SQLExecutor) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := e.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
