package database

import (
	"context"
	"errors"
)

// ErrNoTransaction is returned by Commit and Rollback on a context that
// did not come from Begin.
var ErrNoTransaction = errors.New("no transaction in context")

type txKey struct{}

// txScope is the transaction bound to a context. Only the outermost Begin
// owns it; nested scopes commit and roll back as no-ops.
type txScope struct {
	tx    Transaction
	owner bool
}

func scopeFrom(ctx context.Context) (txScope, bool) {
	s, ok := ctx.Value(txKey{}).(txScope)
	return s, ok && s.tx != nil
}

// TxFromContext returns the transaction a unit of work bound to ctx, or nil.
func TxFromContext(ctx context.Context) Transaction {
	s, _ := scopeFrom(ctx)
	return s.tx
}

// ExecutorFromContext prefers the bound transaction over the pool.
func ExecutorFromContext(ctx context.Context, conn Connection) Executor {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return conn
}

// UnitOfWork binds one transaction per outermost Begin to the context so
// the hierarchy and outbox repositories write atomically.
type UnitOfWork struct {
	conn Connection
}

func NewUnitOfWork(conn Connection) *UnitOfWork {
	return &UnitOfWork{conn: conn}
}

func (u *UnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if s, ok := scopeFrom(ctx); ok {
		return context.WithValue(ctx, txKey{}, txScope{tx: s.tx}), nil
	}
	tx, err := u.conn.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return context.WithValue(ctx, txKey{}, txScope{tx: tx, owner: true}), nil
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	return finish(ctx, Transaction.Commit)
}

func (u *UnitOfWork) Rollback(ctx context.Context) error {
	return finish(ctx, Transaction.Rollback)
}

func finish(ctx context.Context, end func(Transaction, context.Context) error) error {
	s, ok := scopeFrom(ctx)
	if !ok {
		return ErrNoTransaction
	}
	if !s.owner {
		return nil
	}
	return end(s.tx, ctx)
}
