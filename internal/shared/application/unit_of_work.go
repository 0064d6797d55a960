package application

import "context"

// UnitOfWork brackets a command's writes in one transaction.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWorkFunc is a function that executes within a unit of work.
type UnitOfWorkFunc func(ctx context.Context) error

// WithUnitOfWork runs fn inside a unit of work. The work is rolled back
// when fn fails or panics; a rollback failure never hides fn's error.
func WithUnitOfWork(ctx context.Context, uow UnitOfWork, fn UnitOfWorkFunc) (err error) {
	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = uow.Rollback(txCtx)
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		_ = uow.Rollback(txCtx)
		return err
	}

	return uow.Commit(txCtx)
}

// InUnitOfWork is WithUnitOfWork for work that produces a value. The value
// is only returned when the commit succeeds.
func InUnitOfWork[T any](ctx context.Context, uow UnitOfWork, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := WithUnitOfWork(ctx, uow, func(txCtx context.Context) error {
		var err error
		result, err = fn(txCtx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
