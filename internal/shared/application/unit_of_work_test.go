package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUnitOfWork struct {
	mock.Mock
}

func (m *mockUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	return args.Get(0).(context.Context), args.Error(1)
}

func (m *mockUnitOfWork) Commit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockUnitOfWork) Rollback(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type txKey struct{}

func newTxContext() (context.Context, context.Context) {
	ctx := context.Background()
	return ctx, context.WithValue(ctx, txKey{}, "tx")
}

func TestWithUnitOfWork(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		uow := new(mockUnitOfWork)
		ctx, txCtx := newTxContext()
		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)

		err := WithUnitOfWork(ctx, uow, func(got context.Context) error {
			assert.Equal(t, txCtx, got)
			return nil
		})

		require.NoError(t, err)
		uow.AssertExpectations(t)
	})

	t.Run("rolls back and keeps the work error", func(t *testing.T) {
		uow := new(mockUnitOfWork)
		ctx, txCtx := newTxContext()
		workErr := errors.New("capacity exceeded")
		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(errors.New("rollback failed"))

		err := WithUnitOfWork(ctx, uow, func(context.Context) error { return workErr })

		assert.Equal(t, workErr, err)
		uow.AssertNotCalled(t, "Commit", mock.Anything)
	})

	t.Run("begin failure skips the work", func(t *testing.T) {
		uow := new(mockUnitOfWork)
		ctx := context.Background()
		beginErr := errors.New("database locked")
		uow.On("Begin", ctx).Return(ctx, beginErr)

		executed := false
		err := WithUnitOfWork(ctx, uow, func(context.Context) error {
			executed = true
			return nil
		})

		assert.Equal(t, beginErr, err)
		assert.False(t, executed)
	})

	t.Run("returns commit error", func(t *testing.T) {
		uow := new(mockUnitOfWork)
		ctx, txCtx := newTxContext()
		commitErr := errors.New("commit failed")
		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(commitErr)

		assert.Equal(t, commitErr, WithUnitOfWork(ctx, uow, func(context.Context) error { return nil }))
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		uow := new(mockUnitOfWork)
		ctx, txCtx := newTxContext()
		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)

		assert.Panics(t, func() {
			_ = WithUnitOfWork(ctx, uow, func(context.Context) error { panic("boom") })
		})
		uow.AssertCalled(t, "Rollback", txCtx)
	})
}

func TestInUnitOfWork(t *testing.T) {
	t.Run("returns value after commit", func(t *testing.T) {
		uow := new(mockUnitOfWork)
		ctx, txCtx := newTxContext()
		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)

		got, err := InUnitOfWork(ctx, uow, func(context.Context) (int, error) { return 7, nil })
		require.NoError(t, err)
		assert.Equal(t, 7, got)
	})

	t.Run("zero value when commit fails", func(t *testing.T) {
		uow := new(mockUnitOfWork)
		ctx, txCtx := newTxContext()
		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(errors.New("commit failed"))

		got, err := InUnitOfWork(ctx, uow, func(context.Context) (int, error) { return 7, nil })
		assert.Error(t, err)
		assert.Zero(t, got)
	})
}
