package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapacityTracker_States(t *testing.T) {
	tree := newTestTree(t)
	tracker := NewCapacityTracker(tree)

	state, err := tracker.State(tree.RootID())
	require.NoError(t, err)
	assert.Equal(t, AllocationEmpty, state)

	a := addSub(t, tree, tree.RootID(), "A", 45)
	state, _ = tracker.State(tree.RootID())
	assert.Equal(t, AllocationPartial, state)

	b := addTask(t, tree, tree.RootID(), "B", 55)
	state, _ = tracker.State(tree.RootID())
	assert.Equal(t, AllocationFull, state)

	_, err = tree.Remove(b.ID())
	require.NoError(t, err)
	state, _ = tracker.State(tree.RootID())
	assert.Equal(t, AllocationPartial, state)

	_, err = tree.Remove(a.ID())
	require.NoError(t, err)
	state, _ = tracker.State(tree.RootID())
	assert.Equal(t, AllocationEmpty, state)
}

func TestCapacityTracker_Describe(t *testing.T) {
	tree := newTestTree(t)
	addTask(t, tree, tree.RootID(), "A", 30)
	addTask(t, tree, tree.RootID(), "B", 25)

	capacity, err := NewCapacityTracker(tree).Describe(tree.RootID())
	require.NoError(t, err)
	assert.InDelta(t, 55, capacity.Allocated, 1e-9)
	assert.InDelta(t, 45, capacity.Remaining, 1e-9)
	assert.Nil(t, capacity.Violation)
	assert.Equal(t, tree.RootID(), capacity.ParentID)
}

func TestCapacityTracker_CanAccept(t *testing.T) {
	tree := newTestTree(t)
	task := addTask(t, tree, tree.RootID(), "A", 90)
	tracker := NewCapacityTracker(tree)

	assert.NoError(t, tracker.CanAccept(tree.RootID(), 10))
	assert.ErrorIs(t, tracker.CanAccept(tree.RootID(), 10.5), ErrCapacityExceeded)
	assert.ErrorIs(t, tracker.CanAccept(tree.RootID(), 0), ErrInvalidWeight)
	assert.ErrorIs(t, tracker.CanAccept(task.ID(), 10), ErrInvalidParent)
	assert.ErrorIs(t, tracker.CanAccept(uuid.New(), 10), ErrNodeNotFound)
	assert.Equal(t, 2, tree.Len())
}

func TestCapacityTracker_TaskHasNoCapacity(t *testing.T) {
	tree := newTestTree(t)
	task := addTask(t, tree, tree.RootID(), "A", 40)
	tracker := NewCapacityTracker(tree)

	remaining, err := tracker.RemainingFor(task.ID())
	assert.ErrorIs(t, err, ErrInvalidParent)
	assert.Zero(t, remaining)

	_, err = tracker.Describe(task.ID())
	assert.ErrorIs(t, err, ErrInvalidParent)

	_, err = tracker.State(task.ID())
	assert.ErrorIs(t, err, ErrInvalidParent)
}
