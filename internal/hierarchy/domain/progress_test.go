package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeProgress_WeightedAggregation(t *testing.T) {
	tree := newTestTree(t)
	a := addSub(t, tree, tree.RootID(), "A", 60)
	b := addSub(t, tree, tree.RootID(), "B", 40)
	ta := addTask(t, tree, a.ID(), "TA", 100)
	tb := addTask(t, tree, b.ID(), "TB", 100)
	require.NoError(t, tree.SetProgress(ta.ID(), 50))
	require.NoError(t, tree.SetProgress(tb.ID(), 100))

	pa, err := ComputeProgress(tree, a.ID())
	require.NoError(t, err)
	assert.InDelta(t, 50, pa, 1e-9)

	pb, err := ComputeProgress(tree, b.ID())
	require.NoError(t, err)
	assert.InDelta(t, 100, pb, 1e-9)

	root, err := ComputeProgress(tree, tree.RootID())
	require.NoError(t, err)
	assert.InDelta(t, 70, root, 1e-9)
}

func TestComputeProgress_EdgeCases(t *testing.T) {
	t.Run("no children is zero", func(t *testing.T) {
		tree := newTestTree(t)
		p, err := ComputeProgress(tree, tree.RootID())
		require.NoError(t, err)
		assert.Zero(t, p)

		sub := addSub(t, tree, tree.RootID(), "Empty", 50)
		p, err = ComputeProgress(tree, sub.ID())
		require.NoError(t, err)
		assert.Zero(t, p)
	})

	t.Run("unallocated weight under-counts", func(t *testing.T) {
		tree := newTestTree(t)
		task := addTask(t, tree, tree.RootID(), "Half", 50)
		require.NoError(t, tree.TransitionStatus(task.ID(), StatusInProgress))
		require.NoError(t, tree.TransitionStatus(task.ID(), StatusPendingCompletionApproval))
		require.NoError(t, tree.TransitionStatus(task.ID(), StatusCompleted))

		p, err := ComputeProgress(tree, tree.RootID())
		require.NoError(t, err)
		assert.InDelta(t, 50, p, 1e-9)
	})

	t.Run("task reports stored progress", func(t *testing.T) {
		tree := newTestTree(t)
		task := addTask(t, tree, tree.RootID(), "T", 10)
		require.NoError(t, tree.SetProgress(task.ID(), 35))

		p, err := ComputeProgress(tree, task.ID())
		require.NoError(t, err)
		assert.InDelta(t, 35, p, 1e-9)
	})

	t.Run("unknown node", func(t *testing.T) {
		tree := newTestTree(t)
		_, err := ComputeProgress(tree, uuid.New())
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})

	t.Run("deep nesting", func(t *testing.T) {
		tree := newTestTree(t)
		parent := tree.RootID()
		for i := 0; i < 500; i++ {
			parent = addSub(t, tree, parent, "level", 100).ID()
		}
		leaf := addTask(t, tree, parent, "leaf", 100)
		require.NoError(t, tree.SetProgress(leaf.ID(), 80))

		p, err := ComputeProgress(tree, tree.RootID())
		require.NoError(t, err)
		assert.InDelta(t, 80, p, 1e-6)
	})
}

func TestComputeProgress_Monotonic(t *testing.T) {
	tree := newTestTree(t)
	a := addSub(t, tree, tree.RootID(), "A", 70)
	t1 := addTask(t, tree, a.ID(), "T1", 30)
	addTask(t, tree, a.ID(), "T2", 70)
	t3 := addTask(t, tree, tree.RootID(), "T3", 30)

	previous := -1.0
	for _, step := range []struct {
		id       uuid.UUID
		progress float64
	}{
		{t1.ID(), 10}, {t1.ID(), 40}, {t3.ID(), 20}, {t1.ID(), 100}, {t3.ID(), 90},
	} {
		require.NoError(t, tree.SetProgress(step.id, step.progress))
		p, err := ComputeProgress(tree, tree.RootID())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p, previous)
		previous = p
	}
}

func TestComputeAll(t *testing.T) {
	tree := newTestTree(t)
	a := addSub(t, tree, tree.RootID(), "A", 50)
	task := addTask(t, tree, a.ID(), "T", 100)
	require.NoError(t, tree.SetProgress(task.ID(), 60))

	all, err := ComputeAll(tree, tree.RootID())
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.InDelta(t, 60, all[task.ID()], 1e-9)
	assert.InDelta(t, 60, all[a.ID()], 1e-9)
	assert.InDelta(t, 30, all[tree.RootID()], 1e-9)
}
