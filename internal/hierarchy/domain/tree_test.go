package domain

import (
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUser = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func newTestTree(t *testing.T) *Tree {
	t.Helper()
	root, err := NewMilestone(uuid.New(), "Launch", testUser)
	require.NoError(t, err)
	tree, err := NewTree(root)
	require.NoError(t, err)
	return tree
}

func addSub(t *testing.T, tree *Tree, parent uuid.UUID, title string, weight float64) *Node {
	t.Helper()
	n, err := NewSubMilestone(title, weight, testUser)
	require.NoError(t, err)
	require.NoError(t, tree.InsertChild(parent, n))
	return n
}

func addTask(t *testing.T, tree *Tree, parent uuid.UUID, title string, weight float64) *Node {
	t.Helper()
	n, err := NewTask(title, weight, testUser)
	require.NoError(t, err)
	require.NoError(t, tree.InsertChild(parent, n))
	return n
}

func TestNewTree(t *testing.T) {
	t.Run("root milestone weighs 100", func(t *testing.T) {
		tree := newTestTree(t)
		assert.Equal(t, FullAllocation, tree.Root().Weight())
		assert.True(t, tree.Root().IsRoot())
		assert.Equal(t, tree.Root().ID(), tree.ID())
		assert.Equal(t, 1, tree.Len())
		require.Len(t, tree.DomainEvents(), 1)
		assert.Equal(t, RoutingKeyMilestoneCreated, tree.DomainEvents()[0].RoutingKey())
	})

	t.Run("rejects non-milestone root", func(t *testing.T) {
		task, err := NewTask("Write docs", 10, testUser)
		require.NoError(t, err)
		_, err = NewTree(task)
		assert.ErrorIs(t, err, ErrInvalidParent)
	})
}

func TestTree_InsertChild(t *testing.T) {
	t.Run("appends children in order", func(t *testing.T) {
		tree := newTestTree(t)
		a := addSub(t, tree, tree.RootID(), "Design", 30)
		b := addTask(t, tree, tree.RootID(), "Kickoff", 20)

		children, err := tree.Children(tree.RootID())
		require.NoError(t, err)
		require.Len(t, children, 2)
		assert.Equal(t, a.ID(), children[0].ID())
		assert.Equal(t, b.ID(), children[1].ID())
		assert.Equal(t, tree.RootID(), a.ParentID())
		assert.Equal(t, tree.Root().ProjectID(), b.ProjectID())
	})

	t.Run("unknown parent", func(t *testing.T) {
		tree := newTestTree(t)
		n, _ := NewTask("Orphan", 10, testUser)
		assert.ErrorIs(t, tree.InsertChild(uuid.New(), n), ErrNodeNotFound)
	})

	t.Run("tasks cannot have children", func(t *testing.T) {
		tree := newTestTree(t)
		leaf := addTask(t, tree, tree.RootID(), "Leaf", 10)
		n, _ := NewTask("Nested", 10, testUser)
		assert.ErrorIs(t, tree.InsertChild(leaf.ID(), n), ErrInvalidParent)
	})

	t.Run("milestone cannot be a child", func(t *testing.T) {
		tree := newTestTree(t)
		other, _ := NewMilestone(uuid.New(), "Other", testUser)
		assert.ErrorIs(t, tree.InsertChild(tree.RootID(), other), ErrInvalidParent)
	})

	t.Run("duplicate id", func(t *testing.T) {
		tree := newTestTree(t)
		n := addTask(t, tree, tree.RootID(), "Once", 10)
		assert.ErrorIs(t, tree.InsertChild(tree.RootID(), n), ErrDuplicateNode)
	})

	t.Run("capacity exceeded leaves tree unchanged", func(t *testing.T) {
		tree := newTestTree(t)
		addSub(t, tree, tree.RootID(), "Big", 80)
		n, _ := NewTask("Too big", 30, testUser)

		err := tree.InsertChild(tree.RootID(), n)
		require.ErrorIs(t, err, ErrCapacityExceeded)

		var capErr *CapacityError
		require.ErrorAs(t, err, &capErr)
		assert.InDelta(t, 20, capErr.Remaining, 1e-9)
		assert.InDelta(t, 30, capErr.Requested, 1e-9)
		assert.Equal(t, 2, tree.Len())
		assert.False(t, tree.Contains(n.ID()))
	})

	t.Run("nested sub-milestones have their own budget", func(t *testing.T) {
		tree := newTestTree(t)
		outer := addSub(t, tree, tree.RootID(), "Outer", 100)
		inner := addSub(t, tree, outer.ID(), "Inner", 100)
		addTask(t, tree, inner.ID(), "Deep", 100)
		assert.Equal(t, 4, tree.Len())
	})
}

func TestTree_RemoveChild(t *testing.T) {
	t.Run("cascade removes every descendant", func(t *testing.T) {
		tree := newTestTree(t)
		sub := addSub(t, tree, tree.RootID(), "Phase 1", 60)
		nested := addSub(t, tree, sub.ID(), "Phase 1a", 50)
		t1 := addTask(t, tree, sub.ID(), "T1", 50)
		t2 := addTask(t, tree, nested.ID(), "T2", 40)
		t3 := addTask(t, tree, nested.ID(), "T3", 60)
		keep := addTask(t, tree, tree.RootID(), "Keep", 40)

		descendants := []uuid.UUID{nested.ID(), t1.ID(), t2.ID(), t3.ID()}
		removed, err := tree.RemoveChild(tree.RootID(), sub.ID())
		require.NoError(t, err)

		assert.Len(t, removed, len(descendants)+1)
		assert.Equal(t, sub.ID(), removed[0])
		for _, id := range append(descendants, sub.ID()) {
			assert.Contains(t, removed, id)
			_, err := tree.FindNode(tree.RootID(), id)
			assert.ErrorIs(t, err, ErrNodeNotFound)
		}
		assert.True(t, tree.Contains(keep.ID()))
		assert.Equal(t, 2, tree.Len())
		assert.ElementsMatch(t, removed, tree.RemovedIDs())
	})

	t.Run("second removal fails and leaves tree unchanged", func(t *testing.T) {
		tree := newTestTree(t)
		sub := addSub(t, tree, tree.RootID(), "Phase", 50)
		addTask(t, tree, tree.RootID(), "Other", 20)

		_, err := tree.RemoveChild(tree.RootID(), sub.ID())
		require.NoError(t, err)
		before := tree.Snapshots()

		_, err = tree.RemoveChild(tree.RootID(), sub.ID())
		assert.ErrorIs(t, err, ErrNodeNotFound)
		assert.Equal(t, before, tree.Snapshots())
	})

	t.Run("child under a different parent is not found", func(t *testing.T) {
		tree := newTestTree(t)
		a := addSub(t, tree, tree.RootID(), "A", 50)
		b := addSub(t, tree, tree.RootID(), "B", 50)
		task := addTask(t, tree, a.ID(), "T", 10)

		_, err := tree.RemoveChild(b.ID(), task.ID())
		assert.ErrorIs(t, err, ErrNodeNotFound)
		assert.True(t, tree.Contains(task.ID()))
	})

	t.Run("removal frees capacity", func(t *testing.T) {
		tree := newTestTree(t)
		sub := addSub(t, tree, tree.RootID(), "All", 100)
		_, err := tree.Remove(sub.ID())
		require.NoError(t, err)
		addTask(t, tree, tree.RootID(), "Fits again", 100)
	})

	t.Run("root cannot be removed", func(t *testing.T) {
		tree := newTestTree(t)
		_, err := tree.Remove(tree.RootID())
		assert.ErrorIs(t, err, ErrRootRemoval)
	})
}

func TestTree_FlattenTasks(t *testing.T) {
	tree := newTestTree(t)
	sub := addSub(t, tree, tree.RootID(), "Phase", 50)
	t1 := addTask(t, tree, sub.ID(), "T1", 50)
	nested := addSub(t, tree, sub.ID(), "Nested", 50)
	t2 := addTask(t, tree, nested.ID(), "T2", 100)
	t3 := addTask(t, tree, tree.RootID(), "T3", 50)

	collect := func() []uuid.UUID {
		var ids []uuid.UUID
		for n := range tree.FlattenTasks(tree.RootID()) {
			ids = append(ids, n.ID())
		}
		return ids
	}

	t.Run("depth-first order", func(t *testing.T) {
		assert.Equal(t, []uuid.UUID{t1.ID(), t2.ID(), t3.ID()}, collect())
	})

	t.Run("restartable", func(t *testing.T) {
		assert.Equal(t, collect(), collect())
	})

	t.Run("lazy early stop", func(t *testing.T) {
		var first *Node
		for n := range tree.FlattenTasks(tree.RootID()) {
			first = n
			break
		}
		require.NotNil(t, first)
		assert.Equal(t, t1.ID(), first.ID())
	})

	t.Run("subtree only", func(t *testing.T) {
		ids := slices.Collect(tree.FlattenTasks(nested.ID()))
		require.Len(t, ids, 1)
		assert.Equal(t, t2.ID(), ids[0].ID())
		assert.Equal(t, 3, tree.TaskCount(tree.RootID()))
	})

	t.Run("unknown start yields nothing", func(t *testing.T) {
		assert.Empty(t, slices.Collect(tree.FlattenTasks(uuid.New())))
	})
}

func TestTree_FindNode(t *testing.T) {
	tree := newTestTree(t)
	a := addSub(t, tree, tree.RootID(), "A", 50)
	b := addSub(t, tree, tree.RootID(), "B", 50)
	task := addTask(t, tree, a.ID(), "T", 10)

	found, err := tree.FindNode(tree.RootID(), task.ID())
	require.NoError(t, err)
	assert.Equal(t, task, found)

	_, err = tree.FindNode(b.ID(), task.ID())
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = tree.FindNode(tree.RootID(), uuid.New())
	assert.ErrorIs(t, err, ErrNodeNotFound)

	parent, err := tree.ParentOf(task.ID())
	require.NoError(t, err)
	assert.Equal(t, a.ID(), parent.ID())

	_, err = tree.ParentOf(tree.RootID())
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestRehydrateTree(t *testing.T) {
	t.Run("round trips structure and order", func(t *testing.T) {
		tree := newTestTree(t)
		a := addSub(t, tree, tree.RootID(), "A", 40)
		addTask(t, tree, a.ID(), "A1", 70)
		addTask(t, tree, a.ID(), "A2", 30)
		addTask(t, tree, tree.RootID(), "B", 60)

		snaps := tree.Snapshots()
		slices.Reverse(snaps)
		restored, err := RehydrateTree(tree.RootID(), snaps, 3)
		require.NoError(t, err)

		assert.Equal(t, tree.Snapshots(), restored.Snapshots())
		assert.Equal(t, 3, restored.Version())
		assert.Empty(t, restored.DomainEvents())
	})

	t.Run("tolerates over-allocation", func(t *testing.T) {
		root, _ := NewMilestone(uuid.New(), "Root", testUser)
		a, _ := NewTask("A", 70, testUser)
		b, _ := NewTask("B", 70, testUser)
		sa, sb := a.Snapshot(), b.Snapshot()
		sa.ParentID, sb.ParentID = root.ID(), root.ID()
		sb.Position = 1

		restored, err := RehydrateTree(root.ID(), []NodeSnapshot{root.Snapshot(), sa, sb}, 0)
		require.NoError(t, err)

		remaining, err := NewCapacityTracker(restored).RemainingFor(root.ID())
		assert.ErrorIs(t, err, ErrCapacityViolation)
		assert.Zero(t, remaining)
	})

	t.Run("missing parent", func(t *testing.T) {
		root, _ := NewMilestone(uuid.New(), "Root", testUser)
		a, _ := NewTask("A", 10, testUser)
		sa := a.Snapshot()
		sa.ParentID = uuid.New()
		_, err := RehydrateTree(root.ID(), []NodeSnapshot{root.Snapshot(), sa}, 0)
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})

	t.Run("missing root", func(t *testing.T) {
		_, err := RehydrateTree(uuid.New(), nil, 0)
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})
}
