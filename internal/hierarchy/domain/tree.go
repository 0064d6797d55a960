package domain

import (
	"fmt"
	"iter"
	"slices"
	"time"

	sharedDomain "github.com/felixgeelhaar/keel/internal/shared/domain"
	"github.com/google/uuid"
)

// Tree is a milestone hierarchy stored as an arena of nodes indexed by id.
// The aggregate id is the milestone id. A Tree is not safe for concurrent
// use; callers load one per request or guard it themselves.
type Tree struct {
	sharedDomain.BaseAggregateRoot
	rootID  uuid.UUID
	nodes   map[uuid.UUID]*Node
	removed []uuid.UUID
}

// NewTree creates a tree rooted at a new milestone.
func NewTree(root *Node) (*Tree, error) {
	if root == nil || root.kind != KindMilestone {
		return nil, ErrInvalidParent
	}
	t := &Tree{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRootWithID(root.id),
		rootID:            root.id,
		nodes:             map[uuid.UUID]*Node{root.id: root},
	}
	root.parentID = uuid.Nil
	t.AddDomainEvent(NewMilestoneCreated(root))
	return t, nil
}

// RehydrateTree rebuilds a tree from persisted snapshots. Children are
// attached in Position order. Capacity is not re-validated so that an
// over-allocated tree from storage can still be read and diagnosed.
func RehydrateTree(rootID uuid.UUID, snapshots []NodeSnapshot, version int) (*Tree, error) {
	nodes := make(map[uuid.UUID]*Node, len(snapshots))
	for _, s := range snapshots {
		nodes[s.ID] = RehydrateNode(s)
	}
	root, ok := nodes[rootID]
	if !ok || root.kind != KindMilestone {
		return nil, fmt.Errorf("rehydrate milestone %s: %w", rootID, ErrNodeNotFound)
	}

	ordered := slices.Clone(snapshots)
	slices.SortStableFunc(ordered, func(a, b NodeSnapshot) int { return a.Position - b.Position })
	for _, s := range ordered {
		if s.ID == rootID {
			continue
		}
		parent, ok := nodes[s.ParentID]
		if !ok {
			return nil, fmt.Errorf("rehydrate node %s: parent %s: %w", s.ID, s.ParentID, ErrNodeNotFound)
		}
		parent.childIDs = append(parent.childIDs, s.ID)
	}

	t := &Tree{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(rootID, root.createdAt, root.updatedAt, version),
		rootID:            rootID,
		nodes:             nodes,
	}
	if reachable := t.countFrom(rootID); reachable != len(nodes) {
		return nil, fmt.Errorf("rehydrate milestone %s: %d of %d nodes unreachable: %w",
			rootID, len(nodes)-reachable, len(nodes), ErrInvalidParent)
	}
	return t, nil
}

// Root returns the milestone node.
func (t *Tree) Root() *Node { return t.nodes[t.rootID] }

// RootID returns the milestone id.
func (t *Tree) RootID() uuid.UUID { return t.rootID }

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// Node looks up a node by id.
func (t *Tree) Node(id uuid.UUID) (*Node, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n, nil
}

// Contains reports whether the id is part of the tree.
func (t *Tree) Contains(id uuid.UUID) bool {
	_, ok := t.nodes[id]
	return ok
}

// Children returns the direct children of a node in order.
func (t *Tree) Children(id uuid.UUID) ([]*Node, error) {
	n, err := t.Node(id)
	if err != nil {
		return nil, err
	}
	return t.children(n), nil
}

// ParentOf returns the parent of a non-root node.
func (t *Tree) ParentOf(id uuid.UUID) (*Node, error) {
	n, err := t.Node(id)
	if err != nil {
		return nil, err
	}
	if n.IsRoot() {
		return nil, fmt.Errorf("%w: %s is the root", ErrNodeNotFound, id)
	}
	return t.Node(n.parentID)
}

func (t *Tree) children(n *Node) []*Node {
	out := make([]*Node, 0, len(n.childIDs))
	for _, id := range n.childIDs {
		out = append(out, t.nodes[id])
	}
	return out
}

// InsertChild appends child under parentID after checking kinds and the
// parent's remaining capacity.
func (t *Tree) InsertChild(parentID uuid.UUID, child *Node) error {
	parent, err := t.Node(parentID)
	if err != nil {
		return err
	}
	if child == nil || !parent.kind.CanParent(child.kind) {
		return ErrInvalidParent
	}
	if t.Contains(child.id) {
		return ErrDuplicateNode
	}
	if _, err := ValidateInsertion(t.children(parent), child.weight); err != nil {
		return err
	}

	child.parentID = parent.id
	child.projectID = t.Root().projectID
	parent.childIDs = append(parent.childIDs, child.id)
	t.nodes[child.id] = child
	parent.touch()
	t.AddDomainEvent(NewNodeAdded(t.rootID, child))
	return nil
}

// RemoveChild detaches childID from parentID and removes its whole subtree.
// It returns the removed ids, the child first.
func (t *Tree) RemoveChild(parentID, childID uuid.UUID) ([]uuid.UUID, error) {
	parent, err := t.Node(parentID)
	if err != nil {
		return nil, err
	}
	idx := slices.Index(parent.childIDs, childID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s under %s", ErrNodeNotFound, childID, parentID)
	}

	var removed []uuid.UUID
	stack := []uuid.UUID{childID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := t.nodes[id]
		removed = append(removed, id)
		stack = append(stack, n.childIDs...)
		delete(t.nodes, id)
	}

	parent.childIDs = slices.Delete(parent.childIDs, idx, idx+1)
	parent.touch()
	t.removed = append(t.removed, removed...)
	t.AddDomainEvent(NewNodeRemoved(t.rootID, parentID, removed))
	return removed, nil
}

// Remove deletes a node and its subtree, resolving the parent itself.
func (t *Tree) Remove(id uuid.UUID) ([]uuid.UUID, error) {
	n, err := t.Node(id)
	if err != nil {
		return nil, err
	}
	if n.IsRoot() {
		return nil, ErrRootRemoval
	}
	return t.RemoveChild(n.parentID, id)
}

// RemovedIDs returns ids removed since the tree was loaded or last saved.
func (t *Tree) RemovedIDs() []uuid.UUID {
	return slices.Clone(t.removed)
}

// ClearRemoved forgets removed ids once storage has caught up.
func (t *Tree) ClearRemoved() {
	t.removed = nil
}

// FindNode searches the subtree under from depth-first.
func (t *Tree) FindNode(from, id uuid.UUID) (*Node, error) {
	start, err := t.Node(from)
	if err != nil {
		return nil, err
	}
	stack := []*Node{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.id == id {
			return n, nil
		}
		for i := len(n.childIDs) - 1; i >= 0; i-- {
			stack = append(stack, t.nodes[n.childIDs[i]])
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
}

// Walk visits the subtree under from in depth-first pre-order, children in
// insertion order. Returning false from fn stops the walk.
func (t *Tree) Walk(from uuid.UUID, fn func(*Node) bool) error {
	start, err := t.Node(from)
	if err != nil {
		return err
	}
	stack := []*Node{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(n) {
			return nil
		}
		for i := len(n.childIDs) - 1; i >= 0; i-- {
			stack = append(stack, t.nodes[n.childIDs[i]])
		}
	}
	return nil
}

// FlattenTasks yields every task under from, depth-first. The sequence is
// lazy and can be ranged over again; an unknown from yields nothing.
func (t *Tree) FlattenTasks(from uuid.UUID) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		_ = t.Walk(from, func(n *Node) bool {
			if !n.IsTask() {
				return true
			}
			return yield(n)
		})
	}
}

// TaskCount returns the number of tasks under from.
func (t *Tree) TaskCount(from uuid.UUID) int {
	count := 0
	for range t.FlattenTasks(from) {
		count++
	}
	return count
}

// Snapshots returns every node in pre-order with Position set to its index
// among its siblings.
func (t *Tree) Snapshots() []NodeSnapshot {
	out := make([]NodeSnapshot, 0, len(t.nodes))
	_ = t.Walk(t.rootID, func(n *Node) bool {
		s := n.Snapshot()
		if !n.IsRoot() {
			s.Position = slices.Index(t.nodes[n.parentID].childIDs, n.id)
		}
		out = append(out, s)
		return true
	})
	return out
}

// TransitionStatus changes a node's status and records the change.
func (t *Tree) TransitionStatus(id uuid.UUID, target Status) error {
	n, err := t.Node(id)
	if err != nil {
		return err
	}
	from := n.status
	if err := n.TransitionTo(target); err != nil {
		return err
	}
	t.AddDomainEvent(NewTaskStatusChanged(t.rootID, n.id, from, target))
	return nil
}

// SetProgress updates a task's progress.
func (t *Tree) SetProgress(id uuid.UUID, progress float64) error {
	n, err := t.Node(id)
	if err != nil {
		return err
	}
	from := n.status
	if err := n.SetProgress(progress); err != nil {
		return err
	}
	if n.status != from {
		t.AddDomainEvent(NewTaskStatusChanged(t.rootID, n.id, from, n.status))
	}
	return nil
}

// SubmitCompletion records an assignee's completion report on a task.
func (t *Tree) SubmitCompletion(taskID, userID uuid.UUID, notes string, documents []string) error {
	n, err := t.Node(taskID)
	if err != nil {
		return err
	}
	if err := n.SubmitCompletion(userID, notes, documents, time.Now().UTC()); err != nil {
		return err
	}
	t.AddDomainEvent(NewTaskSubmitted(t.rootID, taskID, userID))
	return nil
}

// ReviewCompletion approves or rejects an assignee's submission. On approval
// it returns the KPI contributions the grade earns.
func (t *Tree) ReviewCompletion(taskID, userID uuid.UUID, approve bool, grade float64, comment string) ([]Contribution, error) {
	n, err := t.Node(taskID)
	if err != nil {
		return nil, err
	}
	if err := n.ReviewCompletion(userID, approve, grade, time.Now().UTC()); err != nil {
		return nil, err
	}
	n.commentReview(userID, comment)
	reviewed := NewTaskReviewed(t.rootID, taskID, userID, approve, nil, n.status)
	reviewed.Comment = comment
	if !approve {
		t.AddDomainEvent(reviewed)
		return nil, nil
	}
	g := grade
	reviewed.Grade = &g
	t.AddDomainEvent(reviewed)

	contributions, err := ContributionsFor(n, userID, grade)
	if err != nil {
		return nil, err
	}
	for _, c := range contributions {
		t.AddDomainEvent(NewKPIContributionRecorded(t.rootID, c))
	}
	return contributions, nil
}

// MarkDeleted records that the whole milestone is being deleted. Storage
// removes the rows; the tree itself is left as is.
func (t *Tree) MarkDeleted() {
	t.AddDomainEvent(NewMilestoneDeleted(t.rootID, t.Len()))
}

func (t *Tree) countFrom(id uuid.UUID) int {
	count := 0
	_ = t.Walk(id, func(*Node) bool {
		count++
		return true
	})
	return count
}
