package persistence_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/felixgeelhaar/keel/internal/hierarchy/infrastructure/persistence"
	"github.com/felixgeelhaar/keel/internal/shared/application"
	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/keel/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/migrations"
)

var (
	supervisor = uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
	alice      = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
)

func openConn(t *testing.T) database.Connection {
	t.Helper()
	ctx := context.Background()
	conn, err := database.NewConnection(ctx, database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "hierarchy.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, migrations.Run(ctx, conn))
	return conn
}

type fixture struct {
	tree *domain.Tree
	sub  *domain.Node
	task *domain.Node
}

func buildTree(t *testing.T, projectID uuid.UUID) fixture {
	t.Helper()
	root, err := domain.NewMilestone(projectID, "Launch", supervisor)
	require.NoError(t, err)
	root.SetSupervisor(supervisor)
	tree, err := domain.NewTree(root)
	require.NoError(t, err)

	sub, err := domain.NewSubMilestone("Beta", 60, supervisor)
	require.NoError(t, err)
	require.NoError(t, tree.InsertChild(root.ID(), sub))

	task, err := domain.NewTask("Write docs", 40, supervisor)
	require.NoError(t, err)
	due := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	task.SetDueDate(&due)
	require.NoError(t, task.AssignTo([]uuid.UUID{alice}, []domain.KPILink{
		{UserID: alice, KPIDocID: "kpi-doc", KPIIndex: 0, ContributionWeight: 70},
		{UserID: alice, KPIDocID: "kpi-doc", KPIIndex: 2, ContributionWeight: 30},
	}))
	require.NoError(t, tree.InsertChild(sub.ID(), task))

	other, err := domain.NewTask("Ship", 30, supervisor)
	require.NoError(t, err)
	require.NoError(t, tree.InsertChild(root.ID(), other))

	return fixture{tree: tree, sub: sub, task: task}
}

// withoutTimes drops timestamps, which round-trip through text on SQLite.
func withoutTimes(snaps []domain.NodeSnapshot) []domain.NodeSnapshot {
	out := make([]domain.NodeSnapshot, len(snaps))
	for i, s := range snaps {
		s.CreatedAt, s.UpdatedAt = time.Time{}, time.Time{}
		if s.DueDate != nil {
			d := s.DueDate.UTC()
			s.DueDate = &d
		}
		assignees := make([]domain.Assignee, len(s.Assignees))
		for j, a := range s.Assignees {
			a.SubmittedAt, a.ReviewedAt = nil, nil
			assignees[j] = a
		}
		if len(assignees) == 0 {
			assignees = nil
		}
		s.Assignees = assignees
		out[i] = s
	}
	return out
}

func TestSQLHierarchyRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewSQLHierarchyRepository(openConn(t))
	f := buildTree(t, uuid.New())
	require.NoError(t, f.tree.SubmitCompletion(f.task.ID(), alice, "done", []string{"s3://bucket/report.pdf"}))

	require.NoError(t, repo.Save(ctx, f.tree))
	assert.Equal(t, 1, f.tree.Version())

	loaded, err := repo.FindByID(ctx, f.tree.RootID())
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Version())
	assert.Equal(t, withoutTimes(f.tree.Snapshots()), withoutTimes(loaded.Snapshots()))

	task, err := loaded.Node(f.task.ID())
	require.NoError(t, err)
	a, ok := task.Assignee(alice)
	require.True(t, ok)
	assert.Equal(t, domain.CompletionSubmitted, a.Status)
	assert.Equal(t, []string{"s3://bucket/report.pdf"}, a.Documents)
	require.NotNil(t, a.SubmittedAt)
	assert.WithinDuration(t, time.Now(), *a.SubmittedAt, time.Minute)
	assert.Len(t, task.KPILinksFor(alice), 2)
}

func TestSQLHierarchyRepository_Updates(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewSQLHierarchyRepository(openConn(t))
	f := buildTree(t, uuid.New())
	require.NoError(t, repo.Save(ctx, f.tree))

	t.Run("cascade removal is persisted", func(t *testing.T) {
		loaded, err := repo.FindByID(ctx, f.tree.RootID())
		require.NoError(t, err)
		_, err = loaded.Remove(f.sub.ID())
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, loaded))
		assert.Empty(t, loaded.RemovedIDs())

		reloaded, err := repo.FindByID(ctx, f.tree.RootID())
		require.NoError(t, err)
		assert.Equal(t, 2, reloaded.Len())
		assert.False(t, reloaded.Contains(f.task.ID()))

		_, err = repo.FindByNodeID(ctx, f.task.ID())
		assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	})

	t.Run("stale writer is rejected", func(t *testing.T) {
		first, err := repo.FindByID(ctx, f.tree.RootID())
		require.NoError(t, err)
		second, err := repo.FindByID(ctx, f.tree.RootID())
		require.NoError(t, err)

		extra, err := domain.NewTask("Extra", 10, supervisor)
		require.NoError(t, err)
		require.NoError(t, first.InsertChild(first.RootID(), extra))
		require.NoError(t, repo.Save(ctx, first))

		require.NoError(t, second.SetProgress(second.Root().ChildIDs()[0], 50))
		assert.ErrorIs(t, repo.Save(ctx, second), domain.ErrConcurrentUpdate)
	})
}

func TestSQLHierarchyRepository_Lookups(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewSQLHierarchyRepository(openConn(t))
	project := uuid.New()
	a := buildTree(t, project)
	b := buildTree(t, project)
	elsewhere := buildTree(t, uuid.New())
	for _, f := range []fixture{a, b, elsewhere} {
		require.NoError(t, repo.Save(ctx, f.tree))
	}

	byNode, err := repo.FindByNodeID(ctx, a.task.ID())
	require.NoError(t, err)
	assert.Equal(t, a.tree.RootID(), byNode.RootID())

	trees, err := repo.ListByProject(ctx, project)
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, tr := range trees {
		ids = append(ids, tr.RootID())
	}
	assert.ElementsMatch(t, []uuid.UUID{a.tree.RootID(), b.tree.RootID()}, ids)

	require.NoError(t, repo.Delete(ctx, a.tree.RootID()))
	_, err = repo.FindByID(ctx, a.tree.RootID())
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	_, err = repo.FindByNodeID(ctx, a.task.ID())
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, a.tree.RootID()), domain.ErrNodeNotFound)

	_, err = repo.FindByID(ctx, b.tree.RootID())
	assert.NoError(t, err)
}

func TestSQLHierarchyRepository_UnitOfWorkRollback(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t)
	repo := persistence.NewSQLHierarchyRepository(conn)
	f := buildTree(t, uuid.New())

	err := application.WithUnitOfWork(ctx, database.NewUnitOfWork(conn), func(txCtx context.Context) error {
		require.NoError(t, repo.Save(txCtx, f.tree))
		_, err := repo.FindByID(txCtx, f.tree.RootID())
		require.NoError(t, err)
		return domain.ErrCapacityExceeded
	})
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)

	_, err = repo.FindByID(ctx, f.tree.RootID())
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestSQLContributionRepository(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewSQLContributionRepository(openConn(t))
	milestone, task, bob := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, repo.Record(ctx, milestone, []domain.Contribution{
		{TaskID: task, UserID: alice, KPIDocID: "doc", KPIIndex: 0, TaskWeight: 50, ContributionWeight: 50, Grade: 4, Delta: 20},
		{TaskID: task, UserID: alice, KPIDocID: "doc", KPIIndex: 1, TaskWeight: 50, ContributionWeight: 50, Grade: 4, Delta: 20},
		{TaskID: task, UserID: bob, KPIDocID: "doc", KPIIndex: 3, TaskWeight: 50, ContributionWeight: 100, Grade: 5, Delta: 50},
	}))

	byTask, err := repo.ListByTask(ctx, task)
	require.NoError(t, err)
	assert.Len(t, byTask, 3)

	byUser, err := repo.ListByUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, byUser, 2)
	assert.Equal(t, milestone, byUser[0].MilestoneID)
	assert.InDelta(t, 20, byUser[0].Delta, 1e-9)
	assert.NotEqual(t, uuid.Nil, byUser[0].ID)
	assert.False(t, byUser[0].RecordedAt.IsZero())

	none, err := repo.ListByUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}
