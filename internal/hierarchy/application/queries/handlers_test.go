package queries

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/felixgeelhaar/keel/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTreeRepo struct {
	mock.Mock
}

func (m *mockTreeRepo) Save(ctx context.Context, tree *domain.Tree) error {
	return m.Called(ctx, tree).Error(0)
}

func (m *mockTreeRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Tree, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tree), args.Error(1)
}

func (m *mockTreeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockTreeRepo) FindByNodeID(ctx context.Context, nodeID uuid.UUID) (*domain.Tree, error) {
	args := m.Called(ctx, nodeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tree), args.Error(1)
}

func (m *mockTreeRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Tree, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Tree), args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, id uuid.UUID) (*application.HierarchyView, bool, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*application.HierarchyView), args.Bool(1), args.Error(2)
}

func (m *mockCache) Set(ctx context.Context, view *application.HierarchyView) error {
	return m.Called(ctx, view).Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockContributions struct {
	mock.Mock
}

func (m *mockContributions) Record(ctx context.Context, milestoneID uuid.UUID, cs []domain.Contribution) error {
	return m.Called(ctx, milestoneID, cs).Error(0)
}

func (m *mockContributions) ListByTask(ctx context.Context, taskID uuid.UUID) ([]domain.RecordedContribution, error) {
	args := m.Called(ctx, taskID)
	return args.Get(0).([]domain.RecordedContribution), args.Error(1)
}

func (m *mockContributions) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.RecordedContribution, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.RecordedContribution), args.Error(1)
}

type directoryFunc func(ctx context.Context, userID uuid.UUID) ([]application.KPIReference, error)

func (f directoryFunc) ApprovedForLinking(ctx context.Context, userID uuid.UUID) ([]application.KPIReference, error) {
	return f(ctx, userID)
}

var owner = uuid.New()

// sampleTree is Launch{Build(60){API(100) at 50%}, Docs(40) at 100%}.
func sampleTree(t *testing.T) (tree *domain.Tree, build, api, docs *domain.Node) {
	t.Helper()
	root, err := domain.NewMilestone(uuid.New(), "Launch", owner)
	require.NoError(t, err)
	tree, err = domain.NewTree(root)
	require.NoError(t, err)

	build, err = domain.NewSubMilestone("Build", 60, owner)
	require.NoError(t, err)
	require.NoError(t, tree.InsertChild(root.ID(), build))
	api, err = domain.NewTask("API", 100, owner)
	require.NoError(t, err)
	require.NoError(t, tree.InsertChild(build.ID(), api))
	docs, err = domain.NewTask("Docs", 40, owner)
	require.NoError(t, err)
	require.NoError(t, tree.InsertChild(root.ID(), docs))

	require.NoError(t, tree.SetProgress(api.ID(), 50))
	require.NoError(t, tree.SetProgress(docs.ID(), 100))
	tree.ClearDomainEvents()
	return tree, build, api, docs
}

func TestGetHierarchyHandler_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("miss loads and fills the cache", func(t *testing.T) {
		tree, build, _, _ := sampleTree(t)
		repo := new(mockTreeRepo)
		cache := new(mockCache)
		metrics := observability.NewInMemoryMetrics()
		repo.On("FindByID", ctx, tree.RootID()).Return(tree, nil)
		cache.On("Get", ctx, tree.RootID()).Return(nil, false, nil)
		cache.On("Set", ctx, mock.AnythingOfType("*application.HierarchyView")).Return(nil)

		view, err := NewGetHierarchyHandler(repo, cache, metrics, nil).Handle(ctx, GetHierarchyQuery{MilestoneID: tree.RootID()})

		require.NoError(t, err)
		assert.InDelta(t, 70, view.Progress, 1e-9)
		assert.Equal(t, 2, view.TaskCount)
		require.Len(t, view.SubMilestones, 1)
		assert.Equal(t, build.ID(), view.SubMilestones[0].ID)
		assert.InDelta(t, 50, view.SubMilestones[0].Progress, 1e-9)
		require.Len(t, view.Tasks, 1)
		assert.Equal(t, "Docs", view.Tasks[0].Title)
		assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricCacheMisses))
		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("hit skips storage", func(t *testing.T) {
		id := uuid.New()
		repo := new(mockTreeRepo)
		cache := new(mockCache)
		metrics := observability.NewInMemoryMetrics()
		cached := &application.HierarchyView{NodeView: application.NodeView{ID: id, Title: "cached"}}
		cache.On("Get", ctx, id).Return(cached, true, nil)

		view, err := NewGetHierarchyHandler(repo, cache, metrics, nil).Handle(ctx, GetHierarchyQuery{MilestoneID: id})

		require.NoError(t, err)
		assert.Same(t, cached, view)
		assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricCacheHits))
		repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("cache failures fall through", func(t *testing.T) {
		tree, _, _, _ := sampleTree(t)
		repo := new(mockTreeRepo)
		cache := new(mockCache)
		repo.On("FindByID", ctx, tree.RootID()).Return(tree, nil)
		cache.On("Get", ctx, tree.RootID()).Return(nil, false, errors.New("connection refused"))
		cache.On("Set", ctx, mock.Anything).Return(errors.New("connection refused"))

		view, err := NewGetHierarchyHandler(repo, cache, nil, nil).Handle(ctx, GetHierarchyQuery{MilestoneID: tree.RootID()})

		require.NoError(t, err)
		assert.Equal(t, tree.RootID(), view.ID)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New()
		repo := new(mockTreeRepo)
		repo.On("FindByID", ctx, id).Return(nil, domain.ErrNodeNotFound)

		_, err := NewGetHierarchyHandler(repo, nil, nil, nil).Handle(ctx, GetHierarchyQuery{MilestoneID: id})

		assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	})
}

func TestListMilestonesHandler_Handle(t *testing.T) {
	ctx := context.Background()
	tree, _, _, _ := sampleTree(t)
	due := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	tree.Root().SetDueDate(&due)
	projectID := tree.Root().ProjectID()

	repo := new(mockTreeRepo)
	repo.On("ListByProject", ctx, projectID).Return([]*domain.Tree{tree}, nil)

	summaries, err := NewListMilestonesHandler(repo).Handle(ctx, ListMilestonesQuery{ProjectID: projectID})

	require.NoError(t, err)
	require.Len(t, summaries, 1)
	s := summaries[0]
	assert.Equal(t, "Launch", s.Title)
	assert.InDelta(t, 70, s.Progress, 1e-9)
	assert.Equal(t, 2, s.TaskCount)
	assert.Zero(t, s.Remaining)
	assert.Equal(t, &due, s.DueDate)
}

func TestListTasksHandler_Handle(t *testing.T) {
	ctx := context.Background()
	tree, build, api, docs := sampleTree(t)
	repo := new(mockTreeRepo)
	repo.On("FindByID", ctx, tree.RootID()).Return(tree, nil)
	handler := NewListTasksHandler(repo)

	t.Run("whole milestone", func(t *testing.T) {
		tasks, err := handler.Handle(ctx, ListTasksQuery{MilestoneID: tree.RootID()})
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.ElementsMatch(t, []uuid.UUID{api.ID(), docs.ID()}, []uuid.UUID{tasks[0].ID, tasks[1].ID})
	})

	t.Run("from a sub-milestone", func(t *testing.T) {
		tasks, err := handler.Handle(ctx, ListTasksQuery{MilestoneID: tree.RootID(), From: build.ID()})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.InDelta(t, 50, tasks[0].Progress, 1e-9)
	})

	t.Run("unknown start node", func(t *testing.T) {
		_, err := handler.Handle(ctx, ListTasksQuery{MilestoneID: tree.RootID(), From: uuid.New()})
		assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	})
}

func TestGetCapacityHandler_Handle(t *testing.T) {
	ctx := context.Background()
	tree, build, _, docs := sampleTree(t)
	repo := new(mockTreeRepo)
	repo.On("FindByNodeID", ctx, tree.RootID()).Return(tree, nil)
	repo.On("FindByNodeID", ctx, build.ID()).Return(tree, nil)
	handler := NewGetCapacityHandler(repo)

	root, err := handler.Handle(ctx, GetCapacityQuery{NodeID: tree.RootID()})
	require.NoError(t, err)
	assert.InDelta(t, 100, root.Allocated, 1e-9)
	assert.Zero(t, root.Remaining)
	assert.Equal(t, domain.AllocationFull, root.State)
	assert.Empty(t, root.Violation)

	sub, err := handler.Handle(ctx, GetCapacityQuery{NodeID: build.ID()})
	require.NoError(t, err)
	assert.Equal(t, domain.AllocationFull, sub.State)

	repo.On("FindByNodeID", ctx, docs.ID()).Return(tree, nil)
	_, err = handler.Handle(ctx, GetCapacityQuery{NodeID: docs.ID()})
	assert.ErrorIs(t, err, domain.ErrInvalidParent)
}

func TestListContributionsHandler_Handle(t *testing.T) {
	ctx := context.Background()
	taskID, userID := uuid.New(), uuid.New()
	repo := new(mockContributions)
	repo.On("ListByTask", ctx, taskID).Return([]domain.RecordedContribution{{
		ID:           uuid.New(),
		MilestoneID:  uuid.New(),
		Contribution: domain.Contribution{TaskID: taskID, UserID: userID, KPIDocID: "doc", Delta: 20},
	}}, nil)
	repo.On("ListByUser", ctx, userID).Return([]domain.RecordedContribution{}, nil)
	handler := NewListContributionsHandler(repo)

	byTask, err := handler.Handle(ctx, ListContributionsQuery{TaskID: taskID})
	require.NoError(t, err)
	require.Len(t, byTask, 1)
	assert.InDelta(t, 20, byTask[0].Delta, 1e-9)

	byUser, err := handler.Handle(ctx, ListContributionsQuery{UserID: userID})
	require.NoError(t, err)
	assert.Empty(t, byUser)

	_, err = handler.Handle(ctx, ListContributionsQuery{TaskID: taskID, UserID: userID})
	assert.ErrorIs(t, err, application.ErrValidation)
	_, err = handler.Handle(ctx, ListContributionsQuery{})
	assert.ErrorIs(t, err, application.ErrValidation)
}

func TestPreviewContribution(t *testing.T) {
	p, err := PreviewContribution(50, 4, 50)
	require.NoError(t, err)
	assert.InDelta(t, 20, p.Delta, 1e-9)

	_, err = PreviewContribution(50, 6, 50)
	assert.ErrorIs(t, err, domain.ErrInvalidGrade)
}

func TestExportPlanHandler_Handle(t *testing.T) {
	ctx := context.Background()
	tree, _, _, _ := sampleTree(t)
	repo := new(mockTreeRepo)
	repo.On("FindByID", ctx, tree.RootID()).Return(tree, nil)

	data, err := NewExportPlanHandler(repo).Handle(ctx, tree.RootID())
	require.NoError(t, err)

	plan, err := application.ParsePlan(data)
	require.NoError(t, err)
	assert.Equal(t, tree.Root().ProjectID(), plan.ProjectID)
	require.Len(t, plan.Milestone.SubMilestones, 1)
	assert.Equal(t, "API", plan.Milestone.SubMilestones[0].Tasks[0].Title)
	require.Len(t, plan.Milestone.Tasks, 1)
	assert.InDelta(t, 40, plan.Milestone.Tasks[0].Weight, 1e-9)
}

func TestApprovedKPIsHandler_Handle(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("proxies the directory", func(t *testing.T) {
		metrics := observability.NewInMemoryMetrics()
		dir := directoryFunc(func(_ context.Context, id uuid.UUID) ([]application.KPIReference, error) {
			assert.Equal(t, userID, id)
			return []application.KPIReference{{KPIDocID: "doc", KPIIndex: 2, Title: "Revenue"}}, nil
		})

		refs, err := NewApprovedKPIsHandler(dir, metrics).Handle(ctx, userID)

		require.NoError(t, err)
		require.Len(t, refs, 1)
		assert.Equal(t, "Revenue", refs[0].Title)
		assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricKPIDirectoryCalls, observability.T("outcome", "ok")))
	})

	t.Run("directory errors are returned", func(t *testing.T) {
		boom := errors.New("down")
		dir := directoryFunc(func(context.Context, uuid.UUID) ([]application.KPIReference, error) { return nil, boom })

		_, err := NewApprovedKPIsHandler(dir, nil).Handle(ctx, userID)

		assert.ErrorIs(t, err, boom)
	})

	t.Run("no directory configured", func(t *testing.T) {
		refs, err := NewApprovedKPIsHandler(nil, nil).Handle(ctx, userID)
		require.NoError(t, err)
		assert.Empty(t, refs)
	})

	t.Run("user id required", func(t *testing.T) {
		_, err := NewApprovedKPIsHandler(nil, nil).Handle(ctx, uuid.Nil)
		assert.ErrorIs(t, err, application.ErrValidation)
	})
}
