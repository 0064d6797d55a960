package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application/commands"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/queries"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/felixgeelhaar/keel/internal/hierarchy/infrastructure/cache"
	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/keel/pkg/config"
	"github.com/felixgeelhaar/keel/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppEnv:         "test",
		DatabaseDriver: "sqlite",
		SQLitePath:     filepath.Join(t.TempDir(), "keel.db"),
		CacheTTL:       time.Minute,
		EventBroker:    config.BrokerInProcess,
		UserID:         "00000000-0000-0000-0000-000000000001",
		UserRole:       "supervisor",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestLocalModeContainer(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(ctx, localConfig(t), testLogger())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, database.DriverSQLite, c.DBDriver)
	assert.NotNil(t, c.HierarchyRepo)
	assert.NotNil(t, c.ContributionRepo)
	assert.NotNil(t, c.OutboxRepo)
	assert.NotNil(t, c.InProcessEventBus)
	assert.NotNil(t, c.CacheSubscriber)
	assert.Nil(t, c.KPIDirectory)
	assert.IsType(t, &cache.MemoryHierarchyCache{}, c.Cache)

	health := c.Health.GetOverallHealth(ctx)
	assert.Equal(t, observability.HealthStatusHealthy, health.Status)
	assert.Contains(t, health.Checks, "database")
}

func TestLocalModeContainer_MilestoneLifecycle(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(ctx, localConfig(t), testLogger())
	require.NoError(t, err)
	defer c.Close()

	s, err := c.Session()
	require.NoError(t, err)

	created, err := c.CreateMilestone.Handle(ctx, commands.CreateMilestoneCommand{
		Session:   s,
		ProjectID: uuid.New(),
		Title:     "Launch",
	})
	require.NoError(t, err)

	sub, err := c.AddSubMilestone.Handle(ctx, commands.AddSubMilestoneCommand{
		Session:     s,
		MilestoneID: created.MilestoneID,
		Title:       "Build",
		Weight:      60,
	})
	require.NoError(t, err)
	assert.InDelta(t, 40, sub.Remaining, 1e-9)

	task, err := c.AddTask.Handle(ctx, commands.AddTaskCommand{
		Session:     s,
		MilestoneID: created.MilestoneID,
		ParentID:    sub.NodeID,
		Title:       "API",
		Weight:      50,
		AssignedTo:  []uuid.UUID{s.UserID},
		LinkedKPIs: []domain.KPILink{
			{UserID: s.UserID, KPIDocID: "kpi-doc", KPIIndex: 0, ContributionWeight: 100},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNotStarted, task.Status)

	_, err = c.AddSubMilestone.Handle(ctx, commands.AddSubMilestoneCommand{
		Session:     s,
		MilestoneID: created.MilestoneID,
		Title:       "Too big",
		Weight:      40.01,
	})
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)

	require.NoError(t, c.SubmitCompletion.Handle(ctx, commands.SubmitCompletionCommand{
		Session: s,
		TaskID:  task.NodeID,
		Notes:   "shipped",
	}))
	review, err := c.ReviewCompletion.Handle(ctx, commands.ReviewCompletionCommand{
		Session: s,
		TaskID:  task.NodeID,
		UserID:  s.UserID,
		Approve: true,
		Grade:   4,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, review.Status)
	require.Len(t, review.Contributions, 1)
	assert.InDelta(t, 40, review.Contributions[0].Delta, 1e-9)

	view, err := c.GetHierarchy.Handle(ctx, queries.GetHierarchyQuery{MilestoneID: created.MilestoneID})
	require.NoError(t, err)
	// Build is half done (API 50 of 100), so Launch is 60 * 50% = 30.
	assert.InDelta(t, 30, view.Progress, 1e-9)

	ledger, err := c.ListContributions.Handle(ctx, queries.ListContributionsQuery{TaskID: task.NodeID})
	require.NoError(t, err)
	assert.Len(t, ledger, 1)

	metrics, ok := c.Metrics.(*observability.InMemoryMetrics)
	require.True(t, ok)
	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricMilestonesCreated))
	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricTasksCompleted))

	removed, err := c.DeleteMilestone.Handle(ctx, commands.DeleteMilestoneCommand{Session: s, MilestoneID: created.MilestoneID})
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	_, err = c.GetHierarchy.Handle(ctx, queries.GetHierarchyQuery{MilestoneID: created.MilestoneID})
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestLocalModeContainer_OutboxInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(ctx, localConfig(t), testLogger())
	require.NoError(t, err)
	defer c.Close()

	s, err := c.Session()
	require.NoError(t, err)

	created, err := c.CreateMilestone.Handle(ctx, commands.CreateMilestoneCommand{
		Session:   s,
		ProjectID: uuid.New(),
		Title:     "Launch",
	})
	require.NoError(t, err)

	_, err = c.GetHierarchy.Handle(ctx, queries.GetHierarchyQuery{MilestoneID: created.MilestoneID})
	require.NoError(t, err)

	memory := c.Cache.(*cache.MemoryHierarchyCache)
	require.Equal(t, 1, memory.Len())

	require.NoError(t, c.OutboxProcessor.ProcessOnce(ctx))

	assert.Equal(t, 0, memory.Len())
	assert.Equal(t, uint64(1), c.OutboxProcessor.GetStats().PublishedCount)
}

func TestLocalModeContainer_FileKPIDirectory(t *testing.T) {
	cfg := localConfig(t)
	path := filepath.Join(t.TempDir(), "kpis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`users:
  "00000000-0000-0000-0000-000000000001":
    - kpiDocId: kpi-doc
      kpiIndex: 0
      title: Revenue
      weight: 100
`), 0o600))
	cfg.KPIDirectoryFile = path

	ctx := context.Background()
	c, err := NewContainer(ctx, cfg, testLogger())
	require.NoError(t, err)
	defer c.Close()

	s, err := c.Session()
	require.NoError(t, err)

	refs, err := c.ApprovedKPIs.Handle(ctx, s.UserID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "Revenue", refs[0].Title)
}

func TestLocalModeContainer_InvalidSQLitePath(t *testing.T) {
	cfg := localConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	cfg.SQLitePath = filepath.Join(blocker, "keel.db")

	_, err := NewContainer(context.Background(), cfg, testLogger())
	assert.Error(t, err)
}
