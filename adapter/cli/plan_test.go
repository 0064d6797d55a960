package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	internalApp "github.com/felixgeelhaar/keel/internal/app"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/queries"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/felixgeelhaar/keel/pkg/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePlan = `projectId: 6f1c4d2e-0000-4000-8000-000000000001
milestone:
  title: Q3 launch
  subMilestones:
    - title: Backend
      weight: 60
      tasks:
        - title: API
          weight: 100
  tasks:
    - title: Docs
      weight: 40
`

func setupTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	container, err := internalApp.NewContainer(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(container.Close)

	session, err := container.Session()
	require.NoError(t, err)
	app := NewApp(container, session)
	SetApp(app)
	t.Cleanup(func() { SetApp(nil) })
	return app
}

func sqliteConfig(t *testing.T) *config.Config {
	return &config.Config{
		AppEnv:         "test",
		DatabaseDriver: "sqlite",
		SQLitePath:     filepath.Join(t.TempDir(), "plan.db"),
		CacheTTL:       time.Minute,
		EventBroker:    config.BrokerNone,
		UserID:         "00000000-0000-0000-0000-000000000001",
		UserRole:       "supervisor",
	}
}

func TestPlanImportExport(t *testing.T) {
	app := setupTestApp(t, sqliteConfig(t))

	var out bytes.Buffer
	planImportCmd.SetOut(&out)
	planImportCmd.SetIn(strings.NewReader(samplePlan))
	planImportCmd.SetContext(context.Background())
	require.NoError(t, planImportCmd.RunE(planImportCmd, []string{"-"}))
	assert.Contains(t, out.String(), "Milestone imported:")
	assert.Contains(t, out.String(), "Backend")

	projectID := uuid.MustParse("6f1c4d2e-0000-4000-8000-000000000001")
	list, err := app.ListMilestonesHandler.Handle(context.Background(), queries.ListMilestonesQuery{ProjectID: projectID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].TaskCount)

	exportPath := filepath.Join(t.TempDir(), "export.yaml")
	planOutput = exportPath
	defer func() { planOutput = "" }()
	out.Reset()
	planExportCmd.SetOut(&out)
	planExportCmd.SetContext(context.Background())
	require.NoError(t, planExportCmd.RunE(planExportCmd, []string{list[0].ID.String()}))

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "title: Q3 launch")
	assert.Contains(t, string(data), "weight: 60")
}

func TestPlanImport_OverBudgetRejected(t *testing.T) {
	setupTestApp(t, sqliteConfig(t))

	overBudget := strings.Replace(samplePlan, "weight: 40", "weight: 45", 1)
	planImportCmd.SetOut(&bytes.Buffer{})
	planImportCmd.SetIn(strings.NewReader(overBudget))
	planImportCmd.SetContext(context.Background())
	err := planImportCmd.RunE(planImportCmd, []string{"-"})
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
}

func TestParseKPILinks(t *testing.T) {
	user := uuid.New()
	links, err := ParseKPILinks([]string{user.String() + ":kpi-1:2:62.5"})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, user, links[0].UserID)
	assert.Equal(t, "kpi-1", links[0].KPIDocID)
	assert.Equal(t, 2, links[0].KPIIndex)
	assert.InDelta(t, 62.5, links[0].ContributionWeight, 1e-9)

	for _, bad := range []string{"a:b:c", "nope:kpi:0:100", user.String() + ":kpi:x:100", user.String() + ":kpi:0:lots"} {
		_, err := ParseKPILinks([]string{bad})
		assert.Error(t, err, bad)
	}
}
