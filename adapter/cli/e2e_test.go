package cli

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application/queries"
	"github.com/felixgeelhaar/keel/pkg/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCLITestDB(t *testing.T) string {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}
	return dbURL
}

func TestCLIPlanImportEndToEnd(t *testing.T) {
	dbURL := setupCLITestDB(t)

	projectID := uuid.New()
	app := setupTestApp(t, &config.Config{
		AppEnv:      "development",
		DatabaseURL: dbURL,
		CacheTTL:    time.Minute,
		EventBroker: config.BrokerNone,
		UserID:      uuid.NewString(),
		UserRole:    "admin",
	})

	plan := strings.Replace(samplePlan, "6f1c4d2e-0000-4000-8000-000000000001", projectID.String(), 1)
	planImportCmd.SetOut(&bytes.Buffer{})
	planImportCmd.SetIn(strings.NewReader(plan))
	planImportCmd.SetContext(context.Background())
	require.NoError(t, planImportCmd.RunE(planImportCmd, []string{"-"}))

	list, err := app.ListMilestonesHandler.Handle(context.Background(), queries.ListMilestonesQuery{ProjectID: projectID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.InDelta(t, 0, list[0].Remaining, 1e-9)
}
