package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/keel/internal/app"
	"github.com/felixgeelhaar/keel/pkg/config"
	"github.com/felixgeelhaar/keel/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	supervisorID = uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
	employeeID   = uuid.MustParse("00000000-0000-0000-0000-0000000000bb")
)

type testAPI struct {
	t       *testing.T
	server  *httptest.Server
	metrics *observability.InMemoryMetrics
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	cfg := &config.Config{
		AppEnv:         "test",
		DatabaseDriver: "sqlite",
		SQLitePath:     filepath.Join(t.TempDir(), "api.db"),
		CacheTTL:       time.Minute,
		EventBroker:    config.BrokerNone,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewInMemoryMetrics()
	c, err := app.NewContainerWithMetrics(context.Background(), cfg, logger, metrics)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	srv := NewServer(DefaultServerConfig(), NewHierarchyHandler(c), c.Health, metrics, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testAPI{t: t, server: ts, metrics: metrics}
}

// do sends body as JSON. A nil user sends no identity headers.
func (a *testAPI) do(method, path string, user *uuid.UUID, role string, body any) (*http.Response, map[string]any) {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set(HeaderUserID, user.String())
		req.Header.Set(HeaderUserRole, role)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(a.t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func (a *testAPI) supervisor(method, path string, body any) (*http.Response, map[string]any) {
	return a.do(method, path, &supervisorID, "supervisor", body)
}

func (a *testAPI) createMilestone() string {
	a.t.Helper()
	resp, body := a.supervisor(http.MethodPost, "/milestones", map[string]any{
		"projectId": uuid.NewString(),
		"title":     "Q3 launch",
	})
	require.Equal(a.t, http.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHierarchyAPI_CreateAndRead(t *testing.T) {
	api := newTestAPI(t)
	milestoneID := api.createMilestone()

	resp, body := api.supervisor(http.MethodPost, "/milestones/"+milestoneID+"/sub-milestones", map[string]any{
		"title":  "Build",
		"weight": 60,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.InDelta(t, 40, body["remainingCapacity"], 1e-9)
	subID := body["id"].(string)

	resp, body = api.supervisor(http.MethodPost, "/action-items/sub-milestone-task", map[string]any{
		"subMilestoneId": subID,
		"title":          "Write API",
		"taskWeight":     100,
		"priority":       "high",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	taskID := body["id"].(string)
	assert.Equal(t, milestoneID, body["milestoneId"])

	resp, body = api.supervisor(http.MethodPatch, "/action-items/"+taskID+"/progress", map[string]any{"progress": 50})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 30, body["milestoneProgress"], 1e-9)

	resp, body = api.do(http.MethodGet, "/milestones/"+milestoneID+"/hierarchy", nil, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Q3 launch", body["title"])
	assert.InDelta(t, 30, body["progress"], 1e-9)
	subs := body["subMilestones"].([]any)
	require.Len(t, subs, 1)
	assert.InDelta(t, 50, subs[0].(map[string]any)["progress"], 1e-9)

	resp, body = api.do(http.MethodGet, "/nodes/"+milestoneID+"/capacity", nil, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 60, body["allocated"], 1e-9)
	assert.InDelta(t, 40, body["remaining"], 1e-9)

	assert.Equal(t, int64(1), api.metrics.GetCounter(observability.MetricHTTPRequests,
		observability.T("method", http.MethodGet),
		observability.T("route", "/nodes/{id}/capacity"),
		observability.T("status", "200"),
	))
}

func TestHierarchyAPI_CapacityExceeded(t *testing.T) {
	api := newTestAPI(t)
	milestoneID := api.createMilestone()

	resp, _ := api.supervisor(http.MethodPost, "/milestones/"+milestoneID+"/sub-milestones", map[string]any{
		"title": "Build", "weight": 60,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := api.supervisor(http.MethodPost, "/milestones/"+milestoneID+"/sub-milestones", map[string]any{
		"title": "Polish", "weight": 50,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "capacity_exceeded", errorCode(body))
	assert.InDelta(t, 40, body["error"].(map[string]any)["remaining"], 1e-9)
	assert.NotEmpty(t, resp.Header.Get(HeaderRequestID))

	t.Run("weight above 100 reports remaining capacity", func(t *testing.T) {
		resp, body := api.supervisor(http.MethodPost, "/milestones/"+api.createMilestone()+"/sub-milestones", map[string]any{
			"title": "Everything", "weight": 150,
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "capacity_exceeded", errorCode(body))
		assert.InDelta(t, 100, body["error"].(map[string]any)["remaining"], 1e-9)
	})
}

func TestHierarchyAPI_Validation(t *testing.T) {
	api := newTestAPI(t)
	milestoneID := api.createMilestone()

	t.Run("weight out of range", func(t *testing.T) {
		resp, body := api.supervisor(http.MethodPost, "/milestones/"+milestoneID+"/sub-milestones", map[string]any{
			"title": "Build", "weight": 0,
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "validation_failed", errorCode(body))
	})

	t.Run("unknown field", func(t *testing.T) {
		resp, body := api.supervisor(http.MethodPost, "/milestones", map[string]any{
			"projectId": uuid.NewString(), "title": "x", "owner": "me",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "bad_request", errorCode(body))
	})

	t.Run("bad path id", func(t *testing.T) {
		resp, _ := api.do(http.MethodGet, "/milestones/not-a-uuid/hierarchy", nil, "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("approve without grade", func(t *testing.T) {
		resp, body := api.supervisor(http.MethodPost, "/action-items/"+uuid.NewString()+"/review", map[string]any{
			"userId": employeeID.String(), "approve": true,
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "validation_failed", errorCode(body))
	})

	t.Run("bad role header", func(t *testing.T) {
		resp, body := api.do(http.MethodPost, "/milestones", &supervisorID, "owner", map[string]any{
			"projectId": uuid.NewString(), "title": "x",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_identity", errorCode(body))
	})
}

func TestHierarchyAPI_Authorization(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(http.MethodPost, "/milestones", nil, "", map[string]any{
		"projectId": uuid.NewString(), "title": "Anonymous",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "identity_required", errorCode(body))

	resp, body = api.do(http.MethodPost, "/milestones", &employeeID, "employee", map[string]any{
		"projectId": uuid.NewString(), "title": "Mine",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", errorCode(body))
}

func TestHierarchyAPI_EmployeeTaskNeedsApproval(t *testing.T) {
	api := newTestAPI(t)
	milestoneID := api.createMilestone()

	resp, body := api.do(http.MethodPost, "/action-items/milestone/task", &employeeID, "employee", map[string]any{
		"milestoneId": milestoneID,
		"title":       "Proposal",
		"taskWeight":  20,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "pending_approval", body["status"])
	taskID := body["id"].(string)

	resp, _ = api.do(http.MethodPost, "/action-items/"+taskID+"/approval", &employeeID, "employee", map[string]any{"approve": true})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = api.supervisor(http.MethodPost, "/action-items/"+taskID+"/approval", map[string]any{"approve": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "not_started", body["status"])
}

func TestHierarchyAPI_NotFound(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(http.MethodGet, "/milestones/"+uuid.NewString()+"/hierarchy", nil, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", errorCode(body))

	resp, _ = api.supervisor(http.MethodDelete, "/sub-milestones/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHierarchyAPI_DeleteMilestone(t *testing.T) {
	api := newTestAPI(t)
	milestoneID := api.createMilestone()

	resp, body := api.supervisor(http.MethodDelete, "/milestones/"+milestoneID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 1, body["removed"], 1e-9)

	resp, _ = api.do(http.MethodGet, "/milestones/"+milestoneID+"/hierarchy", nil, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHierarchyAPI_PreviewContribution(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(http.MethodPost, "/contributions/preview", nil, "", map[string]any{
		"taskWeight": 50, "grade": 4, "contributionWeight": 50,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 20, body["delta"], 1e-9)

	resp, body = api.do(http.MethodPost, "/contributions/preview", nil, "", map[string]any{
		"taskWeight": 50, "grade": 6, "contributionWeight": 50,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_grade", errorCode(body))
}

func TestHierarchyAPI_Health(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(http.MethodGet, "/healthz", nil, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, body = api.do(http.MethodGet, "/readyz", nil, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}
