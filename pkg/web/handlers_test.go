package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramflow/gramflow/pkg/instagram"
	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/persistence"
	"github.com/gramflow/gramflow/pkg/persistence/file"
	"github.com/gramflow/gramflow/pkg/ratelimit"
	"github.com/gramflow/gramflow/pkg/ratelimit/memory"
	"github.com/gramflow/gramflow/pkg/registry"
	"github.com/gramflow/gramflow/pkg/web"
)

func setupTestApp(t *testing.T) (*fiber.App, persistence.Persistence, *ratelimit.Limiter) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	persist, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	limiter := ratelimit.NewLimiter(memory.NewStore())

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaults(limiter, instagram.NewFake())

	handlers := web.NewAPIHandlers(logger, persist, limiter, validator.New(validator.WithRequiredStructEnabled()), reg)

	app := fiber.New()

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Get("/:id/executions", handlers.GetExecutions)
	w.Get("/:id/limits/stats", handlers.GetLimiterStats)
	w.Get("/:id/limits/history", handlers.GetLimiterHistory)

	app.Get("/executions/:id", handlers.GetExecution)
	app.Post("/executions/:id/cancel", handlers.CancelExecution)
	app.Get("/nodes", handlers.GetNodeKinds)
	app.Get("/health", handlers.HealthCheck)

	return app, persist, limiter
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		if raw, ok := body.(string); ok {
			reader = bytes.NewBufferString(raw)
		} else {
			payload, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewBuffer(payload)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	return resp, data
}

func validCreateRequest() web.CreateWorkflowRequest {
	return web.CreateWorkflowRequest{
		Name:        "price responder",
		Description: "replies to price questions",
		Status:      models.WorkflowStatusActive,
		Nodes: []*models.Node{
			{ID: "trigger-1", Kind: models.NodeKindCommentTrigger, Enabled: true},
			{ID: "reply-1", Kind: models.NodeKindReply, Config: map[string]any{"public_replies": []any{"Check your DMs!"}}, Enabled: true},
		},
		Edges:       []*models.Edge{{ID: "e1", Source: "trigger-1", Target: "reply-1"}},
		Credentials: models.Credentials{AccountID: "acct-1", AccessToken: "tok"},
		Owner:       "user-1",
	}
}

func TestCreateWorkflow(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp, body := doRequest(t, app, http.MethodPost, "/workflows/", validCreateRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var workflow models.Workflow
	require.NoError(t, json.Unmarshal(body, &workflow))
	assert.NotEmpty(t, workflow.ID)
	assert.Equal(t, "price responder", workflow.Name)
	assert.Equal(t, models.WorkflowStatusActive, workflow.Status)
	assert.Len(t, workflow.Nodes, 2)
}

func TestCreateWorkflowDefaultsToDraft(t *testing.T) {
	app, _, _ := setupTestApp(t)

	req := validCreateRequest()
	req.Status = ""
	req.Nodes = nil
	req.Edges = nil

	resp, body := doRequest(t, app, http.MethodPost, "/workflows/", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var workflow models.Workflow
	require.NoError(t, json.Unmarshal(body, &workflow))
	assert.Equal(t, models.WorkflowStatusDraft, workflow.Status)
}

func TestCreateWorkflowValidation(t *testing.T) {
	app, _, _ := setupTestApp(t)

	tests := []struct {
		name    string
		mutate  func(*web.CreateWorkflowRequest)
		rawBody string
	}{
		{name: "invalid JSON", rawBody: "not-json"},
		{name: "name too short", mutate: func(r *web.CreateWorkflowRequest) { r.Name = "ab" }},
		{name: "missing owner", mutate: func(r *web.CreateWorkflowRequest) { r.Owner = "" }},
		{name: "missing credentials", mutate: func(r *web.CreateWorkflowRequest) { r.Credentials = models.Credentials{} }},
		{name: "unknown node kind", mutate: func(r *web.CreateWorkflowRequest) {
			r.Nodes = append(r.Nodes, &models.Node{ID: "x", Kind: "action:like", Enabled: true})
		}},
		{name: "active without trigger", mutate: func(r *web.CreateWorkflowRequest) {
			r.Nodes = r.Nodes[1:]
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body any
			if tt.rawBody != "" {
				body = tt.rawBody
			} else {
				req := validCreateRequest()
				tt.mutate(&req)
				body = req
			}

			resp, respBody := doRequest(t, app, http.MethodPost, "/workflows/", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(respBody))
		})
	}
}

func TestGetWorkflow(t *testing.T) {
	app, _, _ := setupTestApp(t)

	_, body := doRequest(t, app, http.MethodPost, "/workflows/", validCreateRequest())

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body := doRequest(t, app, http.MethodGet, "/workflows/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched models.Workflow
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, created.ID, fetched.ID)

	resp, _ = doRequest(t, app, http.MethodGet, "/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListWorkflows(t *testing.T) {
	app, _, _ := setupTestApp(t)

	doRequest(t, app, http.MethodPost, "/workflows/", validCreateRequest())

	resp, body := doRequest(t, app, http.MethodGet, "/workflows/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Workflows  []*models.Workflow `json:"workflows"`
		TotalCount int                `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(body, &listing))
	assert.Equal(t, 1, listing.TotalCount)
	require.Len(t, listing.Workflows, 1)
}

func TestUpdateWorkflow(t *testing.T) {
	app, _, _ := setupTestApp(t)

	_, body := doRequest(t, app, http.MethodPost, "/workflows/", validCreateRequest())

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))

	newName := "renamed responder"
	paused := models.WorkflowStatusPaused

	resp, body := doRequest(t, app, http.MethodPatch, "/workflows/"+created.ID, web.UpdateWorkflowRequest{
		Name:   &newName,
		Status: &paused,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var updated models.Workflow
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, newName, updated.Name)
	assert.Equal(t, models.WorkflowStatusPaused, updated.Status)
	assert.Len(t, updated.Nodes, 2, "nodes untouched by partial update")
}

func TestUpdateWorkflowCannotActivateWithoutTrigger(t *testing.T) {
	app, _, _ := setupTestApp(t)

	req := validCreateRequest()
	req.Status = models.WorkflowStatusDraft
	req.Nodes = req.Nodes[1:]
	req.Edges = nil

	_, body := doRequest(t, app, http.MethodPost, "/workflows/", req)

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))

	active := models.WorkflowStatusActive

	resp, body := doRequest(t, app, http.MethodPatch, "/workflows/"+created.ID, web.UpdateWorkflowRequest{Status: &active})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
}

func TestDeleteWorkflow(t *testing.T) {
	app, _, _ := setupTestApp(t)

	_, body := doRequest(t, app, http.MethodPost, "/workflows/", validCreateRequest())

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))

	resp, _ := doRequest(t, app, http.MethodDelete, "/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodGet, "/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodDelete, "/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetExecutions(t *testing.T) {
	app, persist, _ := setupTestApp(t)
	ctx := context.Background()

	_, body := doRequest(t, app, http.MethodPost, "/workflows/", validCreateRequest())

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))

	require.NoError(t, persist.ExecutionRepository().SaveExecution(ctx, &models.WorkflowExecution{
		ID:          "exec-1",
		WorkflowID:  created.ID,
		Status:      models.ExecutionStatusSuccess,
		TriggerKind: models.TriggerKindComment,
	}))

	resp, body := doRequest(t, app, http.MethodGet, "/workflows/"+created.ID+"/executions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Executions []*models.WorkflowExecution `json:"executions"`
		TotalCount int                         `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(body, &listing))
	assert.Equal(t, 1, listing.TotalCount)

	resp, _ = doRequest(t, app, http.MethodGet, "/workflows/missing/executions", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetExecutionWithNodeRecords(t *testing.T) {
	app, persist, _ := setupTestApp(t)
	ctx := context.Background()

	require.NoError(t, persist.ExecutionRepository().SaveExecution(ctx, &models.WorkflowExecution{
		ID:          "exec-1",
		WorkflowID:  "wf-1",
		Status:      models.ExecutionStatusSuccess,
		TriggerKind: models.TriggerKindComment,
	}))
	require.NoError(t, persist.ExecutionRepository().SaveNodeExecution(ctx, &models.NodeExecution{
		ID:          "nrec-1",
		ExecutionID: "exec-1",
		NodeID:      "trigger-1",
		NodeKind:    models.NodeKindCommentTrigger,
		Status:      models.NodeStatusSuccess,
	}))

	resp, body := doRequest(t, app, http.MethodGet, "/executions/exec-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var response web.ExecutionResponse
	require.NoError(t, json.Unmarshal(body, &response))
	assert.Equal(t, "exec-1", response.Execution.ID)
	require.Len(t, response.Nodes, 1)
	assert.Equal(t, "trigger-1", response.Nodes[0].NodeID)

	resp, _ = doRequest(t, app, http.MethodGet, "/executions/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelExecution(t *testing.T) {
	app, persist, _ := setupTestApp(t)
	ctx := context.Background()

	require.NoError(t, persist.ExecutionRepository().SaveExecution(ctx, &models.WorkflowExecution{
		ID:          "exec-1",
		WorkflowID:  "wf-1",
		Status:      models.ExecutionStatusRunning,
		TriggerKind: models.TriggerKindComment,
	}))

	resp, body := doRequest(t, app, http.MethodPost, "/executions/exec-1/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var cancelled models.WorkflowExecution
	require.NoError(t, json.Unmarshal(body, &cancelled))
	assert.Equal(t, models.ExecutionStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CompletedAt)

	// Terminal executions cannot be cancelled again.
	resp, _ = doRequest(t, app, http.MethodPost, "/executions/exec-1/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetLimiterStatsAndHistory(t *testing.T) {
	app, _, limiter := setupTestApp(t)
	ctx := context.Background()

	require.NoError(t, limiter.RecordAction(ctx, "wf-1", models.ActionTypeCommentReply, map[string]string{"comment_id": "c-1"}))
	require.NoError(t, limiter.RecordAction(ctx, "wf-1", models.ActionTypeDMSend, nil))

	resp, body := doRequest(t, app, http.MethodGet, "/workflows/wf-1/limits/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats models.ActionStats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 2, stats.Hourly.Total)
	assert.Equal(t, 1, stats.Hourly.ByType[models.ActionTypeCommentReply])

	resp, body = doRequest(t, app, http.MethodGet, "/workflows/wf-1/limits/history?limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history struct {
		Actions []models.ActionRecord `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(body, &history))
	assert.Len(t, history.Actions, 1)

	resp, _ = doRequest(t, app, http.MethodGet, "/workflows/wf-1/limits/history?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetNodeKinds(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp, body := doRequest(t, app, http.MethodGet, "/nodes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var response struct {
		Kinds []web.NodeKindResponse `json:"kinds"`
	}
	require.NoError(t, json.Unmarshal(body, &response))
	assert.Len(t, response.Kinds, 5)

	for _, kind := range response.Kinds {
		assert.NotEmpty(t, kind.Name)
		assert.NotEmpty(t, kind.Schema)
	}
}

func TestHealthCheck(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp, body := doRequest(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health.Status)
}
