package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"automation-service/internal/engine"
	"automation-service/internal/model"
	"automation-service/internal/repository"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testTenant  = "11111111-1111-1111-1111-111111111111"
	otherTenant = "22222222-2222-2222-2222-222222222222"
	testUser    = "user-1"
)

func newTestHandler(t *testing.T) (*WorkflowHandler, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	log := zap.NewNop()
	registry := engine.DefaultRegistry(store, &engine.LogMailer{Log: log}, log)
	eng := engine.New(store, registry, log, time.Second)
	return NewWorkflowHandler(store, eng), store
}

// newContext builds an echo context the way the auth middleware leaves it.
func newContext(t *testing.T, method, target, body, tenantID string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("tenant_id", tenantID)
	c.Set("user_id", testUser)
	c.Set("logger", zap.NewNop())
	return c, rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateWorkflow_Valid(t *testing.T) {
	h, store := newTestHandler(t)
	body := `{
		"name": "VIP deal alert",
		"trigger_type": "proposal_accepted",
		"trigger_config": {"logic": "AND", "conditions": [{"field": "total", "operator": "greater_than", "value": 1000}]},
		"status": "active",
		"steps": [{"step_order": 1, "step_type": "send_email", "config": {"to": "sales@agency.test"}}]
	}`
	c, rec := newContext(t, http.MethodPost, "/api/workflows", body, testTenant)

	require.NoError(t, h.CreateWorkflow(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	out := decodeBody(t, rec)
	id, _ := out["id"].(string)
	require.NotEmpty(t, id)

	wf, err := store.GetWorkflow(context.Background(), testTenant, id)
	require.NoError(t, err)
	assert.Equal(t, model.WorkflowStatusActive, wf.Status)
	assert.Equal(t, testUser, wf.CreatedBy)

	steps, err := store.ListSteps(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "send_email", steps[0].StepType)
}

func TestCreateWorkflow_RejectsUnknownEnums(t *testing.T) {
	h, _ := newTestHandler(t)
	tests := []struct {
		name string
		body string
	}{
		{"unknown trigger_type", `{"name": "w", "trigger_type": "meteor_strike"}`},
		{"unknown step_type", `{"name": "w", "trigger_type": "lead_created", "steps": [{"step_order": 1, "step_type": "does_not_exist"}]}`},
		{"unknown operator", `{"name": "w", "trigger_type": "lead_created", "trigger_config": {"conditions": [{"field": "x", "operator": "regex", "value": "y"}]}}`},
		{"invalid logic", `{"name": "w", "trigger_type": "lead_created", "trigger_config": {"logic": "XOR"}}`},
		{"invalid status", `{"name": "w", "trigger_type": "lead_created", "status": "paused"}`},
		{"missing name", `{"trigger_type": "lead_created"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(t, http.MethodPost, "/api/workflows", tt.body, testTenant)
			require.NoError(t, h.CreateWorkflow(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestListWorkflows_StepCountsAndStatusFilter(t *testing.T) {
	h, store := newTestHandler(t)
	active := &model.Workflow{TenantID: testTenant, Name: "a", TriggerType: model.TriggerLeadCreated, Status: model.WorkflowStatusActive}
	require.NoError(t, store.CreateWorkflow(context.Background(), active, []model.WorkflowStep{
		{StepOrder: 1, StepType: engine.StepWait},
		{StepOrder: 2, StepType: engine.StepWait},
	}))
	draft := &model.Workflow{TenantID: testTenant, Name: "d", TriggerType: model.TriggerLeadCreated, Status: model.WorkflowStatusDraft}
	require.NoError(t, store.CreateWorkflow(context.Background(), draft, nil))

	c, rec := newContext(t, http.MethodGet, "/api/workflows?status=active", "", testTenant)
	require.NoError(t, h.ListWorkflows(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0]["name"])
	assert.Equal(t, 2.0, out[0]["step_count"])
}

func TestGetWorkflow_TenantIsolation(t *testing.T) {
	h, store := newTestHandler(t)
	wf := &model.Workflow{TenantID: otherTenant, Name: "foreign", TriggerType: model.TriggerLeadCreated, Status: model.WorkflowStatusActive}
	require.NoError(t, store.CreateWorkflow(context.Background(), wf, nil))

	c, rec := newContext(t, http.MethodGet, "/api/workflows/"+wf.ID, "", testTenant)
	c.SetParamNames("id")
	c.SetParamValues(wf.ID)
	require.NoError(t, h.GetWorkflow(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateWorkflow_TriggerTypeImmutable(t *testing.T) {
	h, store := newTestHandler(t)
	wf := &model.Workflow{TenantID: testTenant, Name: "w", TriggerType: model.TriggerLeadCreated, Status: model.WorkflowStatusActive}
	require.NoError(t, store.CreateWorkflow(context.Background(), wf, nil))

	body := `{"name": "w2", "trigger_type": "contract_signed"}`
	c, rec := newContext(t, http.MethodPut, "/api/workflows/"+wf.ID, body, testTenant)
	c.SetParamNames("id")
	c.SetParamValues(wf.ID)
	require.NoError(t, h.UpdateWorkflow(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "immutable")
}

func TestUpdateWorkflow_ReplacesSteps(t *testing.T) {
	h, store := newTestHandler(t)
	wf := &model.Workflow{TenantID: testTenant, Name: "w", TriggerType: model.TriggerLeadCreated, Status: model.WorkflowStatusActive}
	require.NoError(t, store.CreateWorkflow(context.Background(), wf, []model.WorkflowStep{
		{StepOrder: 1, StepType: engine.StepWait},
		{StepOrder: 2, StepType: engine.StepWait},
	}))

	body := `{"name": "w", "steps": [{"step_order": 1, "step_type": "send_email", "config": {"to": "x@y.test"}}]}`
	c, rec := newContext(t, http.MethodPut, "/api/workflows/"+wf.ID, body, testTenant)
	c.SetParamNames("id")
	c.SetParamValues(wf.ID)
	require.NoError(t, h.UpdateWorkflow(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	steps, err := store.ListSteps(context.Background(), wf.ID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, engine.StepSendEmail, steps[0].StepType)
}

func TestSetWorkflowStatus(t *testing.T) {
	h, store := newTestHandler(t)
	wf := &model.Workflow{TenantID: testTenant, Name: "w", TriggerType: model.TriggerLeadCreated, Status: model.WorkflowStatusDraft}
	require.NoError(t, store.CreateWorkflow(context.Background(), wf, nil))

	c, rec := newContext(t, http.MethodPatch, "/api/workflows/"+wf.ID+"/status", `{"status": "active"}`, testTenant)
	c.SetParamNames("id")
	c.SetParamValues(wf.ID)
	require.NoError(t, h.SetWorkflowStatus(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	got, err := store.GetWorkflow(context.Background(), testTenant, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WorkflowStatusActive, got.Status)
}

func TestDeleteWorkflow_KeepsRuns(t *testing.T) {
	h, store := newTestHandler(t)
	wf := &model.Workflow{TenantID: testTenant, Name: "w", TriggerType: model.TriggerLeadCreated, Status: model.WorkflowStatusActive}
	require.NoError(t, store.CreateWorkflow(context.Background(), wf, nil))
	run := &model.WorkflowRun{WorkflowID: wf.ID, TenantID: testTenant, Status: model.RunStatusSucceeded, StartedAt: time.Now()}
	require.NoError(t, store.CreateRun(context.Background(), run))

	c, rec := newContext(t, http.MethodDelete, "/api/workflows/"+wf.ID, "", testTenant)
	c.SetParamNames("id")
	c.SetParamValues(wf.ID)
	require.NoError(t, h.DeleteWorkflow(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err := store.GetWorkflow(context.Background(), testTenant, wf.ID)
	assert.ErrorIs(t, err, repository.ErrWorkflowNotFound)

	runs, err := store.ListRuns(context.Background(), testTenant, wf.ID)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "runs are kept for audit after workflow deletion")
}

func TestExecuteWorkflow_ReturnsRunID(t *testing.T) {
	h, store := newTestHandler(t)
	wf := &model.Workflow{TenantID: testTenant, Name: "w", TriggerType: model.TriggerLeadCreated, Status: model.WorkflowStatusActive}
	require.NoError(t, store.CreateWorkflow(context.Background(), wf, []model.WorkflowStep{
		{StepOrder: 1, StepType: engine.StepCreateTask, Config: model.JSONMap{"title": "Call {{entity_name}}"}},
	}))

	body := `{"trigger_data": {"entity_id": "lead-7", "entity_type": "lead", "entity_name": "Jane"}}`
	c, rec := newContext(t, http.MethodPost, "/api/workflows/"+wf.ID+"/execute", body, testTenant)
	c.SetParamNames("id")
	c.SetParamValues(wf.ID)
	require.NoError(t, h.ExecuteWorkflow(c))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	out := decodeBody(t, rec)
	runID, _ := out["run_id"].(string)
	require.NotEmpty(t, runID)

	run, err := store.GetRun(context.Background(), testTenant, runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSucceeded, run.Status)
	assert.Equal(t, 1, store.TaskCount())
}

func TestExecuteWorkflow_NotFoundForOtherTenant(t *testing.T) {
	h, store := newTestHandler(t)
	wf := &model.Workflow{TenantID: otherTenant, Name: "w", TriggerType: model.TriggerLeadCreated, Status: model.WorkflowStatusActive}
	require.NoError(t, store.CreateWorkflow(context.Background(), wf, nil))

	c, rec := newContext(t, http.MethodPost, "/api/workflows/"+wf.ID+"/execute", "", testTenant)
	c.SetParamNames("id")
	c.SetParamValues(wf.ID)
	require.NoError(t, h.ExecuteWorkflow(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	runs, err := store.ListRuns(context.Background(), otherTenant, wf.ID)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestGetRun_WithStepExecutions(t *testing.T) {
	h, store := newTestHandler(t)
	wf := &model.Workflow{TenantID: testTenant, Name: "w", TriggerType: model.TriggerLeadCreated, Status: model.WorkflowStatusActive}
	require.NoError(t, store.CreateWorkflow(context.Background(), wf, []model.WorkflowStep{
		{StepOrder: 1, StepType: engine.StepWait, Config: model.JSONMap{"duration_ms": 1.0}},
	}))

	runID, err := h.Engine.ExecuteWorkflow(context.Background(), wf.ID, map[string]interface{}{}, testTenant, testUser)
	require.NoError(t, err)

	c, rec := newContext(t, http.MethodGet, "/api/workflows/runs/"+runID, "", testTenant)
	c.SetParamNames("run_id")
	c.SetParamValues(runID)
	require.NoError(t, h.GetRun(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	out := decodeBody(t, rec)
	run, _ := out["run"].(map[string]interface{})
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusSucceeded, run["status"])
	steps, _ := out["steps"].([]interface{})
	assert.Len(t, steps, 1)
}
