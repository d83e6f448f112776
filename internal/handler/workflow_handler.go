package handler

import (
	"errors"
	"fmt"
	"net/http"

	"automation-service/internal/engine"
	"automation-service/internal/middleware"
	"automation-service/internal/model"
	"automation-service/internal/repository"
	"automation-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// StepRequest defines one step in a workflow creation/update request
type StepRequest struct {
	StepOrder       int                    `json:"step_order"`
	StepType        string                 `json:"step_type"`
	Config          map[string]interface{} `json:"config"`
	ContinueOnError bool                   `json:"continue_on_error"`
	TimeoutSeconds  int                    `json:"timeout_seconds"`
}

// WorkflowRequest defines the structure for workflow creation/update requests
type WorkflowRequest struct {
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	TriggerType   string              `json:"trigger_type"`
	TriggerConfig model.TriggerConfig `json:"trigger_config"`
	Status        string              `json:"status"`
	Steps         []StepRequest       `json:"steps"`
}

// ExecuteRequest is the optional body of a manual execution request
type ExecuteRequest struct {
	TriggerData map[string]interface{} `json:"trigger_data"`
}

// WorkflowHandler serves the workflow API on top of the store and engine.
type WorkflowHandler struct {
	Store  repository.Store
	Engine *engine.Engine
}

// NewWorkflowHandler creates a WorkflowHandler.
func NewWorkflowHandler(store repository.Store, eng *engine.Engine) *WorkflowHandler {
	return &WorkflowHandler{Store: store, Engine: eng}
}

// validate checks the request against the known trigger, operator and step
// type enums so misconfigured workflows are rejected at save time.
func (h *WorkflowHandler) validate(req *WorkflowRequest) error {
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !model.IsKnownTriggerType(req.TriggerType) {
		return fmt.Errorf("unknown trigger_type %q", req.TriggerType)
	}
	if req.Status != "" && !model.IsValidWorkflowStatus(req.Status) {
		return fmt.Errorf("invalid status %q", req.Status)
	}
	if req.TriggerConfig.Logic != "" && req.TriggerConfig.Logic != model.LogicAnd && req.TriggerConfig.Logic != model.LogicOr {
		return fmt.Errorf("invalid condition logic %q", req.TriggerConfig.Logic)
	}
	for _, cond := range req.TriggerConfig.Conditions {
		if cond.Field == "" {
			return fmt.Errorf("condition field is required")
		}
		if !model.IsKnownOperator(cond.Operator) {
			return fmt.Errorf("unknown condition operator %q", cond.Operator)
		}
	}
	for _, step := range req.Steps {
		if !h.Engine.Registry().Has(step.StepType) {
			return fmt.Errorf("unknown step_type %q", step.StepType)
		}
	}
	return nil
}

func stepsFromRequest(req *WorkflowRequest) []model.WorkflowStep {
	steps := make([]model.WorkflowStep, 0, len(req.Steps))
	for _, s := range req.Steps {
		steps = append(steps, model.WorkflowStep{
			StepOrder:       s.StepOrder,
			StepType:        s.StepType,
			Config:          model.JSONMap(s.Config),
			ContinueOnError: s.ContinueOnError,
			TimeoutSeconds:  s.TimeoutSeconds,
		})
	}
	return steps
}

// CreateWorkflow handles creating a new workflow with its steps
func (h *WorkflowHandler) CreateWorkflow(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing tenant context"})
	}
	userID, _ := middleware.GetUserIDFromContext(c)

	var req WorkflowRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}
	if err := h.validate(&req); err != nil {
		log.Warn("Workflow validation failed", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	status := req.Status
	if status == "" {
		status = model.WorkflowStatusDraft
	}
	wf := &model.Workflow{
		TenantID:      tenantID,
		Name:          req.Name,
		Description:   req.Description,
		TriggerType:   req.TriggerType,
		TriggerConfig: req.TriggerConfig,
		Status:        status,
		CreatedBy:     userID,
	}
	if err := h.Store.CreateWorkflow(c.Request().Context(), wf, stepsFromRequest(&req)); err != nil {
		log.Error("Failed to create workflow", zap.String("name", req.Name), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create workflow"})
	}

	log.Info("Workflow created",
		zap.String("workflow_id", wf.ID),
		zap.String("trigger_type", wf.TriggerType),
		zap.Int("steps", len(req.Steps)))
	return c.JSON(http.StatusCreated, wf)
}

// ListWorkflows handles retrieving the tenant's workflows with step counts
func (h *WorkflowHandler) ListWorkflows(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing tenant context"})
	}

	status := c.QueryParam("status")
	if status != "" && !model.IsValidWorkflowStatus(status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status filter"})
	}

	workflows, err := h.Store.ListWorkflows(c.Request().Context(), tenantID, status)
	if err != nil {
		log.Error("Failed to list workflows", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve workflows"})
	}
	if workflows == nil {
		workflows = []repository.WorkflowSummary{}
	}
	return c.JSON(http.StatusOK, workflows)
}

// GetWorkflow handles retrieving a single workflow with its steps
func (h *WorkflowHandler) GetWorkflow(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing tenant context"})
	}
	id := c.Param("id")

	wf, err := h.Store.GetWorkflow(c.Request().Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrWorkflowNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Workflow not found"})
		}
		log.Error("Failed to get workflow", zap.String("workflow_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve workflow"})
	}
	steps, err := h.Store.ListSteps(c.Request().Context(), wf.ID)
	if err != nil {
		log.Error("Failed to load steps", zap.String("workflow_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve workflow"})
	}

	return c.JSON(http.StatusOK, echo.Map{"workflow": wf, "steps": steps})
}

// UpdateWorkflow handles updating a workflow and atomically replacing its
// steps. The trigger type is immutable after creation.
func (h *WorkflowHandler) UpdateWorkflow(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing tenant context"})
	}
	id := c.Param("id")

	var req WorkflowRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	existing, err := h.Store.GetWorkflow(c.Request().Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrWorkflowNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Workflow not found"})
		}
		log.Error("Failed to get workflow for update", zap.String("workflow_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update workflow"})
	}
	if req.TriggerType == "" {
		req.TriggerType = existing.TriggerType
	}
	if req.TriggerType != existing.TriggerType {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "trigger_type is immutable"})
	}
	if err := h.validate(&req); err != nil {
		log.Warn("Workflow validation failed", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	status := req.Status
	if status == "" {
		status = existing.Status
	}
	wf := &model.Workflow{
		ID:            existing.ID,
		TenantID:      tenantID,
		Name:          req.Name,
		Description:   req.Description,
		TriggerType:   existing.TriggerType,
		TriggerConfig: req.TriggerConfig,
		Status:        status,
	}
	if err := h.Store.UpdateWorkflow(c.Request().Context(), wf, stepsFromRequest(&req)); err != nil {
		if errors.Is(err, repository.ErrWorkflowNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Workflow not found"})
		}
		log.Error("Failed to update workflow", zap.String("workflow_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update workflow"})
	}

	log.Info("Workflow updated", zap.String("workflow_id", id))
	return c.JSON(http.StatusOK, wf)
}

// SetWorkflowStatus handles toggling a workflow between active, inactive and
// draft
func (h *WorkflowHandler) SetWorkflowStatus(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing tenant context"})
	}
	id := c.Param("id")

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil || !model.IsValidWorkflowStatus(req.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}

	if err := h.Store.SetWorkflowStatus(c.Request().Context(), tenantID, id, req.Status); err != nil {
		if errors.Is(err, repository.ErrWorkflowNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Workflow not found"})
		}
		log.Error("Failed to set workflow status", zap.String("workflow_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update workflow status"})
	}

	log.Info("Workflow status changed",
		zap.String("workflow_id", id),
		zap.String("status", req.Status))
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": req.Status})
}

// DeleteWorkflow handles deleting a workflow and its steps. Runs are kept
// for audit.
func (h *WorkflowHandler) DeleteWorkflow(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing tenant context"})
	}
	id := c.Param("id")

	if err := h.Store.DeleteWorkflow(c.Request().Context(), tenantID, id); err != nil {
		if errors.Is(err, repository.ErrWorkflowNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Workflow not found"})
		}
		log.Error("Failed to delete workflow", zap.String("workflow_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete workflow"})
	}

	log.Info("Workflow deleted", zap.String("workflow_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Workflow deleted successfully"})
}

// ExecuteWorkflow handles a manual "Run now" request. It returns the run id
// immediately; the run outcome is polled through GetRun.
func (h *WorkflowHandler) ExecuteWorkflow(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing tenant context"})
	}
	userID, _ := middleware.GetUserIDFromContext(c)
	id := c.Param("id")

	var req ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}
	triggerData := req.TriggerData
	if triggerData == nil {
		triggerData = map[string]interface{}{
			"entity_id":   id,
			"entity_type": "workflow",
			"manual":      true,
		}
	}

	runID, err := h.Engine.ExecuteWorkflow(c.Request().Context(), id, triggerData, tenantID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrWorkflowNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Workflow not found"})
		}
		log.Error("Manual execution failed", zap.String("workflow_id", id), zap.Error(err))
		if runID != "" {
			// The run record exists even though execution ran into a
			// backend error; surface both.
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Workflow execution failed", "run_id": runID})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Workflow execution failed"})
	}

	log.Info("Manual workflow execution",
		zap.String("workflow_id", id),
		zap.String("run_id", runID),
		zap.String("user_id", userID))
	return c.JSON(http.StatusAccepted, echo.Map{"run_id": runID})
}

// ListRuns handles retrieving runs of one workflow
func (h *WorkflowHandler) ListRuns(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing tenant context"})
	}
	id := c.Param("id")

	if _, err := h.Store.GetWorkflow(c.Request().Context(), tenantID, id); err != nil {
		if errors.Is(err, repository.ErrWorkflowNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Workflow not found"})
		}
		log.Error("Failed to get workflow", zap.String("workflow_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve runs"})
	}

	runs, err := h.Store.ListRuns(c.Request().Context(), tenantID, id)
	if err != nil {
		log.Error("Failed to list runs", zap.String("workflow_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve runs"})
	}
	if runs == nil {
		runs = []model.WorkflowRun{}
	}
	return c.JSON(http.StatusOK, runs)
}

// GetRun handles retrieving one run with its step executions
func (h *WorkflowHandler) GetRun(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing tenant context"})
	}
	runID := c.Param("run_id")

	run, err := h.Store.GetRun(c.Request().Context(), tenantID, runID)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Run not found"})
		}
		log.Error("Failed to get run", zap.String("run_id", runID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve run"})
	}
	execs, err := h.Store.ListStepExecutions(c.Request().Context(), run.ID)
	if err != nil {
		log.Error("Failed to list step executions", zap.String("run_id", runID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve run"})
	}
	if execs == nil {
		execs = []model.StepExecution{}
	}
	return c.JSON(http.StatusOK, echo.Map{"run": run, "steps": execs})
}
