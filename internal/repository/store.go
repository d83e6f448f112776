// Package repository provides persistence for workflows, runs and the
// billing entities the cron sweep reads.
package repository

import (
	"context"
	"errors"
	"time"

	"automation-service/internal/model"
)

// ErrWorkflowNotFound is returned when a workflow does not exist or belongs
// to a different tenant. Callers must not distinguish the two cases.
var ErrWorkflowNotFound = errors.New("workflow not found")

// ErrRunNotFound is returned when a run does not exist for the tenant.
var ErrRunNotFound = errors.New("workflow run not found")

// ErrInvoiceNotFound is returned when an invoice does not exist for the
// tenant.
var ErrInvoiceNotFound = errors.New("invoice not found")

// WorkflowSummary is a workflow row with its step count, as returned by the
// list endpoint.
type WorkflowSummary struct {
	model.Workflow
	StepCount int64 `json:"step_count"`
}

// Store is the persistence boundary of the automation engine. The production
// implementation is backed by Postgres through GORM; tests use MemoryStore.
type Store interface {
	// Workflows
	CreateWorkflow(ctx context.Context, wf *model.Workflow, steps []model.WorkflowStep) error
	GetWorkflow(ctx context.Context, tenantID, workflowID string) (*model.Workflow, error)
	ListWorkflows(ctx context.Context, tenantID, status string) ([]WorkflowSummary, error)
	ListActiveWorkflows(ctx context.Context, tenantID, triggerType string) ([]model.Workflow, error)
	// UpdateWorkflow updates the workflow row and, when steps is non-nil,
	// replaces the step list atomically.
	UpdateWorkflow(ctx context.Context, wf *model.Workflow, steps []model.WorkflowStep) error
	SetWorkflowStatus(ctx context.Context, tenantID, workflowID, status string) error
	// DeleteWorkflow removes the workflow and its steps. Runs are kept for
	// audit.
	DeleteWorkflow(ctx context.Context, tenantID, workflowID string) error

	// Steps
	ListSteps(ctx context.Context, workflowID string) ([]model.WorkflowStep, error)

	// Runs
	CreateRun(ctx context.Context, run *model.WorkflowRun) error
	UpdateRun(ctx context.Context, run *model.WorkflowRun) error
	GetRun(ctx context.Context, tenantID, runID string) (*model.WorkflowRun, error)
	ListRuns(ctx context.Context, tenantID, workflowID string) ([]model.WorkflowRun, error)
	CreateStepExecution(ctx context.Context, exec *model.StepExecution) error
	ListStepExecutions(ctx context.Context, runID string) ([]model.StepExecution, error)
	// CountRunsForEntitySince counts runs of the given trigger type whose
	// trigger payload references the entity and that started at or after
	// since. Used by the cron dedup check.
	CountRunsForEntitySince(ctx context.Context, tenantID, triggerType, entityType, entityID string, since time.Time) (int64, error)

	// Billing entities consumed by the overdue sweep and the update_record
	// step handler
	ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]model.Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, tenantID, invoiceID, status string) error

	// CRM entities produced by step handlers
	CreateTask(ctx context.Context, task *model.Task) error
}
