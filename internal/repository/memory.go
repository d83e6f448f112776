package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"automation-service/internal/model"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store implementation used by tests.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[string]*model.Workflow
	steps     map[string][]model.WorkflowStep
	runs      map[string]*model.WorkflowRun
	execs     map[string][]model.StepExecution
	invoices  map[string]*model.Invoice
	tasks     map[string]*model.Task
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows: make(map[string]*model.Workflow),
		steps:     make(map[string][]model.WorkflowStep),
		runs:      make(map[string]*model.WorkflowRun),
		execs:     make(map[string][]model.StepExecution),
		invoices:  make(map[string]*model.Invoice),
		tasks:     make(map[string]*model.Task),
	}
}

func (s *MemoryStore) CreateWorkflow(ctx context.Context, wf *model.Workflow, steps []model.WorkflowStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}
	now := time.Now()
	wf.CreatedAt = now
	wf.UpdatedAt = now
	cp := *wf
	s.workflows[wf.ID] = &cp
	for i := range steps {
		if steps[i].ID == "" {
			steps[i].ID = uuid.New().String()
		}
		steps[i].WorkflowID = wf.ID
		steps[i].CreatedAt = now
	}
	s.steps[wf.ID] = append([]model.WorkflowStep(nil), steps...)
	return nil
}

func (s *MemoryStore) GetWorkflow(ctx context.Context, tenantID, workflowID string) (*model.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[workflowID]
	if !ok || wf.TenantID != tenantID {
		return nil, ErrWorkflowNotFound
	}
	cp := *wf
	return &cp, nil
}

func (s *MemoryStore) ListWorkflows(ctx context.Context, tenantID, status string) ([]WorkflowSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var summaries []WorkflowSummary
	for _, wf := range s.workflows {
		if wf.TenantID != tenantID {
			continue
		}
		if status != "" && wf.Status != status {
			continue
		}
		summaries = append(summaries, WorkflowSummary{
			Workflow:  *wf,
			StepCount: int64(len(s.steps[wf.ID])),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func (s *MemoryStore) ListActiveWorkflows(ctx context.Context, tenantID, triggerType string) ([]model.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var workflows []model.Workflow
	for _, wf := range s.workflows {
		if wf.TenantID == tenantID && wf.TriggerType == triggerType && wf.Status == model.WorkflowStatusActive {
			workflows = append(workflows, *wf)
		}
	}
	sort.Slice(workflows, func(i, j int) bool { return workflows[i].ID < workflows[j].ID })
	return workflows, nil
}

func (s *MemoryStore) UpdateWorkflow(ctx context.Context, wf *model.Workflow, steps []model.WorkflowStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.workflows[wf.ID]
	if !ok || existing.TenantID != wf.TenantID {
		return ErrWorkflowNotFound
	}
	existing.Name = wf.Name
	existing.Description = wf.Description
	existing.TriggerConfig = wf.TriggerConfig
	existing.Status = wf.Status
	existing.UpdatedAt = time.Now()
	if steps == nil {
		return nil
	}
	for i := range steps {
		if steps[i].ID == "" {
			steps[i].ID = uuid.New().String()
		}
		steps[i].WorkflowID = wf.ID
		steps[i].CreatedAt = time.Now()
	}
	s.steps[wf.ID] = append([]model.WorkflowStep(nil), steps...)
	return nil
}

func (s *MemoryStore) SetWorkflowStatus(ctx context.Context, tenantID, workflowID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[workflowID]
	if !ok || wf.TenantID != tenantID {
		return ErrWorkflowNotFound
	}
	wf.Status = status
	wf.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) DeleteWorkflow(ctx context.Context, tenantID, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[workflowID]
	if !ok || wf.TenantID != tenantID {
		return ErrWorkflowNotFound
	}
	delete(s.workflows, workflowID)
	delete(s.steps, workflowID)
	return nil
}

func (s *MemoryStore) ListSteps(ctx context.Context, workflowID string) ([]model.WorkflowStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	steps := append([]model.WorkflowStep(nil), s.steps[workflowID]...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].StepOrder < steps[j].StepOrder })
	return steps, nil
}

func (s *MemoryStore) CreateRun(ctx context.Context, run *model.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateRun(ctx context.Context, run *model.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.runs[run.ID]
	if !ok {
		return fmt.Errorf("run %s not found", run.ID)
	}
	existing.Status = run.Status
	existing.EndedAt = run.EndedAt
	return nil
}

func (s *MemoryStore) GetRun(ctx context.Context, tenantID, runID string) (*model.WorkflowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok || run.TenantID != tenantID {
		return nil, ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

func (s *MemoryStore) ListRuns(ctx context.Context, tenantID, workflowID string) ([]model.WorkflowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var runs []model.WorkflowRun
	for _, run := range s.runs {
		if run.TenantID == tenantID && run.WorkflowID == workflowID {
			runs = append(runs, *run)
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	return runs, nil
}

func (s *MemoryStore) CreateStepExecution(ctx context.Context, exec *model.StepExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exec.ID == "" {
		exec.ID = uuid.New().String()
	}
	s.execs[exec.RunID] = append(s.execs[exec.RunID], *exec)
	return nil
}

func (s *MemoryStore) ListStepExecutions(ctx context.Context, runID string) ([]model.StepExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	execs := append([]model.StepExecution(nil), s.execs[runID]...)
	sort.SliceStable(execs, func(i, j int) bool { return execs[i].StepOrder < execs[j].StepOrder })
	return execs, nil
}

func (s *MemoryStore) CountRunsForEntitySince(ctx context.Context, tenantID, triggerType, entityType, entityID string, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, run := range s.runs {
		if run.TenantID != tenantID || run.TriggerType != triggerType {
			continue
		}
		if run.StartedAt.Before(since) {
			continue
		}
		if fmt.Sprint(run.TriggerData["entity_type"]) == entityType && fmt.Sprint(run.TriggerData["entity_id"]) == entityID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]model.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var invoices []model.Invoice
	for _, inv := range s.invoices {
		if (inv.Status == model.InvoiceStatusSent || inv.Status == model.InvoiceStatusOverdue) && inv.DueDate.Before(asOf) {
			invoices = append(invoices, *inv)
		}
	}
	sort.Slice(invoices, func(i, j int) bool { return invoices[i].ID < invoices[j].ID })
	return invoices, nil
}

func (s *MemoryStore) UpdateInvoiceStatus(ctx context.Context, tenantID, invoiceID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[invoiceID]
	if !ok || inv.TenantID != tenantID {
		return ErrInvoiceNotFound
	}
	inv.Status = status
	return nil
}

func (s *MemoryStore) CreateTask(ctx context.Context, task *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	task.CreatedAt = time.Now()
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

// AddInvoice seeds an invoice. Test helper.
func (s *MemoryStore) AddInvoice(inv *model.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	cp := *inv
	s.invoices[inv.ID] = &cp
}

// Invoice returns an invoice by id. Test helper.
func (s *MemoryStore) Invoice(id string) (model.Invoice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok {
		return model.Invoice{}, false
	}
	return *inv, true
}

// ReplaceRun overwrites a stored run, including fields UpdateRun leaves
// alone. Test helper.
func (s *MemoryStore) ReplaceRun(run *model.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return fmt.Errorf("run %s not found", run.ID)
	}
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

// TaskCount reports the number of tasks created. Test helper.
func (s *MemoryStore) TaskCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
