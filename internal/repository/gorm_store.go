package repository

import (
	"context"
	"errors"
	"time"

	"automation-service/internal/model"

	"gorm.io/gorm"
)

// GormStore is the Postgres-backed Store implementation.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore on top of an initialized GORM connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateWorkflow(ctx context.Context, wf *model.Workflow, steps []model.WorkflowStep) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(wf).Error; err != nil {
			return err
		}
		for i := range steps {
			steps[i].WorkflowID = wf.ID
			if err := tx.Create(&steps[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) GetWorkflow(ctx context.Context, tenantID, workflowID string) (*model.Workflow, error) {
	var wf model.Workflow
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", workflowID, tenantID).
		First(&wf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkflowNotFound
		}
		return nil, err
	}
	return &wf, nil
}

func (s *GormStore) ListWorkflows(ctx context.Context, tenantID, status string) ([]WorkflowSummary, error) {
	query := s.db.WithContext(ctx).Model(&model.Workflow{}).
		Select("workflows.*, count(workflow_steps.id) AS step_count").
		Joins("LEFT JOIN workflow_steps ON workflow_steps.workflow_id = workflows.id").
		Where("workflows.tenant_id = ?", tenantID).
		Group("workflows.id").
		Order("workflows.created_at DESC")
	if status != "" {
		query = query.Where("workflows.status = ?", status)
	}

	var summaries []WorkflowSummary
	if err := query.Scan(&summaries).Error; err != nil {
		return nil, err
	}
	return summaries, nil
}

func (s *GormStore) ListActiveWorkflows(ctx context.Context, tenantID, triggerType string) ([]model.Workflow, error) {
	var workflows []model.Workflow
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND trigger_type = ? AND status = ?", tenantID, triggerType, model.WorkflowStatusActive).
		Find(&workflows).Error
	if err != nil {
		return nil, err
	}
	return workflows, nil
}

func (s *GormStore) UpdateWorkflow(ctx context.Context, wf *model.Workflow, steps []model.WorkflowStep) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Workflow{}).
			Where("id = ? AND tenant_id = ?", wf.ID, wf.TenantID).
			Updates(map[string]interface{}{
				"name":           wf.Name,
				"description":    wf.Description,
				"trigger_config": wf.TriggerConfig,
				"status":         wf.Status,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrWorkflowNotFound
		}
		if steps == nil {
			return nil
		}
		if err := tx.Where("workflow_id = ?", wf.ID).Delete(&model.WorkflowStep{}).Error; err != nil {
			return err
		}
		for i := range steps {
			steps[i].WorkflowID = wf.ID
			if err := tx.Create(&steps[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) SetWorkflowStatus(ctx context.Context, tenantID, workflowID, status string) error {
	result := s.db.WithContext(ctx).Model(&model.Workflow{}).
		Where("id = ? AND tenant_id = ?", workflowID, tenantID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWorkflowNotFound
	}
	return nil
}

func (s *GormStore) DeleteWorkflow(ctx context.Context, tenantID, workflowID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND tenant_id = ?", workflowID, tenantID).Delete(&model.Workflow{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrWorkflowNotFound
		}
		return tx.Where("workflow_id = ?", workflowID).Delete(&model.WorkflowStep{}).Error
	})
}

func (s *GormStore) ListSteps(ctx context.Context, workflowID string) ([]model.WorkflowStep, error) {
	var steps []model.WorkflowStep
	// created_at breaks step_order ties deterministically; ties are a
	// data-integrity problem flagged by the executor.
	err := s.db.WithContext(ctx).
		Where("workflow_id = ?", workflowID).
		Order("step_order ASC, created_at ASC").
		Find(&steps).Error
	if err != nil {
		return nil, err
	}
	return steps, nil
}

func (s *GormStore) CreateRun(ctx context.Context, run *model.WorkflowRun) error {
	return s.db.WithContext(ctx).Create(run).Error
}

func (s *GormStore) UpdateRun(ctx context.Context, run *model.WorkflowRun) error {
	return s.db.WithContext(ctx).Model(&model.WorkflowRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"status":   run.Status,
			"ended_at": run.EndedAt,
		}).Error
}

func (s *GormStore) GetRun(ctx context.Context, tenantID, runID string) (*model.WorkflowRun, error) {
	var run model.WorkflowRun
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", runID, tenantID).
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

func (s *GormStore) ListRuns(ctx context.Context, tenantID, workflowID string) ([]model.WorkflowRun, error) {
	var runs []model.WorkflowRun
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND workflow_id = ?", tenantID, workflowID).
		Order("started_at DESC").
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *GormStore) CreateStepExecution(ctx context.Context, exec *model.StepExecution) error {
	return s.db.WithContext(ctx).Create(exec).Error
}

func (s *GormStore) ListStepExecutions(ctx context.Context, runID string) ([]model.StepExecution, error) {
	var execs []model.StepExecution
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("step_order ASC").
		Find(&execs).Error
	if err != nil {
		return nil, err
	}
	return execs, nil
}

func (s *GormStore) CountRunsForEntitySince(ctx context.Context, tenantID, triggerType, entityType, entityID string, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.WorkflowRun{}).
		Where("tenant_id = ? AND trigger_type = ? AND started_at >= ?", tenantID, triggerType, since).
		Where("trigger_data->>'entity_type' = ? AND trigger_data->>'entity_id' = ?", entityType, entityID).
		Count(&count).Error
	return count, err
}

func (s *GormStore) ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := s.db.WithContext(ctx).
		Where("status IN ? AND due_date < ?", []string{model.InvoiceStatusSent, model.InvoiceStatusOverdue}, asOf).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (s *GormStore) UpdateInvoiceStatus(ctx context.Context, tenantID, invoiceID, status string) error {
	result := s.db.WithContext(ctx).Model(&model.Invoice{}).
		Where("id = ? AND tenant_id = ?", invoiceID, tenantID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (s *GormStore) CreateTask(ctx context.Context, task *model.Task) error {
	return s.db.WithContext(ctx).Create(task).Error
}
