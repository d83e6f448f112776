package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Run status values. A run moves from running to exactly one terminal state
// and is never reopened.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
	RunStatusPartial   = "partial"
)

// Step execution status values.
const (
	StepStatusSucceeded = "succeeded"
	StepStatusFailed    = "failed"
	StepStatusSkipped   = "skipped"
)

// WorkflowRun is one execution instance of a workflow caused by one trigger
// occurrence. The trigger payload is stored verbatim for replay and audit.
// TriggerType is denormalized from the workflow so the cron dedup check can
// query runs without a join.
type WorkflowRun struct {
	ID          string     `json:"id" gorm:"type:uuid;primarykey"`
	WorkflowID  string     `json:"workflow_id" gorm:"type:uuid;index;not null"`
	TenantID    string     `json:"tenant_id" gorm:"type:uuid;index;not null"`
	TriggerType string     `json:"trigger_type" gorm:"type:varchar(100);index"`
	TriggerData JSONMap    `json:"trigger_data" gorm:"type:jsonb"`
	Status      string     `json:"status" gorm:"type:varchar(20);index;default:'running'"`
	StartedAt   time.Time  `json:"started_at" gorm:"index"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	TriggeredBy string     `json:"triggered_by" gorm:"type:varchar(100)"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (r *WorkflowRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// StepExecution records the outcome of one step within one run.
type StepExecution struct {
	ID         string    `json:"id" gorm:"type:uuid;primarykey"`
	RunID      string    `json:"run_id" gorm:"type:uuid;index;not null"`
	StepID     string    `json:"step_id" gorm:"type:uuid"`
	StepOrder  int       `json:"step_order"`
	StepType   string    `json:"step_type" gorm:"type:varchar(100)"`
	Status     string    `json:"status" gorm:"type:varchar(20)"`
	Output     JSONMap   `json:"output,omitempty" gorm:"type:jsonb"`
	Error      string    `json:"error,omitempty" gorm:"type:text"`
	ExecutedAt time.Time `json:"executed_at"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (s *StepExecution) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
