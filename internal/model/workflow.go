package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Workflow status values
const (
	WorkflowStatusActive   = "active"
	WorkflowStatusInactive = "inactive"
	WorkflowStatusDraft    = "draft"
)

// Trigger types fired by the business call sites. The list is extensible;
// new producers register their type here so the create API can validate it.
const (
	TriggerProposalSent     = "proposal_sent"
	TriggerProposalViewed   = "proposal_viewed"
	TriggerProposalAccepted = "proposal_accepted"
	TriggerProposalDeclined = "proposal_declined"
	TriggerContractSent     = "contract_sent"
	TriggerContractSigned   = "contract_signed"
	TriggerLeadCreated      = "lead_created"
	TriggerFormPublished    = "form_published"
	TriggerInvoiceOverdue   = "invoice_overdue"
)

// SystemUser is recorded as triggered_by for runs started by the cron sweep.
const SystemUser = "system"

// Condition operators supported by the evaluator.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpContains    = "contains"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpExists      = "exists"
	OpNotExists   = "not_exists"
)

// Condition logic modes.
const (
	LogicAnd = "AND"
	LogicOr  = "OR"
)

var knownTriggerTypes = map[string]bool{
	TriggerProposalSent:     true,
	TriggerProposalViewed:   true,
	TriggerProposalAccepted: true,
	TriggerProposalDeclined: true,
	TriggerContractSent:     true,
	TriggerContractSigned:   true,
	TriggerLeadCreated:      true,
	TriggerFormPublished:    true,
	TriggerInvoiceOverdue:   true,
}

var knownOperators = map[string]bool{
	OpEquals:      true,
	OpNotEquals:   true,
	OpContains:    true,
	OpGreaterThan: true,
	OpLessThan:    true,
	OpExists:      true,
	OpNotExists:   true,
}

// IsKnownTriggerType reports whether t is a trigger type a producer can fire.
func IsKnownTriggerType(t string) bool {
	return knownTriggerTypes[t]
}

// IsKnownOperator reports whether op is supported by the condition evaluator.
func IsKnownOperator(op string) bool {
	return knownOperators[op]
}

// IsValidWorkflowStatus reports whether s is a valid workflow status.
func IsValidWorkflowStatus(s string) bool {
	return s == WorkflowStatusActive || s == WorkflowStatusInactive || s == WorkflowStatusDraft
}

// Condition is a single match clause evaluated against the trigger payload.
type Condition struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value,omitempty"`
}

// TriggerConfig is the condition set attached to a workflow. Version allows
// stored configs to be migrated if the schema changes.
type TriggerConfig struct {
	Version    int         `json:"version"`
	Logic      string      `json:"logic,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
}

// Value implements driver.Valuer so the config persists as jsonb.
func (t TriggerConfig) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements sql.Scanner.
func (t *TriggerConfig) Scan(value interface{}) error {
	if value == nil {
		*t = TriggerConfig{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("unsupported type %T for TriggerConfig", value)
	}
}

// Workflow represents a tenant-owned automation definition: a trigger type,
// a condition set and an ordered list of steps.
type Workflow struct {
	ID            string         `json:"id" gorm:"type:uuid;primarykey"`
	TenantID      string         `json:"tenant_id" gorm:"type:uuid;index;not null"`
	Name          string         `json:"name" gorm:"type:varchar(255);not null"`
	Description   string         `json:"description" gorm:"type:text"`
	TriggerType   string         `json:"trigger_type" gorm:"type:varchar(100);index;not null"`
	TriggerConfig TriggerConfig  `json:"trigger_config" gorm:"type:jsonb"`
	Status        string         `json:"status" gorm:"type:varchar(20);index;default:'draft'"`
	CreatedBy     string         `json:"created_by" gorm:"type:varchar(100)"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (w *Workflow) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	return nil
}

// WorkflowStep is one ordered action within a workflow. Steps are replaced
// atomically with the parent workflow and never executed outside a run.
type WorkflowStep struct {
	ID              string    `json:"id" gorm:"type:uuid;primarykey"`
	WorkflowID      string    `json:"workflow_id" gorm:"type:uuid;index;not null"`
	StepOrder       int       `json:"step_order" gorm:"not null"`
	StepType        string    `json:"step_type" gorm:"type:varchar(100);not null"`
	Config          JSONMap   `json:"config" gorm:"type:jsonb"`
	ContinueOnError bool      `json:"continue_on_error" gorm:"default:false"`
	TimeoutSeconds  int       `json:"timeout_seconds" gorm:"default:0"`
	CreatedAt       time.Time `json:"created_at"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (s *WorkflowStep) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
