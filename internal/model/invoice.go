package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invoice status values.
const (
	InvoiceStatusDraft   = "draft"
	InvoiceStatusSent    = "sent"
	InvoiceStatusPaid    = "paid"
	InvoiceStatusOverdue = "overdue"
)

// IsValidInvoiceStatus reports whether s is a valid invoice status.
func IsValidInvoiceStatus(s string) bool {
	return s == InvoiceStatusDraft || s == InvoiceStatusSent || s == InvoiceStatusPaid || s == InvoiceStatusOverdue
}

// Invoice is the billing entity the daily sweep re-derives overdue events
// from. Full invoice CRUD lives in the billing service; this service only
// reads due dates and flips sent invoices to overdue.
type Invoice struct {
	ID         string         `json:"id" gorm:"type:uuid;primarykey"`
	TenantID   string         `json:"tenant_id" gorm:"type:uuid;index;not null"`
	Number     string         `json:"number" gorm:"type:varchar(50)"`
	ClientName string         `json:"client_name" gorm:"type:varchar(255)"`
	Amount     float64        `json:"amount"`
	Status     string         `json:"status" gorm:"type:varchar(20);index;default:'draft'"`
	DueDate    time.Time      `json:"due_date" gorm:"index"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

// Task is a lightweight CRM task created by the create_task step handler.
type Task struct {
	ID        string    `json:"id" gorm:"type:uuid;primarykey"`
	TenantID  string    `json:"tenant_id" gorm:"type:uuid;index;not null"`
	Title     string    `json:"title" gorm:"type:varchar(255);not null"`
	Status    string    `json:"status" gorm:"type:varchar(20);default:'open'"`
	CreatedBy string    `json:"created_by" gorm:"type:varchar(100)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}
