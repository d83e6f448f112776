package engine

import (
	"context"
	"fmt"
	"time"

	"automation-service/internal/model"
	"automation-service/prometheus"

	"go.uber.org/zap"
)

// SweepSummary is the result of one overdue-invoice sweep.
type SweepSummary struct {
	Triggered               int `json:"triggered"`
	TotalOverdue            int `json:"total_overdue"`
	SkippedAlreadyTriggered int `json:"skipped_already_triggered"`
}

// RunOverdueInvoiceSweep re-derives invoice_overdue events. It loads every
// sent or overdue invoice past its due date, flips newly overdue invoices,
// and dispatches invoice_overdue once per invoice not already triggered
// today, grouped per tenant through the normal dispatcher path.
func (e *Engine) RunOverdueInvoiceSweep(ctx context.Context) (SweepSummary, error) {
	start := time.Now()
	defer func() { prometheus.ObserveSweepDuration(time.Since(start)) }()

	invoices, err := e.store.ListOverdueCandidates(ctx, start)
	if err != nil {
		return SweepSummary{}, fmt.Errorf("list overdue invoices: %w", err)
	}

	summary := SweepSummary{TotalOverdue: len(invoices)}
	for _, inv := range invoices {
		if inv.Status != model.InvoiceStatusOverdue {
			if err := e.store.UpdateInvoiceStatus(ctx, inv.TenantID, inv.ID, model.InvoiceStatusOverdue); err != nil {
				e.log.Error("Failed to mark invoice overdue",
					zap.String("invoice_id", inv.ID),
					zap.Error(err))
			}
		}

		already, err := e.AlreadyTriggeredToday(ctx, inv.TenantID, model.TriggerInvoiceOverdue, "invoice", inv.ID)
		if err != nil {
			// The dedup check is advisory; on error we dispatch anyway and
			// rely on at-least-once semantics.
			e.log.Warn("Dedup check failed, dispatching anyway",
				zap.String("invoice_id", inv.ID),
				zap.Error(err))
		}
		if already {
			prometheus.RecordDedupSkip()
			summary.SkippedAlreadyTriggered++
			continue
		}

		daysOverdue := int(start.Sub(inv.DueDate).Hours() / 24)
		payload := map[string]interface{}{
			"entity_id":      inv.ID,
			"entity_type":    "invoice",
			"entity_name":    inv.Number,
			"client_name":    inv.ClientName,
			"invoice_amount": inv.Amount,
			"days_overdue":   daysOverdue,
		}
		e.CheckTriggers(ctx, model.TriggerInvoiceOverdue, payload, inv.TenantID, model.SystemUser)
		summary.Triggered++
	}

	e.log.Info("Overdue invoice sweep finished",
		zap.Int("total_overdue", summary.TotalOverdue),
		zap.Int("triggered", summary.Triggered),
		zap.Int("skipped_already_triggered", summary.SkippedAlreadyTriggered),
		zap.Duration("took", time.Since(start)))
	return summary, nil
}
