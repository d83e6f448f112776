package engine

import (
	"context"
	"testing"
	"time"

	"automation-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func overdueInvoice(id, tenantID string, daysOverdue int) *model.Invoice {
	return &model.Invoice{
		ID:         id,
		TenantID:   tenantID,
		Number:     "INV-" + id,
		ClientName: "Acme Corp",
		Amount:     1200.50,
		Status:     model.InvoiceStatusSent,
		DueDate:    time.Now().AddDate(0, 0, -daysOverdue),
	}
}

func TestSweep_TriggersOncePerDay(t *testing.T) {
	eng, store := testEngine(t)
	wf := seedWorkflow(t, store, testTenant, model.TriggerInvoiceOverdue, model.WorkflowStatusActive,
		model.TriggerConfig{}, []model.WorkflowStep{step(1, stepTypeOK, false)})
	store.AddInvoice(overdueInvoice("33333333-3333-3333-3333-333333333333", testTenant, 5))

	summary, err := eng.RunOverdueInvoiceSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalOverdue)
	assert.Equal(t, 1, summary.Triggered)
	assert.Equal(t, 0, summary.SkippedAlreadyTriggered)

	runs, err := store.ListRuns(context.Background(), testTenant, wf.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.SystemUser, runs[0].TriggeredBy)

	// Second sweep on the same day is deduplicated.
	summary, err = eng.RunOverdueInvoiceSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalOverdue)
	assert.Equal(t, 0, summary.Triggered)
	assert.Equal(t, 1, summary.SkippedAlreadyTriggered)

	runs, err = store.ListRuns(context.Background(), testTenant, wf.ID)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "same-day sweep must not create a second run")
}

func TestSweep_NextDayTriggersAgain(t *testing.T) {
	eng, store := testEngine(t)
	wf := seedWorkflow(t, store, testTenant, model.TriggerInvoiceOverdue, model.WorkflowStatusActive,
		model.TriggerConfig{}, []model.WorkflowStep{step(1, stepTypeOK, false)})
	store.AddInvoice(overdueInvoice("33333333-3333-3333-3333-333333333333", testTenant, 5))

	_, err := eng.RunOverdueInvoiceSweep(context.Background())
	require.NoError(t, err)

	// Backdate yesterday's run so today's sweep sees a fresh day.
	runs, err := store.ListRuns(context.Background(), testTenant, wf.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	backdated := runs[0]
	backdated.StartedAt = backdated.StartedAt.AddDate(0, 0, -1)
	require.NoError(t, store.ReplaceRun(&backdated))

	summary, err := eng.RunOverdueInvoiceSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Triggered)

	runs, err = store.ListRuns(context.Background(), testTenant, wf.ID)
	require.NoError(t, err)
	assert.Len(t, runs, 2, "a new calendar day may trigger again")
}

func TestSweep_MarksSentInvoicesOverdue(t *testing.T) {
	eng, store := testEngine(t)
	inv := overdueInvoice("44444444-4444-4444-4444-444444444444", testTenant, 3)
	store.AddInvoice(inv)

	// No workflow listens, but the invoice status still flips.
	summary, err := eng.RunOverdueInvoiceSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalOverdue)

	got, ok := store.Invoice(inv.ID)
	require.True(t, ok)
	assert.Equal(t, model.InvoiceStatusOverdue, got.Status)
}

func TestSweep_PayloadCarriesInvoiceFields(t *testing.T) {
	eng, store := testEngine(t)
	wf := seedWorkflow(t, store, testTenant, model.TriggerInvoiceOverdue, model.WorkflowStatusActive,
		model.TriggerConfig{Conditions: []model.Condition{cond("days_overdue", model.OpGreaterThan, 3)}},
		[]model.WorkflowStep{step(1, stepTypeOK, false)})
	store.AddInvoice(overdueInvoice("55555555-5555-5555-5555-555555555555", testTenant, 10))

	_, err := eng.RunOverdueInvoiceSweep(context.Background())
	require.NoError(t, err)

	runs, err := store.ListRuns(context.Background(), testTenant, wf.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	data := runs[0].TriggerData
	assert.Equal(t, "55555555-5555-5555-5555-555555555555", data["entity_id"])
	assert.Equal(t, "invoice", data["entity_type"])
	assert.Equal(t, "INV-55555555-5555-5555-5555-555555555555", data["entity_name"])
	assert.Equal(t, 1200.50, data["invoice_amount"])
	assert.Equal(t, 10, data["days_overdue"])
}

func TestSweep_NotYetDueInvoicesIgnored(t *testing.T) {
	eng, store := testEngine(t)
	inv := overdueInvoice("66666666-6666-6666-6666-666666666666", testTenant, 0)
	inv.DueDate = time.Now().AddDate(0, 0, 7)
	store.AddInvoice(inv)

	summary, err := eng.RunOverdueInvoiceSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalOverdue)
}

func TestAlreadyTriggeredToday_ScopedByEntityAndTenant(t *testing.T) {
	eng, store := testEngine(t)
	wf := seedWorkflow(t, store, testTenant, model.TriggerInvoiceOverdue, model.WorkflowStatusActive,
		model.TriggerConfig{}, []model.WorkflowStep{step(1, stepTypeOK, false)})

	payload := map[string]interface{}{"entity_id": "inv-1", "entity_type": "invoice"}
	_, err := eng.ExecuteWorkflow(context.Background(), wf.ID, payload, testTenant, model.SystemUser)
	require.NoError(t, err)

	already, err := eng.AlreadyTriggeredToday(context.Background(), testTenant, model.TriggerInvoiceOverdue, "invoice", "inv-1")
	require.NoError(t, err)
	assert.True(t, already)

	already, err = eng.AlreadyTriggeredToday(context.Background(), testTenant, model.TriggerInvoiceOverdue, "invoice", "inv-2")
	require.NoError(t, err)
	assert.False(t, already, "a different entity is unaffected")

	already, err = eng.AlreadyTriggeredToday(context.Background(), otherTenant, model.TriggerInvoiceOverdue, "invoice", "inv-1")
	require.NoError(t, err)
	assert.False(t, already, "a different tenant is unaffected")
}
