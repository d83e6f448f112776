package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"automation-service/internal/model"
	"automation-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultRegistry_RegistersBuiltIns(t *testing.T) {
	store := repository.NewMemoryStore()
	r := DefaultRegistry(store, &LogMailer{Log: zap.NewNop()}, zap.NewNop())

	assert.Equal(t, []string{StepCallWebhook, StepCreateTask, StepSendEmail, StepUpdateRecord, StepWait}, r.Types())
}

func TestSendEmailHandler_ResolvesPlaceholders(t *testing.T) {
	var gotTo, gotSubject string
	mailer := mailerFunc(func(ctx context.Context, to, subject, body string) error {
		gotTo, gotSubject = to, subject
		return nil
	})
	h := sendEmailHandler(mailer)

	runCtx := map[string]interface{}{
		"client_email": "billing@acme.test",
		"entity_name":  "INV-42",
	}
	out, err := h.Execute(context.Background(), model.JSONMap{
		"to":      "{{client_email}}",
		"subject": "Invoice {{entity_name}} is overdue",
		"body":    "Please pay.",
	}, runCtx)
	require.NoError(t, err)
	assert.Equal(t, "billing@acme.test", gotTo)
	assert.Equal(t, "Invoice INV-42 is overdue", gotSubject)
	assert.Equal(t, "billing@acme.test", out["email_to"])
}

func TestSendEmailHandler_MissingRecipient(t *testing.T) {
	h := sendEmailHandler(&LogMailer{Log: zap.NewNop()})
	_, err := h.Execute(context.Background(), model.JSONMap{}, map[string]interface{}{})
	assert.Error(t, err)
}

func TestCreateTaskHandler_CreatesTenantScopedTask(t *testing.T) {
	store := repository.NewMemoryStore()
	h := createTaskHandler(store)

	runCtx := map[string]interface{}{
		ctxKeyTenantID:    testTenant,
		ctxKeyTriggeredBy: testUser,
		"entity_name":     "Acme proposal",
	}
	out, err := h.Execute(context.Background(), model.JSONMap{"title": "Follow up on {{entity_name}}"}, runCtx)
	require.NoError(t, err)
	assert.NotEmpty(t, out["task_id"])
	assert.Equal(t, 1, store.TaskCount())
}

func TestUpdateRecordHandler_UpdatesInvoiceStatus(t *testing.T) {
	store := repository.NewMemoryStore()
	inv := &model.Invoice{TenantID: testTenant, Number: "INV-7", Status: model.InvoiceStatusOverdue, DueDate: time.Now()}
	store.AddInvoice(inv)
	h := updateRecordHandler(store)

	out, err := h.Execute(context.Background(),
		model.JSONMap{"record_type": "invoice", "status": model.InvoiceStatusPaid},
		map[string]interface{}{ctxKeyTenantID: testTenant, "entity_id": inv.ID})
	require.NoError(t, err)
	assert.Equal(t, inv.ID, out["record_id"])
	assert.Equal(t, model.InvoiceStatusPaid, out["record_status"])

	got, ok := store.Invoice(inv.ID)
	require.True(t, ok)
	assert.Equal(t, model.InvoiceStatusPaid, got.Status)
}

func TestUpdateRecordHandler_Validation(t *testing.T) {
	store := repository.NewMemoryStore()
	inv := &model.Invoice{TenantID: otherTenant, Number: "INV-8", Status: model.InvoiceStatusSent, DueDate: time.Now()}
	store.AddInvoice(inv)
	h := updateRecordHandler(store)
	runCtx := map[string]interface{}{ctxKeyTenantID: testTenant, "entity_id": inv.ID}

	_, err := h.Execute(context.Background(), model.JSONMap{"record_type": "lead", "status": "paid"}, runCtx)
	assert.Error(t, err, "only invoice records are supported")

	_, err = h.Execute(context.Background(), model.JSONMap{"record_type": "invoice", "status": "archived"}, runCtx)
	assert.Error(t, err, "unknown status is rejected")

	_, err = h.Execute(context.Background(), model.JSONMap{"record_type": "invoice", "status": "paid"}, map[string]interface{}{ctxKeyTenantID: testTenant})
	assert.Error(t, err, "record id is required")

	// The invoice belongs to another tenant, so the update must not land.
	_, err = h.Execute(context.Background(), model.JSONMap{"record_type": "invoice", "status": "paid"}, runCtx)
	assert.ErrorIs(t, err, repository.ErrInvoiceNotFound)
	got, ok := store.Invoice(inv.ID)
	require.True(t, ok)
	assert.Equal(t, model.InvoiceStatusSent, got.Status)
}

func TestCallWebhookHandler_PostsRunContext(t *testing.T) {
	var gotMethod, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := callWebhookHandler(srv.Client())
	out, err := h.Execute(context.Background(), model.JSONMap{"url": srv.URL}, map[string]interface{}{"entity_id": "x"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, http.StatusOK, out["status_code"])
}

func TestCallWebhookHandler_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	h := callWebhookHandler(srv.Client())
	out, err := h.Execute(context.Background(), model.JSONMap{"url": srv.URL}, map[string]interface{}{})
	assert.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, out["status_code"])
}

func TestResolvePlaceholders_NoTokens(t *testing.T) {
	assert.Equal(t, "plain", resolvePlaceholders("plain", map[string]interface{}{"k": "v"}))
	assert.Equal(t, "v and {{missing}}", resolvePlaceholders("{{k}} and {{missing}}", map[string]interface{}{"k": "v"}))
}

type mailerFunc func(ctx context.Context, to, subject, body string) error

func (f mailerFunc) Send(ctx context.Context, to, subject, body string) error {
	return f(ctx, to, subject, body)
}
