package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"automation-service/internal/model"
	"automation-service/internal/repository"

	"go.uber.org/zap"
)

// Built-in step types.
const (
	StepSendEmail    = "send_email"
	StepCreateTask   = "create_task"
	StepCallWebhook  = "call_webhook"
	StepWait         = "wait"
	StepUpdateRecord = "update_record"
)

// Mailer is the outbound email collaborator. The real implementation lives
// behind the messaging service; LogMailer stands in elsewhere.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer logs the email instead of sending it.
type LogMailer struct {
	Log *zap.Logger
}

// Send implements Mailer.
func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.Log.Info("Sending email",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_len", len(body)))
	return nil
}

// DefaultRegistry builds a Registry with the built-in step handlers
// registered. It is called once from main.
func DefaultRegistry(store repository.Store, mailer Mailer, log *zap.Logger) *Registry {
	r := NewRegistry()
	r.Register(StepSendEmail, sendEmailHandler(mailer))
	r.Register(StepCreateTask, createTaskHandler(store))
	r.Register(StepCallWebhook, callWebhookHandler(&http.Client{}))
	r.Register(StepWait, HandlerFunc(waitHandler))
	r.Register(StepUpdateRecord, updateRecordHandler(store))
	return r
}

// sendEmailHandler sends an email through the Mailer collaborator. Config:
// to, subject, body; all three support {{field}} placeholders resolved from
// the run context.
func sendEmailHandler(mailer Mailer) Handler {
	return HandlerFunc(func(ctx context.Context, config model.JSONMap, runCtx map[string]interface{}) (map[string]interface{}, error) {
		to := resolvePlaceholders(configString(config, "to"), runCtx)
		if to == "" {
			return nil, fmt.Errorf("send_email: missing recipient")
		}
		subject := resolvePlaceholders(configString(config, "subject"), runCtx)
		body := resolvePlaceholders(configString(config, "body"), runCtx)
		if err := mailer.Send(ctx, to, subject, body); err != nil {
			return nil, fmt.Errorf("send_email: %w", err)
		}
		return map[string]interface{}{"email_to": to}, nil
	})
}

// createTaskHandler creates a CRM task for the run's tenant. Config: title
// (placeholders supported). The created task id is exposed to later steps.
func createTaskHandler(store repository.Store) Handler {
	return HandlerFunc(func(ctx context.Context, config model.JSONMap, runCtx map[string]interface{}) (map[string]interface{}, error) {
		title := resolvePlaceholders(configString(config, "title"), runCtx)
		if title == "" {
			return nil, fmt.Errorf("create_task: missing title")
		}
		tenantID, _ := runCtx[ctxKeyTenantID].(string)
		createdBy, _ := runCtx[ctxKeyTriggeredBy].(string)
		task := &model.Task{
			TenantID:  tenantID,
			Title:     title,
			Status:    "open",
			CreatedBy: createdBy,
		}
		if err := store.CreateTask(ctx, task); err != nil {
			return nil, fmt.Errorf("create_task: %w", err)
		}
		return map[string]interface{}{"task_id": task.ID}, nil
	})
}

// updateRecordHandler changes the status of a record the run refers to.
// Config: record_type (only "invoice" today), record_id (placeholders
// supported, defaults to the trigger's entity_id) and status. The update is
// scoped to the run's tenant.
func updateRecordHandler(store repository.Store) Handler {
	return HandlerFunc(func(ctx context.Context, config model.JSONMap, runCtx map[string]interface{}) (map[string]interface{}, error) {
		recordType := configString(config, "record_type")
		if recordType != "invoice" {
			return nil, fmt.Errorf("update_record: unsupported record_type %q", recordType)
		}
		recordID := resolvePlaceholders(configString(config, "record_id"), runCtx)
		if recordID == "" {
			recordID, _ = runCtx["entity_id"].(string)
		}
		if recordID == "" {
			return nil, fmt.Errorf("update_record: missing record_id")
		}
		status := configString(config, "status")
		if !model.IsValidInvoiceStatus(status) {
			return nil, fmt.Errorf("update_record: invalid status %q", status)
		}
		tenantID, _ := runCtx[ctxKeyTenantID].(string)
		if err := store.UpdateInvoiceStatus(ctx, tenantID, recordID, status); err != nil {
			return nil, fmt.Errorf("update_record: %w", err)
		}
		return map[string]interface{}{"record_id": recordID, "record_status": status}, nil
	})
}

// callWebhookHandler POSTs the run context to the configured URL. Config:
// url (required), method (default POST).
func callWebhookHandler(client *http.Client) Handler {
	return HandlerFunc(func(ctx context.Context, config model.JSONMap, runCtx map[string]interface{}) (map[string]interface{}, error) {
		url := configString(config, "url")
		if url == "" {
			return nil, fmt.Errorf("call_webhook: missing url")
		}
		method := strings.ToUpper(configString(config, "method"))
		if method == "" {
			method = http.MethodPost
		}

		payload, err := json.Marshal(runCtx)
		if err != nil {
			return nil, fmt.Errorf("call_webhook: encode payload: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("call_webhook: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("call_webhook: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return map[string]interface{}{"status_code": resp.StatusCode},
				fmt.Errorf("call_webhook: %s returned %d", url, resp.StatusCode)
		}
		return map[string]interface{}{"status_code": resp.StatusCode}, nil
	})
}

// waitHandler pauses the run. Config: duration_ms. The wait is bounded by
// the step timeout like any other handler.
func waitHandler(ctx context.Context, config model.JSONMap, runCtx map[string]interface{}) (map[string]interface{}, error) {
	ms, ok := toFloat(config["duration_ms"])
	if !ok || ms < 0 {
		return nil, fmt.Errorf("wait: invalid duration_ms %v", config["duration_ms"])
	}
	d := time.Duration(ms) * time.Millisecond
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(d):
	}
	return map[string]interface{}{"waited_ms": ms}, nil
}

func configString(config model.JSONMap, key string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return ""
}

// resolvePlaceholders substitutes {{key}} tokens with values from the run
// context, which lets a step reference the trigger payload or earlier step
// outputs (e.g. {{step_1_task_id}}).
func resolvePlaceholders(s string, runCtx map[string]interface{}) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	for k, v := range runCtx {
		s = strings.ReplaceAll(s, "{{"+k+"}}", fmt.Sprint(v))
	}
	return s
}
