package engine

import (
	"context"

	"automation-service/internal/model"
	"automation-service/prometheus"

	"go.uber.org/zap"
)

// CheckTriggers finds the tenant's active workflows listening for
// triggerType, evaluates their conditions against eventData and executes
// every match.
//
// Dispatch is a best-effort side effect of the business operation that fired
// the event: a failure in any one workflow is logged and must never abort
// the remaining candidates, and no error ever propagates to the caller.
func (e *Engine) CheckTriggers(ctx context.Context, triggerType string, eventData map[string]interface{}, tenantID, userID string) {
	prometheus.RecordTriggerDispatch(triggerType)

	workflows, err := e.store.ListActiveWorkflows(ctx, tenantID, triggerType)
	if err != nil {
		e.log.Error("Failed to load workflows for trigger",
			zap.String("trigger_type", triggerType),
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return
	}
	if len(workflows) == 0 {
		return
	}

	for _, wf := range workflows {
		e.dispatchOne(ctx, wf, triggerType, eventData, tenantID, userID)
	}
}

// dispatchOne evaluates and executes a single candidate workflow, isolating
// its failures (including panics) from its siblings.
func (e *Engine) dispatchOne(ctx context.Context, wf model.Workflow, triggerType string, eventData map[string]interface{}, tenantID, userID string) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Panic while dispatching workflow",
				zap.String("workflow_id", wf.ID),
				zap.String("trigger_type", triggerType),
				zap.Any("panic", r))
		}
	}()

	if !EvaluateConditions(wf.TriggerConfig, eventData) {
		return
	}
	prometheus.RecordTriggerMatch(triggerType)

	runID, err := e.ExecuteWorkflow(ctx, wf.ID, eventData, tenantID, userID)
	if err != nil {
		e.log.Error("Workflow execution failed during dispatch",
			zap.String("workflow_id", wf.ID),
			zap.String("run_id", runID),
			zap.String("trigger_type", triggerType),
			zap.Error(err))
		return
	}
	e.log.Info("Workflow triggered",
		zap.String("workflow_id", wf.ID),
		zap.String("run_id", runID),
		zap.String("trigger_type", triggerType))
}
