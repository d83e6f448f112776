package engine

import (
	"context"
	"fmt"
	"time"

	"automation-service/internal/model"
	"automation-service/prometheus"

	"go.uber.org/zap"
)

// Reserved run context keys seeded by the executor alongside the trigger
// payload. Step handlers use them to scope writes to the right tenant.
const (
	ctxKeyTenantID    = "tenant_id"
	ctxKeyTriggeredBy = "triggered_by"
)

// ExecuteWorkflow runs one workflow for one trigger occurrence and returns
// the id of the run record it created.
//
// The workflow is loaded tenant-scoped; a workflow belonging to another
// tenant is indistinguishable from a missing one
// (repository.ErrWorkflowNotFound). Steps execute strictly sequentially in
// step_order; on an unhandled step failure the remaining steps are recorded
// as skipped and the run ends failed. A failed step marked continue_on_error
// lets the run proceed and the terminal status becomes partial.
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflowID string, triggerData map[string]interface{}, tenantID, userID string) (string, error) {
	wf, err := e.store.GetWorkflow(ctx, tenantID, workflowID)
	if err != nil {
		return "", err
	}

	run := &model.WorkflowRun{
		WorkflowID:  wf.ID,
		TenantID:    tenantID,
		TriggerType: wf.TriggerType,
		TriggerData: model.JSONMap(triggerData),
		Status:      model.RunStatusRunning,
		StartedAt:   time.Now(),
		TriggeredBy: userID,
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	log := e.log.With(
		zap.String("workflow_id", wf.ID),
		zap.String("run_id", run.ID),
		zap.String("tenant_id", tenantID),
	)
	log.Info("Workflow run started", zap.String("trigger_type", wf.TriggerType))

	steps, err := e.store.ListSteps(ctx, wf.ID)
	if err != nil {
		e.finalizeRun(ctx, run, model.RunStatusFailed, log)
		return run.ID, fmt.Errorf("load steps: %w", err)
	}
	warnOnDuplicateOrders(steps, log)

	runCtx := make(map[string]interface{}, len(triggerData)+2)
	for k, v := range triggerData {
		runCtx[k] = v
	}
	runCtx[ctxKeyTenantID] = tenantID
	runCtx[ctxKeyTriggeredBy] = userID

	anyFailed := false
	halted := false
	for _, step := range steps {
		exec := model.StepExecution{
			RunID:      run.ID,
			StepID:     step.ID,
			StepOrder:  step.StepOrder,
			StepType:   step.StepType,
			ExecutedAt: time.Now(),
		}

		if halted {
			exec.Status = model.StepStatusSkipped
		} else {
			output, stepErr := e.runStep(ctx, step, runCtx)
			if stepErr != nil {
				anyFailed = true
				exec.Status = model.StepStatusFailed
				exec.Error = stepErr.Error()
				exec.Output = model.JSONMap(output)
				mergeOutput(runCtx, step.StepOrder, output)
				if !step.ContinueOnError {
					halted = true
				}
				log.Warn("Step failed",
					zap.Int("step_order", step.StepOrder),
					zap.String("step_type", step.StepType),
					zap.Bool("continue_on_error", step.ContinueOnError),
					zap.Error(stepErr))
			} else {
				exec.Status = model.StepStatusSucceeded
				exec.Output = model.JSONMap(output)
				mergeOutput(runCtx, step.StepOrder, output)
			}
		}

		prometheus.RecordStepExecution(step.StepType, exec.Status)
		if perr := e.store.CreateStepExecution(ctx, &exec); perr != nil {
			e.finalizeRun(ctx, run, model.RunStatusFailed, log)
			return run.ID, fmt.Errorf("persist step execution: %w", perr)
		}
	}

	status := model.RunStatusSucceeded
	switch {
	case halted:
		status = model.RunStatusFailed
	case anyFailed:
		status = model.RunStatusPartial
	}
	if err := e.finalizeRun(ctx, run, status, log); err != nil {
		return run.ID, err
	}

	log.Info("Workflow run finished",
		zap.String("status", status),
		zap.Int("steps", len(steps)))
	return run.ID, nil
}

// runStep resolves and executes one step with its timeout applied. An
// unregistered step type is a configuration error reported as a failed step.
func (e *Engine) runStep(ctx context.Context, step model.WorkflowStep, runCtx map[string]interface{}) (map[string]interface{}, error) {
	handler, ok := e.registry.Get(step.StepType)
	if !ok {
		return nil, fmt.Errorf("no handler registered for step type %q (step %s)", step.StepType, step.ID)
	}

	timeout := e.stepTimeout
	if step.TimeoutSeconds > 0 {
		timeout = time.Duration(step.TimeoutSeconds) * time.Second
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, err := handler.Execute(stepCtx, step.Config, runCtx)
	// A handler that ignores its context can return after the deadline; the
	// step is failed either way.
	if stepCtx.Err() == context.DeadlineExceeded {
		if err != nil {
			return output, fmt.Errorf("step timed out after %s: %w", timeout, err)
		}
		return output, fmt.Errorf("step timed out after %s", timeout)
	}
	return output, err
}

// finalizeRun writes the terminal status exactly once.
func (e *Engine) finalizeRun(ctx context.Context, run *model.WorkflowRun, status string, log *zap.Logger) error {
	now := time.Now()
	run.Status = status
	run.EndedAt = &now
	prometheus.RecordWorkflowRun(status)
	prometheus.ObserveRunDuration(now.Sub(run.StartedAt))
	if err := e.store.UpdateRun(ctx, run); err != nil {
		log.Error("Failed to finalize run", zap.String("status", status), zap.Error(err))
		return fmt.Errorf("finalize run: %w", err)
	}
	return nil
}

// mergeOutput copies step output into the run context under
// step_<order>_<key> so later steps can reference earlier results.
func mergeOutput(runCtx map[string]interface{}, stepOrder int, output map[string]interface{}) {
	for k, v := range output {
		runCtx[fmt.Sprintf("step_%d_%s", stepOrder, k)] = v
	}
}

// warnOnDuplicateOrders flags step_order ties. Execution still proceeds in
// the deterministic insertion-order fallback the store returns.
func warnOnDuplicateOrders(steps []model.WorkflowStep, log *zap.Logger) {
	seen := make(map[int]bool, len(steps))
	for _, step := range steps {
		if seen[step.StepOrder] {
			log.Warn("Duplicate step_order, falling back to insertion order",
				zap.Int("step_order", step.StepOrder))
		}
		seen[step.StepOrder] = true
	}
}
