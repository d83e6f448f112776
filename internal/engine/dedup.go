package engine

import (
	"context"
	"time"
)

// AlreadyTriggeredToday reports whether a run for the given trigger and
// entity was already started today. The cron sweep consults it before
// dispatching so a re-derived event (an invoice that is still overdue
// tomorrow's sweep recomputes) does not re-fire within the same day.
//
// "Today" is the process-local calendar day, not the tenant's timezone.
// The check is an advisory read, not a transactional reservation: two
// concurrent sweeps can both pass it before either writes a run. The
// service accepts at-least-once delivery; step handlers must tolerate
// duplicate invocation.
func (e *Engine) AlreadyTriggeredToday(ctx context.Context, tenantID, triggerType, entityType, entityID string) (bool, error) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	count, err := e.store.CountRunsForEntitySince(ctx, tenantID, triggerType, entityType, entityID, midnight)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
