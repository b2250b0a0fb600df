package tasks

import (
	"context"
	"fmt"
)

// newReminderScanTask wraps one reminder engine tick as a scheduled task.
func newReminderScanTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "reminder_scan")

	return func(ctx context.Context) error {
		if err := deps.Engine.Scan(ctx); err != nil {
			log.ErrorContext(ctx, "Reminder scan failed", "error", err)
			return fmt.Errorf("reminder scan failed: %w", err)
		}
		return nil
	}
}
