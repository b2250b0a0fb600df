package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/pcosta/lembrabot/internal/database"
)

// newLowInventoryTask creates the daily stock check. Medications at or below
// the configured threshold are grouped per user into one alert message.
func newLowInventoryTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "low_inventory")
	threshold := deps.Config.Reminder.LowInventoryThreshold

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting low inventory check", "threshold", threshold)
		startTime := time.Now()

		meds, err := deps.Store.ListMedicationsLowInventory(ctx, threshold)
		if err != nil {
			return fmt.Errorf("failed to list low inventory medications: %w", err)
		}
		if len(meds) == 0 {
			log.InfoContext(ctx, "No medications below threshold")
			return nil
		}

		byUser := make(map[string][]database.Medication)
		for i := range meds {
			byUser[meds[i].UserID] = append(byUser[meds[i].UserID], meds[i])
		}
		userIDs := make([]string, 0, len(byUser))
		for id := range byUser {
			userIDs = append(userIDs, id)
		}

		users, err := deps.Store.GetUsersByIDs(ctx, userIDs)
		if err != nil {
			return fmt.Errorf("failed to load users for stock alerts: %w", err)
		}

		alerted := 0
		for userID, userMeds := range byUser {
			user := users[userID]
			if user == nil {
				log.WarnContext(ctx, "Low stock medication without owner, skipping", "user_id", userID)
				continue
			}
			if err := deps.Sender.SendLowInventoryAlert(ctx, user, userMeds); err != nil {
				log.ErrorContext(ctx, "Failed to send stock alert", "user_id", userID, "error", err)
				continue
			}
			alerted++
		}

		log.InfoContext(ctx, "Low inventory check completed",
			"medications", len(meds), "users_alerted", alerted, "duration", time.Since(startTime))
		return nil
	}
}
