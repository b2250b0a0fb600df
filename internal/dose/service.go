// Package dose implements the dose-action service: it is the sole writer of
// the action log and the only component allowed to touch inventory.
package dose

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pcosta/lembrabot/internal/database"
	"github.com/pcosta/lembrabot/internal/timeutil"
)

var (
	// ErrNotFound indicates the referenced medication does not exist.
	ErrNotFound = errors.New("medication not found")
	// ErrDepleted indicates the medication's inventory is already zero.
	ErrDepleted = errors.New("medication inventory depleted")
)

// Service records taken/skipped events and keeps inventory consistent.
type Service struct {
	store           database.Store
	logger          *slog.Logger
	dayStartUTCHour int
	now             func() time.Time
}

// NewService creates a dose action service over the given store.
// dayStartUTCHour is the UTC hour at which the pharmacological day rolls over.
func NewService(store database.Store, logger *slog.Logger, dayStartUTCHour int) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		store:           store,
		logger:          logger.With("component", "dose_service"),
		dayStartUTCHour: dayStartUTCHour,
		now:             time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// TakeResult describes a successfully recorded take action.
type TakeResult struct {
	Medication     *database.Medication
	NewInventory   int
	DeterminedTime string // normalized "HH:MM", empty for ad-hoc takes
}

// TakeDose records a TAKEN event for the medication and decrements inventory
// by exactly one. When scheduledTime is empty and the medication has a
// configured schedule, the slot is inferred as the time-of-day closest to the
// current wall clock (ties broken toward the earliest time).
//
// Returns ErrNotFound if the medication does not exist and ErrDepleted if
// inventory is already zero; neither writes anything.
func (s *Service) TakeDose(ctx context.Context, medicationID, scheduledTime string) (*TakeResult, error) {
	med, err := s.store.GetMedication(ctx, medicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load medication: %w", err)
	}
	if med == nil {
		return nil, ErrNotFound
	}
	if med.Inventory <= 0 {
		return nil, ErrDepleted
	}

	decremented, err := s.store.DecrementInventory(ctx, medicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrement inventory: %w", err)
	}
	if !decremented {
		// Lost the race against a concurrent take that emptied the stock.
		return nil, ErrDepleted
	}

	determined := timeutil.Normalize(scheduledTime)
	if scheduledTime == "" {
		if times, terr := med.ScheduleTimes(); terr != nil {
			s.logger.WarnContext(ctx, "Cannot infer slot, schedule unparseable",
				"medication_id", med.ID, "error", terr)
			determined = ""
		} else {
			determined = InferScheduledTime(times, s.now())
		}
	}

	entry := &database.ActionLog{
		UserID:       med.UserID,
		MedicationID: med.ID,
		Action:       database.ActionTaken,
		Timestamp:    s.now().UTC(),
	}
	if determined != "" {
		entry.ScheduledTime = sql.NullString{String: determined, Valid: true}
	}
	if err := s.store.AppendActionLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to log taken dose: %w", err)
	}

	newInventory := med.Inventory - 1
	s.logger.InfoContext(ctx, "Dose taken",
		"medication_id", med.ID, "name", med.Name,
		"scheduled_time", determined, "new_inventory", newInventory)

	return &TakeResult{Medication: med, NewInventory: newInventory, DeterminedTime: determined}, nil
}

// SkipDose records a SKIPPED event for the medication. Inventory is untouched.
// Returns ErrNotFound if the medication does not exist.
func (s *Service) SkipDose(ctx context.Context, medicationID, scheduledTime string) (*database.Medication, error) {
	med, err := s.store.GetMedication(ctx, medicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load medication: %w", err)
	}
	if med == nil {
		return nil, ErrNotFound
	}

	entry := &database.ActionLog{
		UserID:       med.UserID,
		MedicationID: med.ID,
		Action:       database.ActionSkipped,
		Timestamp:    s.now().UTC(),
	}
	if scheduledTime != "" {
		entry.ScheduledTime = sql.NullString{String: timeutil.Normalize(scheduledTime), Valid: true}
	}
	if err := s.store.AppendActionLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to log skipped dose: %w", err)
	}

	s.logger.InfoContext(ctx, "Dose skipped",
		"medication_id", med.ID, "name", med.Name, "scheduled_time", scheduledTime)
	return med, nil
}

// TakeAllResult summarizes a bulk take across one schedule slot.
type TakeAllResult struct {
	Count           int
	MedicationNames []string
}

// TakeAllAtTime records a TAKEN event for every medication of the user whose
// schedule contains the given time. Depleted medications are skipped rather
// than failing the batch. The service itself does not consult the action log
// first; callers that need same-day dedup (the chat take-all button) perform
// the IsHandled check before invoking it, while the voice-call confirmation
// keeps at-least-once semantics.
func (s *Service) TakeAllAtTime(ctx context.Context, userID, scheduledTime string) (*TakeAllResult, error) {
	normalized := timeutil.Normalize(scheduledTime)

	meds, err := s.store.FindMedicationsByScheduleTime(ctx, userID, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to find medications at %s: %w", normalized, err)
	}

	result := &TakeAllResult{}
	for i := range meds {
		med := &meds[i]
		if med.Inventory <= 0 {
			s.logger.InfoContext(ctx, "Skipping depleted medication in bulk take",
				"medication_id", med.ID, "name", med.Name)
			continue
		}

		decremented, derr := s.store.DecrementInventory(ctx, med.ID)
		if derr != nil {
			return nil, fmt.Errorf("failed to decrement inventory for %s: %w", med.ID, derr)
		}
		if !decremented {
			continue
		}

		entry := &database.ActionLog{
			UserID:        med.UserID,
			MedicationID:  med.ID,
			Action:        database.ActionTaken,
			ScheduledTime: sql.NullString{String: normalized, Valid: true},
			Timestamp:     s.now().UTC(),
		}
		if err := s.store.AppendActionLog(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to log taken dose for %s: %w", med.ID, err)
		}

		result.Count++
		result.MedicationNames = append(result.MedicationNames, med.Name)
	}

	s.logger.InfoContext(ctx, "Bulk take completed",
		"user_id", userID, "scheduled_time", normalized, "count", result.Count)
	return result, nil
}

// DailyLogs fetches today's action log entries for the given medications in
// one bulk query. This is the scan engine's per-tick snapshot of what has
// already been handled.
func (s *Service) DailyLogs(ctx context.Context, medicationIDs []string) ([]database.ActionLog, error) {
	since := timeutil.DayStart(s.now(), s.dayStartUTCHour)
	return s.store.ListActionLogsSince(ctx, medicationIDs, since)
}

// IsHandled reports whether some log entry marks the (medication, slot) pair
// as already taken or skipped. Entries without a scheduled time never match:
// an ad-hoc take must not silently suppress a later grouped reminder.
func IsHandled(logs []database.ActionLog, medicationID, scheduledTime string) bool {
	target := timeutil.Normalize(scheduledTime)
	for i := range logs {
		log := &logs[i]
		if log.MedicationID != medicationID {
			continue
		}
		if !log.ScheduledTime.Valid || log.ScheduledTime.String == "" {
			continue
		}
		if timeutil.Normalize(log.ScheduledTime.String) == target {
			return true
		}
	}
	return false
}

// InferScheduledTime picks the schedule slot closest to now by absolute
// minute distance. Ties break toward the lexicographically earliest
// normalized time; times is expected sorted, which ScheduleTimes guarantees.
func InferScheduledTime(times []string, now time.Time) string {
	nowMinutes := now.Hour()*60 + now.Minute()

	best := ""
	bestDiff := -1
	for _, t := range times {
		h, m, ok := timeutil.Parse(t)
		if !ok {
			continue
		}
		diff := nowMinutes - (h*60 + m)
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			bestDiff = diff
			best = t
		}
	}
	return best
}
