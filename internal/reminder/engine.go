package reminder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pcosta/lembrabot/internal/database"
	"github.com/pcosta/lembrabot/internal/dose"
	"github.com/pcosta/lembrabot/internal/timeutil"
)

// Trigger is one slot that survived evaluation this tick and must be
// delivered to the user.
type Trigger struct {
	Medication     database.Medication
	User           *database.User
	ScheduledTime  string
	ElapsedMinutes int
	Initial        bool
}

// CallRequest is one grouped voice call: every late medication a user has at
// one scheduled time, dialed as a single call.
type CallRequest struct {
	Phone            string
	UserID           string
	ScheduledTime    string
	MedicationNames  []string
	RepresentativeID string // first medication id; the DTMF webhook resolves the user through it
}

// ChatSender delivers one grouped reminder message per user per tick.
type ChatSender interface {
	SendGroupedReminder(ctx context.Context, user *database.User, triggers []Trigger) error
}

// VoiceCaller places one outbound call per (phone, time) group.
type VoiceCaller interface {
	PlaceCall(ctx context.Context, call CallRequest) error
}

// Engine runs the per-tick reminder scan. It holds no state between ticks:
// every decision is recomputed from a fresh snapshot of medications, users,
// and today's action log, so overlapping or skipped ticks are harmless.
type Engine struct {
	store  database.Store
	doses  *dose.Service
	chat   ChatSender
	voice  VoiceCaller
	logger *slog.Logger
	policy Policy
	now    func() time.Time
}

// NewEngine creates a reminder scan engine.
func NewEngine(store database.Store, doses *dose.Service, chat ChatSender, voice VoiceCaller, logger *slog.Logger, policy Policy) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		store:  store,
		doses:  doses,
		chat:   chat,
		voice:  voice,
		logger: logger.With("component", "reminder_engine"),
		policy: policy,
		now:    time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Scan performs one tick: snapshot, evaluate every slot, dispatch. A store
// failure aborts the whole tick (the next tick retries from scratch); a
// parse or delivery failure only skips the medication or user it concerns.
func (e *Engine) Scan(ctx context.Context) error {
	now := e.now()
	current := timeutil.ClockString(now)

	meds, err := e.store.ListScheduledMedications(ctx)
	if err != nil {
		return fmt.Errorf("failed to load scheduled medications: %w", err)
	}
	if len(meds) == 0 {
		e.logger.DebugContext(ctx, "No scheduled medications", "time", current)
		return nil
	}

	medIDs := make([]string, 0, len(meds))
	userIDSet := make(map[string]struct{})
	for i := range meds {
		medIDs = append(medIDs, meds[i].ID)
		userIDSet[meds[i].UserID] = struct{}{}
	}
	userIDs := make([]string, 0, len(userIDSet))
	for id := range userIDSet {
		userIDs = append(userIDs, id)
	}

	// One consistent snapshot per tick: all logs and users are read before
	// any decision logic runs.
	logs, err := e.doses.DailyLogs(ctx, medIDs)
	if err != nil {
		return fmt.Errorf("failed to load today's action logs: %w", err)
	}
	users, err := e.store.GetUsersByIDs(ctx, userIDs)
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}

	chatBuckets, callGroups := e.evaluate(ctx, meds, users, logs, current)
	e.dispatch(ctx, chatBuckets, callGroups)
	return nil
}

// evaluate walks every (medication, time) slot and buckets surviving
// triggers by user for chat and by (phone, time) for voice.
func (e *Engine) evaluate(
	ctx context.Context,
	meds []database.Medication,
	users map[string]*database.User,
	logs []database.ActionLog,
	current string,
) (map[string][]Trigger, map[string]*CallRequest) {
	chatBuckets := make(map[string][]Trigger)
	callGroups := make(map[string]*CallRequest)

	for i := range meds {
		med := meds[i]

		if med.RemindAtHome {
			// Deferred until the geofence gate clears the flag.
			e.logger.DebugContext(ctx, "Skipping medication, remind-at-home enabled",
				"medication_id", med.ID, "name", med.Name)
			continue
		}

		user := users[med.UserID]
		if user == nil {
			e.logger.WarnContext(ctx, "Medication without owner in snapshot, skipping",
				"medication_id", med.ID, "user_id", med.UserID)
			continue
		}

		times, err := med.ScheduleTimes()
		if err != nil {
			// One bad schedule must never abort the whole scan.
			e.logger.ErrorContext(ctx, "Unparseable schedule, skipping medication for this tick",
				"medication_id", med.ID, "name", med.Name, "times", med.Times, "error", err)
			continue
		}

		for _, scheduledTime := range times {
			if dose.IsHandled(logs, med.ID, scheduledTime) {
				continue
			}

			elapsed, ok := timeutil.MinutesElapsed(scheduledTime, current)
			if !ok {
				continue
			}

			state := e.policy.EvaluateSlot(elapsed)
			if state != SlotInitial && state != SlotNag {
				continue
			}

			trigger := Trigger{
				Medication:     med,
				User:           user,
				ScheduledTime:  scheduledTime,
				ElapsedMinutes: elapsed,
				Initial:        state == SlotInitial,
			}
			e.logger.InfoContext(ctx, "Reminder triggered",
				"medication_id", med.ID, "name", med.Name,
				"scheduled_time", scheduledTime, "elapsed_minutes", elapsed, "initial", trigger.Initial)

			// Escalated slots go to the voice bucket only; a call replaces
			// the chat message, never duplicates it.
			if e.policy.ShouldEscalate(elapsed, user.NaggingInterval, user.PhoneNumber != "") {
				key := user.PhoneNumber + "|" + scheduledTime
				group, exists := callGroups[key]
				if !exists {
					group = &CallRequest{
						Phone:            user.PhoneNumber,
						UserID:           user.ID,
						ScheduledTime:    scheduledTime,
						RepresentativeID: med.ID,
					}
					callGroups[key] = group
				}
				group.MedicationNames = append(group.MedicationNames, med.Name)
				continue
			}

			if containsTrigger(chatBuckets[user.ID], med.ID, scheduledTime) {
				continue
			}
			chatBuckets[user.ID] = append(chatBuckets[user.ID], trigger)
		}
	}

	return chatBuckets, callGroups
}

// dispatch sends chat batches in parallel (one goroutine per user, no shared
// state) and voice calls sequentially to respect downstream rate limits.
// Delivery failures are logged per recipient and never fail the tick.
func (e *Engine) dispatch(ctx context.Context, chatBuckets map[string][]Trigger, callGroups map[string]*CallRequest) {
	g, gCtx := errgroup.WithContext(ctx)
	for userID, triggers := range chatBuckets {
		userID, triggers := userID, triggers
		g.Go(func() error {
			user := triggers[0].User
			if err := e.chat.SendGroupedReminder(gCtx, user, triggers); err != nil {
				e.logger.ErrorContext(gCtx, "Failed to send grouped reminder",
					"user_id", userID, "triggers", len(triggers), "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	// Deterministic call order within the tick.
	keys := make([]string, 0, len(callGroups))
	for key := range callGroups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		call := callGroups[key]
		e.logger.InfoContext(ctx, "Placing grouped voice call",
			"phone", call.Phone, "scheduled_time", call.ScheduledTime, "medications", len(call.MedicationNames))
		if err := e.voice.PlaceCall(ctx, *call); err != nil {
			e.logger.ErrorContext(ctx, "Failed to place voice call",
				"phone", call.Phone, "scheduled_time", call.ScheduledTime, "error", err)
		}
	}
}

func containsTrigger(triggers []Trigger, medicationID, scheduledTime string) bool {
	for i := range triggers {
		if triggers[i].Medication.ID == medicationID && triggers[i].ScheduledTime == scheduledTime {
			return true
		}
	}
	return false
}
