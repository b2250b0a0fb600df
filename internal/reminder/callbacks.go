package reminder

import "strings"

// Callback tokens are the opaque action identifiers the engine attaches to
// outbound reminders. The delivery layer routes them back into the dose
// service and the geofence gate.
const (
	// SnoozeAllCallback asks the delivery layer to drop the message without
	// recording anything; the next nag boundary re-fires the reminder.
	SnoozeAllCallback = "snooze_all_15"

	takePrefix       = "take_"
	discardPrefix    = "discard_"
	takeAllPrefix    = "take_all_time_"
	discardAllPrefix = "discard_all_time_"
	snoozeHomePrefix = "snooze_home_"
)

// TakeCallback builds the per-medication accept token. The scheduled time is
// carried so the log entry lands on the right slot.
func TakeCallback(medicationID, scheduledTime string) string {
	if scheduledTime == "" {
		return takePrefix + medicationID
	}
	return takePrefix + medicationID + "_" + scheduledTime
}

// DiscardCallback builds the per-medication skip token.
func DiscardCallback(medicationID string) string {
	return discardPrefix + medicationID
}

// TakeAllCallback builds the accept-everything-at-this-time token.
func TakeAllCallback(scheduledTime string) string {
	return takeAllPrefix + scheduledTime
}

// DiscardAllCallback builds the skip-everything-at-this-time token.
func DiscardAllCallback(scheduledTime string) string {
	return discardAllPrefix + scheduledTime
}

// SnoozeHomeCallback builds the defer-to-arrival-at-home token.
func SnoozeHomeCallback(medicationID string) string {
	return snoozeHomePrefix + medicationID
}

// CallbackAction identifies which reminder action a callback token encodes.
type CallbackAction int

const (
	// ActionUnknown means the token matched no known action family.
	ActionUnknown CallbackAction = iota
	// ActionTake accepts one medication, optionally for a specific slot.
	ActionTake
	// ActionDiscard skips one medication.
	ActionDiscard
	// ActionTakeAll accepts every medication scheduled at the carried time.
	ActionTakeAll
	// ActionDiscardAll skips every medication scheduled at the carried time.
	ActionDiscardAll
	// ActionSnoozeAll drops the message without recording anything.
	ActionSnoozeAll
	// ActionSnoozeHome defers one medication to arrival at home.
	ActionSnoozeHome
)

// ParseCallback decodes a callback token into its action, medication id, and
// scheduled time. Longer prefixes are checked first so "take_all_time_08:00"
// is never misread as a per-medication take.
func ParseCallback(data string) (action CallbackAction, medicationID, scheduledTime string) {
	switch {
	case data == SnoozeAllCallback:
		return ActionSnoozeAll, "", ""
	case strings.HasPrefix(data, takeAllPrefix):
		return ActionTakeAll, "", strings.TrimPrefix(data, takeAllPrefix)
	case strings.HasPrefix(data, discardAllPrefix):
		return ActionDiscardAll, "", strings.TrimPrefix(data, discardAllPrefix)
	case strings.HasPrefix(data, snoozeHomePrefix):
		return ActionSnoozeHome, strings.TrimPrefix(data, snoozeHomePrefix), ""
	case strings.HasPrefix(data, takePrefix):
		rest := strings.TrimPrefix(data, takePrefix)
		// Medication ids contain no underscores; anything after the first
		// one is the slot key.
		if id, slot, found := strings.Cut(rest, "_"); found {
			return ActionTake, id, slot
		}
		return ActionTake, rest, ""
	case strings.HasPrefix(data, discardPrefix):
		return ActionDiscard, strings.TrimPrefix(data, discardPrefix), ""
	default:
		return ActionUnknown, "", ""
	}
}
