// Package reminder implements the periodic reminder scan: slot evaluation,
// per-user grouping, and escalation from chat messages to voice calls.
package reminder

// Policy holds the elapsed-time rules applied to every schedule slot.
type Policy struct {
	// NagWindowMinutes is how long after the scheduled time nags keep firing.
	NagWindowMinutes int
	// NagStepMinutes is the cadence of repeat reminders inside the window.
	NagStepMinutes int
	// DefaultNaggingInterval is the voice-call cadence for users without an
	// explicit setting, in minutes.
	DefaultNaggingInterval int
	// LowInventoryThreshold marks inventory counts that get a warning label
	// in reminder lines and the daily stock alert.
	LowInventoryThreshold int
}

// DefaultPolicy mirrors the production rules: 15-minute nags for 3 hours,
// voice escalation every 30 minutes, stock warnings at 15 units.
func DefaultPolicy() Policy {
	return Policy{
		NagWindowMinutes:       180,
		NagStepMinutes:         15,
		DefaultNaggingInterval: 30,
		LowInventoryThreshold:  15,
	}
}

// SlotState classifies one (medication, time) slot for the current tick.
type SlotState int

const (
	// SlotNotDue means the scheduled time has not arrived yet.
	SlotNotDue SlotState = iota
	// SlotInitial means the slot is due right now: first reminder.
	SlotInitial
	// SlotBetween means the slot is late but off the nag cadence; no action.
	SlotBetween
	// SlotNag means the slot is late and on the nag cadence: repeat reminder.
	SlotNag
	// SlotExpired means the slot is beyond the nag window; no further
	// automatic reminders until the day resets.
	SlotExpired
)

// EvaluateSlot classifies a slot by its elapsed minutes. Handled and
// geofence-deferred slots are filtered out before this is called.
func (p Policy) EvaluateSlot(elapsedMinutes int) SlotState {
	switch {
	case elapsedMinutes < 0:
		return SlotNotDue
	case elapsedMinutes == 0:
		return SlotInitial
	case elapsedMinutes > p.NagWindowMinutes:
		return SlotExpired
	case elapsedMinutes%p.NagStepMinutes == 0:
		return SlotNag
	default:
		return SlotBetween
	}
}

// ShouldEscalate decides whether a firing slot goes to the voice-call bucket
// instead of the chat bucket. Escalation needs a phone number and an elapsed
// time on the user's nagging cadence; the initial reminder (elapsed 0) is
// always a chat message.
func (p Policy) ShouldEscalate(elapsedMinutes, naggingInterval int, hasPhone bool) bool {
	if !hasPhone || elapsedMinutes <= 0 {
		return false
	}
	if naggingInterval <= 0 {
		naggingInterval = p.DefaultNaggingInterval
	}
	return elapsedMinutes%naggingInterval == 0
}
