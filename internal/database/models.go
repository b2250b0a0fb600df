package database

import (
	"database/sql"
	"encoding/json"
	"sort"
	"time"

	"github.com/pcosta/lembrabot/internal/timeutil"
)

// Action kinds recorded in the action log.
const (
	ActionTaken   = "TAKEN"
	ActionSkipped = "SKIPPED"
)

// User represents a person receiving medication reminders. Created on first
// contact from Telegram; settings are mutated from the bot and the dashboard.
type User struct {
	ID        string    `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	TelegramID int64  `db:"telegram_id"`
	Username   string `db:"username"`
	FirstName  string `db:"first_name"`

	DoctorPhone     string          `db:"doctor_phone"`
	PhoneNumber     string          `db:"phone_number"`
	NaggingInterval int             `db:"nagging_interval"` // minutes between voice-call escalations
	HomeLat         sql.NullFloat64 `db:"home_lat"`
	HomeLon         sql.NullFloat64 `db:"home_lon"`
}

// HasHome reports whether the user saved a home coordinate.
func (u *User) HasHome() bool {
	return u.HomeLat.Valid && u.HomeLon.Valid
}

// Medication belongs to exactly one user. Scheduled times are stored as a
// JSON array of "HH:MM" strings in the times column.
type Medication struct {
	ID        string    `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	UserID       string `db:"user_id"`
	Name         string `db:"name"`
	Dosage       string `db:"dosage"`
	Inventory    int    `db:"inventory"`
	Times        string `db:"times"`
	RemindAtHome bool   `db:"remind_at_home"`
}

// ScheduleTimes decodes the stored times column. The returned slice is
// normalized and sorted. An unparseable column yields an error so callers
// can skip the medication instead of silently dropping slots.
func (m *Medication) ScheduleTimes() ([]string, error) {
	if m.Times == "" || m.Times == "[]" {
		return nil, nil
	}
	var times []string
	if err := json.Unmarshal([]byte(m.Times), &times); err != nil {
		return nil, err
	}
	for i, t := range times {
		times[i] = timeutil.Normalize(t)
	}
	sort.Strings(times)
	return times, nil
}

// EncodeScheduleTimes produces the JSON column value for a schedule set.
// Times are normalized, deduplicated and sorted.
func EncodeScheduleTimes(times []string) (string, error) {
	seen := make(map[string]struct{}, len(times))
	normalized := make([]string, 0, len(times))
	for _, t := range times {
		n := timeutil.Normalize(t)
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		normalized = append(normalized, n)
	}
	sort.Strings(normalized)
	out, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ActionLog is an immutable fact: a dose was taken or skipped. The optional
// scheduled time ties the entry to one schedule slot; ad-hoc actions carry
// no scheduled time and never suppress a slot-specific reminder.
type ActionLog struct {
	ID            string         `db:"id"`
	UserID        string         `db:"user_id"`
	MedicationID  string         `db:"medication_id"`
	Action        string         `db:"action"`
	ScheduledTime sql.NullString `db:"scheduled_time"`
	Timestamp     time.Time      `db:"timestamp"`
}
