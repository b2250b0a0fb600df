package reminder_test

import (
	"testing"

	"github.com/pcosta/lembrabot/internal/reminder"
)

func TestParseCallback(t *testing.T) {
	t.Parallel()

	medID := "9f0c2c1e-3f0a-4f6e-9f6e-2f9dd0d0b111"

	testCases := []struct {
		name       string
		data       string
		wantAction reminder.CallbackAction
		wantMedID  string
		wantTime   string
	}{
		{
			name:       "take with slot",
			data:       reminder.TakeCallback(medID, "08:00"),
			wantAction: reminder.ActionTake,
			wantMedID:  medID,
			wantTime:   "08:00",
		},
		{
			name:       "take without slot",
			data:       reminder.TakeCallback(medID, ""),
			wantAction: reminder.ActionTake,
			wantMedID:  medID,
		},
		{
			name:       "discard",
			data:       reminder.DiscardCallback(medID),
			wantAction: reminder.ActionDiscard,
			wantMedID:  medID,
		},
		{
			// The token also matches the shorter take_ prefix; the longer
			// family has to win.
			name:       "take all is not a take",
			data:       reminder.TakeAllCallback("08:00"),
			wantAction: reminder.ActionTakeAll,
			wantTime:   "08:00",
		},
		{
			name:       "discard all is not a discard",
			data:       reminder.DiscardAllCallback("21:30"),
			wantAction: reminder.ActionDiscardAll,
			wantTime:   "21:30",
		},
		{
			name:       "snooze all",
			data:       reminder.SnoozeAllCallback,
			wantAction: reminder.ActionSnoozeAll,
		},
		{
			name:       "snooze home",
			data:       reminder.SnoozeHomeCallback(medID),
			wantAction: reminder.ActionSnoozeHome,
			wantMedID:  medID,
		},
		{
			name:       "unknown token",
			data:       "something_else",
			wantAction: reminder.ActionUnknown,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			action, gotMedID, gotTime := reminder.ParseCallback(tc.data)
			if action != tc.wantAction {
				t.Fatalf("ParseCallback(%q) action = %v, want %v", tc.data, action, tc.wantAction)
			}
			if gotMedID != tc.wantMedID {
				t.Errorf("ParseCallback(%q) medID = %q, want %q", tc.data, gotMedID, tc.wantMedID)
			}
			if gotTime != tc.wantTime {
				t.Errorf("ParseCallback(%q) time = %q, want %q", tc.data, gotTime, tc.wantTime)
			}
		})
	}
}
