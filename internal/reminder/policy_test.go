// Package reminder_test tests slot evaluation and escalation rules.
package reminder_test

import (
	"testing"

	"github.com/pcosta/lembrabot/internal/reminder"
)

func TestEvaluateSlot(t *testing.T) {
	t.Parallel()

	policy := reminder.DefaultPolicy()

	testCases := []struct {
		name    string
		elapsed int
		want    reminder.SlotState
	}{
		{name: "not due yet", elapsed: -5, want: reminder.SlotNotDue},
		{name: "exactly due", elapsed: 0, want: reminder.SlotInitial},
		{name: "off cadence", elapsed: 7, want: reminder.SlotBetween},
		{name: "first nag", elapsed: 15, want: reminder.SlotNag},
		{name: "mid window nag", elapsed: 90, want: reminder.SlotNag},
		{name: "off cadence late", elapsed: 91, want: reminder.SlotBetween},
		{name: "last nag of window", elapsed: 180, want: reminder.SlotNag},
		{name: "past window", elapsed: 181, want: reminder.SlotExpired},
		{name: "far past window", elapsed: 600, want: reminder.SlotExpired},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := policy.EvaluateSlot(tc.elapsed); got != tc.want {
				t.Errorf("EvaluateSlot(%d) = %v, want %v", tc.elapsed, got, tc.want)
			}
		})
	}
}

func TestShouldEscalate(t *testing.T) {
	t.Parallel()

	policy := reminder.DefaultPolicy()

	testCases := []struct {
		name     string
		elapsed  int
		interval int
		hasPhone bool
		want     bool
	}{
		{name: "initial reminder never escalates", elapsed: 0, interval: 30, hasPhone: true, want: false},
		{name: "no phone never escalates", elapsed: 30, interval: 30, hasPhone: false, want: false},
		{name: "on cadence", elapsed: 30, interval: 30, hasPhone: true, want: true},
		{name: "off cadence", elapsed: 15, interval: 30, hasPhone: true, want: false},
		{name: "second boundary", elapsed: 60, interval: 30, hasPhone: true, want: true},
		{name: "custom interval", elapsed: 45, interval: 45, hasPhone: true, want: true},
		{name: "zero interval falls back to default", elapsed: 30, interval: 0, hasPhone: true, want: true},
		{name: "negative interval falls back to default", elapsed: 15, interval: -1, hasPhone: true, want: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := policy.ShouldEscalate(tc.elapsed, tc.interval, tc.hasPhone)
			if got != tc.want {
				t.Errorf("ShouldEscalate(%d, %d, %v) = %v, want %v",
					tc.elapsed, tc.interval, tc.hasPhone, got, tc.want)
			}
		})
	}
}

func TestEscalationReplacesChatNag(t *testing.T) {
	t.Parallel()

	// At the same boundary a slot is both a nag and an escalation; the
	// engine must then call instead of messaging, never both.
	policy := reminder.DefaultPolicy()
	if policy.EvaluateSlot(30) != reminder.SlotNag {
		t.Fatal("elapsed 30 should be a nag boundary")
	}
	if !policy.ShouldEscalate(30, 30, true) {
		t.Fatal("elapsed 30 should also be an escalation boundary with a phone set")
	}
}
