// Package dose_test tests the dose action service against an in-memory store.
package dose_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pcosta/lembrabot/internal/database"
	"github.com/pcosta/lembrabot/internal/dose"
)

// fakeStore keeps medications and logs in memory, implementing just the
// methods the dose service touches.
type fakeStore struct {
	database.Store

	meds map[string]*database.Medication
	logs []database.ActionLog
}

func newFakeStore(meds ...*database.Medication) *fakeStore {
	f := &fakeStore{meds: make(map[string]*database.Medication)}
	for _, m := range meds {
		f.meds[m.ID] = m
	}
	return f
}

func (f *fakeStore) GetMedication(_ context.Context, id string) (*database.Medication, error) {
	med, ok := f.meds[id]
	if !ok {
		return nil, nil
	}
	copied := *med
	return &copied, nil
}

func (f *fakeStore) FindMedicationsByScheduleTime(_ context.Context, userID, scheduledTime string) ([]database.Medication, error) {
	var out []database.Medication
	for _, m := range f.meds {
		if m.UserID != userID {
			continue
		}
		times, err := m.ScheduleTimes()
		if err != nil {
			continue
		}
		for _, t := range times {
			if t == scheduledTime {
				out = append(out, *m)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) DecrementInventory(_ context.Context, id string) (bool, error) {
	med, ok := f.meds[id]
	if !ok || med.Inventory <= 0 {
		return false, nil
	}
	med.Inventory--
	return true, nil
}

func (f *fakeStore) AppendActionLog(_ context.Context, entry *database.ActionLog) error {
	f.logs = append(f.logs, *entry)
	return nil
}

func (f *fakeStore) ListActionLogsSince(_ context.Context, _ []string, _ time.Time) ([]database.ActionLog, error) {
	return f.logs, nil
}

func clockAt(hhmm string) func() time.Time {
	return func() time.Time {
		t, _ := time.Parse("15:04", hhmm)
		return time.Date(2025, 6, 10, t.Hour(), t.Minute(), 0, 0, time.UTC)
	}
}

func newMed(id string, inventory int, times string) *database.Medication {
	return &database.Medication{ID: id, UserID: "user-1", Name: "Losartan", Dosage: "50mg", Inventory: inventory, Times: times}
}

func TestTakeDose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := newFakeStore(newMed("med-1", 3, `["08:00","20:00"]`))
	svc := dose.NewService(store, nil, 3).WithClock(clockAt("08:10"))

	result, err := svc.TakeDose(ctx, "med-1", "08:00")
	require.NoError(t, err)
	require.Equal(t, 2, result.NewInventory)
	require.Equal(t, "08:00", result.DeterminedTime)
	require.Equal(t, 2, store.meds["med-1"].Inventory)

	require.Len(t, store.logs, 1)
	entry := store.logs[0]
	require.Equal(t, database.ActionTaken, entry.Action)
	require.Equal(t, "user-1", entry.UserID)
	require.True(t, entry.ScheduledTime.Valid)
	require.Equal(t, "08:00", entry.ScheduledTime.String)
}

func TestTakeDoseNotFound(t *testing.T) {
	t.Parallel()

	svc := dose.NewService(newFakeStore(), nil, 3)
	_, err := svc.TakeDose(context.Background(), "missing", "08:00")
	require.ErrorIs(t, err, dose.ErrNotFound)
}

func TestTakeDoseDepleted(t *testing.T) {
	t.Parallel()

	store := newFakeStore(newMed("med-1", 0, `["08:00"]`))
	svc := dose.NewService(store, nil, 3)

	_, err := svc.TakeDose(context.Background(), "med-1", "08:00")
	require.ErrorIs(t, err, dose.ErrDepleted)
	require.Empty(t, store.logs, "a refused take must not log anything")
	require.Equal(t, 0, store.meds["med-1"].Inventory)
}

func TestTakeDoseInfersSlot(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		at   string
		want string
	}{
		{name: "close to morning slot", at: "08:05", want: "08:00"},
		{name: "close to evening slot", at: "19:40", want: "20:00"},
		// 14:00 is 360 minutes from both slots; the earliest wins.
		{name: "equidistant prefers earliest", at: "14:00", want: "08:00"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			store := newFakeStore(newMed("med-1", 5, `["08:00","20:00"]`))
			svc := dose.NewService(store, nil, 3).WithClock(clockAt(tc.at))

			result, err := svc.TakeDose(context.Background(), "med-1", "")
			require.NoError(t, err)
			require.Equal(t, tc.want, result.DeterminedTime)
		})
	}
}

func TestTakeDoseNoScheduleStaysAdHoc(t *testing.T) {
	t.Parallel()

	store := newFakeStore(newMed("med-1", 5, "[]"))
	svc := dose.NewService(store, nil, 3).WithClock(clockAt("10:00"))

	result, err := svc.TakeDose(context.Background(), "med-1", "")
	require.NoError(t, err)
	require.Empty(t, result.DeterminedTime)
	require.False(t, store.logs[0].ScheduledTime.Valid)
}

func TestSkipDose(t *testing.T) {
	t.Parallel()

	store := newFakeStore(newMed("med-1", 5, `["08:00"]`))
	svc := dose.NewService(store, nil, 3)

	med, err := svc.SkipDose(context.Background(), "med-1", "08:00")
	require.NoError(t, err)
	require.Equal(t, "Losartan", med.Name)
	require.Equal(t, 5, store.meds["med-1"].Inventory, "skipping must not touch inventory")

	require.Len(t, store.logs, 1)
	require.Equal(t, database.ActionSkipped, store.logs[0].Action)
	require.Equal(t, "08:00", store.logs[0].ScheduledTime.String)
}

func TestTakeAllAtTime(t *testing.T) {
	t.Parallel()

	store := newFakeStore(
		newMed("med-1", 3, `["08:00","20:00"]`),
		newMed("med-2", 3, `["08:00"]`),
		newMed("med-3", 3, `["12:00"]`),
		newMed("med-4", 0, `["08:00"]`),
	)
	svc := dose.NewService(store, nil, 3).WithClock(clockAt("08:00"))

	result, err := svc.TakeAllAtTime(context.Background(), "user-1", "8:00")
	require.NoError(t, err)

	// med-3 is scheduled elsewhere and depleted med-4 is passed over.
	require.Equal(t, 2, result.Count)
	require.Len(t, store.logs, 2)
	require.Equal(t, 2, store.meds["med-1"].Inventory)
	require.Equal(t, 2, store.meds["med-2"].Inventory)
	require.Equal(t, 3, store.meds["med-3"].Inventory)
	require.Equal(t, 0, store.meds["med-4"].Inventory)
}

func TestIsHandled(t *testing.T) {
	t.Parallel()

	logs := []database.ActionLog{
		{MedicationID: "med-1", Action: database.ActionTaken, ScheduledTime: nullString("08:00")},
		{MedicationID: "med-2", Action: database.ActionSkipped, ScheduledTime: nullString("8:00")},
		{MedicationID: "med-3", Action: database.ActionTaken},
	}

	testCases := []struct {
		name string
		med  string
		slot string
		want bool
	}{
		{name: "taken slot", med: "med-1", slot: "08:00", want: true},
		{name: "skipped counts as handled", med: "med-2", slot: "08:00", want: true},
		{name: "unnormalized entries match", med: "med-2", slot: "8:00", want: true},
		{name: "other slot does not match", med: "med-1", slot: "20:00", want: false},
		{name: "slotless entry never matches", med: "med-3", slot: "08:00", want: false},
		{name: "unknown medication", med: "med-9", slot: "08:00", want: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := dose.IsHandled(logs, tc.med, tc.slot); got != tc.want {
				t.Errorf("IsHandled(%q, %q) = %v, want %v", tc.med, tc.slot, got, tc.want)
			}
		})
	}
}

func TestInferScheduledTime(t *testing.T) {
	t.Parallel()

	times := []string{"08:00", "14:00", "20:00"}

	testCases := []struct {
		name string
		at   string
		want string
	}{
		{name: "just after first", at: "08:05", want: "08:00"},
		{name: "just before middle", at: "13:45", want: "14:00"},
		{name: "equidistant takes earliest", at: "11:00", want: "08:00"},
		{name: "late evening", at: "23:30", want: "20:00"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := dose.InferScheduledTime(times, clockAt(tc.at)())
			if got != tc.want {
				t.Errorf("InferScheduledTime(%q) = %q, want %q", tc.at, got, tc.want)
			}
		})
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}
