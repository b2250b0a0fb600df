package reminder_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pcosta/lembrabot/internal/database"
	"github.com/pcosta/lembrabot/internal/dose"
	"github.com/pcosta/lembrabot/internal/reminder"
)

// fakeStore implements only the snapshot queries the engine needs; any other
// Store method panics through the embedded nil interface.
type fakeStore struct {
	database.Store

	meds  []database.Medication
	users map[string]*database.User
	logs  []database.ActionLog
}

func (f *fakeStore) ListScheduledMedications(_ context.Context) ([]database.Medication, error) {
	return f.meds, nil
}

func (f *fakeStore) GetUsersByIDs(_ context.Context, _ []string) (map[string]*database.User, error) {
	return f.users, nil
}

func (f *fakeStore) ListActionLogsSince(_ context.Context, _ []string, _ time.Time) ([]database.ActionLog, error) {
	return f.logs, nil
}

// fakeChat records grouped sends; chat dispatch runs one goroutine per user.
type fakeChat struct {
	mu      sync.Mutex
	batches map[string][]reminder.Trigger
}

func (f *fakeChat) SendGroupedReminder(_ context.Context, user *database.User, triggers []reminder.Trigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.batches == nil {
		f.batches = make(map[string][]reminder.Trigger)
	}
	f.batches[user.ID] = append(f.batches[user.ID], triggers...)
	return nil
}

type fakeVoice struct {
	calls []reminder.CallRequest
}

func (f *fakeVoice) PlaceCall(_ context.Context, call reminder.CallRequest) error {
	f.calls = append(f.calls, call)
	return nil
}

func clockAt(hhmm string) func() time.Time {
	return func() time.Time {
		t, _ := time.Parse("15:04", hhmm)
		return time.Date(2025, 6, 10, t.Hour(), t.Minute(), 0, 0, time.UTC)
	}
}

func newEngine(store *fakeStore, chat *fakeChat, voice *fakeVoice, at string) *reminder.Engine {
	doses := dose.NewService(store, nil, 3).WithClock(clockAt(at))
	return reminder.NewEngine(store, doses, chat, voice, nil, reminder.DefaultPolicy()).WithClock(clockAt(at))
}

func testUser(id string, telegramID int64) *database.User {
	return &database.User{ID: id, TelegramID: telegramID, NaggingInterval: 30}
}

func testMed(id, userID, name, times string) database.Medication {
	return database.Medication{ID: id, UserID: userID, Name: name, Dosage: "1 pill", Inventory: 10, Times: times}
}

func TestScanGroupsPerUser(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		meds: []database.Medication{
			testMed("med-1", "user-1", "Losartan", `["08:00"]`),
			testMed("med-2", "user-1", "Metformin", `["08:00"]`),
			testMed("med-3", "user-2", "Aspirin", `["08:00"]`),
		},
		users: map[string]*database.User{
			"user-1": testUser("user-1", 100),
			"user-2": testUser("user-2", 200),
		},
	}
	chat := &fakeChat{}
	voice := &fakeVoice{}

	err := newEngine(store, chat, voice, "08:00").Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, chat.batches, 2, "one grouped message per user")
	require.Len(t, chat.batches["user-1"], 2)
	require.Len(t, chat.batches["user-2"], 1)
	require.Empty(t, voice.calls)
	require.True(t, chat.batches["user-1"][0].Initial)
}

func TestScanSkipsHandledSlots(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		meds: []database.Medication{
			testMed("med-1", "user-1", "Losartan", `["08:00"]`),
			testMed("med-2", "user-1", "Metformin", `["08:00"]`),
		},
		users: map[string]*database.User{"user-1": testUser("user-1", 100)},
		logs: []database.ActionLog{{
			MedicationID:  "med-1",
			Action:        database.ActionTaken,
			ScheduledTime: sql.NullString{String: "08:00", Valid: true},
		}},
	}
	chat := &fakeChat{}

	err := newEngine(store, chat, &fakeVoice{}, "08:00").Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, chat.batches["user-1"], 1)
	require.Equal(t, "med-2", chat.batches["user-1"][0].Medication.ID)
}

func TestScanLogWithoutSlotDoesNotSuppress(t *testing.T) {
	t.Parallel()

	// An ad-hoc take carries no scheduled time and must not silence the slot.
	store := &fakeStore{
		meds:  []database.Medication{testMed("med-1", "user-1", "Losartan", `["08:00"]`)},
		users: map[string]*database.User{"user-1": testUser("user-1", 100)},
		logs: []database.ActionLog{{
			MedicationID: "med-1",
			Action:       database.ActionTaken,
		}},
	}
	chat := &fakeChat{}

	err := newEngine(store, chat, &fakeVoice{}, "08:00").Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, chat.batches["user-1"], 1)
}

func TestScanEscalatesToVoiceCall(t *testing.T) {
	t.Parallel()

	user := testUser("user-1", 100)
	user.PhoneNumber = "+5511999990000"
	store := &fakeStore{
		meds: []database.Medication{
			testMed("med-1", "user-1", "Losartan", `["08:00"]`),
			testMed("med-2", "user-1", "Metformin", `["08:00"]`),
		},
		users: map[string]*database.User{"user-1": user},
	}
	chat := &fakeChat{}
	voice := &fakeVoice{}

	err := newEngine(store, chat, voice, "08:30").Scan(context.Background())
	require.NoError(t, err)

	// Both late medications share one call; nothing is sent to chat.
	require.Empty(t, chat.batches)
	require.Len(t, voice.calls, 1)
	call := voice.calls[0]
	require.Equal(t, "+5511999990000", call.Phone)
	require.Equal(t, "08:00", call.ScheduledTime)
	require.ElementsMatch(t, []string{"Losartan", "Metformin"}, call.MedicationNames)
	require.Equal(t, "med-1", call.RepresentativeID)
}

func TestScanNagsInChatWithoutPhone(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		meds:  []database.Medication{testMed("med-1", "user-1", "Losartan", `["08:00"]`)},
		users: map[string]*database.User{"user-1": testUser("user-1", 100)},
	}
	chat := &fakeChat{}
	voice := &fakeVoice{}

	err := newEngine(store, chat, voice, "08:30").Scan(context.Background())
	require.NoError(t, err)

	require.Empty(t, voice.calls)
	require.Len(t, chat.batches["user-1"], 1)
	require.Equal(t, 30, chat.batches["user-1"][0].ElapsedMinutes)
	require.False(t, chat.batches["user-1"][0].Initial)
}

func TestScanIgnoresOffCadenceSlots(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		meds:  []database.Medication{testMed("med-1", "user-1", "Losartan", `["08:00"]`)},
		users: map[string]*database.User{"user-1": testUser("user-1", 100)},
	}
	chat := &fakeChat{}
	voice := &fakeVoice{}

	for _, at := range []string{"07:50", "08:07", "11:01"} {
		err := newEngine(store, chat, voice, at).Scan(context.Background())
		require.NoError(t, err)
	}

	require.Empty(t, chat.batches)
	require.Empty(t, voice.calls)
}

func TestScanSkipsRemindAtHome(t *testing.T) {
	t.Parallel()

	deferred := testMed("med-1", "user-1", "Losartan", `["08:00"]`)
	deferred.RemindAtHome = true
	store := &fakeStore{
		meds:  []database.Medication{deferred},
		users: map[string]*database.User{"user-1": testUser("user-1", 100)},
	}
	chat := &fakeChat{}

	err := newEngine(store, chat, &fakeVoice{}, "08:00").Scan(context.Background())
	require.NoError(t, err)
	require.Empty(t, chat.batches)
}

func TestScanSurvivesUnparseableSchedule(t *testing.T) {
	t.Parallel()

	broken := testMed("med-1", "user-1", "Losartan", "not json")
	store := &fakeStore{
		meds: []database.Medication{
			broken,
			testMed("med-2", "user-1", "Metformin", `["08:00"]`),
		},
		users: map[string]*database.User{"user-1": testUser("user-1", 100)},
	}
	chat := &fakeChat{}

	err := newEngine(store, chat, &fakeVoice{}, "08:00").Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, chat.batches["user-1"], 1)
	require.Equal(t, "med-2", chat.batches["user-1"][0].Medication.ID)
}
