package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pcosta/lembrabot/internal/timeutil"
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
// Lookups that find nothing return (nil, nil); callers decide whether
// absence is an error.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// --- Users ---

	// GetUserByTelegramID retrieves a user by Telegram identity.
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error)

	// GetUserByID retrieves a user by internal id.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUsersByIDs retrieves users in bulk, keyed by id. Used by the scan
	// engine to capture one consistent snapshot per tick.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*User, error)

	// CreateUser inserts a new user record.
	CreateUser(ctx context.Context, user *User) error

	// UpdateUserSettings updates doctor phone, personal phone, and nagging interval.
	UpdateUserSettings(ctx context.Context, id string, doctorPhone, phoneNumber string, naggingInterval int) error

	// SetUserHome persists the user's home coordinate.
	SetUserHome(ctx context.Context, id string, lat, lon float64) error

	// --- Medications ---

	// CreateMedication inserts a new medication record.
	CreateMedication(ctx context.Context, med *Medication) error

	// GetMedication retrieves a medication by id.
	GetMedication(ctx context.Context, id string) (*Medication, error)

	// ListMedicationsByUser retrieves all medications owned by a user, sorted by name.
	ListMedicationsByUser(ctx context.Context, userID string) ([]Medication, error)

	// ListScheduledMedications retrieves every medication with at least one
	// configured time, across all users. This is the scan engine's snapshot query.
	ListScheduledMedications(ctx context.Context) ([]Medication, error)

	// ListMedicationsLowInventory retrieves medications whose inventory is at
	// or below the threshold, for the daily stock alert.
	ListMedicationsLowInventory(ctx context.Context, threshold int) ([]Medication, error)

	// ListRemindAtHomeMedications retrieves the user's medications currently
	// deferred to arrival at home.
	ListRemindAtHomeMedications(ctx context.Context, userID string) ([]Medication, error)

	// FindMedicationsByScheduleTime retrieves the user's medications whose
	// schedule contains the given time. The time is normalized before
	// matching; medications with unparseable schedules are skipped.
	FindMedicationsByScheduleTime(ctx context.Context, userID, scheduledTime string) ([]Medication, error)

	// UpdateMedicationSchedule replaces the medication's schedule set.
	UpdateMedicationSchedule(ctx context.Context, id string, times string) error

	// UpdateMedicationInventory sets the inventory to an absolute count.
	UpdateMedicationInventory(ctx context.Context, id string, inventory int) error

	// DecrementInventory atomically decrements inventory by one, refusing to
	// go below zero. Returns false when the medication was already depleted
	// or does not exist.
	DecrementInventory(ctx context.Context, id string) (bool, error)

	// SetRemindAtHome toggles the geofence deferral flag.
	SetRemindAtHome(ctx context.Context, id string, enabled bool) error

	// DeleteMedication removes a medication and its logs.
	DeleteMedication(ctx context.Context, id string) error

	// --- Action log ---

	// AppendActionLog inserts an immutable taken/skipped entry. This is the
	// log's only mutator; entries are never updated or deleted.
	AppendActionLog(ctx context.Context, entry *ActionLog) error

	// ListActionLogsSince retrieves every TAKEN/SKIPPED entry for the given
	// medications recorded at or after since, in one bulk query.
	ListActionLogsSince(ctx context.Context, medicationIDs []string, since time.Time) ([]ActionLog, error)
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	if telegramID == 0 {
		return nil, fmt.Errorf("telegram_id cannot be zero")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var user User
	query := `SELECT * FROM users WHERE telegram_id = ?`
	err := s.db.GetContext(ctx, &user, query, telegramID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No user found for telegram id", "telegram_id", telegramID)
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting user by telegram id", "telegram_id", telegramID, "error", err)
		return nil, fmt.Errorf("failed to get user for telegram id %d: %w", telegramID, err)
	}
	return &user, nil
}

func (s *sqlxStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var user User
	err := s.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = ?`, id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting user by id", "user_id", id, "error", err)
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return &user, nil
}

func (s *sqlxStore) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*User, error) {
	if len(ids) == 0 {
		return map[string]*User{}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query, args, err := sqlx.In(`SELECT * FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build users bulk query: %w", err)
	}
	query = s.db.Rebind(query)

	var users []*User
	if err := s.db.SelectContext(ctx, &users, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Error getting users in bulk", "count", len(ids), "error", err)
		return nil, fmt.Errorf("failed to get users in bulk: %w", err)
	}

	userMap := make(map[string]*User, len(users))
	for _, u := range users {
		userMap[u.ID] = u
	}
	return userMap, nil
}

func (s *sqlxStore) CreateUser(ctx context.Context, user *User) error {
	if user == nil {
		return fmt.Errorf("cannot create nil user")
	}
	if user.TelegramID == 0 {
		return fmt.Errorf("user must have a non-zero telegram_id")
	}

	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.NaggingInterval <= 0 {
		user.NaggingInterval = 30
	}

	query := `
        INSERT INTO users (id, created_at, updated_at, telegram_id, username, first_name,
                           doctor_phone, phone_number, nagging_interval, home_lat, home_lon)
        VALUES (:id, :created_at, :updated_at, :telegram_id, :username, :first_name,
                :doctor_phone, :phone_number, :nagging_interval, :home_lat, :home_lon);
    `
	if _, err := s.db.NamedExecContext(ctx, query, user); err != nil {
		s.logger.ErrorContext(ctx, "Error creating user", "telegram_id", user.TelegramID, "error", err)
		return fmt.Errorf("failed to create user (telegram %d): %w", user.TelegramID, err)
	}

	s.logger.DebugContext(ctx, "User created", "user_id", user.ID, "telegram_id", user.TelegramID)
	return nil
}

func (s *sqlxStore) UpdateUserSettings(ctx context.Context, id string, doctorPhone, phoneNumber string, naggingInterval int) error {
	if id == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	if naggingInterval <= 0 {
		return fmt.Errorf("nagging interval must be positive, got %d", naggingInterval)
	}

	query := `UPDATE users SET doctor_phone = ?, phone_number = ?, nagging_interval = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, doctorPhone, phoneNumber, naggingInterval, time.Now().UTC(), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating user settings", "user_id", id, "error", err)
		return fmt.Errorf("failed to update settings for user %s: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *sqlxStore) SetUserHome(ctx context.Context, id string, lat, lon float64) error {
	if id == "" {
		return fmt.Errorf("user id cannot be empty")
	}

	query := `UPDATE users SET home_lat = ?, home_lon = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, lat, lon, time.Now().UTC(), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving home coordinate", "user_id", id, "error", err)
		return fmt.Errorf("failed to save home coordinate for user %s: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	s.logger.DebugContext(ctx, "Home coordinate saved", "user_id", id)
	return nil
}

func (s *sqlxStore) CreateMedication(ctx context.Context, med *Medication) error {
	if med == nil {
		return fmt.Errorf("cannot create nil medication")
	}
	if med.UserID == "" {
		return fmt.Errorf("medication must have an owner")
	}
	if med.Name == "" {
		return fmt.Errorf("medication must have a name")
	}
	if med.Inventory < 0 {
		return fmt.Errorf("medication inventory cannot be negative, got %d", med.Inventory)
	}

	now := time.Now().UTC()
	if med.ID == "" {
		med.ID = uuid.NewString()
	}
	med.CreatedAt = now
	med.UpdatedAt = now
	if med.Times == "" {
		med.Times = "[]"
	}

	query := `
        INSERT INTO medications (id, created_at, updated_at, user_id, name, dosage, inventory, times, remind_at_home)
        VALUES (:id, :created_at, :updated_at, :user_id, :name, :dosage, :inventory, :times, :remind_at_home);
    `
	if _, err := s.db.NamedExecContext(ctx, query, med); err != nil {
		s.logger.ErrorContext(ctx, "Error creating medication", "user_id", med.UserID, "name", med.Name, "error", err)
		return fmt.Errorf("failed to create medication %q: %w", med.Name, err)
	}

	s.logger.DebugContext(ctx, "Medication created", "medication_id", med.ID, "name", med.Name)
	return nil
}

func (s *sqlxStore) GetMedication(ctx context.Context, id string) (*Medication, error) {
	if id == "" {
		return nil, fmt.Errorf("medication id cannot be empty")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var med Medication
	err := s.db.GetContext(ctx, &med, `SELECT * FROM medications WHERE id = ?`, id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting medication", "medication_id", id, "error", err)
		return nil, fmt.Errorf("failed to get medication %s: %w", id, err)
	}
	return &med, nil
}

func (s *sqlxStore) ListMedicationsByUser(ctx context.Context, userID string) ([]Medication, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}

	var meds []Medication
	query := `SELECT * FROM medications WHERE user_id = ? ORDER BY name ASC`
	if err := s.db.SelectContext(ctx, &meds, query, userID); err != nil {
		s.logger.ErrorContext(ctx, "Error listing medications for user", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list medications for user %s: %w", userID, err)
	}
	return meds, nil
}

func (s *sqlxStore) ListScheduledMedications(ctx context.Context) ([]Medication, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var meds []Medication
	query := `SELECT * FROM medications WHERE times != '' AND times != '[]' ORDER BY user_id, name`
	if err := s.db.SelectContext(ctx, &meds, query); err != nil {
		s.logger.ErrorContext(ctx, "Error listing scheduled medications", "error", err)
		return nil, fmt.Errorf("failed to list scheduled medications: %w", err)
	}

	s.logger.DebugContext(ctx, "Fetched scheduled medications", "count", len(meds))
	return meds, nil
}

func (s *sqlxStore) ListMedicationsLowInventory(ctx context.Context, threshold int) ([]Medication, error) {
	var meds []Medication
	query := `SELECT * FROM medications WHERE inventory <= ? ORDER BY user_id, name`
	if err := s.db.SelectContext(ctx, &meds, query, threshold); err != nil {
		s.logger.ErrorContext(ctx, "Error listing low inventory medications", "threshold", threshold, "error", err)
		return nil, fmt.Errorf("failed to list low inventory medications: %w", err)
	}
	return meds, nil
}

func (s *sqlxStore) ListRemindAtHomeMedications(ctx context.Context, userID string) ([]Medication, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}

	var meds []Medication
	query := `SELECT * FROM medications WHERE user_id = ? AND remind_at_home = 1 ORDER BY name`
	if err := s.db.SelectContext(ctx, &meds, query, userID); err != nil {
		s.logger.ErrorContext(ctx, "Error listing remind-at-home medications", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list remind-at-home medications for user %s: %w", userID, err)
	}
	return meds, nil
}

// FindMedicationsByScheduleTime filters after decoding: the times column
// stores JSON text, so SQL matching cannot normalize "7:00" against "07:00".
func (s *sqlxStore) FindMedicationsByScheduleTime(ctx context.Context, userID, scheduledTime string) ([]Medication, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	target := timeutil.Normalize(scheduledTime)

	var meds []Medication
	query := `SELECT * FROM medications WHERE user_id = ? AND times != '' AND times != '[]' ORDER BY name`
	if err := s.db.SelectContext(ctx, &meds, query, userID); err != nil {
		s.logger.ErrorContext(ctx, "Error listing scheduled medications for user", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list scheduled medications for user %s: %w", userID, err)
	}

	matched := meds[:0]
	for i := range meds {
		times, err := meds[i].ScheduleTimes()
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping medication with unparseable schedule",
				"medication_id", meds[i].ID, "error", err)
			continue
		}
		for _, t := range times {
			if t == target {
				matched = append(matched, meds[i])
				break
			}
		}
	}
	return matched, nil
}

func (s *sqlxStore) UpdateMedicationSchedule(ctx context.Context, id string, times string) error {
	if id == "" {
		return fmt.Errorf("medication id cannot be empty")
	}
	if times == "" {
		times = "[]"
	}

	query := `UPDATE medications SET times = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, times, time.Now().UTC(), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating medication schedule", "medication_id", id, "error", err)
		return fmt.Errorf("failed to update schedule for medication %s: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *sqlxStore) UpdateMedicationInventory(ctx context.Context, id string, inventory int) error {
	if id == "" {
		return fmt.Errorf("medication id cannot be empty")
	}
	if inventory < 0 {
		return fmt.Errorf("inventory cannot be negative, got %d", inventory)
	}

	query := `UPDATE medications SET inventory = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, inventory, time.Now().UTC(), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating medication inventory", "medication_id", id, "error", err)
		return fmt.Errorf("failed to update inventory for medication %s: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DecrementInventory performs the single atomic read-modify-write that keeps
// inventory from going negative under concurrent take requests. The WHERE
// clause refuses the decrement once inventory reaches zero.
func (s *sqlxStore) DecrementInventory(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("medication id cannot be empty")
	}

	query := `UPDATE medications SET inventory = inventory - 1, updated_at = ? WHERE id = ? AND inventory > 0`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error decrementing inventory", "medication_id", id, "error", err)
		return false, fmt.Errorf("failed to decrement inventory for medication %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not get affected row count after decrement", "medication_id", id, "error", err)
		return false, fmt.Errorf("failed to confirm inventory decrement for medication %s: %w", id, err)
	}
	return affected > 0, nil
}

func (s *sqlxStore) SetRemindAtHome(ctx context.Context, id string, enabled bool) error {
	if id == "" {
		return fmt.Errorf("medication id cannot be empty")
	}

	query := `UPDATE medications SET remind_at_home = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, enabled, time.Now().UTC(), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error setting remind-at-home flag", "medication_id", id, "enabled", enabled, "error", err)
		return fmt.Errorf("failed to set remind-at-home for medication %s: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	s.logger.DebugContext(ctx, "Remind-at-home flag updated", "medication_id", id, "enabled", enabled)
	return nil
}

func (s *sqlxStore) DeleteMedication(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("medication id cannot be empty")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for medication delete", "medication_id", id, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM action_logs WHERE medication_id = ?`, id); err != nil {
		s.logger.ErrorContext(ctx, "Error deleting medication logs", "medication_id", id, "error", err)
		return fmt.Errorf("failed to delete logs for medication %s: %w", id, err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM medications WHERE id = ?`, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting medication", "medication_id", id, "error", err)
		return fmt.Errorf("failed to delete medication %s: %w", id, err)
	}
	affected, _ := result.RowsAffected()

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit medication delete", "medication_id", id, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	if affected == 0 {
		return sql.ErrNoRows
	}
	s.logger.InfoContext(ctx, "Medication deleted", "medication_id", id)
	return nil
}

func (s *sqlxStore) AppendActionLog(ctx context.Context, entry *ActionLog) error {
	if entry == nil {
		return fmt.Errorf("cannot append nil action log entry")
	}
	if entry.MedicationID == "" || entry.UserID == "" {
		return fmt.Errorf("action log entry must reference a user and a medication")
	}
	if entry.Action != ActionTaken && entry.Action != ActionSkipped {
		return fmt.Errorf("invalid action kind %q", entry.Action)
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	query := `
        INSERT INTO action_logs (id, user_id, medication_id, action, scheduled_time, timestamp)
        VALUES (:id, :user_id, :medication_id, :action, :scheduled_time, :timestamp);
    `
	if _, err := s.db.NamedExecContext(ctx, query, entry); err != nil {
		s.logger.ErrorContext(ctx, "Error appending action log",
			"medication_id", entry.MedicationID, "action", entry.Action, "error", err)
		return fmt.Errorf("failed to append action log for medication %s: %w", entry.MedicationID, err)
	}

	s.logger.DebugContext(ctx, "Action log appended",
		"medication_id", entry.MedicationID, "action", entry.Action, "scheduled_time", entry.ScheduledTime.String)
	return nil
}

func (s *sqlxStore) ListActionLogsSince(ctx context.Context, medicationIDs []string, since time.Time) ([]ActionLog, error) {
	if len(medicationIDs) == 0 {
		return nil, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query, args, err := sqlx.In(
		`SELECT * FROM action_logs WHERE medication_id IN (?) AND timestamp >= ? AND action IN (?, ?)`,
		medicationIDs, since, ActionTaken, ActionSkipped)
	if err != nil {
		return nil, fmt.Errorf("failed to build action log bulk query: %w", err)
	}
	query = s.db.Rebind(query)

	var logs []ActionLog
	if err := s.db.SelectContext(ctx, &logs, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Error listing action logs", "medications", len(medicationIDs), "error", err)
		return nil, fmt.Errorf("failed to list action logs: %w", err)
	}

	s.logger.DebugContext(ctx, "Fetched action logs", "count", len(logs))
	return logs, nil
}
