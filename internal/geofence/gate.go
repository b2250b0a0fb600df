// Package geofence implements the remind-at-home gate: reminders for flagged
// medications are suppressed until a live-location update shows the user
// within the arrival radius of their saved home coordinate.
package geofence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/pcosta/lembrabot/internal/database"
	"github.com/pcosta/lembrabot/internal/timeutil"
)

// ErrNoHome indicates the user has not saved a home coordinate yet.
var ErrNoHome = errors.New("no home coordinate saved")

// DefaultArrivalRadiusMeters is the distance under which a location update
// counts as arriving home.
const DefaultArrivalRadiusMeters = 200

// Gate evaluates live-location updates against saved home coordinates.
// It keeps no history: each update is judged on its own, so a flag refires
// only after being re-armed.
type Gate struct {
	store        database.Store
	logger       *slog.Logger
	radiusMeters float64
}

// NewGate creates a geofence gate. A non-positive radius falls back to the
// default 200 meters.
func NewGate(store database.Store, logger *slog.Logger, radiusMeters float64) *Gate {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if radiusMeters <= 0 {
		radiusMeters = DefaultArrivalRadiusMeters
	}
	return &Gate{
		store:        store,
		logger:       logger.With("component", "geofence_gate"),
		radiusMeters: radiusMeters,
	}
}

// SetHome persists the user's home coordinate.
func (g *Gate) SetHome(ctx context.Context, userID string, lat, lon float64) error {
	if err := g.store.SetUserHome(ctx, userID, lat, lon); err != nil {
		return fmt.Errorf("failed to save home coordinate: %w", err)
	}
	g.logger.InfoContext(ctx, "Home coordinate saved", "user_id", userID)
	return nil
}

// Defer arms the remind-at-home flag on a medication. The scan engine stops
// reminding about it until CheckArrival clears the flag. Fails with ErrNoHome
// when the user never saved a home coordinate, since the flag could then
// never be cleared.
func (g *Gate) Defer(ctx context.Context, userID, medicationID string) error {
	user, err := g.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil || !user.HasHome() {
		return ErrNoHome
	}
	if err := g.store.SetRemindAtHome(ctx, medicationID, true); err != nil {
		return fmt.Errorf("failed to arm remind-at-home flag: %w", err)
	}
	g.logger.InfoContext(ctx, "Medication deferred to arrival at home",
		"user_id", userID, "medication_id", medicationID)
	return nil
}

// CheckArrival evaluates one live-location update. For every medication the
// user deferred, the distance to home is computed; within the arrival radius
// the flag is cleared and the medication is returned so the caller can send
// an immediate, un-grouped reminder. Clearing happens exactly once per armed
// flag: a cleared medication is not returned again until re-deferred.
func (g *Gate) CheckArrival(ctx context.Context, userID string, lat, lon float64) ([]database.Medication, error) {
	user, err := g.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil || !user.HasHome() {
		return nil, nil
	}

	deferred, err := g.store.ListRemindAtHomeMedications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deferred medications: %w", err)
	}
	if len(deferred) == 0 {
		return nil, nil
	}

	distance := timeutil.HaversineMeters(lat, lon, user.HomeLat.Float64, user.HomeLon.Float64)
	g.logger.DebugContext(ctx, "Evaluating location update",
		"user_id", userID, "distance_meters", distance, "deferred", len(deferred))

	if distance >= g.radiusMeters {
		return nil, nil
	}

	arrived := make([]database.Medication, 0, len(deferred))
	for _, med := range deferred {
		if err := g.store.SetRemindAtHome(ctx, med.ID, false); err != nil {
			g.logger.ErrorContext(ctx, "Failed to clear remind-at-home flag",
				"medication_id", med.ID, "error", err)
			continue
		}
		arrived = append(arrived, med)
	}

	if len(arrived) > 0 {
		g.logger.InfoContext(ctx, "User arrived home, reminders released",
			"user_id", userID, "medications", len(arrived))
	}
	return arrived, nil
}
