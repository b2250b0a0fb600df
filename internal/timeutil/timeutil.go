// Package timeutil provides the small pure helpers the reminder engine is
// built on: schedule time normalization, pharmacological day boundaries,
// elapsed-minute arithmetic, and great-circle distance.
package timeutil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Normalize canonicalizes an "H:MM" or "HH:MM" time-of-day string to the
// two-digit "HH:MM" form, e.g. "7:00" -> "07:00". Input that does not look
// like a clock time is returned unchanged; such values act as opaque keys
// that never match a real schedule slot.
func Normalize(s string) string {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return s
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return s
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return s
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// Parse splits a normalized or raw "HH:MM" string into hour and minute.
// ok is false for anything Normalize would pass through unchanged.
func Parse(s string) (hour, minute int, ok bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return h, m, true
}

// DayStart returns the instant the current pharmacological day began.
// The day rolls over at a fixed UTC hour (03:00 UTC = local midnight in
// UTC-3), so late-evening doses are not confused with the next morning's.
// If now is before today's boundary the previous day's boundary is returned.
func DayStart(now time.Time, utcHour int) time.Time {
	start := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), utcHour, 0, 0, 0, time.UTC)
	if now.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	return start
}

// MinutesElapsed returns how many minutes the current wall-clock time is
// past the scheduled time-of-day. Negative means the slot is not yet due.
// There is deliberately no midnight wraparound: schedules are compared
// within one calendar day only.
func MinutesElapsed(scheduled, current string) (int, bool) {
	sh, sm, ok := Parse(scheduled)
	if !ok {
		return 0, false
	}
	ch, cm, ok := Parse(current)
	if !ok {
		return 0, false
	}
	return (ch*60 + cm) - (sh*60 + sm), true
}

// ClockString formats a time as the "HH:MM" wall-clock key used throughout
// the scheduling code.
func ClockString(t time.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

const earthRadiusMeters = 6371e3

// HaversineMeters returns the great-circle distance in meters between two
// WGS84 coordinates.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}
