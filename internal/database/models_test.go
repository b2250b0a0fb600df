// Package database_test tests the model helpers.
package database_test

import (
	"reflect"
	"testing"

	"github.com/pcosta/lembrabot/internal/database"
)

func TestScheduleTimes(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		column  string
		want    []string
		wantErr bool
	}{
		{name: "empty column", column: "", want: nil},
		{name: "empty array", column: "[]", want: nil},
		{name: "sorted and normalized", column: `["14:00","7:00"]`, want: []string{"07:00", "14:00"}},
		{name: "already canonical", column: `["08:00","20:00"]`, want: []string{"08:00", "20:00"}},
		{name: "not json", column: "08:00", wantErr: true},
		{name: "wrong element type", column: `[800]`, wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			med := database.Medication{Times: tc.column}
			got, err := med.ScheduleTimes()
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ScheduleTimes(%q) expected error, got %v", tc.column, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ScheduleTimes(%q) unexpected error: %v", tc.column, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ScheduleTimes(%q) = %v, want %v", tc.column, got, tc.want)
			}
		})
	}
}

func TestEncodeScheduleTimes(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		times []string
		want  string
	}{
		{name: "empty", times: nil, want: "[]"},
		{name: "normalizes and sorts", times: []string{"14:00", "7:00"}, want: `["07:00","14:00"]`},
		{name: "deduplicates variants", times: []string{"7:00", "07:00"}, want: `["07:00"]`},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := database.EncodeScheduleTimes(tc.times)
			if err != nil {
				t.Fatalf("EncodeScheduleTimes(%v) unexpected error: %v", tc.times, err)
			}
			if got != tc.want {
				t.Errorf("EncodeScheduleTimes(%v) = %q, want %q", tc.times, got, tc.want)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	encoded, err := database.EncodeScheduleTimes([]string{"20:00", "8:00", "12:30"})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	med := database.Medication{Times: encoded}
	got, err := med.ScheduleTimes()
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	want := []string{"08:00", "12:30", "20:00"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip = %v, want %v", got, want)
	}
}

func TestUserHasHome(t *testing.T) {
	t.Parallel()

	var user database.User
	if user.HasHome() {
		t.Error("user without coordinates must not report a home")
	}
	user.HomeLat.Valid, user.HomeLat.Float64 = true, -23.55
	if user.HasHome() {
		t.Error("latitude alone must not count as a home")
	}
	user.HomeLon.Valid, user.HomeLon.Float64 = true, -46.63
	if !user.HasHome() {
		t.Error("both coordinates set must count as a home")
	}
}
