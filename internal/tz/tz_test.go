package tz

import (
	"errors"
	"testing"
	"time"
)

func TestToUTC_StandardTime(t *testing.T) {
	// January in New York is EST (UTC-5).
	got, err := ToUTC("2025-01-06", "09:00:00", "America/New_York")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 1, 6, 14, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ToUTC = %v, want %v", got, want)
	}
}

func TestToUTC_DaylightTime(t *testing.T) {
	// July in New York is EDT (UTC-4).
	got, err := ToUTC("2025-07-07", "09:00:00", "America/New_York")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 7, 7, 13, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ToUTC = %v, want %v", got, want)
	}
}

func TestToUTC_SpringForwardGap(t *testing.T) {
	// 2025-03-09 02:30 does not exist in New York (clocks jump 02:00 → 03:00).
	_, err := ToUTC("2025-03-09", "02:30:00", "America/New_York")
	if !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("expected ErrInvalidTime, got %v", err)
	}
}

func TestToUTC_FallBackAmbiguityPicksEarlier(t *testing.T) {
	// 2025-11-02 01:30 occurs twice in New York: 05:30Z (EDT) and 06:30Z (EST).
	got, err := ToUTC("2025-11-02", "01:30:00", "America/New_York")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 11, 2, 5, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ToUTC ambiguous = %v, want earlier instant %v", got, want)
	}
}

func TestToUTC_UnknownZone(t *testing.T) {
	if _, err := ToUTC("2025-01-06", "09:00:00", "Mars/Olympus_Mons"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}

func TestToUTC_MalformedInputs(t *testing.T) {
	cases := []struct {
		name, date, clock string
	}{
		{"bad date", "2025-1-6", "09:00:00"},
		{"bad clock", "2025-01-06", "9:00"},
		{"empty date", "", "09:00:00"},
		{"empty clock", "2025-01-06", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ToUTC(tc.date, tc.clock, "UTC"); err == nil {
				t.Errorf("expected error for %q %q", tc.date, tc.clock)
			}
		})
	}
}

func TestFromUTC_RoundTrip(t *testing.T) {
	instant := time.Date(2025, 1, 6, 14, 0, 0, 0, time.UTC)
	date, clock, err := FromUTC(instant, "America/New_York")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if date != "2025-01-06" || clock != "09:00:00" {
		t.Errorf("FromUTC = %s %s, want 2025-01-06 09:00:00", date, clock)
	}
}

func TestDayStart(t *testing.T) {
	got, err := DayStart("2025-06-01", "America/New_York")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Midnight EDT is 04:00Z.
	want := time.Date(2025, 6, 1, 4, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DayStart = %v, want %v", got, want)
	}
}

func TestValidDateAndClock(t *testing.T) {
	if !ValidDate("2025-01-06") || ValidDate("01/06/2025") {
		t.Error("ValidDate misbehaved")
	}
	if !ValidClock("09:00:00") || ValidClock("09:00") {
		t.Error("ValidClock misbehaved")
	}
}
