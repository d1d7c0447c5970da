package recurrence

import (
	"errors"
	"testing"
	"time"
)

func nyAnchor(t *testing.T, date string, clock string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	full := date + "T" + clock
	anchor, err := time.ParseInLocation("2006-01-02T15:04:05", full, loc)
	if err != nil {
		t.Fatalf("parse anchor %q: %v", full, err)
	}
	return anchor
}

func TestValidate(t *testing.T) {
	if err := Validate("FREQ=WEEKLY;INTERVAL=1;COUNT=4"); err != nil {
		t.Errorf("valid rule rejected: %v", err)
	}
	if err := Validate("FREQ=SOMETIMES"); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("expected ErrInvalidRule, got %v", err)
	}
	if err := Validate(""); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("expected ErrInvalidRule for empty text, got %v", err)
	}
}

func TestExpand_WeeklyCount(t *testing.T) {
	anchor := nyAnchor(t, "2025-01-06", "09:00:00")
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)

	got, truncated, err := Expand("FREQ=WEEKLY;INTERVAL=1;COUNT=4", anchor, start, end, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if truncated {
		t.Error("unexpected truncation")
	}
	want := []time.Time{
		time.Date(2025, 1, 6, 14, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 13, 14, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 20, 14, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 27, 14, 0, 0, 0, time.UTC),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d instants, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("instant[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestExpand_DailyAcrossFallBack(t *testing.T) {
	// Daily 09:00 New York across the 2025-11-02 transition: UTC start
	// shifts 13:00Z -> 14:00Z while local clock time stays 09:00.
	anchor := nyAnchor(t, "2025-10-31", "09:00:00")
	start := time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 11, 4, 0, 0, 0, 0, time.UTC)

	got, _, err := Expand("FREQ=DAILY", anchor, start, end, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Time{
		time.Date(2025, 10, 31, 13, 0, 0, 0, time.UTC),
		time.Date(2025, 11, 1, 13, 0, 0, 0, time.UTC),
		time.Date(2025, 11, 2, 14, 0, 0, 0, time.UTC),
		time.Date(2025, 11, 3, 14, 0, 0, 0, time.UTC),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d instants, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("instant[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestExpand_HalfOpenRange(t *testing.T) {
	anchor := nyAnchor(t, "2025-01-06", "09:00:00")
	first := time.Date(2025, 1, 6, 14, 0, 0, 0, time.UTC)

	// rangeStart is inclusive.
	got, _, err := Expand("FREQ=DAILY;COUNT=3", anchor, first, first.Add(48*time.Hour), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || !got[0].Equal(first) {
		t.Errorf("inclusive start: got %v", got)
	}

	// rangeEnd is exclusive: an instant exactly at the bound is dropped.
	got, _, err = Expand("FREQ=DAILY;COUNT=3", anchor, first, first.Add(24*time.Hour), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || !got[0].Equal(first) {
		t.Errorf("exclusive end: got %v", got)
	}
}

func TestExpand_OneOff(t *testing.T) {
	anchor := nyAnchor(t, "2025-01-06", "09:00:00")
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	got, _, err := Expand(OneOff, anchor, start, end, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("one-off rule produced %d instants: %v", len(got), got)
	}
	if !got[0].Equal(anchor.UTC()) {
		t.Errorf("one-off instant = %v, want anchor %v", got[0], anchor.UTC())
	}
}

func TestExpand_CapTruncates(t *testing.T) {
	anchor := nyAnchor(t, "2025-01-06", "09:00:00")
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	got, truncated, err := Expand("FREQ=DAILY", anchor, start, end, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !truncated {
		t.Error("expected truncation at cap")
	}
	if len(got) != 10 {
		t.Errorf("got %d instants, want 10", len(got))
	}
}

func TestExpand_EmptyRange(t *testing.T) {
	anchor := nyAnchor(t, "2025-01-06", "09:00:00")
	at := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	got, truncated, err := Expand("FREQ=DAILY", anchor, at, at, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 || truncated {
		t.Errorf("empty range produced %v (truncated=%v)", got, truncated)
	}
}

func TestExpand_InvalidRule(t *testing.T) {
	anchor := nyAnchor(t, "2025-01-06", "09:00:00")
	_, _, err := Expand("NOT-A-RULE", anchor, anchor.UTC(), anchor.UTC().Add(time.Hour), 0)
	if !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
}
