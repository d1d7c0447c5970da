// Package tz converts between civil date+time values in a named IANA zone
// and absolute UTC instants. Series templates store civil values; occurrence
// rows store UTC. All duration arithmetic happens on instants, never on
// civil readings, so results stay correct across DST transitions.
package tz

import (
	"errors"
	"fmt"
	"time"
)

// Wire formats for civil values ("YYYY-MM-DD" and "HH:MM:SS").
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04:05"
)

// ErrInvalidTime reports a civil reading that does not exist in the zone on
// that date (spring-forward gap).
var ErrInvalidTime = errors.New("tz: civil time does not exist in zone")

// Location resolves an IANA zone name.
func Location(zone string) (*time.Location, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("tz: load zone %q: %w", zone, err)
	}
	return loc, nil
}

// Civil resolves a civil date and clock reading in the named zone to a
// zoned time. A reading skipped by a spring-forward transition returns
// ErrInvalidTime. A reading that occurs twice during a fall-back overlap
// resolves to the earlier UTC instant.
func Civil(date, clock, zone string) (time.Time, error) {
	loc, err := Location(zone)
	if err != nil {
		return time.Time{}, err
	}
	d, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("tz: parse date %q: %w", date, err)
	}
	c, err := time.Parse(ClockLayout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("tz: parse time %q: %w", clock, err)
	}

	t := time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, loc)

	// time.Date normalizes a nonexistent reading to the other side of the
	// transition; a round-trip mismatch means the civil time was skipped.
	if t.Day() != d.Day() || t.Hour() != c.Hour() || t.Minute() != c.Minute() || t.Second() != c.Second() {
		return time.Time{}, fmt.Errorf("%w: %s %s in %s", ErrInvalidTime, date, clock, zone)
	}

	// An ambiguous reading has a second valid instant one transition step
	// earlier. Prefer the earlier instant.
	for _, step := range []time.Duration{time.Hour, 30 * time.Minute} {
		if alt := t.Add(-step); sameCivil(alt, t) {
			t = alt
			break
		}
	}
	return t, nil
}

// ToUTC combines a civil date and clock reading in the named zone and
// returns the equivalent UTC instant.
func ToUTC(date, clock, zone string) (time.Time, error) {
	t, err := Civil(date, clock, zone)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// FromUTC projects a UTC instant into the named zone, returning the civil
// date and clock strings. Display only; storage is always UTC.
func FromUTC(t time.Time, zone string) (string, string, error) {
	loc, err := Location(zone)
	if err != nil {
		return "", "", err
	}
	lt := t.In(loc)
	return lt.Format(DateLayout), lt.Format(ClockLayout), nil
}

// DayStart returns the UTC instant at which the civil date begins in the
// zone. Used as the exclusive until_date bound. In zones that spring
// forward at midnight the normalized post-transition instant is used.
func DayStart(date, zone string) (time.Time, error) {
	loc, err := Location(zone)
	if err != nil {
		return time.Time{}, err
	}
	d, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("tz: parse date %q: %w", date, err)
	}
	return d.UTC(), nil
}

// ValidDate reports whether s is a well-formed "YYYY-MM-DD" value.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ValidClock reports whether s is a well-formed "HH:MM:SS" value.
func ValidClock(s string) bool {
	_, err := time.Parse(ClockLayout, s)
	return err == nil
}

func sameCivil(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day() &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute() && a.Second() == b.Second()
}
