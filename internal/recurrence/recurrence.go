// Package recurrence wraps teambition/rrule-go with the expansion contract
// the scheduling core needs: bounded, half-open, ascending UTC instants.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// ErrInvalidRule reports unparsable recurrence rule text.
var ErrInvalidRule = errors.New("recurrence: invalid rule")

// OneOff is the degenerate single-occurrence rule. A non-recurring job is a
// series carrying this rule, so one-off and recurring jobs share one data
// model and one code path.
const OneOff = "FREQ=DAILY;COUNT=1"

// Validate parses rule text without expanding it.
func Validate(rule string) error {
	if rule == "" {
		return fmt.Errorf("%w: empty rule text", ErrInvalidRule)
	}
	if _, err := rrule.StrToRRule(rule); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidRule, rule, err)
	}
	return nil
}

// Expand returns every instant the rule produces in [rangeStart, rangeEnd),
// ascending, in UTC. The anchor fixes the frequency and weekday phase and
// must carry the series' zone as its location so the expansion tracks local
// clock time across DST transitions. Output is capped at max instants when
// max > 0; the second return reports whether the cap truncated the
// sequence. The rule's own COUNT/UNTIL bound or the caller's range always
// terminates expansion.
func Expand(rule string, anchor, rangeStart, rangeEnd time.Time, max int) ([]time.Time, bool, error) {
	if !rangeEnd.After(rangeStart) {
		return nil, false, nil
	}
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %q: %v", ErrInvalidRule, rule, err)
	}
	r.DTStart(anchor)

	// Between compares instants; evaluating in the anchor's zone keeps the
	// rule's civil-time semantics (rrule-go iterates in DTStart's location).
	loc := anchor.Location()
	candidates := r.Between(rangeStart.In(loc), rangeEnd.In(loc), true)

	out := make([]time.Time, 0, len(candidates))
	truncated := false
	for _, c := range candidates {
		u := c.UTC()
		if u.Before(rangeStart) || !u.Before(rangeEnd) {
			// Between is endpoint-inclusive; the contract here is [start, end).
			continue
		}
		if max > 0 && len(out) == max {
			truncated = true
			break
		}
		out = append(out, u)
	}
	return out, truncated, nil
}
