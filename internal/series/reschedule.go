package series

import (
	"fmt"
	"time"

	"github.com/fieldlineapp/fieldline/internal/models"
	"github.com/fieldlineapp/fieldline/internal/recurrence"
	"github.com/fieldlineapp/fieldline/internal/tz"
	"gorm.io/gorm"
)

// RescheduleOpts holds the new timing definition for a series. All fields
// replace their current values.
type RescheduleOpts struct {
	RRule           string
	StartDate       string
	LocalStartTime  string
	DurationMinutes int
	Timezone        string
	UntilDate       string // empty clears the bound
}

// RescheduleResult reports what a reschedule changed.
type RescheduleResult struct {
	Deleted   int
	Created   int
	Truncated bool
}

// Reschedule replaces a series' timing definition: future non-completed
// occurrences are deleted, the watermark is reset, and the series is
// re-materialized under the new rule, all in one transaction, so calendar
// readers never observe the intermediate deleted-but-not-regenerated state.
// Past and completed occurrences are untouched. Validation failures leave
// the store unchanged.
func Reschedule(db *gorm.DB, tenantID, seriesID string, opts RescheduleOpts, horizon time.Time, maxOccurrences int) (*RescheduleResult, error) {
	if opts.DurationMinutes <= 0 {
		return nil, fmt.Errorf("series: duration must be positive, got %d", opts.DurationMinutes)
	}
	if err := recurrence.Validate(opts.RRule); err != nil {
		return nil, err
	}
	if _, err := tz.Civil(opts.StartDate, opts.LocalStartTime, opts.Timezone); err != nil {
		return nil, err
	}
	if opts.UntilDate != "" && !tz.ValidDate(opts.UntilDate) {
		return nil, fmt.Errorf("series: until date %q is not YYYY-MM-DD", opts.UntilDate)
	}

	s, err := Get(db, tenantID, seriesID)
	if err != nil {
		return nil, err
	}

	var out RescheduleResult
	err = db.Transaction(func(tx *gorm.DB) error {
		del := tx.Where("series_id = ? AND start_at > ? AND status != ?",
			s.ID, nowFunc().UTC(), models.StatusCompleted).
			Delete(&models.JobOccurrence{})
		if del.Error != nil {
			return fmt.Errorf("series: delete future occurrences of %s: %w", s.ID, del.Error)
		}
		out.Deleted = int(del.RowsAffected)

		s.RRule = opts.RRule
		s.StartDate = opts.StartDate
		s.LocalStartTime = opts.LocalStartTime
		s.DurationMinutes = opts.DurationMinutes
		s.Timezone = opts.Timezone
		s.UntilDate = nil
		if opts.UntilDate != "" {
			s.UntilDate = &opts.UntilDate
		}
		s.LastGeneratedUntil = nil

		updates := map[string]interface{}{
			"rrule":                s.RRule,
			"start_date":           s.StartDate,
			"local_start_time":     s.LocalStartTime,
			"duration_minutes":     s.DurationMinutes,
			"timezone":             s.Timezone,
			"until_date":           s.UntilDate,
			"last_generated_until": nil,
		}
		if err := tx.Model(&models.JobSeries{}).Where("id = ?", s.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("series: update %s: %w", s.ID, err)
		}

		res, err := materializeSeries(tx, s, horizon, maxOccurrences)
		if err != nil {
			return err
		}
		out.Created = res.Created
		out.Truncated = res.Truncated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel deactivates a series and cancels (not deletes) its future
// non-completed occurrences. Completed and past work is preserved.
func Cancel(db *gorm.DB, tenantID, seriesID string) (int, error) {
	s, err := Get(db, tenantID, seriesID)
	if err != nil {
		return 0, err
	}

	var cancelled int
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.JobSeries{}).Where("id = ?", s.ID).
			Update("active", false).Error; err != nil {
			return fmt.Errorf("series: deactivate %s: %w", s.ID, err)
		}
		upd := tx.Model(&models.JobOccurrence{}).
			Where("series_id = ? AND start_at > ? AND status NOT IN ?",
				s.ID, nowFunc().UTC(), []string{models.StatusCompleted, models.StatusCancelled}).
			Update("status", models.StatusCancelled)
		if upd.Error != nil {
			return fmt.Errorf("series: cancel occurrences of %s: %w", s.ID, upd.Error)
		}
		cancelled = int(upd.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cancelled, nil
}

// PropagateOpts holds series template edits that cascade to future
// occurrences. Nil fields are left unchanged.
type PropagateOpts struct {
	Priority      *int
	AssignedTo    *string
	EstimatedCost *float64
}

// Propagate applies template field edits to the series and to future
// occurrences still in scheduled state. In-progress, completed, and
// cancelled occurrences are untouched; this is not a reschedule and the
// watermark does not move.
func Propagate(db *gorm.DB, tenantID, seriesID string, opts PropagateOpts) (int, error) {
	s, err := Get(db, tenantID, seriesID)
	if err != nil {
		return 0, err
	}

	seriesUpdates := map[string]interface{}{}
	occUpdates := map[string]interface{}{}
	if opts.Priority != nil {
		seriesUpdates["priority"] = *opts.Priority
		occUpdates["priority"] = *opts.Priority
	}
	if opts.AssignedTo != nil {
		seriesUpdates["assigned_to"] = *opts.AssignedTo
		occUpdates["assigned_to"] = *opts.AssignedTo
	}
	if opts.EstimatedCost != nil {
		seriesUpdates["estimated_cost"] = *opts.EstimatedCost
	}
	if len(seriesUpdates) == 0 {
		return 0, nil
	}

	var updated int
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.JobSeries{}).Where("id = ?", s.ID).
			Updates(seriesUpdates).Error; err != nil {
			return fmt.Errorf("series: update template of %s: %w", s.ID, err)
		}
		if len(occUpdates) == 0 {
			return nil
		}
		upd := tx.Model(&models.JobOccurrence{}).
			Where("series_id = ? AND start_at > ? AND status = ?",
				s.ID, nowFunc().UTC(), models.StatusScheduled).
			Updates(occUpdates)
		if upd.Error != nil {
			return fmt.Errorf("series: propagate to occurrences of %s: %w", s.ID, upd.Error)
		}
		updated = int(upd.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}
