package series

import (
	"errors"
	"fmt"
	"time"

	"github.com/fieldlineapp/fieldline/internal/models"
	"github.com/fieldlineapp/fieldline/internal/recurrence"
	"github.com/fieldlineapp/fieldline/internal/tz"
	"gorm.io/gorm"
)

// MaterializeResult reports the outcome of one materialization call.
type MaterializeResult struct {
	// Created is the number of new occurrence rows inserted.
	Created int
	// Truncated reports that the occurrence cap cut the expansion short of
	// the requested horizon. The watermark then covers only what was
	// actually persisted; a later call resumes from there.
	Truncated bool
	// Watermark is the series' last_generated_until after the call.
	Watermark *time.Time
}

// Materialize brings a series' persisted occurrences up to the horizon,
// exactly once per rule instant, without disturbing existing rows. The
// watermark is an exclusive bound: every rule instant in [anchor, watermark)
// has a persisted occurrence. Concurrent calls against the same series are
// serialized by an optimistic check on the watermark; a lost race is retried
// once (the retry usually finds an empty gap), then surfaces ErrConflict.
func Materialize(db *gorm.DB, tenantID, seriesID string, horizon time.Time, maxOccurrences int) (*MaterializeResult, error) {
	res, err := materializeOnce(db, tenantID, seriesID, horizon, maxOccurrences)
	if errors.Is(err, ErrConflict) {
		res, err = materializeOnce(db, tenantID, seriesID, horizon, maxOccurrences)
	}
	return res, err
}

func materializeOnce(db *gorm.DB, tenantID, seriesID string, horizon time.Time, maxOccurrences int) (*MaterializeResult, error) {
	s, err := Get(db, tenantID, seriesID)
	if err != nil {
		return nil, err
	}

	var res *MaterializeResult
	err = db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		res, txErr = materializeSeries(tx, s, horizon, maxOccurrences)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// materializeSeries computes the watermark gap, expands the rule over it,
// and inserts the resulting occurrences. It must run inside a transaction:
// the watermark advance and the bulk insert commit or roll back together,
// so the watermark never claims coverage for instants that weren't
// persisted.
func materializeSeries(tx *gorm.DB, s *models.JobSeries, horizon time.Time, maxOccurrences int) (*MaterializeResult, error) {
	if !s.Active {
		return &MaterializeResult{Watermark: s.LastGeneratedUntil}, nil
	}

	anchor, err := tz.Civil(s.StartDate, s.LocalStartTime, s.Timezone)
	if err != nil {
		return nil, err
	}
	anchorUTC := anchor.UTC()

	gapStart := anchorUTC
	if s.LastGeneratedUntil != nil && s.LastGeneratedUntil.After(gapStart) {
		gapStart = s.LastGeneratedUntil.UTC()
	}
	gapEnd := horizon.UTC()
	if s.UntilDate != nil {
		until, err := tz.DayStart(*s.UntilDate, s.Timezone)
		if err != nil {
			return nil, err
		}
		if until.Before(gapEnd) {
			gapEnd = until
		}
	}
	if !gapEnd.After(gapStart) {
		return &MaterializeResult{Watermark: s.LastGeneratedUntil}, nil
	}

	starts, truncated, err := recurrence.Expand(s.RRule, anchor, gapStart, gapEnd, maxOccurrences)
	if err != nil {
		return nil, err
	}

	newWatermark := gapEnd
	if truncated {
		// Coverage stops just past the last persisted instant; rule
		// instants are second-granular so nothing falls in between.
		newWatermark = starts[len(starts)-1].Add(time.Second).UTC()
	}

	if err := advanceWatermark(tx, s, newWatermark); err != nil {
		return nil, err
	}

	if len(starts) > 0 {
		rows, err := buildOccurrences(s, starts)
		if err != nil {
			return nil, err
		}
		if err := tx.Create(&rows).Error; err != nil {
			return nil, fmt.Errorf("series: insert occurrences for %s: %w", s.ID, err)
		}
	}

	return &MaterializeResult{
		Created:   len(starts),
		Truncated: truncated,
		Watermark: &newWatermark,
	}, nil
}

// advanceWatermark performs the optimistic compare-and-set on
// last_generated_until. Zero rows affected means another call advanced the
// watermark since this series row was read.
func advanceWatermark(tx *gorm.DB, s *models.JobSeries, newWatermark time.Time) error {
	q := tx.Model(&models.JobSeries{}).Where("id = ?", s.ID)
	if s.LastGeneratedUntil == nil {
		q = q.Where("last_generated_until IS NULL")
	} else {
		q = q.Where("last_generated_until = ?", *s.LastGeneratedUntil)
	}
	result := q.Update("last_generated_until", newWatermark)
	if result.Error != nil {
		return fmt.Errorf("series: advance watermark for %s: %w", s.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrConflict, s.ID)
	}
	s.LastGeneratedUntil = &newWatermark
	return nil
}

// buildOccurrences creates occurrence rows carrying the series' current
// template field values. EndAt is instant arithmetic on StartAt, so
// durations stay exact across DST transitions.
func buildOccurrences(s *models.JobSeries, starts []time.Time) ([]models.JobOccurrence, error) {
	duration := time.Duration(s.DurationMinutes) * time.Minute
	rows := make([]models.JobOccurrence, 0, len(starts))
	for _, start := range starts {
		id, err := GenerateOccurrenceID()
		if err != nil {
			return nil, err
		}
		rows = append(rows, models.JobOccurrence{
			ID:         id,
			SeriesID:   s.ID,
			TenantID:   s.TenantID,
			StartAt:    start,
			EndAt:      start.Add(duration),
			Status:     models.StatusScheduled,
			Priority:   s.Priority,
			AssignedTo: s.AssignedTo,
		})
	}
	return rows, nil
}
