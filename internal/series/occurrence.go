package series

import (
	"errors"
	"fmt"
	"time"

	"github.com/fieldlineapp/fieldline/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrOccurrenceNotFound reports an occurrence id that does not exist
	// for the tenant.
	ErrOccurrenceNotFound = errors.New("series: occurrence not found")

	// ErrInvalidTransition reports a status change the lifecycle does not
	// allow, including any change away from completed.
	ErrInvalidTransition = errors.New("series: invalid status transition")
)

// ValidOccurrenceTransitions maps each occurrence status to its valid next
// statuses.
var ValidOccurrenceTransitions = map[string][]string{
	models.StatusScheduled:  {models.StatusInProgress, models.StatusCancelled},
	models.StatusInProgress: {models.StatusCompleted, models.StatusCancelled},
	models.StatusCancelled:  {models.StatusScheduled},
	models.StatusCompleted:  {},
}

func isValidTransition(from, to string) bool {
	for _, next := range ValidOccurrenceTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// GetOccurrence retrieves a tenant's occurrence by ID.
func GetOccurrence(db *gorm.DB, tenantID, id string) (*models.JobOccurrence, error) {
	var occ models.JobOccurrence
	err := db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&occ).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOccurrenceNotFound, id)
		}
		return nil, fmt.Errorf("series: get occurrence %s: %w", id, err)
	}
	return &occ, nil
}

// StatusOpts holds optional completion details recorded with a transition.
type StatusOpts struct {
	ActualCost      *float64
	CompletionNotes string
}

// SetOccurrenceStatus transitions one occurrence's status, validating the
// transition against ValidOccurrenceTransitions.
func SetOccurrenceStatus(db *gorm.DB, tenantID, id, status string, opts StatusOpts) (*models.JobOccurrence, error) {
	occ, err := GetOccurrence(db, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !isValidTransition(occ.Status, status) {
		return nil, fmt.Errorf("%w: %q -> %q for %s", ErrInvalidTransition, occ.Status, status, id)
	}

	updates := map[string]interface{}{"status": status}
	if opts.ActualCost != nil {
		updates["actual_cost"] = *opts.ActualCost
	}
	if opts.CompletionNotes != "" {
		updates["completion_notes"] = opts.CompletionNotes
	}
	if err := db.Model(occ).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("series: set status of %s: %w", id, err)
	}
	occ.Status = status
	return occ, nil
}

// MoveOccurrence manually reschedules a single occurrence to a new start
// instant, preserving its duration. This is an explicit user override of
// one instance's timing, decoupled from the series rule; the watermark and
// sibling occurrences are unaffected.
func MoveOccurrence(db *gorm.DB, tenantID, id string, newStart time.Time) (*models.JobOccurrence, error) {
	occ, err := GetOccurrence(db, tenantID, id)
	if err != nil {
		return nil, err
	}
	if occ.Status == models.StatusCompleted {
		return nil, fmt.Errorf("series: cannot move completed occurrence %s", id)
	}

	duration := occ.EndAt.Sub(occ.StartAt)
	start := newStart.UTC()
	end := start.Add(duration)
	updates := map[string]interface{}{"start_at": start, "end_at": end}
	if err := db.Model(occ).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("series: move %s: %w", id, err)
	}
	occ.StartAt = start
	occ.EndAt = end
	return occ, nil
}

// OverrideOpts holds per-occurrence display overrides. Nil fields are left
// unchanged.
type OverrideOpts struct {
	Title         *string
	Description   *string
	EstimatedCost *float64
}

// SetOccurrenceOverrides records display overrides on one occurrence; they
// take precedence over the series template when rendering.
func SetOccurrenceOverrides(db *gorm.DB, tenantID, id string, opts OverrideOpts) (*models.JobOccurrence, error) {
	occ, err := GetOccurrence(db, tenantID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if opts.Title != nil {
		updates["override_title"] = *opts.Title
	}
	if opts.Description != nil {
		updates["override_description"] = *opts.Description
	}
	if opts.EstimatedCost != nil {
		updates["override_estimated_cost"] = *opts.EstimatedCost
	}
	if len(updates) == 0 {
		return occ, nil
	}
	if err := db.Model(occ).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("series: override %s: %w", id, err)
	}
	if opts.Title != nil {
		occ.OverrideTitle = opts.Title
	}
	if opts.Description != nil {
		occ.OverrideDescription = opts.Description
	}
	if opts.EstimatedCost != nil {
		occ.OverrideEstimatedCost = opts.EstimatedCost
	}
	return occ, nil
}
