// Package series provides job series lifecycle operations and the
// occurrence materializer.
package series

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/fieldlineapp/fieldline/internal/models"
	"github.com/fieldlineapp/fieldline/internal/recurrence"
	"github.com/fieldlineapp/fieldline/internal/tz"
	"gorm.io/gorm"
)

var (
	// ErrNotFound reports a series id that does not exist for the tenant.
	ErrNotFound = errors.New("series: not found")

	// ErrConflict reports a concurrent materialization whose optimistic
	// watermark check failed even after the internal retry.
	ErrConflict = errors.New("series: concurrent materialization conflict")
)

// nowFunc returns the current time; overridden in tests.
var nowFunc = time.Now

// CreateOpts holds parameters for creating a new job series.
type CreateOpts struct {
	TenantID        string
	Title           string
	Description     string
	CustomerID      string
	ServiceCategory string
	Priority        int
	EstimatedCost   float64
	AssignedTo      string

	RRule           string // required; recurrence.OneOff for one-off jobs
	StartDate       string // YYYY-MM-DD
	LocalStartTime  string // HH:MM:SS
	DurationMinutes int
	Timezone        string // IANA zone name
	UntilDate       string // optional exclusive local-date bound
}

// ListFilters holds optional filters for listing a tenant's series.
type ListFilters struct {
	CustomerID string
	ActiveOnly bool
}

// generateID creates a random hex id with the given prefix.
func generateID(prefix string, n int) (string, error) {
	b := make([]byte, (n+1)/2)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("series: generate ID: %w", err)
	}
	return prefix + "-" + hex.EncodeToString(b)[:n], nil
}

// GenerateSeriesID creates a unique series ID in js-xxxxxx format.
func GenerateSeriesID() (string, error) {
	return generateID("js", 6)
}

// GenerateOccurrenceID creates a unique occurrence ID in oc-xxxxxxxxxxxx format.
func GenerateOccurrenceID() (string, error) {
	return generateID("oc", 12)
}

// validateOpts checks rule text, civil timing, and required fields without
// touching the store.
func (o CreateOpts) validate() error {
	if o.TenantID == "" {
		return fmt.Errorf("series: tenant is required")
	}
	if o.Title == "" {
		return fmt.Errorf("series: title is required")
	}
	if o.DurationMinutes <= 0 {
		return fmt.Errorf("series: duration must be positive, got %d", o.DurationMinutes)
	}
	if err := recurrence.Validate(o.RRule); err != nil {
		return err
	}
	if _, err := tz.Civil(o.StartDate, o.LocalStartTime, o.Timezone); err != nil {
		return err
	}
	if o.UntilDate != "" && !tz.ValidDate(o.UntilDate) {
		return fmt.Errorf("series: until date %q is not YYYY-MM-DD", o.UntilDate)
	}
	return nil
}

// Create creates a job series and synchronously materializes it to the
// given horizon. Exactly one series row is created whether the rule is
// recurring or the degenerate one-off; a one-off yields exactly one
// occurrence. Validation errors leave the store untouched.
func Create(db *gorm.DB, opts CreateOpts, horizon time.Time, maxOccurrences int) (*models.JobSeries, *MaterializeResult, error) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}

	id, err := GenerateSeriesID()
	if err != nil {
		return nil, nil, err
	}

	s := models.JobSeries{
		ID:              id,
		TenantID:        opts.TenantID,
		Title:           opts.Title,
		Description:     opts.Description,
		CustomerID:      opts.CustomerID,
		ServiceCategory: opts.ServiceCategory,
		Priority:        opts.Priority,
		EstimatedCost:   opts.EstimatedCost,
		AssignedTo:      opts.AssignedTo,
		RRule:           opts.RRule,
		StartDate:       opts.StartDate,
		LocalStartTime:  opts.LocalStartTime,
		DurationMinutes: opts.DurationMinutes,
		Timezone:        opts.Timezone,
		Active:          true,
	}
	if opts.UntilDate != "" {
		s.UntilDate = &opts.UntilDate
	}

	if err := db.Create(&s).Error; err != nil {
		return nil, nil, fmt.Errorf("series: create: %w", err)
	}

	res, err := Materialize(db, opts.TenantID, id, horizon, maxOccurrences)
	if err != nil {
		return nil, nil, err
	}
	return &s, res, nil
}

// Get retrieves a tenant's series by ID.
func Get(db *gorm.DB, tenantID, id string) (*models.JobSeries, error) {
	var s models.JobSeries
	err := db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("series: get %s: %w", id, err)
	}
	return &s, nil
}

// List returns a tenant's series matching the given filters, newest first.
func List(db *gorm.DB, tenantID string, filters ListFilters) ([]models.JobSeries, error) {
	q := db.Model(&models.JobSeries{}).Where("tenant_id = ?", tenantID)
	if filters.CustomerID != "" {
		q = q.Where("customer_id = ?", filters.CustomerID)
	}
	if filters.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	var out []models.JobSeries
	if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("series: list: %w", err)
	}
	return out, nil
}

// Delete removes a series and all of its occurrences.
func Delete(db *gorm.DB, tenantID, id string) error {
	s, err := Get(db, tenantID, id)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("series_id = ?", s.ID).Delete(&models.JobOccurrence{}).Error; err != nil {
			return fmt.Errorf("series: delete occurrences of %s: %w", id, err)
		}
		if err := tx.Delete(&models.JobSeries{}, "id = ?", s.ID).Error; err != nil {
			return fmt.Errorf("series: delete %s: %w", id, err)
		}
		return nil
	})
}
