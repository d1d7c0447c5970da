package models

import "time"

// JobSeries is the recurring (or one-off) job template. Every scheduled job
// owns exactly one series row; a one-off job is a series with a degenerate
// single-occurrence rule.
type JobSeries struct {
	ID       string `gorm:"primaryKey;size:32"`
	TenantID string `gorm:"size:32;not null;index"`

	// Template fields inherited by occurrences unless overridden.
	Title           string `gorm:"not null"`
	Description     string `gorm:"type:text"`
	CustomerID      string `gorm:"size:32;index"`
	ServiceCategory string `gorm:"size:64"`
	Priority        int    `gorm:"default:2"`
	EstimatedCost   float64
	AssignedTo      string `gorm:"size:64"`

	// Recurrence definition. StartDate/LocalStartTime are civil values in
	// Timezone; UntilDate is an exclusive local-date bound on generation.
	RRule           string  `gorm:"column:rrule;not null"`
	StartDate       string  `gorm:"size:10;not null"` // YYYY-MM-DD
	LocalStartTime  string  `gorm:"size:8;not null"`  // HH:MM:SS
	DurationMinutes int     `gorm:"not null"`
	Timezone        string  `gorm:"size:64;not null"`
	UntilDate       *string `gorm:"size:10"`

	// LastGeneratedUntil is the materialization watermark: every rule
	// instant strictly before it has a persisted occurrence row. Nil means
	// nothing has been materialized yet. Written only by the materializer.
	LastGeneratedUntil *time.Time `gorm:"index"`

	Active    bool `gorm:"default:true;index"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Customer    *Customer       `gorm:"foreignKey:CustomerID"`
	Occurrences []JobOccurrence `gorm:"foreignKey:SeriesID"`
}

// Occurrence status values.
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)
