package models

import "time"

// JobOccurrence is one concrete calendar instance of a series. StartAt/EndAt
// are UTC instants and are authoritative for calendar placement; local times
// exist only on the parent series template.
type JobOccurrence struct {
	ID       string `gorm:"primaryKey;size:48"`
	SeriesID string `gorm:"size:32;not null;index"`
	TenantID string `gorm:"size:32;not null;index:idx_occ_tenant_start"`

	StartAt time.Time `gorm:"not null;index:idx_occ_tenant_start"`
	EndAt   time.Time `gorm:"not null"`

	Status     string `gorm:"size:16;default:scheduled;index"`
	Priority   int    `gorm:"default:2"`
	AssignedTo string `gorm:"size:64"`

	ActualCost      *float64
	CompletionNotes string `gorm:"type:text"`

	// Per-occurrence overrides of the series template; nil means inherit.
	OverrideTitle         *string
	OverrideDescription   *string `gorm:"type:text"`
	OverrideEstimatedCost *float64

	CreatedAt time.Time
	UpdatedAt time.Time

	Series *JobSeries `gorm:"foreignKey:SeriesID;constraint:OnDelete:CASCADE"`
}
