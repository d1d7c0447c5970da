package models

import "time"

// Customer is the minimal customer record the scheduling core needs for
// calendar display. Full customer CRUD lives outside this core.
type Customer struct {
	ID       string `gorm:"primaryKey;size:32"`
	TenantID string `gorm:"size:32;not null;index"`
	Name     string `gorm:"not null"`
	Email    string `gorm:"size:128"`
	Phone    string `gorm:"size:32"`
	Address  string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
