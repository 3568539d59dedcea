package model

import "time"

// Completion is a timestamped audit record of a single completion event.
// Point totals derive from Task.Completed, not from these rows.
type Completion struct {
	ID        uint `gorm:"primaryKey"`
	TaskID    uint `gorm:"index"`
	DateID    uint `gorm:"index"`
	Timestamp time.Time
}
