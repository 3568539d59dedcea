package model

import "time"

// Date represents one calendar day of tracking.
type Date struct {
	ID           uint      `gorm:"primaryKey"`
	Day          time.Time `gorm:"uniqueIndex"`
	Target       int
	CachedPoints float64 `gorm:"default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Tasks        []Task       `gorm:"foreignKey:DateID"`
	Completions  []Completion `gorm:"foreignKey:DateID"`
}

// NormalizeDay truncates t to midnight UTC of its wall-clock date, so any
// time-of-day in any zone with the same calendar date maps to the same Day value.
func NormalizeDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
