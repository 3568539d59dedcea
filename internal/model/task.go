package model

import "time"

// Task is either a concrete task bound to a Date, or a reusable template
// (Template == true, DateID == nil).
type Task struct {
	ID        uint  `gorm:"primaryKey"`
	DateID    *uint `gorm:"index"`
	SourceID  *uint `gorm:"index"` // template this instance was materialized from, provenance only
	Title     string
	Points    float64
	Target    int `gorm:"default:1"`
	Max       int
	Completed int
	Reward    float64
	Bonus     float64
	Scalar    float64 `gorm:"default:1"`
	Routine   bool    `gorm:"default:false"`
	Optional  bool    `gorm:"default:false"`
	Critical  bool    `gorm:"default:false"`
	Template  bool    `gorm:"default:false"`
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTemplate reports whether the task belongs to the template collection
// rather than to a concrete date.
func (t *Task) IsTemplate() bool {
	return t.Template || t.DateID == nil
}

// Clamp enforces target >= 1, max >= target and 0 <= completed <= max.
// A max below target is raised, never rejected.
func (t *Task) Clamp() {
	if t.Target < 1 {
		t.Target = 1
	}
	if t.Max < t.Target {
		t.Max = t.Target
	}
	if t.Completed < 0 {
		t.Completed = 0
	}
	if t.Completed > t.Max {
		t.Completed = t.Max
	}
}
