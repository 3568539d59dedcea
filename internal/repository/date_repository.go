package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"habit-points/internal/model"
)

// DateRepository resolves calendar days to Date records.
type DateRepository struct {
	db            *gorm.DB
	defaultTarget int
}

func NewDateRepository(db *gorm.DB, defaultTarget int) *DateRepository {
	return &DateRepository{db: db, defaultTarget: defaultTarget}
}

// Resolve maps a calendar day to its unique Date record, creating one on
// first access. Repeated calls with any time-of-day on the same calendar day
// return the same record.
func (r *DateRepository) Resolve(ctx context.Context, day time.Time) (*model.Date, error) {
	normalized := model.NormalizeDay(day)

	var date model.Date
	db := r.db.WithContext(ctx)
	err := db.Where("day = ?", normalized).First(&date).Error
	switch {
	case err == nil:
		return &date, nil
	case err == gorm.ErrRecordNotFound:
		date = model.Date{Day: normalized, Target: r.defaultTarget}
		if err := db.Create(&date).Error; err != nil {
			return nil, fmt.Errorf("create date: %w", err)
		}
		return &date, nil
	default:
		return nil, fmt.Errorf("find date: %w", err)
	}
}

func (r *DateRepository) GetByID(ctx context.Context, id uint) (*model.Date, error) {
	var date model.Date
	if err := r.db.WithContext(ctx).First(&date, id).Error; err != nil {
		return nil, err
	}
	return &date, nil
}

// Save persists the date record, used after cached points recomputation.
func (r *DateRepository) Save(ctx context.Context, date *model.Date) error {
	if err := r.db.WithContext(ctx).Save(date).Error; err != nil {
		return fmt.Errorf("save date: %w", err)
	}
	return nil
}
