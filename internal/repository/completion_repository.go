package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"habit-points/internal/model"
)

// CompletionRepository keeps the per-completion audit trail.
type CompletionRepository struct {
	db *gorm.DB
}

func NewCompletionRepository(db *gorm.DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

// Record appends an audit row for a single completion event.
func (r *CompletionRepository) Record(ctx context.Context, taskID, dateID uint, at time.Time) error {
	completion := model.Completion{TaskID: taskID, DateID: dateID, Timestamp: at}
	if err := r.db.WithContext(ctx).Create(&completion).Error; err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return nil
}

// RemoveLatest deletes the most recent audit row for the task, matching a
// single decrement step. Missing rows are not an error: the trail is optional.
func (r *CompletionRepository) RemoveLatest(ctx context.Context, taskID uint) error {
	var completion model.Completion
	db := r.db.WithContext(ctx)
	err := db.Where("task_id = ?", taskID).
		Order("timestamp DESC, id DESC").
		First(&completion).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find latest completion: %w", err)
	}
	if err := db.Delete(&completion).Error; err != nil {
		return fmt.Errorf("remove completion: %w", err)
	}
	return nil
}

func (r *CompletionRepository) ListForTask(ctx context.Context, taskID uint) ([]model.Completion, error) {
	var completions []model.Completion
	if err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("timestamp ASC").
		Find(&completions).Error; err != nil {
		return nil, err
	}
	return completions, nil
}
