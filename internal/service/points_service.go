package service

import (
	"context"
	"math"

	"habit-points/internal/model"
	"habit-points/internal/repository"
)

// PointsService derives a date's point total and progress from its tasks.
type PointsService struct {
	dateRepo *repository.DateRepository
	taskRepo *repository.TaskRepository
}

func NewPointsService(dateRepo *repository.DateRepository, taskRepo *repository.TaskRepository) *PointsService {
	return &PointsService{dateRepo: dateRepo, taskRepo: taskRepo}
}

// TotalPoints sums floor(points) * completed over the tasks. Points are
// stored as decimals but each completion rewards the truncated integer value.
func TotalPoints(tasks []model.Task) int {
	total := 0
	for _, task := range tasks {
		total += int(math.Floor(task.Points)) * task.Completed
	}
	return total
}

// Recompute rebuilds the date's cached point total from its current task set
// and persists it. Always a full recompute, never a delta: per-date task
// counts are small and this is the single reconciliation point.
func (s *PointsService) Recompute(ctx context.Context, dateID uint) (*model.Date, error) {
	date, err := s.dateRepo.GetByID(ctx, dateID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.taskRepo.ListForDate(ctx, dateID)
	if err != nil {
		return nil, err
	}

	date.CachedPoints = float64(TotalPoints(tasks))
	if err := s.dateRepo.Save(ctx, date); err != nil {
		return nil, err
	}
	return date, nil
}

// Progress reports how far the date is toward its daily target, in [0, 1].
// A date with no tasks has zero progress regardless of target.
func Progress(date *model.Date, tasks []model.Task) float64 {
	if len(tasks) == 0 || date.Target <= 0 {
		return 0
	}
	ratio := float64(TotalPoints(tasks)) / float64(date.Target)
	return math.Min(1, ratio)
}
