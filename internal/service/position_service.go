package service

import (
	"context"

	"habit-points/internal/model"
	"habit-points/internal/repository"
)

// PositionService keeps sibling positions dense and zero-based within a
// date's task list and within the template collection.
type PositionService struct {
	taskRepo *repository.TaskRepository
}

func NewPositionService(taskRepo *repository.TaskRepository) *PositionService {
	return &PositionService{taskRepo: taskRepo}
}

// Reorder moves the task at fromIndex to toIndex within the date's visible
// ordering, then rewrites every position to its new index. Out-of-range
// indices clamp to the valid range.
func (s *PositionService) Reorder(ctx context.Context, dateID uint, fromIndex, toIndex int) ([]model.Task, error) {
	tasks, err := s.taskRepo.ListForDate(ctx, dateID)
	if err != nil {
		return nil, err
	}
	return s.reorder(ctx, tasks, fromIndex, toIndex)
}

// ReorderTemplates is Reorder over the template collection.
func (s *PositionService) ReorderTemplates(ctx context.Context, fromIndex, toIndex int) ([]model.Task, error) {
	tasks, err := s.taskRepo.ListTemplates(ctx, nil)
	if err != nil {
		return nil, err
	}
	return s.reorder(ctx, tasks, fromIndex, toIndex)
}

func (s *PositionService) reorder(ctx context.Context, tasks []model.Task, fromIndex, toIndex int) ([]model.Task, error) {
	if len(tasks) == 0 {
		return tasks, nil
	}

	fromIndex = clampIndex(fromIndex, len(tasks))
	toIndex = clampIndex(toIndex, len(tasks))

	moved := moveItem(tasks, fromIndex, toIndex)
	if err := s.rewritePositions(ctx, moved); err != nil {
		return nil, err
	}
	return moved, nil
}

// Resequence rewrites positions 0..N-1 in the current visible order without
// moving anything. Called after deletes so later appends do not collide.
func (s *PositionService) Resequence(ctx context.Context, dateID uint) error {
	tasks, err := s.taskRepo.ListForDate(ctx, dateID)
	if err != nil {
		return err
	}
	return s.rewritePositions(ctx, tasks)
}

// ResequenceTemplates is Resequence over the template collection.
func (s *PositionService) ResequenceTemplates(ctx context.Context) error {
	tasks, err := s.taskRepo.ListTemplates(ctx, nil)
	if err != nil {
		return err
	}
	return s.rewritePositions(ctx, tasks)
}

func (s *PositionService) rewritePositions(ctx context.Context, tasks []model.Task) error {
	changed := make([]model.Task, 0, len(tasks))
	for i := range tasks {
		if tasks[i].Position != i {
			tasks[i].Position = i
			changed = append(changed, tasks[i])
		}
	}
	if err := s.taskRepo.SaveAll(ctx, changed); err != nil {
		return err
	}
	return nil
}

func clampIndex(i, length int) int {
	if i < 0 {
		return 0
	}
	if i >= length {
		return length - 1
	}
	return i
}

// moveItem removes the element at from and reinserts it at to.
func moveItem(tasks []model.Task, from, to int) []model.Task {
	result := make([]model.Task, 0, len(tasks))
	result = append(result, tasks[:from]...)
	result = append(result, tasks[from+1:]...)

	result = append(result, model.Task{})
	copy(result[to+1:], result[to:])
	result[to] = tasks[from]
	return result
}
