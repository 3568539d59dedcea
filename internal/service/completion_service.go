package service

import (
	"context"
	"time"

	"habit-points/internal/model"
	"habit-points/internal/repository"
)

// TaskState describes where a task sits relative to its target and cap.
type TaskState int

const (
	StateNotStarted TaskState = iota
	StateInProgress
	StateTargetMet
	StateAtMax
)

func (s TaskState) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateInProgress:
		return "in progress"
	case StateTargetMet:
		return "target met"
	case StateAtMax:
		return "at max"
	default:
		return "unknown"
	}
}

// State classifies a task by its completion count.
func State(task *model.Task) TaskState {
	switch {
	case task.Completed >= task.Max:
		return StateAtMax
	case task.Completed >= task.Target:
		return StateTargetMet
	case task.Completed > 0:
		return StateInProgress
	default:
		return StateNotStarted
	}
}

// CompletionService moves a task's completion count within bounds and keeps
// the owning date's cached total in sync.
type CompletionService struct {
	taskRepo       *repository.TaskRepository
	completionRepo *repository.CompletionRepository
	points         *PointsService
}

func NewCompletionService(taskRepo *repository.TaskRepository, completionRepo *repository.CompletionRepository, points *PointsService) *CompletionService {
	return &CompletionService{taskRepo: taskRepo, completionRepo: completionRepo, points: points}
}

// Increment adds one completion. At max it is a silent no-op, not an error.
// Returns the updated task and, when the task is date-bound, the recomputed date.
func (s *CompletionService) Increment(ctx context.Context, taskID uint, at time.Time) (*model.Task, *model.Date, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}

	// Templates carry no progress; completions exist only on date-bound tasks.
	if task.IsTemplate() || task.Completed >= task.Max {
		return task, nil, nil
	}

	task.Completed++
	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, nil, err
	}

	if err := s.completionRepo.Record(ctx, task.ID, *task.DateID, at); err != nil {
		return nil, nil, err
	}

	date, err := s.points.Recompute(ctx, *task.DateID)
	if err != nil {
		return nil, nil, err
	}
	return task, date, nil
}

// Decrement removes one completion. At zero it is a silent no-op.
func (s *CompletionService) Decrement(ctx context.Context, taskID uint) (*model.Task, *model.Date, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}

	if task.IsTemplate() || task.Completed <= 0 {
		return task, nil, nil
	}

	task.Completed--
	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, nil, err
	}

	if err := s.completionRepo.RemoveLatest(ctx, task.ID); err != nil {
		return nil, nil, err
	}

	date, err := s.points.Recompute(ctx, *task.DateID)
	if err != nil {
		return nil, nil, err
	}
	return task, date, nil
}
