package service

import (
	"context"
	"fmt"
	"time"

	"habit-points/internal/model"
	"habit-points/internal/repository"
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title    string
	Points   float64
	Target   int
	Max      int // 0 means use the configured default ceiling
	Reward   float64
	Routine  bool
	Optional bool
	Critical bool
	Template bool
	Date     *model.Date // nil binds the task to today unless Template is set
}

// TaskPatch is a typed partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title    *string
	Points   *float64
	Target   *int
	Reward   *float64
	Max      *int
	Routine  *bool
	Optional *bool
	Critical *bool
}

// TaskService wraps task lifecycle logic: creation, partial updates,
// deletion, duplication, and the demo seeding hook.
type TaskService struct {
	taskRepo   *repository.TaskRepository
	dateRepo   *repository.DateRepository
	points     *PointsService
	positions  *PositionService
	defaultMax int
}

func NewTaskService(taskRepo *repository.TaskRepository, dateRepo *repository.DateRepository, points *PointsService, positions *PositionService, defaultMax int) *TaskService {
	return &TaskService{
		taskRepo:   taskRepo,
		dateRepo:   dateRepo,
		points:     points,
		positions:  positions,
		defaultMax: defaultMax,
	}
}

// Create builds a new task from input. Non-template tasks bind to the given
// date, or to today when none is given; the position is appended at the end
// of the sibling collection.
func (s *TaskService) Create(ctx context.Context, input TaskInput) (*model.Task, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("title is required")
	}

	task := model.Task{
		Title:    input.Title,
		Points:   input.Points,
		Target:   input.Target,
		Max:      input.Max,
		Reward:   input.Reward,
		Scalar:   1,
		Routine:  input.Routine,
		Optional: input.Optional,
		Critical: input.Critical,
		Template: input.Template,
	}
	if task.Max == 0 {
		task.Max = s.defaultMax
	}
	task.Clamp()

	if task.Template {
		position, err := s.taskRepo.CountTemplates(ctx)
		if err != nil {
			return nil, err
		}
		task.Position = position
		if err := s.taskRepo.Create(ctx, &task); err != nil {
			return nil, err
		}
		return &task, nil
	}

	date := input.Date
	if date == nil {
		resolved, err := s.dateRepo.Resolve(ctx, time.Now())
		if err != nil {
			return nil, err
		}
		date = resolved
	}

	position, err := s.taskRepo.CountForDate(ctx, date.ID)
	if err != nil {
		return nil, err
	}
	task.DateID = &date.ID
	task.Position = position

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	if _, err := s.points.Recompute(ctx, date.ID); err != nil {
		return nil, err
	}
	return &task, nil
}

// Update applies a partial patch and re-clamps bounds: lowering max below
// target raises max instead of failing. The owning date is recomputed since
// points may have changed.
func (s *TaskService) Update(ctx context.Context, taskID uint, patch TaskPatch) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Points != nil {
		task.Points = *patch.Points
	}
	if patch.Target != nil {
		task.Target = *patch.Target
	}
	if patch.Reward != nil {
		task.Reward = *patch.Reward
	}
	if patch.Max != nil {
		task.Max = *patch.Max
	}
	if patch.Routine != nil {
		task.Routine = *patch.Routine
	}
	if patch.Optional != nil {
		task.Optional = *patch.Optional
	}
	if patch.Critical != nil {
		task.Critical = *patch.Critical
	}
	task.Clamp()

	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, err
	}

	if task.DateID != nil {
		if _, err := s.points.Recompute(ctx, *task.DateID); err != nil {
			return nil, err
		}
	}
	return task, nil
}

// Delete removes the task, re-densifies sibling positions and recomputes the
// owning date's total.
func (s *TaskService) Delete(ctx context.Context, taskID uint) error {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return err
	}

	if err := s.taskRepo.Delete(ctx, task.ID); err != nil {
		return err
	}

	if task.IsTemplate() {
		return s.positions.ResequenceTemplates(ctx)
	}

	if err := s.positions.Resequence(ctx, *task.DateID); err != nil {
		return err
	}
	_, err = s.points.Recompute(ctx, *task.DateID)
	return err
}

// Duplicate deep-copies a task with completions reset and the position
// appended at the end of the same sibling collection.
func (s *TaskService) Duplicate(ctx context.Context, taskID uint) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	copied := model.Task{
		DateID:   task.DateID,
		SourceID: task.SourceID,
		Title:    task.Title,
		Points:   task.Points,
		Target:   task.Target,
		Max:      task.Max,
		Reward:   task.Reward,
		Bonus:    task.Bonus,
		Scalar:   task.Scalar,
		Routine:  task.Routine,
		Optional: task.Optional,
		Critical: task.Critical,
		Template: task.Template,
	}

	if task.IsTemplate() {
		position, err := s.taskRepo.CountTemplates(ctx)
		if err != nil {
			return nil, err
		}
		copied.Position = position
	} else {
		position, err := s.taskRepo.CountForDate(ctx, *task.DateID)
		if err != nil {
			return nil, err
		}
		copied.Position = position
	}

	if err := s.taskRepo.Create(ctx, &copied); err != nil {
		return nil, err
	}
	return &copied, nil
}

func (s *TaskService) List(ctx context.Context, dateID uint) ([]model.Task, error) {
	return s.taskRepo.ListForDate(ctx, dateID)
}

func (s *TaskService) Get(ctx context.Context, taskID uint) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, taskID)
}

// EnsureDefaultTasks seeds a small starter set on a date that has no tasks
// yet. A first-run convenience, not a correctness requirement.
func (s *TaskService) EnsureDefaultTasks(ctx context.Context, date *model.Date) error {
	count, err := s.taskRepo.CountForDate(ctx, date.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := []TaskInput{
		{Title: "Drink water", Points: 1, Target: 8, Max: 8, Routine: true},
		{Title: "Exercise", Points: 3, Target: 1, Routine: true},
		{Title: "Read", Points: 2, Target: 1, Routine: true, Optional: true},
	}
	for _, input := range defaults {
		input.Date = date
		if _, err := s.Create(ctx, input); err != nil {
			return err
		}
	}
	return nil
}
