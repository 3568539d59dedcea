package service

import (
	"context"
	"errors"

	"habit-points/internal/model"
	"habit-points/internal/repository"
)

// ErrDuplicateTemplate is returned when a template with the same title
// already exists. Advisory de-duplication, not a store constraint.
var ErrDuplicateTemplate = errors.New("template with this title already exists")

// TemplateService copies tasks into reusable templates and materializes
// templates onto concrete dates.
type TemplateService struct {
	taskRepo *repository.TaskRepository
	points   *PointsService
}

func NewTemplateService(taskRepo *repository.TaskRepository, points *PointsService) *TemplateService {
	return &TemplateService{taskRepo: taskRepo, points: points}
}

func (s *TemplateService) List(ctx context.Context, routinesOnly *bool) ([]model.Task, error) {
	return s.taskRepo.ListTemplates(ctx, routinesOnly)
}

// CopyAsTemplate turns a date-bound task into a reusable template with
// completions reset. When a template with the same title already exists the
// operation is a no-op and reports ErrDuplicateTemplate.
func (s *TemplateService) CopyAsTemplate(ctx context.Context, taskID uint) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	exists, err := s.taskRepo.TemplateExistsByTitle(ctx, task.Title)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateTemplate
	}

	position, err := s.taskRepo.CountTemplates(ctx)
	if err != nil {
		return nil, err
	}

	template := model.Task{
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
		Template: true,
		Position: position,
	}
	if err := s.taskRepo.Create(ctx, &template); err != nil {
		return nil, err
	}
	return &template, nil
}

// Materialize produces a date-bound instance of a template. The template
// itself is never mutated; the instance keeps the template's position and
// records its ID for provenance.
func (s *TemplateService) Materialize(ctx context.Context, templateID uint, date *model.Date) (*model.Task, error) {
	template, err := s.taskRepo.FindByID(ctx, templateID)
	if err != nil {
		return nil, err
	}

	instance := model.Task{
		DateID:   &date.ID,
		SourceID: &template.ID,
		Title:    template.Title,
		Points:   template.Points,
		Target:   template.Target,
		Max:      template.Max,
		Reward:   template.Reward,
		Bonus:    template.Bonus,
		Scalar:   template.Scalar,
		Routine:  template.Routine,
		Optional: template.Optional,
		Critical: template.Critical,
		Template: false,
		Position: template.Position,
	}
	if err := s.taskRepo.Create(ctx, &instance); err != nil {
		return nil, err
	}

	if _, err := s.points.Recompute(ctx, date.ID); err != nil {
		return nil, err
	}
	return &instance, nil
}

// ApplyTemplates materializes every known template onto the date, skipping
// templates that already have an instance there. Not transactional across
// templates: the first error is returned and the call is safely retryable.
func (s *TemplateService) ApplyTemplates(ctx context.Context, date *model.Date, routinesOnly bool) (int, error) {
	var filter *bool
	if routinesOnly {
		filter = &routinesOnly
	}

	templates, err := s.taskRepo.ListTemplates(ctx, filter)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, template := range templates {
		exists, err := s.taskRepo.InstanceExists(ctx, date.ID, template.ID)
		if err != nil {
			return applied, err
		}
		if exists {
			continue
		}
		if _, err := s.Materialize(ctx, template.ID, date); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}
