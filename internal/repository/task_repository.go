package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"habit-points/internal/model"
)

// siblingOrder is the visible ordering inside any task collection:
// critical tasks first, then by position.
const siblingOrder = "critical DESC, position ASC"

// TaskRepository handles CRUD for tasks and templates.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// ListForDate returns all concrete (non-template) tasks bound to the date,
// in visible order.
func (r *TaskRepository) ListForDate(ctx context.Context, dateID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("date_id = ? AND template = ?", dateID, false).
		Order(siblingOrder).
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListTemplates returns the template collection, optionally filtered to
// routines only. A task counts as a template when flagged so or when it is
// not bound to any date.
func (r *TaskRepository) ListTemplates(ctx context.Context, routinesOnly *bool) ([]model.Task, error) {
	query := r.db.WithContext(ctx).Where("template = ? OR date_id IS NULL", true)
	if routinesOnly != nil {
		query = query.Where("routine = ?", *routinesOnly)
	}

	var tasks []model.Task
	if err := query.Order(siblingOrder).Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).First(&task, taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) Save(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// SaveAll persists a batch of tasks in one transaction, used for position rewrites.
func (r *TaskRepository) SaveAll(ctx context.Context, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range tasks {
			if err := tx.Save(&tasks[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save tasks: %w", err)
	}
	return nil
}

// Delete removes a task together with its completion audit rows.
func (r *TaskRepository) Delete(ctx context.Context, taskID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&model.Completion{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Task{}, taskID).Error
	})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// CountForDate returns the number of concrete tasks on the date, which is
// also the append position for the next task.
func (r *TaskRepository) CountForDate(ctx context.Context, dateID uint) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("date_id = ? AND template = ?", dateID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return int(count), nil
}

// CountTemplates returns the size of the template collection.
func (r *TaskRepository) CountTemplates(ctx context.Context) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("template = ? OR date_id IS NULL", true).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count templates: %w", err)
	}
	return int(count), nil
}

// TemplateExistsByTitle reports whether a template with the given title is
// already present. Advisory only, the store does not enforce title uniqueness.
func (r *TaskRepository) TemplateExistsByTitle(ctx context.Context, title string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("(template = ? OR date_id IS NULL) AND title = ?", true, title).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check template title: %w", err)
	}
	return count > 0, nil
}

// InstanceExists reports whether the date already carries an instance
// materialized from the given template.
func (r *TaskRepository) InstanceExists(ctx context.Context, dateID, sourceID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("date_id = ? AND source_id = ?", dateID, sourceID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check instance: %w", err)
	}
	return count > 0, nil
}
