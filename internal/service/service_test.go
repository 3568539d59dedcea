package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"habit-points/internal/model"
	"habit-points/internal/repository"
)

type testEnv struct {
	db             *gorm.DB
	dateRepo       *repository.DateRepository
	taskRepo       *repository.TaskRepository
	completionRepo *repository.CompletionRepository
	points         *PointsService
	positions      *PositionService
	tasks          *TaskService
	completions    *CompletionService
	templates      *TemplateService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	dateRepo := repository.NewDateRepository(db, 5)
	taskRepo := repository.NewTaskRepository(db)
	completionRepo := repository.NewCompletionRepository(db)
	points := NewPointsService(dateRepo, taskRepo)
	positions := NewPositionService(taskRepo)

	return &testEnv{
		db:             db,
		dateRepo:       dateRepo,
		taskRepo:       taskRepo,
		completionRepo: completionRepo,
		points:         points,
		positions:      positions,
		tasks:          NewTaskService(taskRepo, dateRepo, points, positions, 10),
		completions:    NewCompletionService(taskRepo, completionRepo, points),
		templates:      NewTemplateService(taskRepo, points),
	}
}

func (e *testEnv) resolveDay(t *testing.T, day string) *model.Date {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", day)
	if err != nil {
		t.Fatal(err)
	}
	date, err := e.dateRepo.Resolve(context.Background(), parsed)
	if err != nil {
		t.Fatal(err)
	}
	return date
}

func (e *testEnv) createTask(t *testing.T, input TaskInput) *model.Task {
	t.Helper()
	task, err := e.tasks.Create(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}
	return task
}

func (e *testEnv) reloadDate(t *testing.T, id uint) *model.Date {
	t.Helper()
	date, err := e.dateRepo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return date
}

func (e *testEnv) reloadTask(t *testing.T, id uint) *model.Task {
	t.Helper()
	task, err := e.taskRepo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return task
}
