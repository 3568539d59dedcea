package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"habit-points/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// ============================================================
// Date resolver
// ============================================================

func TestResolveCreatesDate(t *testing.T) {
	db := newTestDB(t)
	repo := NewDateRepository(db, 5)
	ctx := context.Background()

	date, err := repo.Resolve(ctx, time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if date.ID == 0 {
		t.Fatal("expected persisted date with non-zero ID")
	}
	if date.Target != 5 {
		t.Fatalf("expected default target 5, got %d", date.Target)
	}
	if date.CachedPoints != 0 {
		t.Fatalf("expected zero cached points, got %f", date.CachedPoints)
	}
}

func TestResolveIdempotentAcrossTimesOfDay(t *testing.T) {
	db := newTestDB(t)
	repo := NewDateRepository(db, 5)
	ctx := context.Background()

	morning := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	night := time.Date(2025, 6, 1, 23, 45, 0, 0, time.UTC)

	first, err := repo.Resolve(ctx, morning)
	if err != nil {
		t.Fatal(err)
	}
	second, err := repo.Resolve(ctx, night)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same date record, got %d and %d", first.ID, second.ID)
	}

	var count int64
	db.Model(&model.Date{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one date row, got %d", count)
	}
}

func TestResolveDistinctDays(t *testing.T) {
	db := newTestDB(t)
	repo := NewDateRepository(db, 5)
	ctx := context.Background()

	first, err := repo.Resolve(ctx, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	second, err := repo.Resolve(ctx, time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Fatal("different days should resolve to different records")
	}
}

// ============================================================
// Task repository
// ============================================================

func seedDate(t *testing.T, db *gorm.DB, day time.Time) *model.Date {
	t.Helper()
	repo := NewDateRepository(db, 5)
	date, err := repo.Resolve(context.Background(), day)
	if err != nil {
		t.Fatal(err)
	}
	return date
}

func TestListForDateOrdersCriticalFirst(t *testing.T) {
	db := newTestDB(t)
	taskRepo := NewTaskRepository(db)
	ctx := context.Background()
	date := seedDate(t, db, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	tasks := []model.Task{
		{DateID: &date.ID, Title: "plain A", Target: 1, Max: 1, Position: 0},
		{DateID: &date.ID, Title: "urgent", Target: 1, Max: 1, Position: 1, Critical: true},
		{DateID: &date.ID, Title: "plain B", Target: 1, Max: 1, Position: 2},
	}
	for i := range tasks {
		if err := taskRepo.Create(ctx, &tasks[i]); err != nil {
			t.Fatal(err)
		}
	}

	listed, err := taskRepo.ListForDate(ctx, date.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(listed))
	}
	if listed[0].Title != "urgent" {
		t.Fatalf("expected critical task first, got %q", listed[0].Title)
	}
	if listed[1].Title != "plain A" || listed[2].Title != "plain B" {
		t.Fatalf("expected position order after critical, got %q, %q", listed[1].Title, listed[2].Title)
	}
}

func TestListForDateExcludesTemplates(t *testing.T) {
	db := newTestDB(t)
	taskRepo := NewTaskRepository(db)
	ctx := context.Background()
	date := seedDate(t, db, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	concrete := model.Task{DateID: &date.ID, Title: "on date", Target: 1, Max: 1}
	template := model.Task{Title: "reusable", Target: 1, Max: 1, Template: true}
	if err := taskRepo.Create(ctx, &concrete); err != nil {
		t.Fatal(err)
	}
	if err := taskRepo.Create(ctx, &template); err != nil {
		t.Fatal(err)
	}

	listed, err := taskRepo.ListForDate(ctx, date.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].Title != "on date" {
		t.Fatalf("unexpected date list: %+v", listed)
	}

	templates, err := taskRepo.ListTemplates(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(templates) != 1 || templates[0].Title != "reusable" {
		t.Fatalf("unexpected template list: %+v", templates)
	}
}

func TestListTemplatesRoutineFilter(t *testing.T) {
	db := newTestDB(t)
	taskRepo := NewTaskRepository(db)
	ctx := context.Background()

	routine := model.Task{Title: "routine", Target: 1, Max: 1, Template: true, Routine: true}
	oneOff := model.Task{Title: "one-off", Target: 1, Max: 1, Template: true}
	if err := taskRepo.Create(ctx, &routine); err != nil {
		t.Fatal(err)
	}
	if err := taskRepo.Create(ctx, &oneOff); err != nil {
		t.Fatal(err)
	}

	routinesOnly := true
	templates, err := taskRepo.ListTemplates(ctx, &routinesOnly)
	if err != nil {
		t.Fatal(err)
	}
	if len(templates) != 1 || templates[0].Title != "routine" {
		t.Fatalf("routine filter failed: %+v", templates)
	}
}

func TestDeleteRemovesCompletionRows(t *testing.T) {
	db := newTestDB(t)
	taskRepo := NewTaskRepository(db)
	completionRepo := NewCompletionRepository(db)
	ctx := context.Background()
	date := seedDate(t, db, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	task := model.Task{DateID: &date.ID, Title: "with trail", Target: 1, Max: 3}
	if err := taskRepo.Create(ctx, &task); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := completionRepo.Record(ctx, task.ID, date.ID, time.Now()); err != nil {
			t.Fatal(err)
		}
	}

	if err := taskRepo.Delete(ctx, task.ID); err != nil {
		t.Fatal(err)
	}

	var count int64
	db.Model(&model.Completion{}).Where("task_id = ?", task.ID).Count(&count)
	if count != 0 {
		t.Fatalf("expected audit rows deleted with the task, found %d", count)
	}
}

func TestRemoveLatestCompletionIsOrdered(t *testing.T) {
	db := newTestDB(t)
	taskRepo := NewTaskRepository(db)
	completionRepo := NewCompletionRepository(db)
	ctx := context.Background()
	date := seedDate(t, db, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	task := model.Task{DateID: &date.ID, Title: "trail", Target: 1, Max: 3}
	if err := taskRepo.Create(ctx, &task); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := completionRepo.Record(ctx, task.ID, date.ID, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatal(err)
		}
	}

	if err := completionRepo.RemoveLatest(ctx, task.ID); err != nil {
		t.Fatal(err)
	}

	remaining, err := completionRepo.ListForTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(remaining))
	}
	latest := remaining[len(remaining)-1].Timestamp
	if !latest.Equal(base.Add(time.Hour)) {
		t.Fatalf("expected newest row removed, remaining latest is %v", latest)
	}
}

func TestRemoveLatestCompletionNoRowsIsNoop(t *testing.T) {
	db := newTestDB(t)
	completionRepo := NewCompletionRepository(db)
	if err := completionRepo.RemoveLatest(context.Background(), 42); err != nil {
		t.Fatalf("expected silent no-op on empty trail, got %v", err)
	}
}

func TestCountsTrackSiblings(t *testing.T) {
	db := newTestDB(t)
	taskRepo := NewTaskRepository(db)
	ctx := context.Background()
	date := seedDate(t, db, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	for i := 0; i < 3; i++ {
		task := model.Task{DateID: &date.ID, Title: "task", Target: 1, Max: 1, Position: i}
		if err := taskRepo.Create(ctx, &task); err != nil {
			t.Fatal(err)
		}
	}
	template := model.Task{Title: "tpl", Target: 1, Max: 1, Template: true}
	if err := taskRepo.Create(ctx, &template); err != nil {
		t.Fatal(err)
	}

	dateCount, err := taskRepo.CountForDate(ctx, date.ID)
	if err != nil {
		t.Fatal(err)
	}
	if dateCount != 3 {
		t.Fatalf("expected 3 date tasks, got %d", dateCount)
	}

	tplCount, err := taskRepo.CountTemplates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if tplCount != 1 {
		t.Fatalf("expected 1 template, got %d", tplCount)
	}
}
