package service

import (
	"context"
	"testing"
	"time"
)

func TestCreateDefaultsAndAppends(t *testing.T) {
	env := newTestEnv(t)
	date := env.resolveDay(t, "2025-06-01")

	first := env.createTask(t, TaskInput{Title: "Hydrate", Points: 1, Target: 3, Date: date})
	if first.Completed != 0 {
		t.Fatalf("new task completed = %d, want 0", first.Completed)
	}
	if first.Max != 10 {
		t.Fatalf("max = %d, want configured default 10", first.Max)
	}
	if first.Position != 0 {
		t.Fatalf("position = %d, want 0", first.Position)
	}
	if first.Scalar != 1 {
		t.Fatalf("scalar = %f, want default 1", first.Scalar)
	}

	second := env.createTask(t, TaskInput{Title: "Run", Points: 3, Target: 1, Date: date})
	if second.Position != 1 {
		t.Fatalf("second position = %d, want appended 1", second.Position)
	}
}

func TestCreateRequiresTitle(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.tasks.Create(context.Background(), TaskInput{Points: 1, Target: 1}); err == nil {
		t.Fatal("expected error for empty title")
	}
}

func TestCreateTemplateHasNoDate(t *testing.T) {
	env := newTestEnv(t)
	template := env.createTask(t, TaskInput{Title: "Routine", Points: 2, Target: 1, Template: true})
	if template.DateID != nil {
		t.Fatal("template must not bind to a date")
	}
	if !template.Template {
		t.Fatal("template flag lost")
	}
}

func TestCreateBindsToTodayWhenNoDateGiven(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, TaskInput{Title: "Implicit", Points: 1, Target: 1})
	if task.DateID == nil {
		t.Fatal("expected task bound to today")
	}

	today, err := env.dateRepo.Resolve(context.Background(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if *task.DateID != today.ID {
		t.Fatalf("bound to date %d, want today %d", *task.DateID, today.ID)
	}
}

func TestUpdateClampsMaxBelowTarget(t *testing.T) {
	env := newTestEnv(t)
	date := env.resolveDay(t, "2025-06-01")
	task := env.createTask(t, TaskInput{Title: "Laps", Points: 1, Target: 2, Max: 6, Date: date})

	lowMax := 1
	updated, err := env.tasks.Update(context.Background(), task.ID, TaskPatch{Max: &lowMax})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Max != updated.Target {
		t.Fatalf("max = %d, want clamped to target %d", updated.Max, updated.Target)
	}
}

func TestUpdateRaisingTargetDragsMax(t *testing.T) {
	env := newTestEnv(t)
	date := env.resolveDay(t, "2025-06-01")
	task := env.createTask(t, TaskInput{Title: "Laps", Points: 1, Target: 2, Max: 3, Date: date})

	bigTarget := 8
	updated, err := env.tasks.Update(context.Background(), task.ID, TaskPatch{Target: &bigTarget})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Target != 8 || updated.Max != 8 {
		t.Fatalf("target/max = %d/%d, want 8/8", updated.Target, updated.Max)
	}
}

func TestUpdatePointsTriggersRecompute(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	date := env.resolveDay(t, "2025-06-01")
	task := env.createTask(t, TaskInput{Title: "Focus", Points: 2, Target: 1, Date: date})

	if _, _, err := env.completions.Increment(ctx, task.ID, time.Now()); err != nil {
		t.Fatal(err)
	}
	if env.reloadDate(t, date.ID).CachedPoints != 2 {
		t.Fatal("precondition failed")
	}

	newPoints := 7.0
	if _, err := env.tasks.Update(ctx, task.ID, TaskPatch{Points: &newPoints}); err != nil {
		t.Fatal(err)
	}
	if got := env.reloadDate(t, date.ID).CachedPoints; got != 7 {
		t.Fatalf("cached points = %f, want 7 after points update", got)
	}
}

func TestUpdateLeavesUnpatchedFieldsAlone(t *testing.T) {
	env := newTestEnv(t)
	date := env.resolveDay(t, "2025-06-01")
	task := env.createTask(t, TaskInput{Title: "Original", Points: 2, Target: 3, Max: 6, Critical: true, Date: date})

	title := "Renamed"
	updated, err := env.tasks.Update(context.Background(), task.ID, TaskPatch{Title: &title})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Title != "Renamed" {
		t.Fatalf("title = %q", updated.Title)
	}
	if updated.Points != 2 || updated.Target != 3 || updated.Max != 6 || !updated.Critical {
		t.Fatalf("unpatched fields changed: %+v", updated)
	}
}

func TestDeleteRecomputesDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	date := env.resolveDay(t, "2025-06-01")

	keep := env.createTask(t, TaskInput{Title: "Keep", Points: 2, Target: 1, Date: date})
	drop := env.createTask(t, TaskInput{Title: "Drop", Points: 5, Target: 1, Date: date})

	if _, _, err := env.completions.Increment(ctx, keep.ID, time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, _, err := env.completions.Increment(ctx, drop.ID, time.Now()); err != nil {
		t.Fatal(err)
	}
	if env.reloadDate(t, date.ID).CachedPoints != 7 {
		t.Fatal("precondition failed")
	}

	if err := env.tasks.Delete(ctx, drop.ID); err != nil {
		t.Fatal(err)
	}
	if got := env.reloadDate(t, date.ID).CachedPoints; got != 2 {
		t.Fatalf("cached points = %f, want 2 after delete", got)
	}
}

func TestDuplicateResetsProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	date := env.resolveDay(t, "2025-06-01")

	task := env.createTask(t, TaskInput{Title: "Read", Points: 2, Target: 2, Max: 4, Critical: true, Date: date})
	for i := 0; i < 3; i++ {
		if _, _, err := env.completions.Increment(ctx, task.ID, time.Now()); err != nil {
			t.Fatal(err)
		}
	}

	copied, err := env.tasks.Duplicate(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if copied.Completed != 0 {
		t.Fatalf("duplicate completed = %d, want 0", copied.Completed)
	}
	if copied.Title != task.Title || copied.Points != task.Points || copied.Target != task.Target || copied.Max != task.Max || !copied.Critical {
		t.Fatalf("descriptive fields not copied: %+v", copied)
	}
	if copied.Position != 1 {
		t.Fatalf("duplicate position = %d, want appended 1", copied.Position)
	}
	if *copied.DateID != date.ID {
		t.Fatal("duplicate should stay in the same sibling collection")
	}
}

func TestEnsureDefaultTasksSeedsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	date := env.resolveDay(t, "2025-06-01")

	if err := env.tasks.EnsureDefaultTasks(ctx, date); err != nil {
		t.Fatal(err)
	}
	first, err := env.taskRepo.CountForDate(ctx, date.ID)
	if err != nil {
		t.Fatal(err)
	}
	if first == 0 {
		t.Fatal("expected seeded tasks")
	}

	if err := env.tasks.EnsureDefaultTasks(ctx, date); err != nil {
		t.Fatal(err)
	}
	second, err := env.taskRepo.CountForDate(ctx, date.ID)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Fatalf("seeding is not idempotent: %d then %d", first, second)
	}
}
