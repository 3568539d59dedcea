package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habit-points/internal/bot"
	"habit-points/internal/config"
	"habit-points/internal/repository"
	"habit-points/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	dateRepo := repository.NewDateRepository(db, cfg.DailyTarget)
	taskRepo := repository.NewTaskRepository(db)
	completionRepo := repository.NewCompletionRepository(db)

	pointsSvc := service.NewPointsService(dateRepo, taskRepo)
	positionSvc := service.NewPositionService(taskRepo)
	daySvc := service.NewDayService(dateRepo)
	taskSvc := service.NewTaskService(taskRepo, dateRepo, pointsSvc, positionSvc, cfg.DefaultTaskMax)
	completionSvc := service.NewCompletionService(taskRepo, completionRepo, pointsSvc)
	templateSvc := service.NewTemplateService(taskRepo, pointsSvc)

	tracker, err := bot.New(cfg.TelegramToken, daySvc, taskSvc, completionSvc, templateSvc, positionSvc, &cfg)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	scheduler := service.NewSchedulerService(time.Local)
	if _, err := scheduler.ScheduleDaily(cfg.RolloverTime, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := tracker.RollOver(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("rollover: %v", err)
		}
	}); err != nil {
		log.Fatalf("schedule rollover: %v", err)
	}
	if cfg.DigestTime != "" {
		if _, err := scheduler.ScheduleDaily(cfg.DigestTime, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := tracker.SendDailyDigest(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("digest: %v", err)
			}
		}); err != nil {
			log.Fatalf("schedule digest: %v", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Println("Habit points tracker started.")
	if err := tracker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}
