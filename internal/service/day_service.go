package service

import (
	"context"
	"time"

	"habit-points/internal/model"
	"habit-points/internal/repository"
)

// DayService resolves calendar days for consumers that think in "today".
type DayService struct {
	dateRepo *repository.DateRepository
}

func NewDayService(dateRepo *repository.DateRepository) *DayService {
	return &DayService{dateRepo: dateRepo}
}

// Today resolves the current wall-clock day, creating its Date on first access.
func (s *DayService) Today(ctx context.Context) (*model.Date, error) {
	return s.dateRepo.Resolve(ctx, time.Now())
}

// On resolves an arbitrary day.
func (s *DayService) On(ctx context.Context, day time.Time) (*model.Date, error) {
	return s.dateRepo.Resolve(ctx, day)
}
