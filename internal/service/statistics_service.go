package service

import (
	"context"
	"math"
	"time"

	"backoffice/internal/model"
	"backoffice/internal/repository"
)

type StatisticsService interface {
	GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.ChangeRequestStatistics, error)
}

type statisticsService struct {
	repo repository.StatisticsRepository
}

func NewStatisticsService(repo repository.StatisticsRepository) StatisticsService {
	return &statisticsService{repo: repo}
}

// GetStatistics aggregates the review workload for requests submitted between startDate and endDate
func (s *statisticsService) GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.ChangeRequestStatistics, error) {
	if endDate.Before(startDate) {
		return model.ChangeRequestStatistics{}, invalid("end_date", "must not be before start_date")
	}

	stats := model.ChangeRequestStatistics{
		ByKind:             []model.KindStatusCount{},
		TimeRangeStartDate: startDate,
		TimeRangeEndDate:   endDate,
	}

	counts, err := s.repo.CountByKindAndStatus(ctx, startDate, endDate)
	if err != nil {
		return model.ChangeRequestStatistics{}, err
	}
	for _, c := range counts {
		switch c.Status {
		case model.ChangeStatusPending:
			stats.Pending += c.Count
		case model.ChangeStatusApproved:
			stats.Approved += c.Count
		case model.ChangeStatusRejected:
			stats.Rejected += c.Count
		}
		stats.ByKind = append(stats.ByKind, c)
	}

	seconds, err := s.repo.AverageDecisionSeconds(ctx, startDate, endDate)
	if err != nil {
		return model.ChangeRequestStatistics{}, err
	}
	stats.AverageDecisionHours = math.Round(seconds/36) / 100

	return stats, nil
}
