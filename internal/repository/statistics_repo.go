package repository

import (
	"context"
	"fmt"
	"time"

	"backoffice/internal/model"

	"gorm.io/gorm"
)

type StatisticsRepository interface {
	CountByKindAndStatus(ctx context.Context, start, end time.Time) ([]model.KindStatusCount, error)
	AverageDecisionSeconds(ctx context.Context, start, end time.Time) (float64, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) CountByKindAndStatus(ctx context.Context, start, end time.Time) ([]model.KindStatusCount, error) {
	var counts []model.KindStatusCount
	if err := GetDB(ctx, r.db).Table("change_requests").
		Select("kind, status, COUNT(*) as count").
		Where("submitted_at >= ? AND submitted_at <= ?", start, end).
		Group("kind, status").
		Order("kind, status").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count change requests: %w", err)
	}
	return counts, nil
}

// AverageDecisionSeconds is the mean time from submission to decision; zero when nothing was decided.
func (r *statisticsRepository) AverageDecisionSeconds(ctx context.Context, start, end time.Time) (float64, error) {
	var result struct {
		Value float64
	}
	if err := GetDB(ctx, r.db).Table("change_requests").
		Select("COALESCE(AVG(EXTRACT(EPOCH FROM (decided_at - submitted_at))), 0) as value").
		Where("decided_at IS NOT NULL AND submitted_at >= ? AND submitted_at <= ?", start, end).
		Scan(&result).Error; err != nil {
		return 0, fmt.Errorf("failed to average decision time: %w", err)
	}
	return result.Value, nil
}
