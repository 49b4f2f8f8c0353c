package kpi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"callcenter-analytics/internal/apperr"
	"callcenter-analytics/pkg/logger"
	"callcenter-analytics/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const cacheTTL = time.Minute

// CallStats is the aggregate surface the call store exposes for reporting.
type CallStats interface {
	Stats(ctx context.Context, from, until time.Time) (int, *float64, error)
	IDsInRange(ctx context.Context, from, until time.Time) ([]string, error)
}

// RatingSource averages feedback ratings over a set of call ids.
type RatingSource interface {
	AvgRatingForCalls(ctx context.Context, callIDs []string) (*float64, error)
}

// Report is the KPI payload for a date range. Averages are null when the
// range holds no calls or no rated calls.
type Report struct {
	TotalCalls      int      `json:"total_calls"`
	AvgCallDuration *float64 `json:"avg_call_duration"`
	AvgCallRating   *float64 `json:"avg_call_rating"`
}

// Service computes call KPIs, with a short-lived Redis cache in front. The
// cache is optional; a nil client disables it.
type Service struct {
	stats   CallStats
	ratings RatingSource
	rdb     *redis.Client
}

func NewService(stats CallStats, ratings RatingSource, rdb *redis.Client) *Service {
	return &Service{stats: stats, ratings: ratings, rdb: rdb}
}

// Report aggregates KPIs over [from, until]. Both bounds are mandatory.
func (s *Service) Report(ctx context.Context, from, until time.Time) (Report, error) {
	if from.IsZero() || until.IsZero() {
		return Report{}, apperr.Validation("fromDate and untilDate are required")
	}
	if from.After(until) {
		return Report{}, apperr.Validation("fromDate must be before untilDate")
	}

	key := fmt.Sprintf("kpi:%d:%d", from.Unix(), until.Unix())
	if s.rdb != nil {
		var cached Report
		err := utils.CacheGetJSON(ctx, s.rdb, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, utils.ErrCacheMiss) {
			logger.From(ctx).Warn("kpi cache read failed", "error", err.Error())
		}
	}

	total, avgDuration, err := s.stats.Stats(ctx, from, until)
	if err != nil {
		return Report{}, err
	}

	report := Report{TotalCalls: total, AvgCallDuration: avgDuration}
	if total > 0 {
		ids, err := s.stats.IDsInRange(ctx, from, until)
		if err != nil {
			return Report{}, err
		}
		rating, err := s.ratings.AvgRatingForCalls(ctx, ids)
		if err != nil {
			return Report{}, err
		}
		report.AvgCallRating = rating
	}

	if s.rdb != nil {
		if err := utils.CacheSetJSON(ctx, s.rdb, key, report, cacheTTL); err != nil {
			logger.From(ctx).Warn("kpi cache write failed", "error", err.Error())
		}
	}
	return report, nil
}
