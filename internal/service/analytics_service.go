package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campus-ops/institute-api/internal/dto"
	"github.com/campus-ops/institute-api/internal/models"
	appErrors "github.com/campus-ops/institute-api/pkg/errors"
)

type analyticsRepository interface {
	AttendanceSummary(ctx context.Context, courseID string) (*models.AttendanceSummary, error)
	GradeSummary(ctx context.Context, courseID string) (*models.GradeSummary, error)
}

type analyticsCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// AnalyticsService aggregates attendance and grade figures per course.
type AnalyticsService struct {
	repo     analyticsRepository
	courses  analyticsCourseReader
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewAnalyticsService constructs an AnalyticsService.
func NewAnalyticsService(repo analyticsRepository, courses analyticsCourseReader, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &AnalyticsService{
		repo:     repo,
		courses:  courses,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// CourseAnalytics returns attendance and grade aggregates for a course.
func (s *AnalyticsService) CourseAnalytics(ctx context.Context, courseID string) (*dto.CourseAnalytics, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	cacheKey := fmt.Sprintf("analytics:course:%s", courseID)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			result := &dto.CourseAnalytics{}
			if json.Unmarshal(raw, result) == nil {
				return result, nil
			}
		}
	}

	attendance, err := s.repo.AttendanceSummary(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
	}
	grades, err := s.repo.GradeSummary(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate grades")
	}

	presentRate := 0.0
	if attendance.Total > 0 {
		presentRate = math.Round(float64(attendance.Present)/float64(attendance.Total)*10000) / 100
	}

	result := &dto.CourseAnalytics{
		CourseID: courseID,
		Attendance: dto.AttendanceStats{
			Total:       attendance.Total,
			Present:     attendance.Present,
			Absent:      attendance.Absent,
			Late:        attendance.Late,
			Excused:     attendance.Excused,
			PresentRate: presentRate,
		},
		Grades: dto.GradeStats{
			GradedCount:  grades.GradedCount,
			AverageScore: grades.AverageScore,
			MinScore:     grades.MinScore,
			MaxScore:     grades.MaxScore,
		},
	}

	if s.cache != nil {
		if raw, marshalErr := json.Marshal(result); marshalErr == nil {
			if cacheErr := s.cache.Set(ctx, cacheKey, raw, s.cacheTTL).Err(); cacheErr != nil {
				s.logger.Warn("analytics cache write failed", zap.Error(cacheErr))
			}
		}
	}
	return result, nil
}
