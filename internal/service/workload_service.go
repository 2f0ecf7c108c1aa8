package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campus-ops/institute-api/internal/dto"
	"github.com/campus-ops/institute-api/internal/models"
	appErrors "github.com/campus-ops/institute-api/pkg/errors"
)

type workloadTeacherLister interface {
	ListAll(ctx context.Context) ([]models.Teacher, error)
}

// WorkloadService builds the weekly fairness report. Reports are cached in
// Redis per week; the cache client is optional.
type WorkloadService struct {
	teachers workloadTeacherLister
	sessions weekSessionLister
	policies policyResolver
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewWorkloadService constructs a WorkloadService.
func NewWorkloadService(teachers workloadTeacherLister, sessions weekSessionLister, policies policyResolver, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *WorkloadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &WorkloadService{
		teachers: teachers,
		sessions: sessions,
		policies: policies,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// WeeklyReport sums each teacher's load for the week enclosing the given
// date. Teachers with no sessions appear with zero hours so under-target
// staff are never hidden. Entries sort under-target first, then by
// descending hours.
func (s *WorkloadService) WeeklyReport(ctx context.Context, weekStartRaw string) (*dto.WorkloadReport, error) {
	base := truncateToDay(s.now().UTC())
	if weekStartRaw != "" {
		parsed, err := time.ParseInLocation(dateLayout, weekStartRaw, time.UTC)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "weekStart must use YYYY-MM-DD format")
		}
		base = parsed
	}
	weekStart, weekEnd := weekBounds(base)

	cacheKey := fmt.Sprintf("workload:%s", weekStart.Format(dateLayout))
	if cached := s.fromCache(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	policy, err := s.policies.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defaultHours := policy.Int(KeySessionDurationHours, 1)
	target := policy.Int(KeyWorkloadTargetWeekHours, 24)
	tolerance := policy.Int(KeyWorkloadToleranceHours, 4)

	teachers, err := s.teachers.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	sessions, err := s.sessions.ListWeek(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list week sessions")
	}

	counts := make(map[string]int, len(teachers))
	for _, session := range sessions {
		counts[session.TeacherID]++
	}

	items := make([]dto.WorkloadEntry, 0, len(teachers))
	for _, teacher := range teachers {
		sessionCount := counts[teacher.ID]
		hours := sessionCount * defaultHours
		status := dto.WorkloadStatusFair
		switch {
		case hours < target-tolerance:
			status = dto.WorkloadStatusUnder
		case hours > target+tolerance:
			status = dto.WorkloadStatusOver
		}
		items = append(items, dto.WorkloadEntry{
			TeacherID:   teacher.ID,
			TeacherName: teacher.FullName,
			Hours:       hours,
			Sessions:    sessionCount,
			Status:      status,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		underI := items[i].Status == dto.WorkloadStatusUnder
		underJ := items[j].Status == dto.WorkloadStatusUnder
		if underI != underJ {
			return underI
		}
		return items[i].Hours > items[j].Hours
	})

	report := &dto.WorkloadReport{
		WeekStart: weekStart.Format(dateLayout),
		WeekEnd:   weekEnd.Format(dateLayout),
		Target:    target,
		Tolerance: tolerance,
		Items:     items,
	}
	s.toCache(ctx, cacheKey, report)
	return report, nil
}

// Refresh drops the cached report for the week enclosing the date and
// recomputes it. Scheduling runs enqueue this so a mutated week never
// serves a stale report for the full TTL.
func (s *WorkloadService) Refresh(ctx context.Context, weekStartRaw string) error {
	base := truncateToDay(s.now().UTC())
	if weekStartRaw != "" {
		parsed, err := time.ParseInLocation(dateLayout, weekStartRaw, time.UTC)
		if err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "weekStart must use YYYY-MM-DD format")
		}
		base = parsed
	}
	weekStart, _ := weekBounds(base)
	if s.cache != nil {
		key := fmt.Sprintf("workload:%s", weekStart.Format(dateLayout))
		if err := s.cache.Del(ctx, key).Err(); err != nil {
			s.logger.Warn("workload cache invalidation failed", zap.Error(err))
		}
	}
	_, err := s.WeeklyReport(ctx, weekStart.Format(dateLayout))
	return err
}

func (s *WorkloadService) fromCache(ctx context.Context, key string) *dto.WorkloadReport {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("workload cache read failed", zap.Error(err))
		}
		return nil
	}
	report := &dto.WorkloadReport{}
	if err := json.Unmarshal(raw, report); err != nil {
		return nil
	}
	return report
}

func (s *WorkloadService) toCache(ctx context.Context, key string, report *dto.WorkloadReport) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("workload cache write failed", zap.Error(err))
	}
}
