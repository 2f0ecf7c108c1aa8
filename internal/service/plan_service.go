package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campus-ops/institute-api/internal/dto"
	"github.com/campus-ops/institute-api/internal/models"
	appErrors "github.com/campus-ops/institute-api/pkg/errors"
)

// Forward-fill cap fallbacks. The planner is deliberately more conservative
// than the bulk generator when a cap has no configured value.
const (
	planCourseWeekCap  = 5
	planTeacherDayCap  = 3
	planTeacherWeekCap = 15

	// planHorizonDays bounds the forward walk. Exhausting it yields a
	// partial placement list, not an error.
	planHorizonDays = 365
)

// PlanService compares a course's scheduled sessions against its credit
// requirement and forward-fills the gap.
type PlanService struct {
	courses  schedulerCourseReader
	sessions sessionStore
	leaves   leaveChecker
	policies policyResolver
	audit    schedulerAuditLogger
	metrics  schedulerMetrics
	tx       txProvider
	logger   *zap.Logger
	now      func() time.Time
}

// NewPlanService constructs a PlanService.
func NewPlanService(courses schedulerCourseReader, sessions sessionStore, leaves leaveChecker, policies policyResolver, audit schedulerAuditLogger, metrics schedulerMetrics, tx txProvider, logger *zap.Logger) *PlanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanService{
		courses:  courses,
		sessions: sessions,
		leaves:   leaves,
		policies: policies,
		audit:    audit,
		metrics:  metrics,
		tx:       tx,
		logger:   logger,
		now:      time.Now,
	}
}

// Summary reports required versus actual session load for a course.
func (s *PlanService) Summary(ctx context.Context, courseID string) (*dto.PlanSummary, error) {
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	policy, err := s.policies.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := s.tx.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin read transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()
	return s.buildSummary(ctx, tx, course, policy)
}

// Suggest runs the forward-fill walk without persisting anything. The walk
// executes inside a transaction that is rolled back at the end, so spacing
// and cap checks observe earlier proposed placements exactly as an apply
// run would.
func (s *PlanService) Suggest(ctx context.Context, courseID string) (*dto.PlanSuggestion, error) {
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	policy, err := s.policies.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin planning transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	summary, err := s.buildSummary(ctx, tx, course, policy)
	if err != nil {
		return nil, err
	}
	placements, err := s.forwardFill(ctx, tx, course, policy, summary.Remaining)
	if err != nil {
		return nil, err
	}

	return &dto.PlanSuggestion{Summary: *summary, Placements: placements}, nil
}

// Apply commits forward-fill placements until the course plan is met or the
// horizon runs out.
func (s *PlanService) Apply(ctx context.Context, courseID string, actor *models.JWTClaims) (*dto.ApplyPlanResult, error) {
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	policy, err := s.policies.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin planning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	summary, err := s.buildSummary(ctx, tx, course, policy)
	if err != nil {
		return nil, err
	}
	placements, err := s.forwardFill(ctx, tx, course, policy, summary.Remaining)
	if err != nil {
		return nil, err
	}
	if commitErr := tx.Commit(); commitErr != nil {
		err = appErrors.Wrap(commitErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit plan")
		return nil, err
	}

	result := &dto.ApplyPlanResult{
		Created:   len(placements),
		Remaining: summary.Remaining - len(placements),
	}

	if s.audit != nil {
		details, _ := json.Marshal(map[string]any{
			"course_id": course.ID,
			"created":   result.Created,
			"remaining": result.Remaining,
		})
		log := &models.AuditLog{
			UserID:     userIDPtr(actor),
			Action:     models.AuditActionPlanApply,
			Resource:   "course_plan",
			ResourceID: &course.ID,
			Details:    string(details),
		}
		if auditErr := s.audit.CreateAuditLog(ctx, log); auditErr != nil {
			s.logger.Warn("failed to record plan audit", zap.Error(auditErr))
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveGenerationRun("plan", result.Created, 0)
	}
	s.logger.Info("course plan applied",
		zap.String("course_id", course.ID),
		zap.Int("created", result.Created),
		zap.Int("remaining", result.Remaining))

	return result, nil
}

func (s *PlanService) findCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *PlanService) buildSummary(ctx context.Context, exec sqlx.ExtContext, course *models.Course, policy PolicySnapshot) (*dto.PlanSummary, error) {
	hoursPerCredit := policy.Int(KeyHoursPerCredit, 15)
	defaultHours := policy.Int(KeySessionDurationHours, 1)
	if defaultHours <= 0 {
		defaultHours = 1
	}

	requiredHours := course.Credits * hoursPerCredit
	requiredSessions := requiredHours / defaultHours
	if requiredHours%defaultHours != 0 {
		requiredSessions++
	}

	actual, err := s.sessions.CountForCourse(ctx, exec, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sessions")
	}

	remaining := requiredSessions - actual
	if remaining < 0 {
		remaining = 0
	}

	// Status compares delivered hours against required hours, not session
	// counts. When the session duration does not divide the required hours
	// the final session overshoots and the course lands ahead.
	actualHours := actual * defaultHours
	status := dto.PlanStatusOnTrack
	switch {
	case actualHours < requiredHours:
		status = dto.PlanStatusBehind
	case actualHours > requiredHours:
		status = dto.PlanStatusAhead
	}

	return &dto.PlanSummary{
		CourseID:         course.ID,
		Credits:          course.Credits,
		HoursPerCredit:   hoursPerCredit,
		DefaultHours:     defaultHours,
		RequiredHours:    requiredHours,
		RequiredSessions: requiredSessions,
		ActualHours:      actualHours,
		ActualSessions:   actual,
		Remaining:        remaining,
		Status:           status,
	}, nil
}

// forwardFill walks day by day from the later of today and the day after
// the course's last session, inserting every admissible date until the
// remaining count is satisfied or the horizon is exhausted.
func (s *PlanService) forwardFill(ctx context.Context, tx *sqlx.Tx, course *models.Course, policy PolicySnapshot, remaining int) ([]dto.PlanPlacement, error) {
	placements := make([]dto.PlanPlacement, 0, remaining)
	if remaining <= 0 {
		return placements, nil
	}

	start := truncateToDay(s.now().UTC())
	last, err := s.sessions.LastForCourse(ctx, tx, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load last session")
	}
	if last != nil {
		next := truncateToDay(last.SessionDate).AddDate(0, 0, 1)
		if next.After(start) {
			start = next
		}
	}

	evaluator := &candidateEvaluator{
		store:  s.sessions,
		leaves: s.leaves,
		caps: capSet{
			CourseWeek:  policy.Int(KeyCourseMaxSessionsWeek, planCourseWeekCap),
			TeacherDay:  policy.Int(KeyTeacherMaxSessionsDay, planTeacherDayCap),
			TeacherWeek: policy.Int(KeyTeacherMaxSessionsWeek, planTeacherWeekCap),
		},
		allowWeekend: policy.Bool(KeyAllowWeekendSessions, false),
		approvedOnly: policy.Bool(KeyLeaveApprovalRequired, true),
	}
	classifier := newTitleClassifier(s.sessions, policy)

	date := start
	for step := 0; step < planHorizonDays && len(placements) < remaining; step++ {
		reason, err := evaluator.evaluate(ctx, tx, course, date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "candidate evaluation failed")
		}
		if reason != rejectNone {
			date = date.AddDate(0, 0, 1)
			continue
		}

		title, err := classifier.classify(ctx, tx, course.ID, date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "title classification failed")
		}
		session := &models.CourseSession{
			CourseID:    course.ID,
			SessionDate: date,
			Title:       title,
		}
		if err := s.sessions.Insert(ctx, tx, session); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert planned session")
		}
		placements = append(placements, dto.PlanPlacement{
			Date:  date.Format(dateLayout),
			Title: title,
		})
		date = date.AddDate(0, 0, 1)
	}

	return placements, nil
}
