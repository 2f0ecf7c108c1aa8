package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-ops/institute-api/internal/dto"
	"github.com/campus-ops/institute-api/internal/models"
	appErrors "github.com/campus-ops/institute-api/pkg/errors"
)

const dateLayout = "2006-01-02"

// Cap fallbacks used by the bulk generator and the manual creation path.
const (
	bulkCourseWeekCap  = 10
	bulkTeacherDayCap  = 4
	bulkTeacherWeekCap = 20
)

type schedulerCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListOrderedByTeacher(ctx context.Context) ([]models.Course, error)
}

type weekSessionLister interface {
	ListWeek(ctx context.Context, start, end time.Time) ([]models.WeekSession, error)
}

type policyResolver interface {
	Snapshot(ctx context.Context) (PolicySnapshot, error)
}

type schedulerAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type schedulerMetrics interface {
	ObserveGenerationRun(mode string, created, skipped int)
}

// SchedulerService runs the weekly bulk generator, the manual creation path
// and the timetable week view. Every write path executes inside a single
// transaction so constraint counts observe rows inserted earlier in the
// same run, and a mid-run failure leaves nothing behind.
type SchedulerService struct {
	courses   schedulerCourseReader
	sessions  sessionStore
	weekView  weekSessionLister
	leaves    leaveChecker
	policies  policyResolver
	audit     schedulerAuditLogger
	metrics   schedulerMetrics
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSchedulerService constructs a SchedulerService.
func NewSchedulerService(courses schedulerCourseReader, sessions sessionStore, weekView weekSessionLister, leaves leaveChecker, policies policyResolver, audit schedulerAuditLogger, metrics schedulerMetrics, tx txProvider, validate *validator.Validate, logger *zap.Logger) *SchedulerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulerService{
		courses:   courses,
		sessions:  sessions,
		weekView:  weekView,
		leaves:    leaves,
		policies:  policies,
		audit:     audit,
		metrics:   metrics,
		tx:        tx,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// GenerateWeek walks the seven days of the target week in ascending order
// and, within each day, every course ordered by owning teacher. Admissible
// candidates are inserted; candidates blocked by teacher leave increment
// the skipped counter; all other rejections are silent.
func (s *SchedulerService) GenerateWeek(ctx context.Context, req dto.GenerateWeekRequest, actor *models.JWTClaims) (*dto.GenerateWeekResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload")
	}

	weekStart, err := s.resolveWeekStart(req.WeekStart)
	if err != nil {
		return nil, err
	}
	weekEnd := weekStart.AddDate(0, 0, 6)

	policy, err := s.policies.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	courses, err := s.courses.ListOrderedByTeacher(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin generation transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	allowWeekend := policy.Bool(KeyAllowWeekendSessions, false)
	evaluator := &candidateEvaluator{
		store:  s.sessions,
		leaves: s.leaves,
		caps: capSet{
			CourseWeek:  policy.Int(KeyCourseMaxSessionsWeek, bulkCourseWeekCap),
			TeacherDay:  policy.Int(KeyTeacherMaxSessionsDay, bulkTeacherDayCap),
			TeacherWeek: policy.Int(KeyTeacherMaxSessionsWeek, bulkTeacherWeekCap),
		},
		allowWeekend: allowWeekend,
		approvedOnly: policy.Bool(KeyLeaveApprovalRequired, true),
	}
	classifier := newTitleClassifier(s.sessions, policy)

	created := 0
	skipped := 0
	for day := 0; day < 7; day++ {
		date := weekStart.AddDate(0, 0, day)
		if !allowWeekend && isWeekend(date) {
			continue
		}
		for i := range courses {
			course := &courses[i]
			reason, evalErr := evaluator.evaluate(ctx, tx, course, date)
			if evalErr != nil {
				err = appErrors.Wrap(evalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "candidate evaluation failed")
				return nil, err
			}
			switch reason {
			case rejectNone:
			case rejectLeave:
				skipped++
				continue
			default:
				continue
			}

			title, classifyErr := classifier.classify(ctx, tx, course.ID, date)
			if classifyErr != nil {
				err = appErrors.Wrap(classifyErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "title classification failed")
				return nil, err
			}
			session := &models.CourseSession{
				CourseID:    course.ID,
				SessionDate: date,
				Title:       title,
			}
			if insertErr := s.sessions.Insert(ctx, tx, session); insertErr != nil {
				err = appErrors.Wrap(insertErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert session")
				return nil, err
			}
			created++
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		err = appErrors.Wrap(commitErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit generation run")
		return nil, err
	}

	result := &dto.GenerateWeekResult{
		WeekStart: weekStart.Format(dateLayout),
		WeekEnd:   weekEnd.Format(dateLayout),
		Created:   created,
		Skipped:   skipped,
	}

	s.emitAudit(ctx, actor, models.AuditActionTimetableGenerate, "timetable", weekStart.Format(dateLayout), map[string]any{
		"week_start": result.WeekStart,
		"created":    created,
		"skipped":    skipped,
	})
	if s.metrics != nil {
		s.metrics.ObserveGenerationRun("bulk", created, skipped)
	}
	s.logger.Info("timetable week generated",
		zap.String("week_start", result.WeekStart),
		zap.Int("created", created),
		zap.Int("skipped", skipped))

	return result, nil
}

// CreateSession places a single session on a chosen date. Unlike the bulk
// generator it surfaces each rejection as a typed error, and a supplied
// project or lab title must honor the spacing rule.
func (s *SchedulerService) CreateSession(ctx context.Context, courseID string, req dto.CreateSessionRequest, actor *models.JWTClaims) (*models.CourseSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	date, err := time.ParseInLocation(dateLayout, req.Date, time.UTC)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD format")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	policy, err := s.policies.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	evaluator := &candidateEvaluator{
		store:  s.sessions,
		leaves: s.leaves,
		caps: capSet{
			CourseWeek:  policy.Int(KeyCourseMaxSessionsWeek, bulkCourseWeekCap),
			TeacherDay:  policy.Int(KeyTeacherMaxSessionsDay, bulkTeacherDayCap),
			TeacherWeek: policy.Int(KeyTeacherMaxSessionsWeek, bulkTeacherWeekCap),
		},
		allowWeekend: policy.Bool(KeyAllowWeekendSessions, false),
		approvedOnly: policy.Bool(KeyLeaveApprovalRequired, true),
	}

	reason, evalErr := evaluator.evaluate(ctx, tx, course, date)
	if evalErr != nil {
		err = appErrors.Wrap(evalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "candidate evaluation failed")
		return nil, err
	}
	if rejectErr := manualRejectError(reason); rejectErr != nil {
		err = rejectErr
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = models.TitleLecture
	}
	classifier := newTitleClassifier(s.sessions, policy)
	violated, spacingErr := classifier.spacingViolation(ctx, tx, course.ID, title, date)
	if spacingErr != nil {
		err = appErrors.Wrap(spacingErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "spacing check failed")
		return nil, err
	}
	if violated != nil {
		err = appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s sessions require at least %d days of spacing", violated.Keyword, violated.MinSpacingDays))
		return nil, err
	}

	session := &models.CourseSession{
		CourseID:    course.ID,
		SessionDate: date,
		Title:       title,
		StartTime:   combineClock(date, req.StartTime),
		EndTime:     combineClock(date, req.EndTime),
		Location:    optionalStr(req.Location),
	}
	if insertErr := s.sessions.Insert(ctx, tx, session); insertErr != nil {
		err = appErrors.Wrap(insertErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert session")
		return nil, err
	}
	if commitErr := tx.Commit(); commitErr != nil {
		err = appErrors.Wrap(commitErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit session")
		return nil, err
	}

	s.emitAudit(ctx, actor, models.AuditActionSessionCreate, "session", session.ID, map[string]any{
		"course_id": course.ID,
		"date":      req.Date,
		"title":     title,
	})
	if s.metrics != nil {
		s.metrics.ObserveGenerationRun("manual", 1, 0)
	}

	return session, nil
}

// Week returns all sessions in the week enclosing the given start date,
// annotated with teacher hour-cap violations. Hours are approximated as
// session count times the default session duration.
func (s *SchedulerService) Week(ctx context.Context, weekStartRaw string) (*dto.TimetableWeek, error) {
	weekStart, err := s.resolveWeekStart(weekStartRaw)
	if err != nil {
		return nil, err
	}
	weekEnd := weekStart.AddDate(0, 0, 6)

	policy, err := s.policies.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defaultHours := policy.Int(KeySessionDurationHours, 1)
	maxDayHours := policy.Int(KeyTeacherMaxHoursPerDay, 6)
	maxWeekHours := policy.Int(KeyTeacherMaxHoursPerWeek, 30)

	items, err := s.weekView.ListWeek(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list week sessions")
	}

	type dayKey struct {
		teacherID string
		date      string
	}
	dayHours := make(map[dayKey]int)
	weekHours := make(map[string]int)
	dayOrder := make([]dayKey, 0)
	weekOrder := make([]string, 0)
	for _, item := range items {
		dk := dayKey{teacherID: item.TeacherID, date: item.SessionDate.Format(dateLayout)}
		if _, seen := dayHours[dk]; !seen {
			dayOrder = append(dayOrder, dk)
		}
		dayHours[dk] += defaultHours
		if _, seen := weekHours[item.TeacherID]; !seen {
			weekOrder = append(weekOrder, item.TeacherID)
		}
		weekHours[item.TeacherID] += defaultHours
	}

	result := &dto.TimetableWeek{
		WeekStart:      weekStart.Format(dateLayout),
		WeekEnd:        weekEnd.Format(dateLayout),
		Items:          items,
		DayViolations:  make([]dto.HourViolation, 0),
		WeekViolations: make([]dto.WeekHourViolation, 0),
		MaxDayHours:    maxDayHours,
		MaxWeekHours:   maxWeekHours,
		DefaultHours:   defaultHours,
	}
	for _, dk := range dayOrder {
		if dayHours[dk] > maxDayHours {
			result.DayViolations = append(result.DayViolations, dto.HourViolation{
				TeacherID: dk.teacherID,
				Date:      dk.date,
				Hours:     dayHours[dk],
			})
		}
	}
	for _, teacherID := range weekOrder {
		if weekHours[teacherID] > maxWeekHours {
			result.WeekViolations = append(result.WeekViolations, dto.WeekHourViolation{
				TeacherID: teacherID,
				Hours:     weekHours[teacherID],
			})
		}
	}
	return result, nil
}

// resolveWeekStart parses the requested date and snaps it to the Monday of
// its week. An empty value means the current week.
func (s *SchedulerService) resolveWeekStart(raw string) (time.Time, error) {
	base := truncateToDay(s.now().UTC())
	if raw != "" {
		parsed, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "weekStart must use YYYY-MM-DD format")
		}
		base = parsed
	}
	start, _ := weekBounds(base)
	return start, nil
}

func manualRejectError(reason rejectReason) error {
	switch reason {
	case rejectNone:
		return nil
	case rejectWeekend:
		return appErrors.Clone(appErrors.ErrValidation, "weekend sessions are not allowed by policy")
	case rejectCourseWeekCap:
		return appErrors.Clone(appErrors.ErrConflict, "course weekly session cap reached")
	case rejectTeacherDayCap:
		return appErrors.Clone(appErrors.ErrConflict, "teacher daily session cap reached")
	case rejectTeacherWeekCap:
		return appErrors.Clone(appErrors.ErrConflict, "teacher weekly session cap reached")
	case rejectLeave:
		return appErrors.Clone(appErrors.ErrConflict, "teacher is on leave for the selected date")
	case rejectDuplicate:
		return appErrors.Clone(appErrors.ErrConflict, "a session already exists for this course on that date")
	default:
		return appErrors.Clone(appErrors.ErrInternal, "unknown rejection")
	}
}

func (s *SchedulerService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resource, resourceID string, payload map[string]any) {
	if s.audit == nil {
		return
	}
	details, _ := json.Marshal(payload)
	log := &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		Details:    string(details),
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record scheduler audit", zap.Error(err))
	}
}

func combineClock(date time.Time, clock string) *time.Time {
	if clock == "" {
		return nil
	}
	parsed, err := time.ParseInLocation("15:04", clock, time.UTC)
	if err != nil {
		return nil
	}
	at := time.Date(date.Year(), date.Month(), date.Day(), parsed.Hour(), parsed.Minute(), 0, 0, time.UTC)
	return &at
}

func optionalStr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
