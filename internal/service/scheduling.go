package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campus-ops/institute-api/internal/models"
)

// sessionStore is the scheduler's view of persisted sessions. Methods take
// an ExtContext so counts performed inside a transaction observe rows the
// same run already inserted.
type sessionStore interface {
	ExistsOnDate(ctx context.Context, exec sqlx.ExtContext, courseID string, date time.Time) (bool, error)
	CountForCourseInRange(ctx context.Context, exec sqlx.ExtContext, courseID string, start, end time.Time) (int, error)
	CountForTeacherOnDate(ctx context.Context, exec sqlx.ExtContext, teacherID string, date time.Time) (int, error)
	CountForTeacherInRange(ctx context.Context, exec sqlx.ExtContext, teacherID string, start, end time.Time) (int, error)
	CountForCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) (int, error)
	LastMatchingTitle(ctx context.Context, exec sqlx.ExtContext, courseID, keyword string) (*models.CourseSession, error)
	LastForCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) (*models.CourseSession, error)
	Insert(ctx context.Context, exec sqlx.ExtContext, session *models.CourseSession) error
}

type leaveChecker interface {
	IsOnLeave(ctx context.Context, teacherID string, date time.Time, requireApproved bool) (bool, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// rejectReason identifies which admissibility check failed for a candidate.
type rejectReason int

const (
	rejectNone rejectReason = iota
	rejectWeekend
	rejectCourseWeekCap
	rejectTeacherDayCap
	rejectTeacherWeekCap
	rejectLeave
	rejectDuplicate
)

// capSet carries the numeric caps resolved by the caller. The fallbacks
// differ between the bulk generator and the forward-fill planner, so the
// evaluator never resolves them itself.
type capSet struct {
	CourseWeek  int
	TeacherDay  int
	TeacherWeek int
}

// candidateEvaluator runs the admissibility checks for a (course, date)
// candidate in fixed order: calendar, course weekly cap, teacher daily cap,
// teacher weekly cap, leave, duplicate date. The first failure wins.
type candidateEvaluator struct {
	store        sessionStore
	leaves       leaveChecker
	caps         capSet
	allowWeekend bool
	approvedOnly bool
}

func (e *candidateEvaluator) evaluate(ctx context.Context, exec sqlx.ExtContext, course *models.Course, date time.Time) (rejectReason, error) {
	if !e.allowWeekend && isWeekend(date) {
		return rejectWeekend, nil
	}

	weekStart, weekEnd := weekBounds(date)

	courseCap := e.caps.CourseWeek
	if course.MaxSessionsWeek != nil && *course.MaxSessionsWeek > 0 {
		courseCap = *course.MaxSessionsWeek
	}
	courseCount, err := e.store.CountForCourseInRange(ctx, exec, course.ID, weekStart, weekEnd)
	if err != nil {
		return rejectNone, err
	}
	if courseCount >= courseCap {
		return rejectCourseWeekCap, nil
	}

	dayCount, err := e.store.CountForTeacherOnDate(ctx, exec, course.TeacherID, date)
	if err != nil {
		return rejectNone, err
	}
	if dayCount >= e.caps.TeacherDay {
		return rejectTeacherDayCap, nil
	}

	weekCount, err := e.store.CountForTeacherInRange(ctx, exec, course.TeacherID, weekStart, weekEnd)
	if err != nil {
		return rejectNone, err
	}
	if weekCount >= e.caps.TeacherWeek {
		return rejectTeacherWeekCap, nil
	}

	onLeave, err := e.leaves.IsOnLeave(ctx, course.TeacherID, date, e.approvedOnly)
	if err != nil {
		return rejectNone, err
	}
	if onLeave {
		return rejectLeave, nil
	}

	exists, err := e.store.ExistsOnDate(ctx, exec, course.ID, date)
	if err != nil {
		return rejectNone, err
	}
	if exists {
		return rejectDuplicate, nil
	}

	return rejectNone, nil
}

// titleRule describes one special session kind from policy.
type titleRule struct {
	Keyword        string
	EveryN         int
	MinSpacingDays int
}

// titleClassifier picks the title for a generated session. Project rules
// are consulted before lab rules; the first applicable rule wins, otherwise
// the session is a plain lecture.
type titleClassifier struct {
	store sessionStore
	rules []titleRule
}

func newTitleClassifier(store sessionStore, policy PolicySnapshot) titleClassifier {
	return titleClassifier{
		store: store,
		rules: []titleRule{
			{
				Keyword:        policy.String(KeyProjectSessionKeyword, "Project"),
				EveryN:         policy.Int(KeyProjectGenerateEveryN, 0),
				MinSpacingDays: policy.Int(KeyProjectMinSpacingDays, 7),
			},
			{
				Keyword:        policy.String(KeyLabSessionKeyword, "Lab"),
				EveryN:         policy.Int(KeyLabGenerateEveryN, 0),
				MinSpacingDays: policy.Int(KeyLabMinSpacingDays, 3),
			},
		},
	}
}

// classify returns the title for the next session of the course on the
// given date. A rule applies when the session's lifetime ordinal lands on
// the rule's rotation and the previous matching session, if any, is far
// enough in the past.
func (t titleClassifier) classify(ctx context.Context, exec sqlx.ExtContext, courseID string, date time.Time) (string, error) {
	total, err := t.store.CountForCourse(ctx, exec, courseID)
	if err != nil {
		return "", err
	}
	for _, rule := range t.rules {
		if rule.EveryN <= 0 || (total+1)%rule.EveryN != 0 {
			continue
		}
		last, err := t.store.LastMatchingTitle(ctx, exec, courseID, rule.Keyword)
		if err != nil {
			return "", err
		}
		if last == nil || daysBetween(last.SessionDate, date) >= rule.MinSpacingDays {
			return rule.Keyword, nil
		}
	}
	return models.TitleLecture, nil
}

// spacingViolation checks a manually supplied title against the spacing
// rules. It returns the violated rule, or nil when the title is admissible.
func (t titleClassifier) spacingViolation(ctx context.Context, exec sqlx.ExtContext, courseID, title string, date time.Time) (*titleRule, error) {
	for i := range t.rules {
		rule := t.rules[i]
		if rule.Keyword == "" || !containsFold(title, rule.Keyword) {
			continue
		}
		last, err := t.store.LastMatchingTitle(ctx, exec, courseID, rule.Keyword)
		if err != nil {
			return nil, err
		}
		if last != nil && daysBetween(last.SessionDate, date) < rule.MinSpacingDays {
			return &rule, nil
		}
	}
	return nil, nil
}

func isWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// weekBounds returns the Monday and Sunday enclosing the date.
func weekBounds(date time.Time) (time.Time, time.Time) {
	offset := (int(date.Weekday()) + 6) % 7
	start := truncateToDay(date).AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}

func truncateToDay(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(truncateToDay(to).Sub(truncateToDay(from)).Hours() / 24)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
