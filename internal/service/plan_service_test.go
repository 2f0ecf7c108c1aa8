package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-ops/institute-api/internal/models"
	appErrors "github.com/campus-ops/institute-api/pkg/errors"
)

type planFixture struct {
	service *PlanService
	store   *memorySessionStore
	leaves  *memoryLeaveChecker
	audit   *recordingAuditLogger
	mock    sqlmock.Sqlmock
}

func newPlanFixture(t *testing.T, course models.Course, overrides map[string]string) *planFixture {
	store := newMemorySessionStore(map[string]string{course.ID: course.TeacherID})
	leaves := &memoryLeaveChecker{onLeave: map[string][]time.Time{}}
	audit := &recordingAuditLogger{}
	tx, mock := newTxProviderMock(t)

	service := NewPlanService(
		&stubCourseReader{courses: []models.Course{course}},
		store,
		leaves,
		&stubPolicyResolver{overrides: overrides},
		audit,
		nil,
		tx,
		nil,
	)
	service.now = func() time.Time { return monday }
	return &planFixture{service: service, store: store, leaves: leaves, audit: audit, mock: mock}
}

func planCourse(credits int) models.Course {
	return models.Course{ID: "course-1", Code: "MTH101", Name: "Mathematics", TeacherID: "teacher-1", Credits: credits}
}

func TestPlanSummaryComputesRequiredSessions(t *testing.T) {
	f := newPlanFixture(t, planCourse(3), map[string]string{
		KeyHoursPerCredit:       "15",
		KeySessionDurationHours: "1",
	})
	for i := 0; i < 10; i++ {
		f.store.sessions = append(f.store.sessions, models.CourseSession{
			ID: fmt.Sprintf("session-%d", i), CourseID: "course-1",
			SessionDate: monday.AddDate(0, 0, -30+i), Title: models.TitleLecture,
		})
	}
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	summary, err := f.service.Summary(context.Background(), "course-1")
	require.NoError(t, err)

	assert.Equal(t, 45, summary.RequiredHours)
	assert.Equal(t, 45, summary.RequiredSessions)
	assert.Equal(t, 10, summary.ActualSessions)
	assert.Equal(t, 35, summary.Remaining)
	assert.Equal(t, "behind", summary.Status)
}

func TestPlanSummaryRoundsPartialSessionsUp(t *testing.T) {
	f := newPlanFixture(t, planCourse(1), map[string]string{
		KeyHoursPerCredit:       "3",
		KeySessionDurationHours: "2",
	})
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	summary, err := f.service.Summary(context.Background(), "course-1")
	require.NoError(t, err)

	assert.Equal(t, 3, summary.RequiredHours)
	assert.Equal(t, 2, summary.RequiredSessions, "a partial session still has to happen")
}

func TestPlanSummaryStatusComparesHours(t *testing.T) {
	// Three required hours split into two-hour sessions: the second
	// session overshoots, so delivered hours exceed the requirement even
	// though the session count matches exactly.
	f := newPlanFixture(t, planCourse(1), map[string]string{
		KeyHoursPerCredit:       "3",
		KeySessionDurationHours: "2",
	})
	for i := 0; i < 2; i++ {
		f.store.sessions = append(f.store.sessions, models.CourseSession{
			ID: fmt.Sprintf("session-%d", i), CourseID: "course-1",
			SessionDate: monday.AddDate(0, 0, -7+i), Title: models.TitleLecture,
		})
	}
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	summary, err := f.service.Summary(context.Background(), "course-1")
	require.NoError(t, err)

	assert.Equal(t, 4, summary.ActualHours)
	assert.Equal(t, 0, summary.Remaining)
	assert.Equal(t, "ahead", summary.Status)
}

func TestPlanSuggestWalksForwardFromToday(t *testing.T) {
	f := newPlanFixture(t, planCourse(1), map[string]string{
		KeyHoursPerCredit:       "7",
		KeySessionDurationHours: "1",
	})
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	suggestion, err := f.service.Suggest(context.Background(), "course-1")
	require.NoError(t, err)

	require.Len(t, suggestion.Placements, 7)
	assert.Equal(t, "2026-03-02", suggestion.Placements[0].Date)
	assert.Equal(t, "2026-03-06", suggestion.Placements[4].Date)
	// The weekend is skipped, so placements six and seven land on the
	// following Monday and Tuesday.
	assert.Equal(t, "2026-03-09", suggestion.Placements[5].Date)
	assert.Equal(t, "2026-03-10", suggestion.Placements[6].Date)
}

func TestPlanApplyCommitsAndAudits(t *testing.T) {
	f := newPlanFixture(t, planCourse(1), map[string]string{
		KeyHoursPerCredit:       "2",
		KeySessionDurationHours: "1",
	})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	actor := &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin}
	result, err := f.service.Apply(context.Background(), "course-1", actor)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Remaining)
	assert.Len(t, f.store.forCourse("course-1"), 2)

	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, models.AuditActionPlanApply, f.audit.logs[0].Action)
}

func TestPlanApplyStartsAfterLastSession(t *testing.T) {
	f := newPlanFixture(t, planCourse(1), map[string]string{
		KeyHoursPerCredit:       "3",
		KeySessionDurationHours: "1",
	})
	wednesday := monday.AddDate(0, 0, 2)
	f.store.sessions = append(f.store.sessions, models.CourseSession{
		ID: "existing", CourseID: "course-1", SessionDate: wednesday, Title: models.TitleLecture,
	})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.service.Apply(context.Background(), "course-1", nil)
	require.NoError(t, err)
	require.Equal(t, 2, result.Created)

	sessions := f.store.forCourse("course-1")
	require.Len(t, sessions, 3)
	assert.Equal(t, "2026-03-05", sessions[1].SessionDate.Format(dateLayout), "walk starts the day after the last session")
	assert.Equal(t, "2026-03-06", sessions[2].SessionDate.Format(dateLayout))
}

func TestPlanApplyPartialResultWhenHorizonExhausted(t *testing.T) {
	f := newPlanFixture(t, planCourse(1), map[string]string{
		KeyHoursPerCredit:       "3",
		KeySessionDurationHours: "1",
	})
	// The teacher is away on every candidate date, so the walk finds
	// nothing inside the horizon. That is a valid partial outcome.
	away := make([]time.Time, 0, planHorizonDays)
	for i := 0; i < planHorizonDays; i++ {
		away = append(away, monday.AddDate(0, 0, i))
	}
	f.leaves.onLeave["teacher-1"] = away
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.service.Apply(context.Background(), "course-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 3, result.Remaining)
}

func TestPlanUnknownCourse(t *testing.T) {
	f := newPlanFixture(t, planCourse(1), nil)

	_, err := f.service.Summary(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
