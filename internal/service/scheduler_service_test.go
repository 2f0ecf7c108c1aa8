package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-ops/institute-api/internal/dto"
	"github.com/campus-ops/institute-api/internal/models"
	appErrors "github.com/campus-ops/institute-api/pkg/errors"
)

// monday is a fixed reference Monday used across scheduler tests.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type memorySessionStore struct {
	sessions []models.CourseSession
	teachers map[string]string // courseID -> teacherID
	nextID   int
}

func newMemorySessionStore(teachers map[string]string) *memorySessionStore {
	return &memorySessionStore{teachers: teachers}
}

func (m *memorySessionStore) ExistsOnDate(ctx context.Context, exec sqlx.ExtContext, courseID string, date time.Time) (bool, error) {
	for _, s := range m.sessions {
		if s.CourseID == courseID && s.SessionDate.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memorySessionStore) CountForCourseInRange(ctx context.Context, exec sqlx.ExtContext, courseID string, start, end time.Time) (int, error) {
	count := 0
	for _, s := range m.sessions {
		if s.CourseID == courseID && !s.SessionDate.Before(start) && !s.SessionDate.After(end) {
			count++
		}
	}
	return count, nil
}

func (m *memorySessionStore) CountForTeacherOnDate(ctx context.Context, exec sqlx.ExtContext, teacherID string, date time.Time) (int, error) {
	count := 0
	for _, s := range m.sessions {
		if m.teachers[s.CourseID] == teacherID && s.SessionDate.Equal(date) {
			count++
		}
	}
	return count, nil
}

func (m *memorySessionStore) CountForTeacherInRange(ctx context.Context, exec sqlx.ExtContext, teacherID string, start, end time.Time) (int, error) {
	count := 0
	for _, s := range m.sessions {
		if m.teachers[s.CourseID] == teacherID && !s.SessionDate.Before(start) && !s.SessionDate.After(end) {
			count++
		}
	}
	return count, nil
}

func (m *memorySessionStore) CountForCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) (int, error) {
	count := 0
	for _, s := range m.sessions {
		if s.CourseID == courseID {
			count++
		}
	}
	return count, nil
}

func (m *memorySessionStore) LastMatchingTitle(ctx context.Context, exec sqlx.ExtContext, courseID, keyword string) (*models.CourseSession, error) {
	var last *models.CourseSession
	for i := range m.sessions {
		s := m.sessions[i]
		if s.CourseID != courseID || !containsFold(s.Title, keyword) {
			continue
		}
		if last == nil || s.SessionDate.After(last.SessionDate) {
			last = &m.sessions[i]
		}
	}
	return last, nil
}

func (m *memorySessionStore) LastForCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) (*models.CourseSession, error) {
	var last *models.CourseSession
	for i := range m.sessions {
		s := m.sessions[i]
		if s.CourseID != courseID {
			continue
		}
		if last == nil || s.SessionDate.After(last.SessionDate) {
			last = &m.sessions[i]
		}
	}
	return last, nil
}

func (m *memorySessionStore) Insert(ctx context.Context, exec sqlx.ExtContext, session *models.CourseSession) error {
	m.nextID++
	if session.ID == "" {
		session.ID = fmt.Sprintf("session-%d", m.nextID)
	}
	m.sessions = append(m.sessions, *session)
	return nil
}

func (m *memorySessionStore) forCourse(courseID string) []models.CourseSession {
	out := make([]models.CourseSession, 0)
	for _, s := range m.sessions {
		if s.CourseID == courseID {
			out = append(out, s)
		}
	}
	return out
}

type memoryLeaveChecker struct {
	// onLeave maps teacherID to dates the teacher is away.
	onLeave map[string][]time.Time
}

func (m *memoryLeaveChecker) IsOnLeave(ctx context.Context, teacherID string, date time.Time, requireApproved bool) (bool, error) {
	for _, d := range m.onLeave[teacherID] {
		if d.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

type stubCourseReader struct {
	courses []models.Course
}

func (s *stubCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	for i := range s.courses {
		if s.courses[i].ID == id {
			return &s.courses[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubCourseReader) ListOrderedByTeacher(ctx context.Context) ([]models.Course, error) {
	return s.courses, nil
}

type stubPolicyResolver struct {
	overrides map[string]string
}

func (s *stubPolicyResolver) Snapshot(ctx context.Context) (PolicySnapshot, error) {
	values := make(map[string]string, len(s.overrides))
	for k, v := range s.overrides {
		values[k] = v
	}
	return PolicySnapshot{values: values}, nil
}

type recordingAuditLogger struct {
	logs []models.AuditLog
}

func (r *recordingAuditLogger) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, *log)
	return nil
}

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type schedulerFixture struct {
	service *SchedulerService
	store   *memorySessionStore
	leaves  *memoryLeaveChecker
	audit   *recordingAuditLogger
	mock    sqlmock.Sqlmock
}

func newSchedulerFixture(t *testing.T, courses []models.Course, overrides map[string]string) *schedulerFixture {
	teachers := make(map[string]string, len(courses))
	for _, c := range courses {
		teachers[c.ID] = c.TeacherID
	}
	store := newMemorySessionStore(teachers)
	leaves := &memoryLeaveChecker{onLeave: map[string][]time.Time{}}
	audit := &recordingAuditLogger{}
	tx, mock := newTxProviderMock(t)

	service := NewSchedulerService(
		&stubCourseReader{courses: courses},
		store,
		nil,
		leaves,
		&stubPolicyResolver{overrides: overrides},
		audit,
		nil,
		tx,
		nil,
		nil,
	)
	service.now = func() time.Time { return monday }
	return &schedulerFixture{service: service, store: store, leaves: leaves, audit: audit, mock: mock}
}

func twoCourses() []models.Course {
	return []models.Course{
		{ID: "course-1", Code: "MTH101", Name: "Mathematics", TeacherID: "teacher-1", Credits: 3},
		{ID: "course-2", Code: "PHY201", Name: "Physics", TeacherID: "teacher-2", Credits: 3},
	}
}

func TestGenerateWeekFillsWeekdays(t *testing.T) {
	f := newSchedulerFixture(t, twoCourses(), nil)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.service.GenerateWeek(context.Background(), dto.GenerateWeekRequest{WeekStart: "2026-03-02"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "2026-03-02", result.WeekStart)
	assert.Equal(t, "2026-03-08", result.WeekEnd)
	assert.Equal(t, 10, result.Created, "five weekdays for two courses")
	assert.Equal(t, 0, result.Skipped)

	for _, s := range f.store.sessions {
		assert.False(t, isWeekend(s.SessionDate), "no weekend placements by default")
	}
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGenerateWeekIsIdempotent(t *testing.T) {
	f := newSchedulerFixture(t, twoCourses(), nil)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	first, err := f.service.GenerateWeek(context.Background(), dto.GenerateWeekRequest{WeekStart: "2026-03-02"}, nil)
	require.NoError(t, err)
	require.Equal(t, 10, first.Created)

	second, err := f.service.GenerateWeek(context.Background(), dto.GenerateWeekRequest{WeekStart: "2026-03-02"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created, "duplicate dates are silently dropped")
	assert.Equal(t, 0, second.Skipped, "duplicates never count as skipped")
	assert.Len(t, f.store.sessions, 10)
}

func TestGenerateWeekCountsLeaveAsSkipped(t *testing.T) {
	f := newSchedulerFixture(t, twoCourses(), nil)
	tuesday := monday.AddDate(0, 0, 1)
	f.leaves.onLeave["teacher-1"] = []time.Time{tuesday}
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.service.GenerateWeek(context.Background(), dto.GenerateWeekRequest{WeekStart: "2026-03-02"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 9, result.Created)
	assert.Equal(t, 1, result.Skipped, "only leave conflicts are counted")
	for _, s := range f.store.forCourse("course-1") {
		assert.False(t, s.SessionDate.Equal(tuesday))
	}
}

func TestGenerateWeekHonoursCourseWeeklyCap(t *testing.T) {
	f := newSchedulerFixture(t, twoCourses(), map[string]string{
		KeyCourseMaxSessionsWeek: "2",
	})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.service.GenerateWeek(context.Background(), dto.GenerateWeekRequest{WeekStart: "2026-03-02"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Created, "two per course under a cap of two")
	assert.Equal(t, 0, result.Skipped, "cap rejections stay silent")
	assert.Len(t, f.store.forCourse("course-1"), 2)
	assert.Len(t, f.store.forCourse("course-2"), 2)
}

func TestGenerateWeekPerCourseOverrideBeatsPolicyCap(t *testing.T) {
	courses := twoCourses()
	override := 1
	courses[0].MaxSessionsWeek = &override
	f := newSchedulerFixture(t, courses, nil)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.service.GenerateWeek(context.Background(), dto.GenerateWeekRequest{WeekStart: "2026-03-02"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 6, result.Created)
	assert.Len(t, f.store.forCourse("course-1"), 1)
	assert.Len(t, f.store.forCourse("course-2"), 5)
}

func TestGenerateWeekTeacherDailyCapSpansCourses(t *testing.T) {
	courses := []models.Course{
		{ID: "course-1", Code: "MTH101", Name: "Mathematics", TeacherID: "teacher-1", Credits: 3},
		{ID: "course-2", Code: "MTH102", Name: "Calculus", TeacherID: "teacher-1", Credits: 3},
	}
	f := newSchedulerFixture(t, courses, map[string]string{
		KeyTeacherMaxSessionsDay: "1",
	})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.service.GenerateWeek(context.Background(), dto.GenerateWeekRequest{WeekStart: "2026-03-02"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Created, "one session per weekday for the teacher")
	assert.Len(t, f.store.forCourse("course-1"), 5, "walk order favours the first course")
	assert.Empty(t, f.store.forCourse("course-2"))
}

func TestGenerateWeekAllowsWeekendWhenPolicySaysSo(t *testing.T) {
	f := newSchedulerFixture(t, twoCourses()[:1], map[string]string{
		KeyAllowWeekendSessions: "true",
	})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.service.GenerateWeek(context.Background(), dto.GenerateWeekRequest{WeekStart: "2026-03-02"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Created)
}

func TestGenerateWeekAssignsRotationTitles(t *testing.T) {
	f := newSchedulerFixture(t, twoCourses()[:1], map[string]string{
		KeyLabGenerateEveryN:     "3",
		KeyLabMinSpacingDays:     "3",
		KeyProjectGenerateEveryN: "0",
	})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	_, err := f.service.GenerateWeek(context.Background(), dto.GenerateWeekRequest{WeekStart: "2026-03-02"}, nil)
	require.NoError(t, err)

	sessions := f.store.forCourse("course-1")
	require.Len(t, sessions, 5)
	titles := make([]string, 0, len(sessions))
	for _, s := range sessions {
		titles = append(titles, s.Title)
	}
	// The third session lands on the rotation; the sixth would too but the
	// week only has five weekdays.
	assert.Equal(t, []string{"Lecture", "Lecture", "Lab", "Lecture", "Lecture"}, titles)
}

func TestGenerateWeekRotationRespectsSpacing(t *testing.T) {
	f := newSchedulerFixture(t, twoCourses()[:1], map[string]string{
		KeyLabGenerateEveryN: "1",
		KeyLabMinSpacingDays: "2",
	})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	_, err := f.service.GenerateWeek(context.Background(), dto.GenerateWeekRequest{WeekStart: "2026-03-02"}, nil)
	require.NoError(t, err)

	sessions := f.store.forCourse("course-1")
	require.Len(t, sessions, 5)
	// Every ordinal matches the rotation, but spacing forces a two day gap
	// between labs: Mon lab, Tue/Wed lectures, Wed is two days after so the
	// Wednesday session is a lab again, and so on.
	assert.Equal(t, "Lab", sessions[0].Title)
	assert.Equal(t, "Lecture", sessions[1].Title)
	assert.Equal(t, "Lab", sessions[2].Title)
}

func TestGenerateWeekAuditsRun(t *testing.T) {
	f := newSchedulerFixture(t, twoCourses(), nil)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	actor := &models.JWTClaims{UserID: "user-1", Role: models.RoleRegistrar}
	_, err := f.service.GenerateWeek(context.Background(), dto.GenerateWeekRequest{WeekStart: "2026-03-02"}, actor)
	require.NoError(t, err)

	require.Len(t, f.audit.logs, 1)
	entry := f.audit.logs[0]
	assert.Equal(t, models.AuditActionTimetableGenerate, entry.Action)
	assert.Equal(t, "user-1", *entry.UserID)
	assert.Contains(t, entry.Details, strconv.Itoa(10))
}

func TestCreateSessionRejectsDuplicateDate(t *testing.T) {
	f := newSchedulerFixture(t, twoCourses(), nil)
	f.store.sessions = append(f.store.sessions, models.CourseSession{
		ID: "existing", CourseID: "course-1", SessionDate: monday, Title: models.TitleLecture,
	})
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.service.CreateSession(context.Background(), "course-1", dto.CreateSessionRequest{Date: "2026-03-02"}, nil)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestCreateSessionRejectsWeekend(t *testing.T) {
	f := newSchedulerFixture(t, twoCourses(), nil)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.service.CreateSession(context.Background(), "course-1", dto.CreateSessionRequest{Date: "2026-03-07"}, nil)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCreateSessionRejectsLeaveConflict(t *testing.T) {
	f := newSchedulerFixture(t, twoCourses(), nil)
	f.leaves.onLeave["teacher-1"] = []time.Time{monday}
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.service.CreateSession(context.Background(), "course-1", dto.CreateSessionRequest{Date: "2026-03-02"}, nil)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestCreateSessionEnforcesTitleSpacing(t *testing.T) {
	f := newSchedulerFixture(t, twoCourses(), nil)
	f.store.sessions = append(f.store.sessions, models.CourseSession{
		ID: "existing", CourseID: "course-1", SessionDate: monday.AddDate(0, 0, -2), Title: "Project",
	})
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.service.CreateSession(context.Background(), "course-1", dto.CreateSessionRequest{
		Date:  "2026-03-02",
		Title: "Project",
	}, nil)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "spacing")
}

func TestCreateSessionManualTitleBypassesRotation(t *testing.T) {
	f := newSchedulerFixture(t, twoCourses(), nil)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	// No rotation is configured, yet a manual project title is accepted
	// because the spacing rule has nothing to compare against.
	session, err := f.service.CreateSession(context.Background(), "course-1", dto.CreateSessionRequest{
		Date:      "2026-03-02",
		Title:     "Project",
		StartTime: "09:00",
		EndTime:   "10:00",
		Location:  "Lab 3",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Project", session.Title)
	require.NotNil(t, session.StartTime)
	assert.Equal(t, 9, session.StartTime.Hour())
	require.NotNil(t, session.Location)
	assert.Equal(t, "Lab 3", *session.Location)
}

func TestCreateSessionUnknownCourse(t *testing.T) {
	f := newSchedulerFixture(t, twoCourses(), nil)

	_, err := f.service.CreateSession(context.Background(), "missing", dto.CreateSessionRequest{Date: "2026-03-02"}, nil)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestResolveWeekStartSnapsToMonday(t *testing.T) {
	f := newSchedulerFixture(t, nil, nil)

	start, err := f.service.resolveWeekStart("2026-03-05")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", start.Format(dateLayout))

	start, err = f.service.resolveWeekStart("")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", start.Format(dateLayout), "defaults to the current week")

	_, err = f.service.resolveWeekStart("bad-date")
	require.Error(t, err)
}
