package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-ops/institute-api/internal/models"
)

type stubTeacherLister struct {
	teachers []models.Teacher
}

func (s *stubTeacherLister) ListAll(ctx context.Context) ([]models.Teacher, error) {
	return s.teachers, nil
}

type stubWeekLister struct {
	sessions []models.WeekSession
}

func (s *stubWeekLister) ListWeek(ctx context.Context, start, end time.Time) ([]models.WeekSession, error) {
	return s.sessions, nil
}

func weekSessionFor(teacherID string, day int) models.WeekSession {
	return models.WeekSession{
		CourseSession: models.CourseSession{
			ID:          teacherID + "-s",
			CourseID:    "course-" + teacherID,
			SessionDate: monday.AddDate(0, 0, day),
			Title:       models.TitleLecture,
		},
		TeacherID:   teacherID,
		TeacherName: "Teacher " + teacherID,
	}
}

func TestWorkloadReportClassifiesAndSorts(t *testing.T) {
	teachers := []models.Teacher{
		{ID: "a", FullName: "Teacher a"},
		{ID: "b", FullName: "Teacher b"},
		{ID: "c", FullName: "Teacher c"},
	}
	sessions := make([]models.WeekSession, 0)
	for i := 0; i < 6; i++ {
		sessions = append(sessions, weekSessionFor("a", i%5))
	}
	for i := 0; i < 4; i++ {
		sessions = append(sessions, weekSessionFor("b", i))
	}

	service := NewWorkloadService(
		&stubTeacherLister{teachers: teachers},
		&stubWeekLister{sessions: sessions},
		&stubPolicyResolver{overrides: map[string]string{
			KeySessionDurationHours:    "1",
			KeyWorkloadTargetWeekHours: "4",
			KeyWorkloadToleranceHours:  "1",
		}},
		nil,
		time.Minute,
		nil,
	)
	service.now = func() time.Time { return monday }

	report, err := service.WeeklyReport(context.Background(), "2026-03-02")
	require.NoError(t, err)

	assert.Equal(t, "2026-03-02", report.WeekStart)
	assert.Equal(t, "2026-03-08", report.WeekEnd)
	assert.Equal(t, 4, report.Target)
	assert.Equal(t, 1, report.Tolerance)

	require.Len(t, report.Items, 3, "zero hour teachers still appear")
	assert.Equal(t, "c", report.Items[0].TeacherID, "under target teachers sort first")
	assert.Equal(t, "under", report.Items[0].Status)
	assert.Equal(t, 0, report.Items[0].Hours)
	assert.Equal(t, "a", report.Items[1].TeacherID)
	assert.Equal(t, "over", report.Items[1].Status)
	assert.Equal(t, 6, report.Items[1].Hours)
	assert.Equal(t, "b", report.Items[2].TeacherID)
	assert.Equal(t, "fair", report.Items[2].Status)
}

func TestWorkloadReportUsesSessionDuration(t *testing.T) {
	teachers := []models.Teacher{{ID: "a", FullName: "Teacher a"}}
	sessions := []models.WeekSession{weekSessionFor("a", 0), weekSessionFor("a", 1)}

	service := NewWorkloadService(
		&stubTeacherLister{teachers: teachers},
		&stubWeekLister{sessions: sessions},
		&stubPolicyResolver{overrides: map[string]string{
			KeySessionDurationHours:    "2",
			KeyWorkloadTargetWeekHours: "24",
			KeyWorkloadToleranceHours:  "4",
		}},
		nil,
		time.Minute,
		nil,
	)
	service.now = func() time.Time { return monday }

	report, err := service.WeeklyReport(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, 4, report.Items[0].Hours, "two sessions at two hours each")
	assert.Equal(t, 2, report.Items[0].Sessions)
	assert.Equal(t, "under", report.Items[0].Status)
}

func TestWorkloadReportRejectsMalformedWeek(t *testing.T) {
	service := NewWorkloadService(&stubTeacherLister{}, &stubWeekLister{}, &stubPolicyResolver{}, nil, time.Minute, nil)
	_, err := service.WeeklyReport(context.Background(), "03/02/2026")
	require.Error(t, err)
}
