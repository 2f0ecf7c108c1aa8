package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campus-ops/institute-api/internal/models"
)

// AnalyticsRepository serves read-only attendance and grade aggregates for
// reporting views.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository creates a new analytics repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// AttendanceSummary aggregates attendance counts across all of a course's sessions.
func (r *AnalyticsRepository) AttendanceSummary(ctx context.Context, courseID string) (*models.AttendanceSummary, error) {
	const query = `SELECT $1 AS course_id,
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE a.status = 'present') AS present,
		COUNT(*) FILTER (WHERE a.status = 'absent') AS absent,
		COUNT(*) FILTER (WHERE a.status = 'late') AS late,
		COUNT(*) FILTER (WHERE a.status = 'excused') AS excused
	FROM attendances a JOIN course_sessions s ON s.id = a.session_id WHERE s.course_id = $1`
	var summary models.AttendanceSummary
	if err := r.db.GetContext(ctx, &summary, query, courseID); err != nil {
		return nil, fmt.Errorf("attendance summary: %w", err)
	}
	return &summary, nil
}

// GradeSummary aggregates recorded scores for a course. Returns a zero-count
// summary when the course has no grades.
func (r *AnalyticsRepository) GradeSummary(ctx context.Context, courseID string) (*models.GradeSummary, error) {
	const query = `SELECT course_id, COUNT(*) AS graded_count, AVG(score) AS average_score, MIN(score) AS min_score, MAX(score) AS max_score FROM grades WHERE course_id = $1 GROUP BY course_id`
	var summary models.GradeSummary
	err := r.db.GetContext(ctx, &summary, query, courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.GradeSummary{CourseID: courseID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("grade summary: %w", err)
	}
	return &summary, nil
}
