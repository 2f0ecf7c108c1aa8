package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campus-ops/institute-api/internal/models"
)

// SessionRepository provides persistence for course sessions.
//
// Scheduler-facing methods accept an sqlx.ExtContext so an entire allocation
// run can execute inside one transaction: counts include rows inserted
// earlier in the same run (read-your-writes), and a mid-run failure rolls the
// whole run back. Callers outside a run pass the repository's database
// handle.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// ExistsOnDate reports whether the course already has a session on the date.
func (r *SessionRepository) ExistsOnDate(ctx context.Context, exec sqlx.ExtContext, courseID string, date time.Time) (bool, error) {
	const query = `SELECT 1 FROM course_sessions WHERE course_id = $1 AND session_date = $2 LIMIT 1`
	var one int
	err := sqlx.GetContext(ctx, exec, &one, query, courseID, date)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session exists on date: %w", err)
	}
	return true, nil
}

// CountForCourseInRange counts the course's sessions between start and end inclusive.
func (r *SessionRepository) CountForCourseInRange(ctx context.Context, exec sqlx.ExtContext, courseID string, start, end time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM course_sessions WHERE course_id = $1 AND session_date >= $2 AND session_date <= $3`
	var count int
	if err := sqlx.GetContext(ctx, exec, &count, query, courseID, start, end); err != nil {
		return 0, fmt.Errorf("count course sessions in range: %w", err)
	}
	return count, nil
}

// CountForTeacherOnDate counts sessions across all courses owned by the teacher on the date.
func (r *SessionRepository) CountForTeacherOnDate(ctx context.Context, exec sqlx.ExtContext, teacherID string, date time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM course_sessions s JOIN courses c ON c.id = s.course_id WHERE c.teacher_id = $1 AND s.session_date = $2`
	var count int
	if err := sqlx.GetContext(ctx, exec, &count, query, teacherID, date); err != nil {
		return 0, fmt.Errorf("count teacher sessions on date: %w", err)
	}
	return count, nil
}

// CountForTeacherInRange counts the teacher's sessions between start and end inclusive.
func (r *SessionRepository) CountForTeacherInRange(ctx context.Context, exec sqlx.ExtContext, teacherID string, start, end time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM course_sessions s JOIN courses c ON c.id = s.course_id WHERE c.teacher_id = $1 AND s.session_date >= $2 AND s.session_date <= $3`
	var count int
	if err := sqlx.GetContext(ctx, exec, &count, query, teacherID, start, end); err != nil {
		return 0, fmt.Errorf("count teacher sessions in range: %w", err)
	}
	return count, nil
}

// CountForCourse counts every session ever scheduled for the course. The
// title rotation uses this lifetime total.
func (r *SessionRepository) CountForCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM course_sessions WHERE course_id = $1`
	var count int
	if err := sqlx.GetContext(ctx, exec, &count, query, courseID); err != nil {
		return 0, fmt.Errorf("count course sessions: %w", err)
	}
	return count, nil
}

// LastMatchingTitle returns the most recent session whose title contains the
// keyword (case-insensitive), or nil when there is none.
func (r *SessionRepository) LastMatchingTitle(ctx context.Context, exec sqlx.ExtContext, courseID, keyword string) (*models.CourseSession, error) {
	const query = `SELECT id, course_id, session_date, title, start_time, end_time, location, created_at, updated_at FROM course_sessions WHERE course_id = $1 AND title ILIKE '%' || $2 || '%' ORDER BY session_date DESC LIMIT 1`
	var session models.CourseSession
	err := sqlx.GetContext(ctx, exec, &session, query, courseID, keyword)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last session matching title: %w", err)
	}
	return &session, nil
}

// LastForCourse returns the most recent session for the course by date, or nil.
func (r *SessionRepository) LastForCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) (*models.CourseSession, error) {
	const query = `SELECT id, course_id, session_date, title, start_time, end_time, location, created_at, updated_at FROM course_sessions WHERE course_id = $1 ORDER BY session_date DESC LIMIT 1`
	var session models.CourseSession
	err := sqlx.GetContext(ctx, exec, &session, query, courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last session for course: %w", err)
	}
	return &session, nil
}

// Insert stores a new session row.
func (r *SessionRepository) Insert(ctx context.Context, exec sqlx.ExtContext, session *models.CourseSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	const query = `INSERT INTO course_sessions (id, course_id, session_date, title, start_time, end_time, location, created_at, updated_at) VALUES (:id, :course_id, :session_date, :title, :start_time, :end_time, :location, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, session); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// ListByCourse returns the course's sessions ordered by date ascending.
func (r *SessionRepository) ListByCourse(ctx context.Context, courseID string) ([]models.CourseSession, error) {
	const query = `SELECT id, course_id, session_date, title, start_time, end_time, location, created_at, updated_at FROM course_sessions WHERE course_id = $1 ORDER BY session_date ASC`
	var sessions []models.CourseSession
	if err := r.db.SelectContext(ctx, &sessions, query, courseID); err != nil {
		return nil, fmt.Errorf("list sessions by course: %w", err)
	}
	return sessions, nil
}

// ListWeek returns all sessions between start and end inclusive joined with
// course and teacher identity, for the timetable view and workload report.
func (r *SessionRepository) ListWeek(ctx context.Context, start, end time.Time) ([]models.WeekSession, error) {
	const query = `SELECT s.id, s.course_id, s.session_date, s.title, s.start_time, s.end_time, s.location, s.created_at, s.updated_at, c.name AS course_name, c.code AS course_code, c.teacher_id, t.full_name AS teacher_name FROM course_sessions s JOIN courses c ON c.id = s.course_id JOIN teachers t ON t.id = c.teacher_id WHERE s.session_date >= $1 AND s.session_date <= $2 ORDER BY s.session_date ASC, c.teacher_id ASC`
	var sessions []models.WeekSession
	if err := r.db.SelectContext(ctx, &sessions, query, start, end); err != nil {
		return nil, fmt.Errorf("list week sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes a session by id. Attendance rows cascade at the schema level.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM course_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
