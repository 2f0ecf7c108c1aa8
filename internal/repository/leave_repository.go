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

// LeaveRepository provides persistence for teacher leave intervals.
type LeaveRepository struct {
	db *sqlx.DB
}

// NewLeaveRepository creates a new leave repository.
func NewLeaveRepository(db *sqlx.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

// IsOnLeave reports whether any interval for the teacher covers the date.
// When requireApproved is set only approved intervals match.
func (r *LeaveRepository) IsOnLeave(ctx context.Context, teacherID string, date time.Time, requireApproved bool) (bool, error) {
	query := `SELECT 1 FROM teacher_leaves WHERE teacher_id = $1 AND start_date <= $2 AND end_date >= $2`
	if requireApproved {
		query += ` AND approved = TRUE`
	}
	query += ` LIMIT 1`

	var one int
	err := r.db.GetContext(ctx, &one, query, teacherID, date)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check teacher leave: %w", err)
	}
	return true, nil
}

// ListByTeacher returns the teacher's leave intervals ordered by start date.
func (r *LeaveRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.TeacherLeave, error) {
	const query = `SELECT id, teacher_id, start_date, end_date, reason, approved, approved_by, created_at, updated_at FROM teacher_leaves WHERE teacher_id = $1 ORDER BY start_date DESC`
	var leaves []models.TeacherLeave
	if err := r.db.SelectContext(ctx, &leaves, query, teacherID); err != nil {
		return nil, fmt.Errorf("list leaves by teacher: %w", err)
	}
	return leaves, nil
}

// FindByID loads a leave interval by id.
func (r *LeaveRepository) FindByID(ctx context.Context, id string) (*models.TeacherLeave, error) {
	const query = `SELECT id, teacher_id, start_date, end_date, reason, approved, approved_by, created_at, updated_at FROM teacher_leaves WHERE id = $1`
	var leave models.TeacherLeave
	if err := r.db.GetContext(ctx, &leave, query, id); err != nil {
		return nil, err
	}
	return &leave, nil
}

// Create stores a new leave interval.
func (r *LeaveRepository) Create(ctx context.Context, leave *models.TeacherLeave) error {
	if leave.ID == "" {
		leave.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if leave.CreatedAt.IsZero() {
		leave.CreatedAt = now
	}
	leave.UpdatedAt = now

	const query = `INSERT INTO teacher_leaves (id, teacher_id, start_date, end_date, reason, approved, approved_by, created_at, updated_at) VALUES (:id, :teacher_id, :start_date, :end_date, :reason, :approved, :approved_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, leave); err != nil {
		return fmt.Errorf("create leave: %w", err)
	}
	return nil
}

// SetApproved updates the approval flag and approver.
func (r *LeaveRepository) SetApproved(ctx context.Context, id string, approved bool, approvedBy string) error {
	const query = `UPDATE teacher_leaves SET approved = $2, approved_by = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, approved, approvedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("approve leave: %w", err)
	}
	return nil
}

// Delete removes a leave interval by id.
func (r *LeaveRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM teacher_leaves WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete leave: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
