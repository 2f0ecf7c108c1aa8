package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-ops/institute-api/internal/dto"
	"github.com/campus-ops/institute-api/internal/models"
	appErrors "github.com/campus-ops/institute-api/pkg/errors"
)

type leaveRepository interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.TeacherLeave, error)
	FindByID(ctx context.Context, id string) (*models.TeacherLeave, error)
	Create(ctx context.Context, leave *models.TeacherLeave) error
	SetApproved(ctx context.Context, id string, approved bool, approvedBy string) error
	Delete(ctx context.Context, id string) error
}

type leaveTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// LeaveService manages teacher leave intervals.
type LeaveService struct {
	repo      leaveRepository
	teachers  leaveTeacherReader
	audit     schedulerAuditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLeaveService constructs a LeaveService.
func NewLeaveService(repo leaveRepository, teachers leaveTeacherReader, audit schedulerAuditLogger, validate *validator.Validate, logger *zap.Logger) *LeaveService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaveService{
		repo:      repo,
		teachers:  teachers,
		audit:     audit,
		validator: validate,
		logger:    logger,
	}
}

// Create registers a leave interval. The interval is inclusive on both
// ends and may overlap existing intervals for the same teacher.
func (s *LeaveService) Create(ctx context.Context, req dto.CreateLeaveRequest, actor *models.JWTClaims) (*models.TeacherLeave, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave payload")
	}
	start, err := time.ParseInLocation(dateLayout, req.StartDate, time.UTC)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "startDate must use YYYY-MM-DD format")
	}
	end, err := time.ParseInLocation(dateLayout, req.EndDate, time.UTC)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate must use YYYY-MM-DD format")
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate must not precede startDate")
	}

	if _, err := s.teachers.FindByID(ctx, req.TeacherID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	leave := &models.TeacherLeave{
		TeacherID: req.TeacherID,
		StartDate: start,
		EndDate:   end,
		Reason:    optionalStr(req.Reason),
	}
	if err := s.repo.Create(ctx, leave); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create leave")
	}
	return leave, nil
}

// ListByTeacher returns every leave interval registered for a teacher.
func (s *LeaveService) ListByTeacher(ctx context.Context, teacherID string) ([]models.TeacherLeave, error) {
	rows, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list leaves")
	}
	return rows, nil
}

// Approve records the approval decision for a pending leave.
func (s *LeaveService) Approve(ctx context.Context, id string, req dto.ApproveLeaveRequest, actor *models.JWTClaims) (*models.TeacherLeave, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	leave, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave")
	}

	if err := s.repo.SetApproved(ctx, id, req.Approved, actor.UserID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update leave")
	}
	leave.Approved = req.Approved
	leave.ApprovedBy = &actor.UserID

	if s.audit != nil {
		details, _ := json.Marshal(map[string]any{
			"teacher_id": leave.TeacherID,
			"approved":   req.Approved,
		})
		log := &models.AuditLog{
			UserID:     userIDPtr(actor),
			Action:     models.AuditActionLeaveApprove,
			Resource:   "leave",
			ResourceID: &id,
			Details:    string(details),
		}
		if auditErr := s.audit.CreateAuditLog(ctx, log); auditErr != nil {
			s.logger.Warn("failed to record leave audit", zap.Error(auditErr))
		}
	}
	return leave, nil
}

// Delete removes a leave interval.
func (s *LeaveService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "leave not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete leave")
	}
	return nil
}
