package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/campus-ops/institute-api/internal/models"
	appErrors "github.com/campus-ops/institute-api/pkg/errors"
)

type sessionListRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.CourseSession, error)
	Delete(ctx context.Context, id string) error
}

// SessionService serves read and delete operations on stored sessions.
// Creation always goes through the scheduler.
type SessionService struct {
	repo    sessionListRepository
	courses analyticsCourseReader
	logger  *zap.Logger
}

// NewSessionService constructs a SessionService.
func NewSessionService(repo sessionListRepository, courses analyticsCourseReader, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{repo: repo, courses: courses, logger: logger}
}

// ListByCourse returns a course's sessions ordered by date.
func (s *SessionService) ListByCourse(ctx context.Context, courseID string) ([]models.CourseSession, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	rows, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return rows, nil
}

// Delete removes a session by id.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	return nil
}
