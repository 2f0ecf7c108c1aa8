package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campus-ops/institute-api/internal/dto"
	"github.com/campus-ops/institute-api/internal/models"
	appErrors "github.com/campus-ops/institute-api/pkg/errors"
	"github.com/campus-ops/institute-api/pkg/response"
)

type sessionCreator interface {
	CreateSession(ctx context.Context, courseID string, req dto.CreateSessionRequest, actor *models.JWTClaims) (*models.CourseSession, error)
}

type sessionReader interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.CourseSession, error)
	Delete(ctx context.Context, id string) error
}

// SessionHandler exposes session endpoints.
type SessionHandler struct {
	creator   sessionCreator
	reader    sessionReader
	refresher workloadRefresher
}

// NewSessionHandler builds a new handler. refresher may be nil.
func NewSessionHandler(creator sessionCreator, reader sessionReader, refresher workloadRefresher) *SessionHandler {
	return &SessionHandler{creator: creator, reader: reader, refresher: refresher}
}

// Create godoc
// @Summary Manually place a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}
	session, err := h.creator.CreateSession(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.refresher != nil {
		h.refresher.EnqueueRefresh("")
	}
	response.Created(c, session)
}

// List godoc
// @Summary List a course's sessions
// @Tags Sessions
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.reader.ListByCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// Delete godoc
// @Summary Delete a session
// @Tags Sessions
// @Param id path string true "Session ID"
// @Success 204
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.reader.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
