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

type leaveService interface {
	Create(ctx context.Context, req dto.CreateLeaveRequest, actor *models.JWTClaims) (*models.TeacherLeave, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.TeacherLeave, error)
	Approve(ctx context.Context, id string, req dto.ApproveLeaveRequest, actor *models.JWTClaims) (*models.TeacherLeave, error)
	Delete(ctx context.Context, id string) error
}

// LeaveHandler exposes teacher leave endpoints.
type LeaveHandler struct {
	service leaveService
}

// NewLeaveHandler builds a new handler.
func NewLeaveHandler(service leaveService) *LeaveHandler {
	return &LeaveHandler{service: service}
}

// Create godoc
// @Summary Record a teacher leave window
// @Tags Leaves
// @Accept json
// @Produce json
// @Param payload body dto.CreateLeaveRequest true "Leave payload"
// @Success 201 {object} response.Envelope
// @Router /leaves [post]
func (h *LeaveHandler) Create(c *gin.Context) {
	var req dto.CreateLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid leave payload"))
		return
	}
	leave, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, leave)
}

// ListByTeacher godoc
// @Summary List a teacher's leave windows
// @Tags Leaves
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/leaves [get]
func (h *LeaveHandler) ListByTeacher(c *gin.Context) {
	leaves, err := h.service.ListByTeacher(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leaves, nil)
}

// Approve godoc
// @Summary Approve or revoke a leave window
// @Tags Leaves
// @Accept json
// @Produce json
// @Param id path string true "Leave ID"
// @Param payload body dto.ApproveLeaveRequest true "Approval payload"
// @Success 200 {object} response.Envelope
// @Router /leaves/{id}/approve [put]
func (h *LeaveHandler) Approve(c *gin.Context) {
	var req dto.ApproveLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approval payload"))
		return
	}
	leave, err := h.service.Approve(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leave, nil)
}

// Delete godoc
// @Summary Remove a leave window
// @Tags Leaves
// @Param id path string true "Leave ID"
// @Success 204
// @Router /leaves/{id} [delete]
func (h *LeaveHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
