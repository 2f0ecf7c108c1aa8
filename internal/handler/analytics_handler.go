package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campus-ops/institute-api/internal/dto"
	"github.com/campus-ops/institute-api/pkg/response"
)

type courseAnalyticsService interface {
	CourseAnalytics(ctx context.Context, courseID string) (*dto.CourseAnalytics, error)
}

// AnalyticsHandler exposes course outcome analytics.
type AnalyticsHandler struct {
	service courseAnalyticsService
}

// NewAnalyticsHandler builds a new handler.
func NewAnalyticsHandler(service courseAnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// Course godoc
// @Summary Attendance and grade analytics for a course
// @Tags Analytics
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/analytics [get]
func (h *AnalyticsHandler) Course(c *gin.Context) {
	analytics, err := h.service.CourseAnalytics(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analytics, nil)
}
