package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campus-ops/institute-api/internal/dto"
	"github.com/campus-ops/institute-api/internal/models"
	"github.com/campus-ops/institute-api/pkg/response"
)

type planService interface {
	Summary(ctx context.Context, courseID string) (*dto.PlanSummary, error)
	Suggest(ctx context.Context, courseID string) (*dto.PlanSuggestion, error)
	Apply(ctx context.Context, courseID string, actor *models.JWTClaims) (*dto.ApplyPlanResult, error)
}

// PlanHandler exposes completion-plan endpoints.
type PlanHandler struct {
	plans     planService
	refresher workloadRefresher
}

// NewPlanHandler builds a new handler. refresher may be nil.
func NewPlanHandler(plans planService, refresher workloadRefresher) *PlanHandler {
	return &PlanHandler{plans: plans, refresher: refresher}
}

// Summary godoc
// @Summary Course completion plan summary
// @Tags Plans
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/plan [get]
func (h *PlanHandler) Summary(c *gin.Context) {
	summary, err := h.plans.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Suggest godoc
// @Summary Preview forward-filled sessions for a course
// @Tags Plans
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/plan/suggest [get]
func (h *PlanHandler) Suggest(c *gin.Context) {
	forecast, err := h.plans.Suggest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, forecast, nil)
}

// Apply godoc
// @Summary Persist forward-filled sessions for a course
// @Tags Plans
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/plan/apply [post]
func (h *PlanHandler) Apply(c *gin.Context) {
	result, err := h.plans.Apply(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.refresher != nil && result.Created > 0 {
		h.refresher.EnqueueRefresh("")
	}
	response.JSON(c, http.StatusOK, result, nil)
}
