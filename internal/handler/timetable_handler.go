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

type timetableService interface {
	GenerateWeek(ctx context.Context, req dto.GenerateWeekRequest, actor *models.JWTClaims) (*dto.GenerateWeekResult, error)
	Week(ctx context.Context, weekStart string) (*dto.TimetableWeek, error)
}

type workloadRefresher interface {
	EnqueueRefresh(weekStart string)
}

// TimetableHandler exposes the bulk generator and the week view.
type TimetableHandler struct {
	service   timetableService
	refresher workloadRefresher
}

// NewTimetableHandler builds a new handler. The refresher is optional.
func NewTimetableHandler(service timetableService, refresher workloadRefresher) *TimetableHandler {
	return &TimetableHandler{service: service, refresher: refresher}
}

// Generate godoc
// @Summary Generate sessions for one week
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateWeekRequest true "Week to fill"
// @Success 200 {object} response.Envelope
// @Router /timetable/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateWeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
		return
	}
	result, err := h.service.GenerateWeek(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.refresher != nil {
		h.refresher.EnqueueRefresh(result.WeekStart)
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Week godoc
// @Summary Week view with hour-cap flags
// @Tags Timetable
// @Produce json
// @Param weekStart query string false "Week start date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /timetable/week [get]
func (h *TimetableHandler) Week(c *gin.Context) {
	week, err := h.service.Week(c.Request.Context(), c.Query("weekStart"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, week, nil)
}
