package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campus-ops/institute-api/internal/dto"
	"github.com/campus-ops/institute-api/internal/service"
	appErrors "github.com/campus-ops/institute-api/pkg/errors"
	"github.com/campus-ops/institute-api/pkg/response"
)

type workloadReportService interface {
	WeeklyReport(ctx context.Context, weekStart string) (*dto.WorkloadReport, error)
}

type exportService interface {
	WorkloadExport(ctx context.Context, weekStart string, format service.ExportFormat) (*service.ExportResult, error)
	TimetableExport(ctx context.Context, weekStart string, format service.ExportFormat) (*service.ExportResult, error)
	Open(token string) (*os.File, error)
}

// ReportHandler serves workload fairness reports and file exports.
type ReportHandler struct {
	workload workloadReportService
	exports  exportService
}

// NewReportHandler builds a new handler.
func NewReportHandler(workload workloadReportService, exports exportService) *ReportHandler {
	return &ReportHandler{workload: workload, exports: exports}
}

// Workload godoc
// @Summary Weekly teacher workload report
// @Tags Reports
// @Produce json
// @Param weekStart query string false "Week start date (YYYY-MM-DD), snapped to Monday"
// @Success 200 {object} response.Envelope
// @Router /reports/workload [get]
func (h *ReportHandler) Workload(c *gin.Context) {
	report, err := h.workload.WeeklyReport(c.Request.Context(), c.Query("weekStart"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// WorkloadExport godoc
// @Summary Export the workload report as CSV or PDF
// @Tags Reports
// @Produce json
// @Param weekStart query string false "Week start date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {object} response.Envelope
// @Router /reports/workload/export [get]
func (h *ReportHandler) WorkloadExport(c *gin.Context) {
	result, err := h.exports.WorkloadExport(c.Request.Context(), c.Query("weekStart"), exportFormat(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// TimetableExport godoc
// @Summary Export the weekly timetable as CSV or PDF
// @Tags Reports
// @Produce json
// @Param weekStart query string false "Week start date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {object} response.Envelope
// @Router /reports/timetable/export [get]
func (h *ReportHandler) TimetableExport(c *gin.Context) {
	result, err := h.exports.TimetableExport(c.Request.Context(), c.Query("weekStart"), exportFormat(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download an exported report via signed token
// @Tags Reports
// @Produce octet-stream
// @Param token path string true "Signed export token"
// @Success 200 {file} binary
// @Router /exports/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, err := h.exports.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}
	name := filepath.Base(file.Name())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", name))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), mimeFor(name), file, nil)
}

func exportFormat(c *gin.Context) service.ExportFormat {
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "csv")))
	return service.ExportFormat(format)
}

func mimeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
