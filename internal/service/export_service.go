package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campus-ops/institute-api/internal/dto"
	appErrors "github.com/campus-ops/institute-api/pkg/errors"
	"github.com/campus-ops/institute-api/pkg/export"
	"github.com/campus-ops/institute-api/pkg/storage"
)

// ExportFormat enumerates supported report formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type workloadReporter interface {
	WeeklyReport(ctx context.Context, weekStart string) (*dto.WorkloadReport, error)
}

type timetableReporter interface {
	Week(ctx context.Context, weekStart string) (*dto.TimetableWeek, error)
}

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures generation metadata for a stored export file.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders workload and timetable reports into downloadable
// CSV or PDF files.
type ExportService struct {
	workload  workloadReporter
	timetable timetableReporter
	storage   exportStorage
	csv       csvRenderer
	pdf       pdfRenderer
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(workload workloadReporter, timetable timetableReporter, store exportStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		workload:  workload,
		timetable: timetable,
		storage:   store,
		csv:       csv,
		pdf:       pdf,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
	}
}

// WorkloadExport renders the weekly fairness report and stores the file.
func (s *ExportService) WorkloadExport(ctx context.Context, weekStart string, format ExportFormat) (*ExportResult, error) {
	report, err := s.workload.WeeklyReport(ctx, weekStart)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]string, 0, len(report.Items))
	for _, item := range report.Items {
		rows = append(rows, map[string]string{
			"Teacher":  item.TeacherName,
			"Sessions": fmt.Sprintf("%d", item.Sessions),
			"Hours":    fmt.Sprintf("%d", item.Hours),
			"Status":   item.Status,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Teacher", "Sessions", "Hours", "Status"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Workload Report %s", report.WeekStart)
	name := fmt.Sprintf("workload_%s", report.WeekStart)
	return s.store(dataset, title, name, format)
}

// TimetableExport renders the week view and stores the file.
func (s *ExportService) TimetableExport(ctx context.Context, weekStart string, format ExportFormat) (*ExportResult, error) {
	week, err := s.timetable.Week(ctx, weekStart)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]string, 0, len(week.Items))
	for _, item := range week.Items {
		rows = append(rows, map[string]string{
			"Date":    item.SessionDate.Format(dateLayout),
			"Course":  fmt.Sprintf("%s %s", item.CourseCode, item.CourseName),
			"Teacher": item.TeacherName,
			"Title":   item.Title,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Date", "Course", "Teacher", "Title"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Timetable %s", week.WeekStart)
	name := fmt.Sprintf("timetable_%s", week.WeekStart)
	return s.store(dataset, title, name, format)
}

func (s *ExportService) store(dataset export.Dataset, title, name string, format ExportFormat) (*ExportResult, error) {
	var payload []byte
	var err error
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %s", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("%s_%s.%s", name, time.Now().UTC().Format("20060102_150405"), format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(name, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export url")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

// Open resolves a signed token and returns a handle to the stored file.
func (s *ExportService) Open(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid export token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return file, nil
}

// Cleanup removes stored files older than ttl, defaulting to the configured
// result TTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}
