package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-electives-api/internal/models"
	appErrors "github.com/noah-isme/sma-electives-api/pkg/errors"
	"github.com/noah-isme/sma-electives-api/pkg/export"
)

// Export formats accepted by RosterService.Export.
const (
	ExportFormatCSV  = "csv"
	ExportFormatPDF  = "pdf"
	ExportFormatXLSX = "xlsx"
)

var rosterHeaders = []string{"RUN", "Nombre", "Correo", "Curso", "Electivo 1", "Electivo 2", "Electivo 3", "Formación General", "Fecha"}

type rosterRepository interface {
	ListRoster(ctx context.Context, filter models.RosterFilter) ([]models.RosterEntry, int, error)
	ElectiveUsage(ctx context.Context, year int, level string) ([]models.CapacityUsage, error)
	GEUsage(ctx context.Context, year int, level string) ([]models.CapacityUsage, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// titledRenderer renders a titled document. Workbooks use the title as sheet name.
type titledRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// CapacitySummary reports place usage for the open window.
type CapacitySummary struct {
	ProcessYear int                    `json:"process_year"`
	Level       string                 `json:"level"`
	Electives   []models.CapacityUsage `json:"electives"`
	GEElectives []models.CapacityUsage `json:"ge_electives"`
}

// ExportFile is a rendered roster export.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// RosterService serves the staff views of the enrollment ledger.
type RosterService struct {
	repo     rosterRepository
	csv      csvRenderer
	pdf      titledRenderer
	xlsx     titledRenderer
	window   AdmissionWindow
	limits   CapacityLimits
	location *time.Location
	logger   *zap.Logger
}

// NewRosterService constructs a RosterService.
func NewRosterService(repo rosterRepository, window AdmissionWindow, limits CapacityLimits, location *time.Location, logger *zap.Logger, csv csvRenderer, pdf titledRenderer) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	if csv == nil {
		csv = export.NewCSVExporter(0)
	}
	if pdf == nil {
		pdf = export.NewPDFExporter(22, 40, 0, 18)
	}
	return &RosterService{repo: repo, csv: csv, pdf: pdf, xlsx: export.NewXLSXExporter(), window: window, limits: limits, location: location, logger: logger}
}

// List returns one page of the roster. A zero ProcessYear means the open window.
func (s *RosterService) List(ctx context.Context, filter models.RosterFilter) ([]models.RosterEntry, *models.Pagination, error) {
	if filter.ProcessYear == 0 {
		filter.ProcessYear = s.window.ProcessYear
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	entries, total, err := s.repo.ListRoster(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return entries, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Export renders the full roster matching filter as CSV, PDF or XLSX.
func (s *RosterService) Export(ctx context.Context, filter models.RosterFilter, format string) (*ExportFile, error) {
	switch format {
	case ExportFormatCSV, ExportFormatPDF, ExportFormatXLSX:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv, pdf or xlsx")
	}
	if filter.ProcessYear == 0 {
		filter.ProcessYear = s.window.ProcessYear
	}
	filter.Page, filter.PageSize = 0, 0

	entries, _, err := s.repo.ListRoster(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	dataset := s.dataset(entries)

	title := fmt.Sprintf("Inscripción de Electivos %d", filter.ProcessYear)
	var content []byte
	var contentType string
	switch format {
	case ExportFormatPDF:
		contentType = "application/pdf"
		content, err = s.pdf.Render(dataset, title)
	case ExportFormatXLSX:
		contentType = export.XLSXContentType
		content, err = s.xlsx.Render(dataset, title)
	default:
		contentType = "text/csv; charset=utf-8"
		content, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("roster exported", zap.String("format", format), zap.Int("rows", len(entries)), zap.Int("process_year", filter.ProcessYear))

	return &ExportFile{
		Filename:    fmt.Sprintf("inscripciones-%d.%s", filter.ProcessYear, format),
		ContentType: contentType,
		Content:     content,
	}, nil
}

func (s *RosterService) dataset(entries []models.RosterEntry) export.Dataset {
	rows := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, map[string]string{
			"RUN":               e.StudentRUN,
			"Nombre":            e.StudentName,
			"Correo":            e.Email,
			"Curso":             e.ClassName,
			"Electivo 1":        e.Elective1,
			"Electivo 2":        e.Elective2,
			"Electivo 3":        e.Elective3,
			"Formación General": e.GEElective,
			"Fecha":             e.EnrolledAt.In(s.location).Format(ConfirmationTimeLayout),
		})
	}
	return export.Dataset{Headers: rosterHeaders, Rows: rows}
}

// Capacity reports enrolled and remaining places of the open window.
func (s *RosterService) Capacity(ctx context.Context) (*CapacitySummary, error) {
	electives, err := s.repo.ElectiveUsage(ctx, s.window.ProcessYear, s.window.Level)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load elective usage")
	}
	ge, err := s.repo.GEUsage(ctx, s.window.ProcessYear, s.window.Level)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ge usage")
	}
	return &CapacitySummary{
		ProcessYear: s.window.ProcessYear,
		Level:       s.window.Level,
		Electives:   withCapacity(electives, s.limits.Elective),
		GEElectives: withCapacity(ge, s.limits.GE),
	}, nil
}

func withCapacity(usage []models.CapacityUsage, capacity int) []models.CapacityUsage {
	for i := range usage {
		usage[i].Capacity = capacity
		usage[i].Remaining = capacity - usage[i].Enrolled
		if usage[i].Remaining < 0 {
			usage[i].Remaining = 0
		}
	}
	return usage
}
