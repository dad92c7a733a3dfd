package service

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/leadflow-api/internal/models"
	"github.com/noah-isme/leadflow-api/pkg/export"
)

// LeadExportHeaders is the fixed column order of every lead export.
var LeadExportHeaders = []string{
	"Student Name",
	"Phone Number",
	"Date",
	"Course",
	"Stage",
	"Origin",
	"Assigned To",
	"Last Updated",
}

const exportDateLayout = "January 2, 2006"

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered export ready to be sent as an attachment.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// ExportService flattens lead collections into tabular files.
type ExportService struct {
	csv    csvRenderer
	pdf    pdfRenderer
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService. Dates render in loc.
func NewExportService(loc *time.Location, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{csv: csv, pdf: pdf, loc: loc, logger: logger, now: time.Now}
}

// Dataset maps leads to rows in input order.
func (s *ExportService) Dataset(leads []models.Lead) export.Dataset {
	rows := make([][]string, 0, len(leads))
	for _, l := range leads {
		lastUpdated := ""
		if l.LastUpdated != nil {
			lastUpdated = s.formatDate(*l.LastUpdated)
		}
		rows = append(rows, []string{
			l.StudentName,
			l.PhoneNumber,
			s.formatDate(l.Date),
			l.CourseSelected,
			string(l.Stage),
			l.Origin,
			l.AssignedTo,
			lastUpdated,
		})
	}
	headers := make([]string, len(LeadExportHeaders))
	copy(headers, LeadExportHeaders)
	return export.Dataset{Headers: headers, Rows: rows}
}

// Render builds the dataset for leads and encodes it in format.
func (s *ExportService) Render(format export.Format, name string, leads []models.Lead) (*ExportFile, error) {
	dataset := s.Dataset(leads)

	var (
		body []byte
		err  error
	)
	switch format {
	case export.FormatCSV:
		body, err = s.csv.Render(dataset)
	case export.FormatPDF:
		body, err = s.pdf.Render(dataset, exportTitle(name))
	default:
		err = fmt.Errorf("unsupported format %s", format)
	}
	if err != nil {
		s.logger.Error("render export failed", zap.String("format", string(format)), zap.Error(err))
		return nil, err
	}

	return &ExportFile{
		Filename:    s.buildFilename(name, format),
		ContentType: format.ContentType(),
		Body:        body,
		Rows:        len(dataset.Rows),
	}, nil
}

func (s *ExportService) formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(s.loc).Format(exportDateLayout)
}

func (s *ExportService) buildFilename(name string, format export.Format) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s.%s", sanitizeFilename(name), timestamp, format)
}

func exportTitle(name string) string {
	if name == "" {
		return "Leads"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "leads"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
