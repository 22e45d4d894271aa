package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/volunteer-hub-api/internal/models"
	appErrors "github.com/noah-isme/volunteer-hub-api/pkg/errors"
	"github.com/noah-isme/volunteer-hub-api/pkg/export"
)

type recordRepository interface {
	FindByID(ctx context.Context, id string) (*models.ServiceRecordDetail, error)
	List(ctx context.Context, filter models.ServiceRecordFilter) ([]models.ServiceRecordDetail, int, error)
	ListManaged(ctx context.Context, organizerID string, filter models.ServiceRecordFilter) ([]models.ServiceRecordDetail, int, error)
	StatsByUser(ctx context.Context, userID string) (*models.ServiceStats, error)
}

// ExportFormat selects the rendering of a record export.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult is a rendered export document.
type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

// RecordService exposes the immutable service history: per-student records,
// organizer views, aggregates and file exports. Records are only ever
// created inside the review transaction, never through this service.
type RecordService struct {
	repo   recordRepository
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewRecordService constructs RecordService.
func NewRecordService(repo recordRepository, logger *zap.Logger) *RecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordService{
		repo:   repo,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// Get returns one record. Students may only read their own; organizers and
// admins pass ownerID as empty.
func (s *RecordService) Get(ctx context.Context, id, ownerID string) (*models.ServiceRecordDetail, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "service record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load service record")
	}
	if ownerID != "" && record.UserID != ownerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "record belongs to another user")
	}
	return record, nil
}

// ListMine returns the caller's records with pagination metadata.
func (s *RecordService) ListMine(ctx context.Context, userID string, filter models.ServiceRecordFilter) ([]models.ServiceRecordDetail, *models.Pagination, error) {
	filter.UserID = userID
	return s.list(ctx, filter, "")
}

// ListManaged returns records over the organizer's activities.
func (s *RecordService) ListManaged(ctx context.Context, organizerID string, filter models.ServiceRecordFilter) ([]models.ServiceRecordDetail, *models.Pagination, error) {
	return s.list(ctx, filter, organizerID)
}

func (s *RecordService) list(ctx context.Context, filter models.ServiceRecordFilter, organizerID string) ([]models.ServiceRecordDetail, *models.Pagination, error) {
	var (
		records []models.ServiceRecordDetail
		total   int
		err     error
	)
	if organizerID != "" {
		records, total, err = s.repo.ListManaged(ctx, organizerID, filter)
	} else {
		records, total, err = s.repo.List(ctx, filter)
	}
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list service records")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Stats aggregates a user's service history.
func (s *RecordService) Stats(ctx context.Context, userID string) (*models.ServiceStats, error) {
	stats, err := s.repo.StatsByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load service stats")
	}
	return stats, nil
}

// Export renders a user's full record history as CSV or PDF.
func (s *RecordService) Export(ctx context.Context, userID string, format ExportFormat) (*ExportResult, error) {
	filter := models.ServiceRecordFilter{UserID: userID, Page: 1, PageSize: 100}
	var all []models.ServiceRecordDetail
	for {
		page, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load records for export")
		}
		all = append(all, page...)
		if len(all) >= total || len(page) == 0 {
			break
		}
		filter.Page++
	}

	dataset := recordDataset(all)
	stamp := time.Now().UTC().Format("20060102")

	switch format {
	case ExportFormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("service-records-%s.csv", stamp),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	case ExportFormatPDF:
		content, err := s.pdf.Render(dataset, "Service Records")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("service-records-%s.pdf", stamp),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func recordDataset(records []models.ServiceRecordDetail) export.Dataset {
	headers := []string{"Activity", "Student", "Student No", "Duration (h)", "Rating", "Points", "Date"}
	rows := make([]map[string]string, 0, len(records))
	for _, r := range records {
		hours := float64(r.DurationMinutes) / 60.0
		rows = append(rows, map[string]string{
			"Activity":     r.ActivityTitle,
			"Student":      r.StudentName,
			"Student No":   r.StudentNo,
			"Duration (h)": strings.TrimRight(strings.TrimRight(strconv.FormatFloat(hours, 'f', 2, 64), "0"), "."),
			"Rating":       strconv.Itoa(r.TeacherRating),
			"Points":       strconv.Itoa(r.PointsEarned),
			"Date":         r.CreatedAt.Format("2006-01-02"),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
