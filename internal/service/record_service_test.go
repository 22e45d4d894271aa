package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/volunteer-hub-api/internal/models"
	appErrors "github.com/noah-isme/volunteer-hub-api/pkg/errors"
)

type mockRecordRepo struct {
	records []models.ServiceRecordDetail
}

func (m *mockRecordRepo) FindByID(ctx context.Context, id string) (*models.ServiceRecordDetail, error) {
	for _, r := range m.records {
		if r.ID == id {
			clone := r
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockRecordRepo) List(ctx context.Context, filter models.ServiceRecordFilter) ([]models.ServiceRecordDetail, int, error) {
	var out []models.ServiceRecordDetail
	for _, r := range m.records {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		out = append(out, r)
	}
	if filter.Page > 1 {
		return nil, len(out), nil
	}
	return out, len(out), nil
}

func (m *mockRecordRepo) ListManaged(ctx context.Context, organizerID string, filter models.ServiceRecordFilter) ([]models.ServiceRecordDetail, int, error) {
	return m.records, len(m.records), nil
}

func (m *mockRecordRepo) StatsByUser(ctx context.Context, userID string) (*models.ServiceStats, error) {
	return &models.ServiceStats{TotalRecords: len(m.records)}, nil
}

func sampleRecords() []models.ServiceRecordDetail {
	created := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	return []models.ServiceRecordDetail{
		{
			ServiceRecord: models.ServiceRecord{
				ID: "rec-1", SignupID: "sub-1", ActivityID: "act-1", UserID: "stu-1",
				DurationMinutes: 150, TeacherRating: 5, PointsEarned: 10, CreatedAt: created,
			},
			ActivityTitle: "Beach cleanup",
			StudentName:   "Dana Martin",
			StudentNo:     "2026001",
		},
		{
			ServiceRecord: models.ServiceRecord{
				ID: "rec-2", SignupID: "sub-2", ActivityID: "act-2", UserID: "stu-1",
				DurationMinutes: 60, TeacherRating: 3, PointsEarned: 6, CreatedAt: created.AddDate(0, 0, 7),
			},
			ActivityTitle: "Food drive",
			StudentName:   "Dana Martin",
			StudentNo:     "2026001",
		},
	}
}

func TestRecordServiceGetOwnership(t *testing.T) {
	svc := NewRecordService(&mockRecordRepo{records: sampleRecords()}, zap.NewNop())

	record, err := svc.Get(context.Background(), "rec-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "Beach cleanup", record.ActivityTitle)

	_, err = svc.Get(context.Background(), "rec-1", "stu-2")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	record, err = svc.Get(context.Background(), "rec-1", "")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", record.ID)

	_, err = svc.Get(context.Background(), "missing", "")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestRecordServiceExportCSV(t *testing.T) {
	svc := NewRecordService(&mockRecordRepo{records: sampleRecords()}, zap.NewNop())

	result, err := svc.Export(context.Background(), "stu-1", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasSuffix(result.FileName, ".csv"))

	content := string(result.Content)
	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Activity")
	assert.Contains(t, content, "Beach cleanup")
	assert.Contains(t, content, "2.5")
	assert.Contains(t, content, "2026-04-02")
}

func TestRecordServiceExportPDF(t *testing.T) {
	svc := NewRecordService(&mockRecordRepo{records: sampleRecords()}, zap.NewNop())

	result, err := svc.Export(context.Background(), "stu-1", ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Content), "%PDF"))
}

func TestRecordServiceExportUnknownFormat(t *testing.T) {
	svc := NewRecordService(&mockRecordRepo{}, zap.NewNop())

	_, err := svc.Export(context.Background(), "stu-1", ExportFormat("xlsx"))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestRecordServiceListMineScopesUser(t *testing.T) {
	repo := &mockRecordRepo{records: sampleRecords()}
	svc := NewRecordService(repo, zap.NewNop())

	records, pagination, err := svc.ListMine(context.Background(), "stu-1", models.ServiceRecordFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 2, pagination.TotalCount)

	records, _, err = svc.ListMine(context.Background(), "stu-2", models.ServiceRecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}
