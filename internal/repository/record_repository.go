package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/volunteer-hub-api/internal/models"
)

// RecordRepository persists immutable service records.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository constructs the repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Create inserts a service record. The signup_id unique constraint backs the
// exactly-once guarantee at the storage level.
func (r *RecordRepository) Create(ctx context.Context, record *models.ServiceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO service_records (id, signup_id, activity_id, user_id, duration_minutes,
        teacher_rating, teacher_evaluation, student_evaluation, points_earned, created_at)
        VALUES (:id, :signup_id, :activity_id, :user_id, :duration_minutes,
        :teacher_rating, :teacher_evaluation, :student_evaluation, :points_earned, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create service record: %w", err)
	}
	return nil
}

// ExistsBySignup reports whether a record was already materialized.
func (r *RecordRepository) ExistsBySignup(ctx context.Context, signupID string) (bool, error) {
	const query = `SELECT 1 FROM service_records WHERE signup_id = $1 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, signupID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check service record: %w", err)
	}
	return true, nil
}

// FindByID returns a record with metadata.
func (r *RecordRepository) FindByID(ctx context.Context, id string) (*models.ServiceRecordDetail, error) {
	const query = `SELECT r.*, a.title AS activity_title, u.full_name AS student_name, u.username AS student_no
        FROM service_records r
        JOIN activities a ON a.id = r.activity_id
        JOIN users u ON u.id = r.user_id
        WHERE r.id = $1`
	var detail models.ServiceRecordDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns records with metadata filtered by user and/or activity.
func (r *RecordRepository) List(ctx context.Context, filter models.ServiceRecordFilter) ([]models.ServiceRecordDetail, int, error) {
	base := `FROM service_records r
JOIN activities a ON a.id = r.activity_id
JOIN users u ON u.id = r.user_id`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("r.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.ActivityID != "" {
		conditions = append(conditions, fmt.Sprintf("r.activity_id = $%d", len(args)+1))
		args = append(args, filter.ActivityID)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT r.*, a.title AS activity_title, u.full_name AS student_name, u.username AS student_no
        %s ORDER BY r.created_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var records []models.ServiceRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list service records: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count service records: %w", err)
	}
	return records, total, nil
}

// ListManaged returns records for activities owned by the organizer.
func (r *RecordRepository) ListManaged(ctx context.Context, organizerID string, filter models.ServiceRecordFilter) ([]models.ServiceRecordDetail, int, error) {
	base := `FROM service_records r
JOIN activities a ON a.id = r.activity_id
JOIN users u ON u.id = r.user_id`
	conditions := []string{"a.organizer_id = $1"}
	args := []interface{}{organizerID}

	if filter.ActivityID != "" {
		conditions = append(conditions, fmt.Sprintf("r.activity_id = $%d", len(args)+1))
		args = append(args, filter.ActivityID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("r.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}

	clause := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT r.*, a.title AS activity_title, u.full_name AS student_name, u.username AS student_no
        %s ORDER BY r.created_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var records []models.ServiceRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list managed records: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count managed records: %w", err)
	}
	return records, total, nil
}

// StatsByUser aggregates a user's service history.
func (r *RecordRepository) StatsByUser(ctx context.Context, userID string) (*models.ServiceStats, error) {
	const query = `SELECT COUNT(*) AS total_records,
        COALESCE(SUM(duration_minutes), 0) AS total_minutes,
        COALESCE(SUM(points_earned), 0) AS total_points,
        COALESCE(AVG(teacher_rating), 0) AS average_rating
        FROM service_records WHERE user_id = $1`
	var row struct {
		TotalRecords  int     `db:"total_records"`
		TotalMinutes  int     `db:"total_minutes"`
		TotalPoints   int     `db:"total_points"`
		AverageRating float64 `db:"average_rating"`
	}
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		return nil, fmt.Errorf("service stats: %w", err)
	}
	return &models.ServiceStats{
		TotalRecords:      row.TotalRecords,
		TotalServiceHours: float64(row.TotalMinutes) / 60.0,
		TotalPointsEarned: row.TotalPoints,
		AverageRating:     row.AverageRating,
	}, nil
}
