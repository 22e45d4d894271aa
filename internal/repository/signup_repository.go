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

// SignupRepository handles persistence of signups and the transactional
// review write set.
type SignupRepository struct {
	db *sqlx.DB
}

// NewSignupRepository constructs the repository.
func NewSignupRepository(db *sqlx.DB) *SignupRepository {
	return &SignupRepository{db: db}
}

const signupColumns = `id, activity_id, user_id, status, reason, reject_reason, signed_in, signed_out,
        sign_in_time, sign_out_time, student_rating, student_evaluation, teacher_rating, teacher_evaluation,
        teacher_rating_confirmed_at, created_at, updated_at`

// FindByID returns a signup by its ID.
func (r *SignupRepository) FindByID(ctx context.Context, id string) (*models.Signup, error) {
	query := fmt.Sprintf(`SELECT %s FROM signups WHERE id = $1`, signupColumns)
	var signup models.Signup
	if err := r.db.GetContext(ctx, &signup, query, id); err != nil {
		return nil, err
	}
	return &signup, nil
}

// FindByActivityAndUser returns the unique signup for an (activity, user) pair.
func (r *SignupRepository) FindByActivityAndUser(ctx context.Context, activityID, userID string) (*models.Signup, error) {
	query := fmt.Sprintf(`SELECT %s FROM signups WHERE activity_id = $1 AND user_id = $2`, signupColumns)
	var signup models.Signup
	if err := r.db.GetContext(ctx, &signup, query, activityID, userID); err != nil {
		return nil, err
	}
	return &signup, nil
}

// Exists reports whether a signup already exists for the pair.
func (r *SignupRepository) Exists(ctx context.Context, activityID, userID string) (bool, error) {
	const query = `SELECT 1 FROM signups WHERE activity_id = $1 AND user_id = $2 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, activityID, userID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check signup exists: %w", err)
	}
	return true, nil
}

// Create persists a new signup record.
func (r *SignupRepository) Create(ctx context.Context, signup *models.Signup) error {
	if signup.ID == "" {
		signup.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if signup.CreatedAt.IsZero() {
		signup.CreatedAt = now
	}
	signup.UpdatedAt = now
	if signup.Status == "" {
		signup.Status = models.SignupStatusPending
	}
	const query = `INSERT INTO signups (id, activity_id, user_id, status, reason, signed_in, signed_out, created_at, updated_at)
        VALUES (:id, :activity_id, :user_id, :status, :reason, :signed_in, :signed_out, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, signup); err != nil {
		return fmt.Errorf("create signup: %w", err)
	}
	return nil
}

// UpdateStatus transitions a pending signup to its approval outcome. Returns
// false when no row changed because the signup was no longer pending.
func (r *SignupRepository) UpdateStatus(ctx context.Context, id string, status models.SignupStatus, rejectReason *string) (bool, error) {
	const query = `UPDATE signups SET status = $2, reject_reason = $3, updated_at = $4
        WHERE id = $1 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, id, status, rejectReason, time.Now().UTC(), models.SignupStatusPending)
	if err != nil {
		return false, fmt.Errorf("update signup status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update signup status: %w", err)
	}
	return affected > 0, nil
}

// Delete removes a signup (pre-check-in cancellation only).
func (r *SignupRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM signups WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete signup: %w", err)
	}
	return nil
}

// MarkSignedIn flips the check-in flag. The signed_in guard in the WHERE
// clause serializes concurrent check-ins on the same row: exactly one update
// wins, the loser sees zero rows affected.
func (r *SignupRepository) MarkSignedIn(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE signups SET signed_in = TRUE, sign_in_time = $2, updated_at = $2
        WHERE id = $1 AND signed_in = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("mark signed in: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark signed in: %w", err)
	}
	return affected > 0, nil
}

// MarkSignedOut flips the check-out flag and stores the optional self-review,
// guarded the same way as MarkSignedIn.
func (r *SignupRepository) MarkSignedOut(ctx context.Context, id string, at time.Time, studentRating *int, studentEvaluation *string) (bool, error) {
	const query = `UPDATE signups SET signed_out = TRUE, sign_out_time = $2,
        student_rating = COALESCE($3, student_rating),
        student_evaluation = COALESCE($4, student_evaluation),
        updated_at = $2
        WHERE id = $1 AND signed_in = TRUE AND signed_out = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, at, studentRating, studentEvaluation)
	if err != nil {
		return false, fmt.Errorf("mark signed out: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark signed out: %w", err)
	}
	return affected > 0, nil
}

// FinalizeReviewParams is the write set committed atomically by a review.
type FinalizeReviewParams struct {
	SignupID          string
	TeacherRating     int
	TeacherEvaluation *string
	ConfirmedAt       time.Time
	Record            *models.ServiceRecord
	LedgerEntry       *models.PointsEntry
}

// FinalizeReview applies the review mutation, the optional service record
// insert and the optional ledger insert in one transaction. Notification
// dispatch stays outside this boundary.
func (r *SignupRepository) FinalizeReview(ctx context.Context, params FinalizeReviewParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin review tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const updateQuery = `UPDATE signups SET teacher_rating = $2, teacher_evaluation = $3,
        teacher_rating_confirmed_at = $4, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateQuery, params.SignupID, params.TeacherRating, params.TeacherEvaluation, params.ConfirmedAt); err != nil {
		return fmt.Errorf("update signup review: %w", err)
	}

	if params.Record != nil {
		rec := params.Record
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = params.ConfirmedAt
		}
		const recordQuery = `INSERT INTO service_records (id, signup_id, activity_id, user_id, duration_minutes,
            teacher_rating, teacher_evaluation, student_evaluation, points_earned, created_at)
            VALUES (:id, :signup_id, :activity_id, :user_id, :duration_minutes,
            :teacher_rating, :teacher_evaluation, :student_evaluation, :points_earned, :created_at)`
		if _, err := tx.NamedExecContext(ctx, recordQuery, rec); err != nil {
			return fmt.Errorf("insert service record: %w", err)
		}
	}

	if params.LedgerEntry != nil {
		entry := params.LedgerEntry
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = params.ConfirmedAt
		}
		const ledgerQuery = `INSERT INTO points_ledger (id, user_id, points, source, ref_id, note, created_at)
            VALUES (:id, :user_id, :points, :source, :ref_id, :note, :created_at)`
		if _, err := tx.NamedExecContext(ctx, ledgerQuery, entry); err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit review tx: %w", err)
	}
	return nil
}

// List returns signups with activity and student metadata.
func (r *SignupRepository) List(ctx context.Context, filter models.SignupFilter) ([]models.SignupDetail, int, error) {
	base := `FROM signups s
JOIN activities a ON a.id = s.activity_id
JOIN users u ON u.id = s.user_id`
	var conditions []string
	var args []interface{}

	if filter.ActivityID != "" {
		conditions = append(conditions, fmt.Sprintf("s.activity_id = $%d", len(args)+1))
		args = append(args, filter.ActivityID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("s.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":    "s.created_at",
		"sign_out_time": "s.sign_out_time",
		"student_name":  "u.full_name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "s.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT s.*, a.title AS activity_title, a.start_time AS activity_start, a.end_time AS activity_end,
        a.points, u.full_name AS student_name, u.username AS student_no
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var signups []models.SignupDetail
	if err := r.db.SelectContext(ctx, &signups, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list signups: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count signups: %w", err)
	}
	return signups, total, nil
}

// ListPendingCheckIn returns approved students who have not checked in yet.
func (r *SignupRepository) ListPendingCheckIn(ctx context.Context, activityID string) ([]models.PendingSignStudent, error) {
	const query = `SELECT s.id AS signup_id, u.id AS student_id, u.full_name AS student_name, u.username AS student_no,
        s.signed_in, s.sign_in_time
        FROM signups s JOIN users u ON u.id = s.user_id
        WHERE s.activity_id = $1 AND s.status = $2 AND s.signed_in = FALSE
        ORDER BY u.full_name`
	var rows []models.PendingSignStudent
	if err := r.db.SelectContext(ctx, &rows, query, activityID, models.SignupStatusApproved); err != nil {
		return nil, fmt.Errorf("list pending check-in: %w", err)
	}
	return rows, nil
}

// ListPendingCheckOut returns checked-in students who have not checked out.
func (r *SignupRepository) ListPendingCheckOut(ctx context.Context, activityID string) ([]models.PendingSignStudent, error) {
	const query = `SELECT s.id AS signup_id, u.id AS student_id, u.full_name AS student_name, u.username AS student_no,
        s.signed_in, s.sign_in_time
        FROM signups s JOIN users u ON u.id = s.user_id
        WHERE s.activity_id = $1 AND s.status = $2 AND s.signed_in = TRUE AND s.signed_out = FALSE
        ORDER BY s.sign_in_time`
	var rows []models.PendingSignStudent
	if err := r.db.SelectContext(ctx, &rows, query, activityID, models.SignupStatusApproved); err != nil {
		return nil, fmt.Errorf("list pending check-out: %w", err)
	}
	return rows, nil
}

// SearchReviews returns the organizer review queue: checked-out, approved
// signups over the organizer's activities, filtered and paginated.
func (r *SignupRepository) SearchReviews(ctx context.Context, filter models.ReviewSearchFilter) ([]models.SignupReviewRow, int, error) {
	base := `FROM signups s
JOIN activities a ON a.id = s.activity_id
JOIN users u ON u.id = s.user_id`
	conditions := []string{"s.signed_out = TRUE", "s.status = $1", "a.organizer_id = $2"}
	args := []interface{}{models.SignupStatusApproved, filter.OrganizerID}

	if filter.ActivityID != "" {
		conditions = append(conditions, fmt.Sprintf("s.activity_id = $%d", len(args)+1))
		args = append(args, filter.ActivityID)
	}
	if filter.Keyword != "" {
		conditions = append(conditions, fmt.Sprintf("(u.full_name ILIKE $%d OR u.username ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Keyword+"%")
	}
	if filter.ReviewStatus != nil {
		switch *filter.ReviewStatus {
		case models.ReviewStatusPending:
			conditions = append(conditions, "(s.teacher_rating IS NULL OR s.teacher_rating_confirmed_at IS NULL)")
		case models.ReviewStatusReviewed:
			conditions = append(conditions, "s.teacher_rating IS NOT NULL AND s.teacher_rating_confirmed_at IS NOT NULL")
		}
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

	query := fmt.Sprintf(`SELECT s.id AS signup_id, s.activity_id, a.title AS activity_title,
        u.id AS student_id, u.full_name AS student_name, u.username AS student_no,
        s.sign_in_time, s.sign_out_time, s.student_rating, s.student_evaluation,
        s.teacher_rating, s.teacher_evaluation, s.teacher_rating_confirmed_at
        %s ORDER BY s.sign_out_time DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var rows []models.SignupReviewRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("search reviews: %w", err)
	}
	for i := range rows {
		if rows[i].TeacherRating != nil && rows[i].TeacherRatingConfirmedAt != nil {
			rows[i].ReviewStatus = models.ReviewStatusReviewed
		} else {
			rows[i].ReviewStatus = models.ReviewStatusPending
		}
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}
	return rows, total, nil
}
