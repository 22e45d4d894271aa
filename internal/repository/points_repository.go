package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/volunteer-hub-api/internal/models"
)

// PointsRepository persists the append-only points ledger. Entries are never
// updated or deleted; balances are sums.
type PointsRepository struct {
	db *sqlx.DB
}

// NewPointsRepository constructs the repository.
func NewPointsRepository(db *sqlx.DB) *PointsRepository {
	return &PointsRepository{db: db}
}

// Append inserts one ledger entry.
func (r *PointsRepository) Append(ctx context.Context, entry *models.PointsEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO points_ledger (id, user_id, points, source, ref_id, note, created_at)
        VALUES (:id, :user_id, :points, :source, :ref_id, :note, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// SumByUser returns the user's balance as the sum of their entries.
func (r *PointsRepository) SumByUser(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COALESCE(SUM(points), 0) FROM points_ledger WHERE user_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, userID); err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}
	return total, nil
}

// Ledger returns a page of a user's entries, newest first.
func (r *PointsRepository) Ledger(ctx context.Context, filter models.PointsLedgerFilter) ([]models.PointsEntry, int, error) {
	conditions := "WHERE user_id = $1"
	args := []interface{}{filter.UserID}
	if filter.Source != nil {
		conditions += fmt.Sprintf(" AND source = $%d", len(args)+1)
		args = append(args, *filter.Source)
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

	query := fmt.Sprintf(`SELECT id, user_id, points, source, ref_id, note, created_at
        FROM points_ledger %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, conditions, size, offset)
	var entries []models.PointsEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list ledger: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM points_ledger %s", conditions)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count ledger: %w", err)
	}
	return entries, total, nil
}

// Ranking returns the student leaderboard page ordered by balance.
func (r *PointsRepository) Ranking(ctx context.Context, page, size int) ([]models.PointsRankingRow, int, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT u.id AS user_id, u.full_name AS user_name,
        COALESCE(SUM(p.points), 0) AS total_points,
        RANK() OVER (ORDER BY COALESCE(SUM(p.points), 0) DESC) AS rank
        FROM users u LEFT JOIN points_ledger p ON p.user_id = u.id
        WHERE u.role = $1 AND u.active = TRUE
        GROUP BY u.id, u.full_name
        ORDER BY total_points DESC, u.full_name
        LIMIT %d OFFSET %d`, size, offset)
	var rows []models.PointsRankingRow
	if err := r.db.SelectContext(ctx, &rows, query, models.RoleStudent); err != nil {
		return nil, 0, fmt.Errorf("points ranking: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM users WHERE role = $1 AND active = TRUE`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, models.RoleStudent); err != nil {
		return nil, 0, fmt.Errorf("count ranking: %w", err)
	}
	return rows, total, nil
}

// RankOf returns a single student's current position, counting users with a
// strictly larger balance.
func (r *PointsRepository) RankOf(ctx context.Context, userID string) (int, error) {
	const query = `WITH balances AS (
        SELECT u.id, COALESCE(SUM(p.points), 0) AS total
        FROM users u LEFT JOIN points_ledger p ON p.user_id = u.id
        WHERE u.role = $1 AND u.active = TRUE
        GROUP BY u.id
    )
    SELECT COUNT(*) + 1 FROM balances
    WHERE total > (SELECT total FROM balances WHERE id = $2)`
	var rank int
	if err := r.db.GetContext(ctx, &rank, query, models.RoleStudent, userID); err != nil {
		return 0, fmt.Errorf("rank of user: %w", err)
	}
	return rank, nil
}
