package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/volunteer-hub-api/internal/models"
)

// ActivityRepository reads activities for the attendance workflows. The
// coordinator never mutates activities.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// FindByID returns an activity by its ID.
func (r *ActivityRepository) FindByID(ctx context.Context, id string) (*models.Activity, error) {
	const query = `SELECT id, title, organizer_id, location, start_time, end_time, registration_deadline, points, status, created_at, updated_at
        FROM activities WHERE id = $1`
	var activity models.Activity
	if err := r.db.GetContext(ctx, &activity, query, id); err != nil {
		return nil, err
	}
	return &activity, nil
}

// ListIDsByOrganizer returns the IDs of all activities owned by an organizer.
func (r *ActivityRepository) ListIDsByOrganizer(ctx context.Context, organizerID string) ([]string, error) {
	const query = `SELECT id FROM activities WHERE organizer_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, organizerID); err != nil {
		return nil, fmt.Errorf("list organizer activities: %w", err)
	}
	return ids, nil
}
