package models

import "time"

// ActivityStatus represents the lifecycle state of a volunteer activity.
type ActivityStatus string

const (
	ActivityStatusDraft           ActivityStatus = "DRAFT"
	ActivityStatusPendingApproval ActivityStatus = "PENDING_APPROVAL"
	ActivityStatusPublished       ActivityStatus = "PUBLISHED"
	ActivityStatusOngoing         ActivityStatus = "ONGOING"
	ActivityStatusCompleted       ActivityStatus = "COMPLETED"
	ActivityStatusCancelled       ActivityStatus = "CANCELLED"
	ActivityStatusRejected        ActivityStatus = "REJECTED"
)

// Valid returns true when the status is a supported value.
func (s ActivityStatus) Valid() bool {
	switch s {
	case ActivityStatusDraft, ActivityStatusPendingApproval, ActivityStatusPublished,
		ActivityStatusOngoing, ActivityStatusCompleted, ActivityStatusCancelled, ActivityStatusRejected:
		return true
	default:
		return false
	}
}

// AcceptsCheckTokens reports whether check tokens may be issued for an
// activity in this state.
func (s ActivityStatus) AcceptsCheckTokens() bool {
	return s == ActivityStatusPublished || s == ActivityStatusOngoing
}

// Activity is the read model of a volunteer activity. The coordinator only
// consumes it; full activity management lives elsewhere.
type Activity struct {
	ID                   string         `db:"id" json:"id"`
	Title                string         `db:"title" json:"title"`
	OrganizerID          string         `db:"organizer_id" json:"organizer_id"`
	Location             *string        `db:"location" json:"location,omitempty"`
	StartTime            time.Time      `db:"start_time" json:"start_time"`
	EndTime              time.Time      `db:"end_time" json:"end_time"`
	RegistrationDeadline *time.Time     `db:"registration_deadline" json:"registration_deadline,omitempty"`
	Points               int            `db:"points" json:"points"`
	Status               ActivityStatus `db:"status" json:"status"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}
