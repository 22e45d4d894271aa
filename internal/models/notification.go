package models

import "time"

// NotificationType identifies the event a notification reports.
type NotificationType string

const (
	NotificationRegistrationPending NotificationType = "REGISTRATION_PENDING"
	NotificationRegistrationResult  NotificationType = "REGISTRATION_RESULT"
	NotificationCheckoutPending     NotificationType = "CHECKOUT_PENDING"
	NotificationCheckoutResult      NotificationType = "CHECKOUT_RESULT"
	NotificationActivityCancelled   NotificationType = "ACTIVITY_CANCELLED"
)

// Valid returns true when the type is a supported value.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationRegistrationPending, NotificationRegistrationResult,
		NotificationCheckoutPending, NotificationCheckoutResult, NotificationActivityCancelled:
		return true
	default:
		return false
	}
}

// Notification is a stored, per-user message created after a state change.
// Delivery is best effort and never part of the originating transaction.
type Notification struct {
	ID          string           `db:"id" json:"id"`
	RecipientID string           `db:"recipient_id" json:"recipient_id"`
	Type        NotificationType `db:"type" json:"type"`
	ActivityID  *string          `db:"activity_id" json:"activity_id,omitempty"`
	Title       string           `db:"title" json:"title"`
	Body        string           `db:"body" json:"body"`
	Read        bool             `db:"read" json:"read"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter scopes notification listing queries.
type NotificationFilter struct {
	RecipientID string
	UnreadOnly  bool
	Page        int
	PageSize    int
}
