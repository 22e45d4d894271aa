package models

import "time"

// SignupStatus represents the approval state of a signup.
type SignupStatus string

const (
	SignupStatusPending   SignupStatus = "PENDING"
	SignupStatusApproved  SignupStatus = "APPROVED"
	SignupStatusRejected  SignupStatus = "REJECTED"
	SignupStatusCancelled SignupStatus = "CANCELLED"
)

// Valid returns true when the status is a supported value.
func (s SignupStatus) Valid() bool {
	switch s {
	case SignupStatusPending, SignupStatusApproved, SignupStatusRejected, SignupStatusCancelled:
		return true
	default:
		return false
	}
}

// ReviewStatus is derived from the teacher rating fields, never stored.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "PENDING"
	ReviewStatusReviewed ReviewStatus = "REVIEWED"
)

// Valid returns true when the review status is a supported value.
func (s ReviewStatus) Valid() bool {
	return s == ReviewStatusPending || s == ReviewStatusReviewed
}

// Signup anchors a student's participation in an activity: approval,
// attendance flags and the organizer review all live on this row.
type Signup struct {
	ID                       string       `db:"id" json:"id"`
	ActivityID               string       `db:"activity_id" json:"activity_id"`
	UserID                   string       `db:"user_id" json:"user_id"`
	Status                   SignupStatus `db:"status" json:"status"`
	Reason                   *string      `db:"reason" json:"reason,omitempty"`
	RejectReason             *string      `db:"reject_reason" json:"reject_reason,omitempty"`
	SignedIn                 bool         `db:"signed_in" json:"signed_in"`
	SignedOut                bool         `db:"signed_out" json:"signed_out"`
	SignInTime               *time.Time   `db:"sign_in_time" json:"sign_in_time,omitempty"`
	SignOutTime              *time.Time   `db:"sign_out_time" json:"sign_out_time,omitempty"`
	StudentRating            *int         `db:"student_rating" json:"student_rating,omitempty"`
	StudentEvaluation        *string      `db:"student_evaluation" json:"student_evaluation,omitempty"`
	TeacherRating            *int         `db:"teacher_rating" json:"teacher_rating,omitempty"`
	TeacherEvaluation        *string      `db:"teacher_evaluation" json:"teacher_evaluation,omitempty"`
	TeacherRatingConfirmedAt *time.Time   `db:"teacher_rating_confirmed_at" json:"teacher_rating_confirmed_at,omitempty"`
	CreatedAt                time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time    `db:"updated_at" json:"updated_at"`
}

// ReviewState derives the review status: pending until both the rating and
// the confirmation timestamp are set.
func (s *Signup) ReviewState() ReviewStatus {
	if s.TeacherRating != nil && s.TeacherRatingConfirmedAt != nil {
		return ReviewStatusReviewed
	}
	return ReviewStatusPending
}

// Finalized reports whether the signup has been reviewed at least once.
func (s *Signup) Finalized() bool {
	return s.TeacherRatingConfirmedAt != nil
}

// SignupDetail extends a signup with activity and student metadata.
type SignupDetail struct {
	Signup
	ActivityTitle string     `db:"activity_title" json:"activity_title"`
	ActivityStart *time.Time `db:"activity_start" json:"activity_start,omitempty"`
	ActivityEnd   *time.Time `db:"activity_end" json:"activity_end,omitempty"`
	Points        int        `db:"points" json:"points"`
	StudentName   string     `db:"student_name" json:"student_name"`
	StudentNo     string     `db:"student_no" json:"student_no"`
}

// SignupFilter scopes signup listing queries.
type SignupFilter struct {
	ActivityID string
	UserID     string
	Status     *SignupStatus
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// ReviewSearchFilter scopes the organizer review queue.
type ReviewSearchFilter struct {
	OrganizerID  string
	ActivityID   string
	Keyword      string
	ReviewStatus *ReviewStatus
	Page         int
	PageSize     int
}

// SignupReviewRow is a row in the organizer review queue.
type SignupReviewRow struct {
	SignupID                 string       `db:"signup_id" json:"signup_id"`
	ActivityID               string       `db:"activity_id" json:"activity_id"`
	ActivityTitle            string       `db:"activity_title" json:"activity_title"`
	StudentID                string       `db:"student_id" json:"student_id"`
	StudentName              string       `db:"student_name" json:"student_name"`
	StudentNo                string       `db:"student_no" json:"student_no"`
	SignInTime               *time.Time   `db:"sign_in_time" json:"sign_in_time,omitempty"`
	SignOutTime              *time.Time   `db:"sign_out_time" json:"sign_out_time,omitempty"`
	StudentRating            *int         `db:"student_rating" json:"student_rating,omitempty"`
	StudentEvaluation        *string      `db:"student_evaluation" json:"student_evaluation,omitempty"`
	TeacherRating            *int         `db:"teacher_rating" json:"teacher_rating,omitempty"`
	TeacherEvaluation        *string      `db:"teacher_evaluation" json:"teacher_evaluation,omitempty"`
	TeacherRatingConfirmedAt *time.Time   `db:"teacher_rating_confirmed_at" json:"teacher_rating_confirmed_at,omitempty"`
	ReviewStatus             ReviewStatus `json:"review_status"`
}

// PendingSignStudent is a roster row of students still expected to check in
// or out of an activity.
type PendingSignStudent struct {
	SignupID    string     `db:"signup_id" json:"signup_id"`
	StudentID   string     `db:"student_id" json:"student_id"`
	StudentName string     `db:"student_name" json:"student_name"`
	StudentNo   string     `db:"student_no" json:"student_no"`
	SignedIn    bool       `db:"signed_in" json:"signed_in"`
	SignInTime  *time.Time `db:"sign_in_time" json:"sign_in_time,omitempty"`
}
