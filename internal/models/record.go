package models

import "time"

// ServiceRecord is the immutable audit snapshot created exactly once per
// finalized signup. The still-mutable signup may be re-reviewed; this row
// never changes.
type ServiceRecord struct {
	ID                string    `db:"id" json:"id"`
	SignupID          string    `db:"signup_id" json:"signup_id"`
	ActivityID        string    `db:"activity_id" json:"activity_id"`
	UserID            string    `db:"user_id" json:"user_id"`
	DurationMinutes   int       `db:"duration_minutes" json:"duration_minutes"`
	TeacherRating     int       `db:"teacher_rating" json:"teacher_rating"`
	TeacherEvaluation *string   `db:"teacher_evaluation" json:"teacher_evaluation,omitempty"`
	StudentEvaluation *string   `db:"student_evaluation" json:"student_evaluation,omitempty"`
	PointsEarned      int       `db:"points_earned" json:"points_earned"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// ServiceRecordDetail extends a record with activity and student metadata.
type ServiceRecordDetail struct {
	ServiceRecord
	ActivityTitle string `db:"activity_title" json:"activity_title"`
	StudentName   string `db:"student_name" json:"student_name"`
	StudentNo     string `db:"student_no" json:"student_no"`
}

// ServiceRecordFilter scopes record listing queries.
type ServiceRecordFilter struct {
	UserID     string
	ActivityID string
	Page       int
	PageSize   int
}

// ServiceStats aggregates a user's service history.
type ServiceStats struct {
	TotalRecords      int     `json:"total_records"`
	TotalServiceHours float64 `json:"total_service_hours"`
	TotalPointsEarned int     `json:"total_points_earned"`
	AverageRating     float64 `json:"average_rating"`
}
