package models

import "time"

// PointsSource tags where a ledger entry came from.
type PointsSource string

const (
	PointsSourceActivityAward  PointsSource = "ACTIVITY_AWARD"
	PointsSourceActivityAdjust PointsSource = "ACTIVITY_ADJUST"
	PointsSourceManualAdjust   PointsSource = "MANUAL_ADJUST"
)

// Valid returns true when the source is a supported value.
func (s PointsSource) Valid() bool {
	switch s {
	case PointsSourceActivityAward, PointsSourceActivityAdjust, PointsSourceManualAdjust:
		return true
	default:
		return false
	}
}

// PointsEntry is an immutable, signed ledger adjustment. A user's balance is
// the sum of their entries; there is no mutable total to race on.
type PointsEntry struct {
	ID        string       `db:"id" json:"id"`
	UserID    string       `db:"user_id" json:"user_id"`
	Points    int          `db:"points" json:"points"`
	Source    PointsSource `db:"source" json:"source"`
	RefID     *string      `db:"ref_id" json:"ref_id,omitempty"`
	Note      *string      `db:"note" json:"note,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// PointsLedgerFilter scopes ledger listing queries.
type PointsLedgerFilter struct {
	UserID   string
	Source   *PointsSource
	Page     int
	PageSize int
}

// PointsStats summarises a user's reward standing.
type PointsStats struct {
	UserID            string  `json:"user_id"`
	UserName          string  `json:"user_name"`
	TotalPoints       int     `json:"total_points"`
	ServiceRecords    int     `json:"service_records"`
	TotalServiceHours float64 `json:"total_service_hours"`
	Ranking           *int    `json:"ranking,omitempty"`
}

// PointsRankingRow is one row of the student leaderboard.
type PointsRankingRow struct {
	UserID      string `db:"user_id" json:"user_id"`
	UserName    string `db:"user_name" json:"user_name"`
	TotalPoints int    `db:"total_points" json:"total_points"`
	Rank        int    `db:"rank" json:"rank"`
}
