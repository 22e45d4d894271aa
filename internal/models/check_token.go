package models

import "time"

// SignAction scopes a check token to one side of the attendance flow.
type SignAction string

const (
	SignActionCheckIn  SignAction = "CHECK_IN"
	SignActionCheckOut SignAction = "CHECK_OUT"
)

// Valid returns true when the action is a supported value.
func (a SignAction) Valid() bool {
	return a == SignActionCheckIn || a == SignActionCheckOut
}

// CheckToken is an ephemeral, shared credential for one activity and one
// action. It lives only in the cache; the TTL on the cache key mirrors
// ExpiresAt, which is kept in the payload for clock-skew safety.
type CheckToken struct {
	Token      string     `json:"token"`
	ActivityID string     `json:"activity_id"`
	Action     SignAction `json:"action"`
	ExpiresAt  time.Time  `json:"expires_at"`
}

// Expired reports whether the token's own expiry has passed.
func (t *CheckToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
