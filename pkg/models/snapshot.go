package models

import "time"

// StatsSnapshot is a nightly materialization of a user's status summary,
// kept for analytics. Live reads always recompute the summary instead.
type StatsSnapshot struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	Total      int       `json:"total" db:"total"`
	Stable     int       `json:"stable" db:"stable"`
	Fragile    int       `json:"fragile" db:"fragile"`
	Learning   int       `json:"learning" db:"learning"`
	Lapsed     int       `json:"lapsed" db:"lapsed"`
	CapturedAt time.Time `json:"captured_at" db:"captured_at"`
}
