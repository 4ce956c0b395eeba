package models

import "time"

// ProgressRecord tracks a user's scheduling state for a single concept.
// Exactly one record exists per (user_id, concept_id) pair.
type ProgressRecord struct {
	ID           int64     `json:"id" db:"id"`
	UserID       int64     `json:"user_id" db:"user_id"`
	ConceptID    int64     `json:"concept_id" db:"concept_id"`
	Status       Status    `json:"status" db:"status"`
	IntervalDays float64   `json:"interval_days" db:"interval_days"`
	EaseFactor   float64   `json:"ease_factor" db:"ease_factor"` // Never below 1.3
	NextReviewAt time.Time `json:"next_review_at" db:"next_review_at"`
	Version      int64     `json:"version" db:"version"` // Bumped on every update for optimistic locking
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`

	// History is append-only and chronological. Stored separately from the
	// progress row; loaded by the store on read.
	History []HistoryEntry `json:"history" db:"-"`
}

// HistoryEntry is an immutable record of one answered question.
// It is kept for audit and analytics only; the policy never reads it back.
type HistoryEntry struct {
	ID                  int64      `json:"id" db:"id"`
	ProgressID          int64      `json:"progress_id" db:"progress_id"`
	AnsweredAt          time.Time  `json:"answered_at" db:"answered_at"`
	WasCorrect          bool       `json:"was_correct" db:"was_correct"`
	Confidence          Confidence `json:"confidence" db:"confidence"`
	IntervalDays        float64    `json:"interval_days" db:"interval_days"` // The interval produced by this answer
	ResponseTimeSeconds float64    `json:"response_time_seconds" db:"response_time_seconds"`
}

// ConceptStatusView joins a concept with its current progress for read-side
// reporting. Concepts with no progress record yet default to status "new"
// with the seed ease factor. Derived on each read, never persisted.
type ConceptStatusView struct {
	Concept      Concept    `json:"concept"`
	Status       Status     `json:"status"`
	EaseFactor   float64    `json:"ease_factor"`
	IntervalDays float64    `json:"interval_days"`
	NextReviewAt *time.Time `json:"next_review_at"` // nil when never reviewed
}

// StatusSummary counts a user's concepts per status bucket. New and reviewing
// concepts are counted only in Total, so the bucket sum is at most Total.
type StatusSummary struct {
	UserID   int64 `json:"user_id"`
	Total    int   `json:"total"`
	Stable   int   `json:"stable"`
	Fragile  int   `json:"fragile"`
	Learning int   `json:"learning"`
	Lapsed   int   `json:"lapsed"`
}
