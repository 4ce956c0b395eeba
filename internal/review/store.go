package review

import (
	"context"
	"errors"

	"github.com/example/conceptbot/pkg/models"
)

// Sentinel errors shared by every store implementation.
// Check with errors.Is.
var (
	// ErrNotFound is returned when no progress record exists for a key.
	ErrNotFound = errors.New("progress record not found")
	// ErrAlreadyExists is returned by Create when a record for the key exists.
	ErrAlreadyExists = errors.New("progress record already exists")
	// ErrConflict is returned by Update when the record changed underneath the
	// caller (optimistic version mismatch).
	ErrConflict = errors.New("progress record version conflict")
	// ErrInvalidConfidence is returned for confidence values outside the
	// closed high/low/none enumeration.
	ErrInvalidConfidence = errors.New("invalid confidence value")
)

// ProgressStore is the persistence contract for progress records, keyed by
// (user_id, concept_id). Implementations must either serialize writes per key
// or reject stale updates with ErrConflict; the orchestrator additionally
// holds a per-key lock around its read-modify-write sequence.
type ProgressStore interface {
	// FindOne returns the record for the key, or ErrNotFound.
	FindOne(ctx context.Context, userID, conceptID int64) (*models.ProgressRecord, error)
	// FindAllForUser returns every record belonging to the user.
	FindAllForUser(ctx context.Context, userID int64) ([]models.ProgressRecord, error)
	// Create persists a new record including its history entries.
	// Fails with ErrAlreadyExists when the key is taken.
	Create(ctx context.Context, rec *models.ProgressRecord) error
	// Update persists the record's scalar fields and appends any history
	// entries not yet stored. Prior history is never rewritten.
	// Fails with ErrNotFound when no record exists for the key.
	Update(ctx context.Context, rec *models.ProgressRecord) error
	// Delete removes the record and its history.
	Delete(ctx context.Context, userID, conceptID int64) error
}

// ConceptStore is the read-only view of concepts the review side needs.
type ConceptStore interface {
	// UserConcepts returns every concept owned by the user.
	UserConcepts(ctx context.Context, userID int64) ([]models.Concept, error)
	// Concept returns a single concept, or ErrNotFound.
	Concept(ctx context.Context, userID, conceptID int64) (*models.Concept, error)
}
