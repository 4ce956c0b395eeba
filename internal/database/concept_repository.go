package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/example/conceptbot/internal/review"
	"github.com/example/conceptbot/pkg/models"
)

// ConceptRepository handles database operations for concepts
type ConceptRepository struct {
	db  *sqlx.DB
	log *zap.SugaredLogger
}

var _ review.ConceptStore = (*ConceptRepository)(nil)

// NewConceptRepository creates a new repository instance
func NewConceptRepository(db *sqlx.DB, log *zap.SugaredLogger) *ConceptRepository {
	return &ConceptRepository{db: db, log: log}
}

// UserConcepts returns all concepts owned by a user
func (r *ConceptRepository) UserConcepts(ctx context.Context, userID int64) ([]models.Concept, error) {
	var concepts []models.Concept
	if err := r.db.SelectContext(ctx, &concepts,
		"SELECT * FROM concepts WHERE user_id = $1 ORDER BY id ASC", userID); err != nil {
		return nil, fmt.Errorf("get concepts: %w", err)
	}
	return concepts, nil
}

// Concept returns one concept by (user, concept) key
func (r *ConceptRepository) Concept(ctx context.Context, userID, conceptID int64) (*models.Concept, error) {
	var c models.Concept
	err := r.db.GetContext(ctx, &c,
		"SELECT * FROM concepts WHERE user_id = $1 AND id = $2", userID, conceptID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("concept %d for user %d: %w", conceptID, userID, review.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get concept: %w", err)
	}
	return &c, nil
}

// UpsertConcept inserts a concept or updates the question and answer of an
// existing one matched by (user_id, title, category).
func (r *ConceptRepository) UpsertConcept(ctx context.Context, c *models.Concept) error {
	now := time.Now().UTC()

	var existingID int64
	err := r.db.GetContext(ctx, &existingID,
		"SELECT id FROM concepts WHERE user_id = $1 AND title = $2 AND category = $3",
		c.UserID, c.Title, c.Category)
	switch {
	case err == nil:
		c.ID = existingID
		c.UpdatedAt = now
		_, err = r.db.ExecContext(ctx, `
			UPDATE concepts SET question = $1, answer = $2, updated_at = $3 WHERE id = $4`,
			c.Question, c.Answer, c.UpdatedAt, c.ID)
		if err != nil {
			return fmt.Errorf("update concept: %w", err)
		}
		return nil

	case errors.Is(err, sql.ErrNoRows):
		c.CreatedAt = now
		c.UpdatedAt = now
		if r.db.DriverName() == DriverPostgres {
			return r.db.QueryRowxContext(ctx, `
				INSERT INTO concepts (user_id, title, category, question, answer, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING id`,
				c.UserID, c.Title, c.Category, c.Question, c.Answer, c.CreatedAt, c.UpdatedAt,
			).Scan(&c.ID)
		}
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO concepts (user_id, title, category, question, answer, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.UserID, c.Title, c.Category, c.Question, c.Answer, c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create concept: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("create concept: %w", err)
		}
		c.ID = id
		return nil

	default:
		return fmt.Errorf("upsert concept: %w", err)
	}
}

// DeleteConcept removes a concept; its progress records cascade.
func (r *ConceptRepository) DeleteConcept(ctx context.Context, userID, conceptID int64) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM concepts WHERE user_id = $1 AND id = $2", userID, conceptID)
	if err != nil {
		return fmt.Errorf("delete concept: %w", err)
	}
	return nil
}
