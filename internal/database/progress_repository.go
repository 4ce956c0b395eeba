package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/example/conceptbot/internal/review"
	"github.com/example/conceptbot/pkg/models"
)

// ProgressRepository handles database operations for progress records.
// Updates are guarded by an optimistic version check so a stale write is
// rejected with review.ErrConflict instead of silently overwriting.
type ProgressRepository struct {
	db  *sqlx.DB
	log *zap.SugaredLogger
}

var _ review.ProgressStore = (*ProgressRepository)(nil)

// NewProgressRepository creates a new repository instance
func NewProgressRepository(db *sqlx.DB, log *zap.SugaredLogger) *ProgressRepository {
	return &ProgressRepository{db: db, log: log}
}

// FindOne returns the progress record for a (user, concept) pair with its
// history loaded in chronological order.
func (r *ProgressRepository) FindOne(ctx context.Context, userID, conceptID int64) (*models.ProgressRecord, error) {
	var rec models.ProgressRecord
	err := r.db.GetContext(ctx, &rec,
		"SELECT * FROM user_progress WHERE user_id = $1 AND concept_id = $2", userID, conceptID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("progress for user %d concept %d: %w", userID, conceptID, review.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}

	if err := r.db.SelectContext(ctx, &rec.History,
		"SELECT * FROM progress_history WHERE progress_id = $1 ORDER BY id ASC", rec.ID); err != nil {
		return nil, fmt.Errorf("get progress history: %w", err)
	}
	return &rec, nil
}

// FindAllForUser returns every progress record for the user, histories included.
func (r *ProgressRepository) FindAllForUser(ctx context.Context, userID int64) ([]models.ProgressRecord, error) {
	var recs []models.ProgressRecord
	if err := r.db.SelectContext(ctx, &recs,
		"SELECT * FROM user_progress WHERE user_id = $1", userID); err != nil {
		return nil, fmt.Errorf("get user progress: %w", err)
	}
	if len(recs) == 0 {
		return recs, nil
	}

	var entries []models.HistoryEntry
	if err := r.db.SelectContext(ctx, &entries, `
		SELECT h.* FROM progress_history h
		JOIN user_progress p ON h.progress_id = p.id
		WHERE p.user_id = $1
		ORDER BY h.id ASC`, userID); err != nil {
		return nil, fmt.Errorf("get user progress history: %w", err)
	}

	byProgress := make(map[int64][]models.HistoryEntry, len(recs))
	for _, e := range entries {
		byProgress[e.ProgressID] = append(byProgress[e.ProgressID], e)
	}
	for i := range recs {
		recs[i].History = byProgress[recs[i].ID]
	}
	return recs, nil
}

// Create inserts a new progress record together with its history entries.
func (r *ProgressRepository) Create(ctx context.Context, rec *models.ProgressRecord) error {
	rec.Version = 1

	if r.db.DriverName() == DriverPostgres {
		err := r.db.QueryRowxContext(ctx, `
			INSERT INTO user_progress (
				user_id, concept_id, status, interval_days, ease_factor,
				next_review_at, version, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			rec.UserID, rec.ConceptID, rec.Status, rec.IntervalDays, rec.EaseFactor,
			rec.NextReviewAt, rec.Version, rec.CreatedAt, rec.UpdatedAt,
		).Scan(&rec.ID)
		if err != nil {
			return wrapCreateError(rec, err)
		}
	} else {
		// SQLite can't combine ON CONFLICT with RETURNING on this driver
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO user_progress (
				user_id, concept_id, status, interval_days, ease_factor,
				next_review_at, version, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			rec.UserID, rec.ConceptID, rec.Status, rec.IntervalDays, rec.EaseFactor,
			rec.NextReviewAt, rec.Version, rec.CreatedAt, rec.UpdatedAt,
		)
		if err != nil {
			return wrapCreateError(rec, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("create progress: %w", err)
		}
		rec.ID = id
	}

	return r.insertHistory(ctx, rec)
}

// Update persists the record's scalar fields when its version still matches,
// bumps the version and appends any unsaved history entries.
func (r *ProgressRepository) Update(ctx context.Context, rec *models.ProgressRecord) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE user_progress SET
			status = $1,
			interval_days = $2,
			ease_factor = $3,
			next_review_at = $4,
			updated_at = $5,
			version = version + 1
		WHERE user_id = $6 AND concept_id = $7 AND version = $8`,
		rec.Status, rec.IntervalDays, rec.EaseFactor,
		rec.NextReviewAt, rec.UpdatedAt,
		rec.UserID, rec.ConceptID, rec.Version,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if affected == 0 {
		var exists int
		err := r.db.GetContext(ctx, &exists,
			"SELECT 1 FROM user_progress WHERE user_id = $1 AND concept_id = $2", rec.UserID, rec.ConceptID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("progress for user %d concept %d: %w", rec.UserID, rec.ConceptID, review.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
		r.log.Warnw("stale progress update rejected",
			"user_id", rec.UserID, "concept_id", rec.ConceptID, "version", rec.Version)
		return fmt.Errorf("progress for user %d concept %d: %w", rec.UserID, rec.ConceptID, review.ErrConflict)
	}

	rec.Version++
	return r.insertHistory(ctx, rec)
}

// Delete removes a progress record; history rows cascade.
func (r *ProgressRepository) Delete(ctx context.Context, userID, conceptID int64) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM user_progress WHERE user_id = $1 AND concept_id = $2", userID, conceptID)
	if err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

// insertHistory stores every history entry not yet persisted (ID zero).
// Existing entries are never touched; history is append-only.
func (r *ProgressRepository) insertHistory(ctx context.Context, rec *models.ProgressRecord) error {
	for i := range rec.History {
		if rec.History[i].ID != 0 {
			continue
		}
		entry := &rec.History[i]
		entry.ProgressID = rec.ID

		if r.db.DriverName() == DriverPostgres {
			err := r.db.QueryRowxContext(ctx, `
				INSERT INTO progress_history (
					progress_id, answered_at, was_correct, confidence,
					interval_days, response_time_seconds
				) VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id`,
				entry.ProgressID, entry.AnsweredAt, entry.WasCorrect, entry.Confidence,
				entry.IntervalDays, entry.ResponseTimeSeconds,
			).Scan(&entry.ID)
			if err != nil {
				return fmt.Errorf("append history: %w", err)
			}
			continue
		}

		res, err := r.db.ExecContext(ctx, `
			INSERT INTO progress_history (
				progress_id, answered_at, was_correct, confidence,
				interval_days, response_time_seconds
			) VALUES ($1, $2, $3, $4, $5, $6)`,
			entry.ProgressID, entry.AnsweredAt, entry.WasCorrect, entry.Confidence,
			entry.IntervalDays, entry.ResponseTimeSeconds,
		)
		if err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		if id, err := res.LastInsertId(); err == nil {
			entry.ID = id
		}
	}
	return nil
}

func wrapCreateError(rec *models.ProgressRecord, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key") {
		return fmt.Errorf("progress for user %d concept %d: %w", rec.UserID, rec.ConceptID, review.ErrAlreadyExists)
	}
	return fmt.Errorf("create progress: %w", err)
}
