package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/example/conceptbot/pkg/models"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db  *sqlx.DB
	log *zap.SugaredLogger
}

// NewUserRepository creates a new repository instance
func NewUserRepository(db *sqlx.DB, log *zap.SugaredLogger) *UserRepository {
	return &UserRepository{db: db, log: log}
}

// EnsureUser registers a user on first contact and refreshes profile fields
// afterwards. Returns the stored user.
func (r *UserRepository) EnsureUser(ctx context.Context, u *models.User) (*models.User, error) {
	now := time.Now().UTC()

	var existing models.User
	err := r.db.GetContext(ctx, &existing,
		"SELECT * FROM users WHERE telegram_id = $1", u.ID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		u.CreatedAt = now
		u.UpdatedAt = now
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO users (telegram_id, username, first_name, last_name, is_admin, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			u.ID, u.Username, u.FirstName, u.LastName, u.IsAdmin, u.CreatedAt, u.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		r.log.Infow("user registered", "user_id", u.ID, "username", u.Username)
		out := *u
		return &out, nil

	case err != nil:
		return nil, fmt.Errorf("get user: %w", err)
	}

	existing.Username = u.Username
	existing.FirstName = u.FirstName
	existing.LastName = u.LastName
	existing.UpdatedAt = now
	_, err = r.db.ExecContext(ctx, `
		UPDATE users SET username = $1, first_name = $2, last_name = $3, updated_at = $4
		WHERE telegram_id = $5`,
		existing.Username, existing.FirstName, existing.LastName, existing.UpdatedAt, existing.ID)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &existing, nil
}

// AllUserIDs returns the IDs of every registered user.
func (r *UserRepository) AllUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, "SELECT telegram_id FROM users ORDER BY telegram_id"); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return ids, nil
}

// DeleteUser removes a user together with their concepts and progress.
func (r *UserRepository) DeleteUser(ctx context.Context, userID int64) error {
	// FK cascades only cover progress under a concept; remove per-user rows
	// explicitly so the order is deterministic on both backends.
	for _, stmt := range []string{
		"DELETE FROM user_progress WHERE user_id = $1",
		"DELETE FROM concepts WHERE user_id = $1",
		"DELETE FROM stats_snapshots WHERE user_id = $1",
		"DELETE FROM users WHERE telegram_id = $1",
	} {
		if _, err := r.db.ExecContext(ctx, stmt, userID); err != nil {
			return fmt.Errorf("delete user %d: %w", userID, err)
		}
	}
	return nil
}
