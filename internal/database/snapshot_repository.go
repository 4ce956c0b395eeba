package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/example/conceptbot/pkg/models"
)

// SnapshotRepository stores nightly stats snapshots for analytics
type SnapshotRepository struct {
	db  *sqlx.DB
	log *zap.SugaredLogger
}

// NewSnapshotRepository creates a new repository instance
func NewSnapshotRepository(db *sqlx.DB, log *zap.SugaredLogger) *SnapshotRepository {
	return &SnapshotRepository{db: db, log: log}
}

// SaveSnapshot appends one snapshot row.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, snap *models.StatsSnapshot) error {
	if r.db.DriverName() == DriverPostgres {
		return r.db.QueryRowxContext(ctx, `
			INSERT INTO stats_snapshots (user_id, total, stable, fragile, learning, lapsed, captured_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			snap.UserID, snap.Total, snap.Stable, snap.Fragile, snap.Learning, snap.Lapsed, snap.CapturedAt,
		).Scan(&snap.ID)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO stats_snapshots (user_id, total, stable, fragile, learning, lapsed, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		snap.UserID, snap.Total, snap.Stable, snap.Fragile, snap.Learning, snap.Lapsed, snap.CapturedAt)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		snap.ID = id
	}
	return nil
}

// Snapshots returns a user's snapshots, oldest first.
func (r *SnapshotRepository) Snapshots(ctx context.Context, userID int64) ([]models.StatsSnapshot, error) {
	var out []models.StatsSnapshot
	if err := r.db.SelectContext(ctx, &out,
		"SELECT * FROM stats_snapshots WHERE user_id = $1 ORDER BY captured_at ASC", userID); err != nil {
		return nil, fmt.Errorf("get snapshots: %w", err)
	}
	return out, nil
}
