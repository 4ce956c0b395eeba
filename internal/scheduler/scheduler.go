// Package scheduler runs the nightly stats-snapshot job. Due-concept
// detection stays lazy at read time; nothing here touches scheduling state.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/example/conceptbot/pkg/models"
)

// SummarySource computes a user's current status summary.
type SummarySource interface {
	StatusSummary(ctx context.Context, userID int64) (models.StatusSummary, error)
}

// UserLister enumerates registered users.
type UserLister interface {
	AllUserIDs(ctx context.Context) ([]int64, error)
}

// SnapshotStore persists captured snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *models.StatsSnapshot) error
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	users     UserLister
	summaries SummarySource
	snapshots SnapshotStore
	log       *zap.SugaredLogger
	now       func() time.Time
}

// New creates a new scheduler instance
func New(users UserLister, summaries SummarySource, snapshots SnapshotStore, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		users:     users,
		summaries: summaries,
		snapshots: snapshots,
		log:       log,
		now:       time.Now,
	}
}

// Start schedules the snapshot job at the given UTC hour and begins running
// in the background.
func (s *Scheduler) Start(hour int) error {
	at := fmt.Sprintf("%02d:00", hour)
	if _, err := s.scheduler.Every(1).Day().At(at).Do(s.captureAll); err != nil {
		return fmt.Errorf("schedule snapshot job: %w", err)
	}
	s.scheduler.StartAsync()
	s.log.Infow("snapshot job scheduled", "at", at)
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// captureAll snapshots every user's summary. Per-user failures are logged
// and skipped so one broken user doesn't starve the rest.
func (s *Scheduler) captureAll() {
	ctx := context.Background()

	ids, err := s.users.AllUserIDs(ctx)
	if err != nil {
		s.log.Errorw("list users for snapshot", "error", err)
		return
	}

	for _, userID := range ids {
		if err := s.CaptureSnapshot(ctx, userID); err != nil {
			s.log.Errorw("capture snapshot", "user_id", userID, "error", err)
		}
	}
}

// CaptureSnapshot materializes one user's status summary into the snapshot
// store. Also used for manual, out-of-schedule captures.
func (s *Scheduler) CaptureSnapshot(ctx context.Context, userID int64) error {
	summary, err := s.summaries.StatusSummary(ctx, userID)
	if err != nil {
		return err
	}

	snap := &models.StatsSnapshot{
		UserID:     userID,
		Total:      summary.Total,
		Stable:     summary.Stable,
		Fragile:    summary.Fragile,
		Learning:   summary.Learning,
		Lapsed:     summary.Lapsed,
		CapturedAt: s.now().UTC(),
	}
	return s.snapshots.SaveSnapshot(ctx, snap)
}
