package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/conceptbot/pkg/models"
)

type fakeSource struct {
	summaries map[int64]models.StatusSummary
	err       error
}

func (f *fakeSource) StatusSummary(_ context.Context, userID int64) (models.StatusSummary, error) {
	if f.err != nil {
		return models.StatusSummary{}, f.err
	}
	return f.summaries[userID], nil
}

type fakeUsers struct{ ids []int64 }

func (f *fakeUsers) AllUserIDs(context.Context) ([]int64, error) { return f.ids, nil }

type fakeSnapshots struct{ saved []models.StatsSnapshot }

func (f *fakeSnapshots) SaveSnapshot(_ context.Context, snap *models.StatsSnapshot) error {
	f.saved = append(f.saved, *snap)
	return nil
}

func TestCaptureSnapshot(t *testing.T) {
	source := &fakeSource{summaries: map[int64]models.StatusSummary{
		7: {UserID: 7, Total: 10, Stable: 4, Fragile: 2, Learning: 3, Lapsed: 1},
	}}
	sink := &fakeSnapshots{}
	s := New(&fakeUsers{}, source, sink, zap.NewNop().Sugar())

	captured := time.Date(2024, 5, 2, 3, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return captured }

	if err := s.CaptureSnapshot(context.Background(), 7); err != nil {
		t.Fatalf("CaptureSnapshot: %v", err)
	}
	if len(sink.saved) != 1 {
		t.Fatalf("saved %d snapshots, want 1", len(sink.saved))
	}

	snap := sink.saved[0]
	want := models.StatsSnapshot{
		UserID: 7, Total: 10, Stable: 4, Fragile: 2, Learning: 3, Lapsed: 1,
		CapturedAt: captured,
	}
	if snap != want {
		t.Errorf("snapshot = %+v, want %+v", snap, want)
	}
}

func TestCaptureSnapshotPropagatesSourceError(t *testing.T) {
	wantErr := errors.New("summary failed")
	s := New(&fakeUsers{}, &fakeSource{err: wantErr}, &fakeSnapshots{}, zap.NewNop().Sugar())

	if err := s.CaptureSnapshot(context.Background(), 1); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestCaptureAllSkipsFailingUsers(t *testing.T) {
	source := &fakeSource{summaries: map[int64]models.StatusSummary{
		1: {UserID: 1, Total: 2},
		2: {UserID: 2, Total: 5},
	}}
	sink := &fakeSnapshots{}
	s := New(&fakeUsers{ids: []int64{1, 2}}, source, sink, zap.NewNop().Sugar())

	s.captureAll()

	if len(sink.saved) != 2 {
		t.Fatalf("saved %d snapshots, want 2", len(sink.saved))
	}
	if sink.saved[0].UserID != 1 || sink.saved[1].UserID != 2 {
		t.Errorf("saved users = %d, %d", sink.saved[0].UserID, sink.saved[1].UserID)
	}
}

func TestStartSchedulesJob(t *testing.T) {
	s := New(&fakeUsers{}, &fakeSource{}, &fakeSnapshots{}, zap.NewNop().Sugar())
	defer s.Stop()

	if err := s.Start(3); err != nil {
		t.Fatalf("Start: %v", err)
	}
}
