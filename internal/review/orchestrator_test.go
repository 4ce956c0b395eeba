package review_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/conceptbot/internal/memstore"
	"github.com/example/conceptbot/internal/review"
	"github.com/example/conceptbot/internal/spaced_repetition"
	"github.com/example/conceptbot/pkg/models"
)

var testTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// testEnv bundles an orchestrator over a fresh in-memory store with a
// controllable clock.
type testEnv struct {
	store *memstore.Store
	orch  *review.Orchestrator
	now   *time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memstore.New()
	now := testTime
	env := &testEnv{store: store, now: &now}
	env.orch = review.New(store, store, zap.NewNop().Sugar(),
		review.WithClock(func() time.Time { return *env.now }))
	return env
}

func (e *testEnv) advance(d time.Duration) {
	*e.now = e.now.Add(d)
}

func (e *testEnv) addConcept(t *testing.T, userID int64, title string) int64 {
	t.Helper()

	c := &models.Concept{UserID: userID, Title: title, Question: title + "?", Answer: title + "!"}
	if err := e.store.UpsertConcept(context.Background(), c); err != nil {
		t.Fatalf("UpsertConcept(%q): %v", title, err)
	}
	return c.ID
}

func TestRecordAnswerFirstAnswerCreates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conceptID := env.addConcept(t, 1, "osmosis")

	result, err := env.orch.RecordAnswer(ctx, 1, conceptID, true, models.ConfidenceHigh, 4.2)
	if err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	// Seed interval 0.007 times ease 2.6.
	wantInterval := spaced_repetition.MinInterval * 2.6
	if diff := result.IntervalDays - wantInterval; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("IntervalDays = %v, want %v", result.IntervalDays, wantInterval)
	}
	if result.Status != models.StatusReviewing {
		t.Errorf("Status = %v, want reviewing", result.Status)
	}
	wantAt := testTime.Add(time.Duration(wantInterval * 24 * float64(time.Hour)))
	if !result.NextReviewAt.Equal(wantAt) {
		t.Errorf("NextReviewAt = %v, want %v", result.NextReviewAt, wantAt)
	}

	rec, err := env.store.FindOne(ctx, 1, conceptID)
	if err != nil {
		t.Fatalf("FindOne after create: %v", err)
	}
	if len(rec.History) != 1 {
		t.Fatalf("history length = %d, want 1", len(rec.History))
	}
	entry := rec.History[0]
	if !entry.WasCorrect || entry.Confidence != models.ConfidenceHigh {
		t.Errorf("history entry = %+v, want correct/high", entry)
	}
	if entry.IntervalDays != rec.IntervalDays {
		t.Errorf("history entry interval = %v, want the new interval %v", entry.IntervalDays, rec.IntervalDays)
	}
	if entry.ResponseTimeSeconds != 4.2 {
		t.Errorf("response time = %v, want 4.2", entry.ResponseTimeSeconds)
	}
	if !rec.CreatedAt.Equal(testTime) || !rec.UpdatedAt.Equal(testTime) {
		t.Errorf("timestamps = %v/%v, want %v", rec.CreatedAt, rec.UpdatedAt, testTime)
	}
}

func TestRecordAnswerSecondAnswerUpdates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conceptID := env.addConcept(t, 1, "mitosis")

	if _, err := env.orch.RecordAnswer(ctx, 1, conceptID, true, models.ConfidenceHigh, 2); err != nil {
		t.Fatalf("first RecordAnswer: %v", err)
	}
	first, err := env.store.FindOne(ctx, 1, conceptID)
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}

	env.advance(24 * time.Hour)
	if _, err := env.orch.RecordAnswer(ctx, 1, conceptID, true, models.ConfidenceLow, 7); err != nil {
		t.Fatalf("second RecordAnswer: %v", err)
	}

	rec, err := env.store.FindOne(ctx, 1, conceptID)
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if len(rec.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(rec.History))
	}
	if rec.History[0] != first.History[0] {
		t.Errorf("prior history entry changed: %+v vs %+v", rec.History[0], first.History[0])
	}
	if !rec.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed from %v to %v", first.CreatedAt, rec.CreatedAt)
	}
	if !rec.UpdatedAt.After(first.UpdatedAt) {
		t.Errorf("UpdatedAt not refreshed: %v", rec.UpdatedAt)
	}
	if rec.Status != models.StatusFragile {
		t.Errorf("Status = %v, want fragile", rec.Status)
	}
}

func TestRecordAnswerInvalidConfidence(t *testing.T) {
	env := newTestEnv(t)
	conceptID := env.addConcept(t, 1, "photosynthesis")

	_, err := env.orch.RecordAnswer(context.Background(), 1, conceptID, true, models.Confidence("medium"), 1)
	if !errors.Is(err, review.ErrInvalidConfidence) {
		t.Fatalf("err = %v, want ErrInvalidConfidence", err)
	}

	// Nothing may be persisted for a rejected answer.
	if _, err := env.store.FindOne(context.Background(), 1, conceptID); !errors.Is(err, review.ErrNotFound) {
		t.Errorf("FindOne err = %v, want ErrNotFound", err)
	}
}

type failingProgressStore struct {
	review.ProgressStore
	err error
}

func (f *failingProgressStore) Create(ctx context.Context, rec *models.ProgressRecord) error {
	return f.err
}

func TestRecordAnswerStoreFailurePropagates(t *testing.T) {
	store := memstore.New()
	storeErr := errors.New("connection refused")
	failing := &failingProgressStore{ProgressStore: store, err: storeErr}
	orch := review.New(failing, store, zap.NewNop().Sugar())

	c := &models.Concept{UserID: 1, Title: "entropy"}
	if err := store.UpsertConcept(context.Background(), c); err != nil {
		t.Fatalf("UpsertConcept: %v", err)
	}

	_, err := orch.RecordAnswer(context.Background(), 1, c.ID, true, models.ConfidenceHigh, 1)
	if !errors.Is(err, storeErr) {
		t.Fatalf("err = %v, want wrapped store error", err)
	}
}

func TestStatusSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	answered := env.addConcept(t, 1, "a")
	missed := env.addConcept(t, 1, "b")
	guessed := env.addConcept(t, 1, "c")
	env.addConcept(t, 1, "d") // never answered, counts in total only

	if _, err := env.orch.RecordAnswer(ctx, 1, answered, true, models.ConfidenceHigh, 1); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if _, err := env.orch.RecordAnswer(ctx, 1, missed, false, models.ConfidenceNone, 1); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if _, err := env.orch.RecordAnswer(ctx, 1, guessed, true, models.ConfidenceNone, 1); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	summary, err := env.orch.StatusSummary(ctx, 1)
	if err != nil {
		t.Fatalf("StatusSummary: %v", err)
	}

	want := models.StatusSummary{UserID: 1, Total: 4, Learning: 1, Fragile: 1}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}
	if bucketSum := summary.Stable + summary.Fragile + summary.Learning + summary.Lapsed; bucketSum > summary.Total {
		t.Errorf("bucket sum %d exceeds total %d", bucketSum, summary.Total)
	}

	// Reads are idempotent: a second call without intervening answers must match.
	again, err := env.orch.StatusSummary(ctx, 1)
	if err != nil {
		t.Fatalf("StatusSummary: %v", err)
	}
	if again != summary {
		t.Errorf("second summary = %+v, want %+v", again, summary)
	}
}

func TestDueConcepts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fresh := env.addConcept(t, 1, "fresh")
	reviewed := env.addConcept(t, 1, "reviewed")

	if _, err := env.orch.RecordAnswer(ctx, 1, reviewed, true, models.ConfidenceHigh, 1); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	due, err := env.orch.DueConcepts(ctx, 1)
	if err != nil {
		t.Fatalf("DueConcepts: %v", err)
	}
	if len(due) != 1 || due[0].ID != fresh {
		t.Fatalf("due = %+v, want only the never-reviewed concept", due)
	}

	// After the interval passes, the reviewed concept is due again.
	env.advance(48 * time.Hour)
	due, err = env.orch.DueConcepts(ctx, 1)
	if err != nil {
		t.Fatalf("DueConcepts: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("due after interval = %d concepts, want 2", len(due))
	}
}

func TestNextDueQuestion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	next, err := env.orch.NextDueQuestion(ctx, 1)
	if err != nil {
		t.Fatalf("NextDueQuestion: %v", err)
	}
	if next != nil {
		t.Fatalf("next = %+v, want nil with no concepts", next)
	}

	id := env.addConcept(t, 1, "only")
	next, err = env.orch.NextDueQuestion(ctx, 1)
	if err != nil {
		t.Fatalf("NextDueQuestion: %v", err)
	}
	if next == nil || next.ID != id {
		t.Fatalf("next = %+v, want concept %d", next, id)
	}
}

func TestConceptStatusesDefaultsMissingRecords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addConcept(t, 1, "unseen")

	views, err := env.orch.ConceptStatuses(ctx, 1)
	if err != nil {
		t.Fatalf("ConceptStatuses: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("views = %d, want 1", len(views))
	}
	v := views[0]
	if v.Status != models.StatusNew {
		t.Errorf("Status = %v, want new", v.Status)
	}
	if v.EaseFactor != spaced_repetition.SeedEaseFactor {
		t.Errorf("EaseFactor = %v, want seed %v", v.EaseFactor, spaced_repetition.SeedEaseFactor)
	}
	if v.NextReviewAt != nil {
		t.Errorf("NextReviewAt = %v, want nil for unseen concept", v.NextReviewAt)
	}
}
