package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/conceptbot/internal/review"
	"github.com/example/conceptbot/pkg/models"
)

func baseRecord() *models.ProgressRecord {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &models.ProgressRecord{
		UserID:       1,
		ConceptID:    10,
		Status:       models.StatusReviewing,
		IntervalDays: 3,
		EaseFactor:   2.5,
		NextReviewAt: now.Add(72 * time.Hour),
		CreatedAt:    now,
		UpdatedAt:    now,
		History: []models.HistoryEntry{
			{AnsweredAt: now, WasCorrect: true, Confidence: models.ConfidenceHigh, IntervalDays: 3},
		},
	}
}

func TestCreateAndFindOne(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := baseRecord()
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID == 0 || rec.Version != 1 {
		t.Errorf("ID/Version = %d/%d, want assigned ID and version 1", rec.ID, rec.Version)
	}
	if rec.History[0].ID == 0 || rec.History[0].ProgressID != rec.ID {
		t.Errorf("history entry not linked: %+v", rec.History[0])
	}

	got, err := s.FindOne(ctx, 1, 10)
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if got.Status != models.StatusReviewing || len(got.History) != 1 {
		t.Errorf("got %+v, want stored record with one history entry", got)
	}

	if err := s.Create(ctx, baseRecord()); !errors.Is(err, review.ErrAlreadyExists) {
		t.Errorf("duplicate Create err = %v, want ErrAlreadyExists", err)
	}
}

func TestFindOneMissing(t *testing.T) {
	s := New()
	if _, err := s.FindOne(context.Background(), 1, 99); !errors.Is(err, review.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFindOneReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Create(ctx, baseRecord()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.FindOne(ctx, 1, 10)
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	got.Status = models.StatusLapsed
	got.History[0].WasCorrect = false

	again, err := s.FindOne(ctx, 1, 10)
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if again.Status != models.StatusReviewing || !again.History[0].WasCorrect {
		t.Errorf("stored record was mutated through a returned copy: %+v", again)
	}
}

func TestUpdate(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := baseRecord()
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec.Status = models.StatusStable
	rec.IntervalDays = 25
	rec.History = append(rec.History, models.HistoryEntry{
		AnsweredAt: rec.UpdatedAt.Add(time.Hour), WasCorrect: true,
		Confidence: models.ConfidenceHigh, IntervalDays: 25,
	})
	if err := s.Update(ctx, rec); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if rec.Version != 2 {
		t.Errorf("Version = %d, want 2 after update", rec.Version)
	}

	got, err := s.FindOne(ctx, 1, 10)
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if got.Status != models.StatusStable || len(got.History) != 2 {
		t.Errorf("got %+v, want updated record with two history entries", got)
	}
	if got.History[1].ID == 0 {
		t.Errorf("appended history entry not assigned an ID: %+v", got.History[1])
	}
}

func TestUpdateMissing(t *testing.T) {
	s := New()
	rec := baseRecord()
	if err := s.Update(context.Background(), rec); !errors.Is(err, review.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateVersionConflict(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := baseRecord()
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	stale, err := s.FindOne(ctx, 1, 10)
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}

	// First writer wins.
	if err := s.Update(ctx, rec); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// The stale copy still carries version 1 and must be rejected.
	stale.Status = models.StatusLapsed
	if err := s.Update(ctx, stale); !errors.Is(err, review.ErrConflict) {
		t.Fatalf("stale update err = %v, want ErrConflict", err)
	}
}

func TestDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Create(ctx, baseRecord()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Delete(ctx, 1, 10); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.FindOne(ctx, 1, 10); !errors.Is(err, review.ErrNotFound) {
		t.Errorf("err after delete = %v, want ErrNotFound", err)
	}
}

func TestUpsertConcept(t *testing.T) {
	s := New()
	ctx := context.Background()

	c := &models.Concept{UserID: 1, Title: "osmosis", Category: "biology", Question: "q1", Answer: "a1"}
	if err := s.UpsertConcept(ctx, c); err != nil {
		t.Fatalf("UpsertConcept: %v", err)
	}
	firstID := c.ID

	// Same title and category updates in place.
	c2 := &models.Concept{UserID: 1, Title: "osmosis", Category: "biology", Question: "q2", Answer: "a2"}
	if err := s.UpsertConcept(ctx, c2); err != nil {
		t.Fatalf("UpsertConcept: %v", err)
	}
	if c2.ID != firstID {
		t.Errorf("upsert created a second concept: %d vs %d", c2.ID, firstID)
	}

	concepts, err := s.UserConcepts(ctx, 1)
	if err != nil {
		t.Fatalf("UserConcepts: %v", err)
	}
	if len(concepts) != 1 || concepts[0].Question != "q2" {
		t.Errorf("concepts = %+v, want one updated concept", concepts)
	}
}

func TestDeleteConceptCascades(t *testing.T) {
	s := New()
	ctx := context.Background()

	c := &models.Concept{UserID: 1, Title: "entropy"}
	if err := s.UpsertConcept(ctx, c); err != nil {
		t.Fatalf("UpsertConcept: %v", err)
	}
	rec := baseRecord()
	rec.ConceptID = c.ID
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.DeleteConcept(ctx, 1, c.ID); err != nil {
		t.Fatalf("DeleteConcept: %v", err)
	}
	if _, err := s.FindOne(ctx, 1, c.ID); !errors.Is(err, review.ErrNotFound) {
		t.Errorf("progress survived concept delete: err = %v", err)
	}
}

func TestEnsureUserAndSnapshots(t *testing.T) {
	s := New()
	ctx := context.Background()

	u, err := s.EnsureUser(ctx, &models.User{ID: 42, Username: "alice"})
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if u.CreatedAt.IsZero() {
		t.Errorf("CreatedAt not set on first contact")
	}

	u2, err := s.EnsureUser(ctx, &models.User{ID: 42, Username: "alice2"})
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if u2.Username != "alice2" || !u2.CreatedAt.Equal(u.CreatedAt) {
		t.Errorf("second EnsureUser = %+v, want refreshed profile with original CreatedAt", u2)
	}

	ids, err := s.AllUserIDs(ctx)
	if err != nil {
		t.Fatalf("AllUserIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != 42 {
		t.Errorf("ids = %v, want [42]", ids)
	}

	snap := &models.StatsSnapshot{UserID: 42, Total: 3, Stable: 1}
	if err := s.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	snaps, err := s.Snapshots(ctx, 42)
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Total != 3 {
		t.Errorf("snapshots = %+v, want the saved snapshot", snaps)
	}
}
