// Package memstore provides an in-memory implementation of the storage
// contracts. It is selected by explicit configuration (STORE_BACKEND=memory)
// and backs the unit tests; data does not survive a restart.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/conceptbot/internal/review"
	"github.com/example/conceptbot/pkg/models"
)

type progressKey struct {
	userID    int64
	conceptID int64
}

// Store keeps all application state in maps guarded by a single RWMutex.
type Store struct {
	mu        sync.RWMutex
	progress  map[progressKey]*models.ProgressRecord
	concepts  map[int64]*models.Concept
	users     map[int64]*models.User
	snapshots []models.StatsSnapshot
	nextID    int64
}

// Compile-time interface checks.
var (
	_ review.ProgressStore = (*Store)(nil)
	_ review.ConceptStore  = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		progress: make(map[progressKey]*models.ProgressRecord),
		concepts: make(map[int64]*models.Concept),
		users:    make(map[int64]*models.User),
	}
}

func (s *Store) nextSequence() int64 {
	s.nextID++
	return s.nextID
}

// FindOne implements review.ProgressStore.
func (s *Store) FindOne(ctx context.Context, userID, conceptID int64) (*models.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.progress[progressKey{userID, conceptID}]
	if !ok {
		return nil, fmt.Errorf("progress for user %d concept %d: %w", userID, conceptID, review.ErrNotFound)
	}
	return cloneRecord(rec), nil
}

// FindAllForUser implements review.ProgressStore.
func (s *Store) FindAllForUser(ctx context.Context, userID int64) ([]models.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ProgressRecord
	for key, rec := range s.progress {
		if key.userID == userID {
			out = append(out, *cloneRecord(rec))
		}
	}
	return out, nil
}

// Create implements review.ProgressStore.
func (s *Store) Create(ctx context.Context, rec *models.ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := progressKey{rec.UserID, rec.ConceptID}
	if _, ok := s.progress[key]; ok {
		return fmt.Errorf("progress for user %d concept %d: %w", rec.UserID, rec.ConceptID, review.ErrAlreadyExists)
	}

	rec.ID = s.nextSequence()
	rec.Version = 1
	for i := range rec.History {
		rec.History[i].ID = s.nextSequence()
		rec.History[i].ProgressID = rec.ID
	}
	s.progress[key] = cloneRecord(rec)
	return nil
}

// Update implements review.ProgressStore. The stored history is kept as-is
// and only entries beyond its current length are appended; scalar fields are
// replaced. A version mismatch returns review.ErrConflict.
func (s *Store) Update(ctx context.Context, rec *models.ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := progressKey{rec.UserID, rec.ConceptID}
	stored, ok := s.progress[key]
	if !ok {
		return fmt.Errorf("progress for user %d concept %d: %w", rec.UserID, rec.ConceptID, review.ErrNotFound)
	}
	if rec.Version != stored.Version {
		return fmt.Errorf("progress for user %d concept %d: %w", rec.UserID, rec.ConceptID, review.ErrConflict)
	}

	stored.Status = rec.Status
	stored.IntervalDays = rec.IntervalDays
	stored.EaseFactor = rec.EaseFactor
	stored.NextReviewAt = rec.NextReviewAt
	stored.UpdatedAt = rec.UpdatedAt
	stored.Version++

	if len(rec.History) > len(stored.History) {
		for _, entry := range rec.History[len(stored.History):] {
			entry.ID = s.nextSequence()
			entry.ProgressID = stored.ID
			stored.History = append(stored.History, entry)
		}
	}

	rec.Version = stored.Version
	rec.ID = stored.ID
	return nil
}

// Delete implements review.ProgressStore.
func (s *Store) Delete(ctx context.Context, userID, conceptID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.progress, progressKey{userID, conceptID})
	return nil
}

// UserConcepts implements review.ConceptStore.
func (s *Store) UserConcepts(ctx context.Context, userID int64) ([]models.Concept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Concept
	for _, c := range s.concepts {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

// Concept returns one concept by key, or review.ErrNotFound.
func (s *Store) Concept(ctx context.Context, userID, conceptID int64) (*models.Concept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.concepts[conceptID]
	if !ok || c.UserID != userID {
		return nil, fmt.Errorf("concept %d for user %d: %w", conceptID, userID, review.ErrNotFound)
	}
	out := *c
	return &out, nil
}

// UpsertConcept inserts the concept or, when the user already has one with
// the same title and category, updates it in place. Cascades nothing.
func (s *Store) UpsertConcept(ctx context.Context, c *models.Concept) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, existing := range s.concepts {
		if existing.UserID == c.UserID && existing.Title == c.Title && existing.Category == c.Category {
			existing.Question = c.Question
			existing.Answer = c.Answer
			existing.UpdatedAt = now
			*c = *existing
			return nil
		}
	}

	c.ID = s.nextSequence()
	c.CreatedAt = now
	c.UpdatedAt = now
	stored := *c
	s.concepts[c.ID] = &stored
	return nil
}

// DeleteConcept removes a concept and its progress records (cascading).
func (s *Store) DeleteConcept(ctx context.Context, userID, conceptID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.concepts, conceptID)
	delete(s.progress, progressKey{userID, conceptID})
	return nil
}

// EnsureUser registers the user on first contact and refreshes the profile
// fields on subsequent calls. Returns the stored user.
func (s *Store) EnsureUser(ctx context.Context, u *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stored, ok := s.users[u.ID]
	if !ok {
		cp := *u
		cp.CreatedAt = now
		cp.UpdatedAt = now
		s.users[u.ID] = &cp
		out := cp
		return &out, nil
	}

	stored.Username = u.Username
	stored.FirstName = u.FirstName
	stored.LastName = u.LastName
	stored.UpdatedAt = now
	out := *stored
	return &out, nil
}

// AllUserIDs returns the IDs of every registered user.
func (s *Store) AllUserIDs(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	return ids, nil
}

// SaveSnapshot records a nightly stats snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap *models.StatsSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap.ID = s.nextSequence()
	s.snapshots = append(s.snapshots, *snap)
	return nil
}

// Snapshots returns all stored snapshots, oldest first.
func (s *Store) Snapshots(ctx context.Context, userID int64) ([]models.StatsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.StatsSnapshot
	for _, snap := range s.snapshots {
		if snap.UserID == userID {
			out = append(out, snap)
		}
	}
	return out, nil
}

func cloneRecord(rec *models.ProgressRecord) *models.ProgressRecord {
	out := *rec
	out.History = make([]models.HistoryEntry, len(rec.History))
	copy(out.History, rec.History)
	return &out
}
