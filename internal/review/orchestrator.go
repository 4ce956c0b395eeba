package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/conceptbot/internal/spaced_repetition"
	"github.com/example/conceptbot/pkg/models"
)

// Orchestrator applies the scheduling policy to incoming answers and keeps
// the progress store consistent: one read and exactly one create-or-update
// per answer. It performs no retries; store failures propagate to the caller.
type Orchestrator struct {
	progress ProgressStore
	concepts ConceptStore
	log      *zap.SugaredLogger
	now      func() time.Time
	locks    *keyedMutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the wall clock, letting tests supply fixed timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator over the given stores.
func New(progress ProgressStore, concepts ConceptStore, log *zap.SugaredLogger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		progress: progress,
		concepts: concepts,
		log:      log,
		now:      time.Now,
		locks:    newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ReviewResult is what an answered question produces for the caller.
type ReviewResult struct {
	NextReviewAt time.Time     `json:"next_review_at"`
	Status       models.Status `json:"status"`
	IntervalDays float64       `json:"interval_days"`
}

// RecordAnswer processes one answered question for a (user, concept) pair.
//
// If the pair has never been answered before, a seed record (status "new",
// minimum interval, ease factor 2.5) feeds the policy and the result is
// persisted with Create; otherwise the existing record is updated in place
// with one history entry appended.
func (o *Orchestrator) RecordAnswer(ctx context.Context, userID, conceptID int64, wasCorrect bool, confidence models.Confidence, responseTimeSeconds float64) (ReviewResult, error) {
	if !confidence.Valid() {
		return ReviewResult{}, fmt.Errorf("%w: %q", ErrInvalidConfidence, confidence)
	}

	unlock := o.locks.lock(progressKey{userID: userID, conceptID: conceptID})
	defer unlock()

	rec, err := o.progress.FindOne(ctx, userID, conceptID)
	creating := false
	switch {
	case errors.Is(err, ErrNotFound):
		creating = true
		rec = seedRecord(userID, conceptID)
	case err != nil:
		return ReviewResult{}, fmt.Errorf("load progress: %w", err)
	}

	next := spaced_repetition.ComputeNext(rec.IntervalDays, rec.EaseFactor, wasCorrect, confidence)

	now := o.now()
	rec.Status = next.Status
	rec.IntervalDays = next.IntervalDays
	rec.EaseFactor = next.EaseFactor
	rec.NextReviewAt = now.Add(daysToDuration(next.IntervalDays))
	rec.UpdatedAt = now
	if creating {
		rec.CreatedAt = now
	}
	rec.History = append(rec.History, models.HistoryEntry{
		AnsweredAt:          now,
		WasCorrect:          wasCorrect,
		Confidence:          confidence,
		IntervalDays:        next.IntervalDays,
		ResponseTimeSeconds: responseTimeSeconds,
	})

	if creating {
		err = o.progress.Create(ctx, rec)
	} else {
		err = o.progress.Update(ctx, rec)
	}
	if err != nil {
		return ReviewResult{}, fmt.Errorf("persist progress: %w", err)
	}

	o.log.Debugw("answer recorded",
		"user_id", userID,
		"concept_id", conceptID,
		"correct", wasCorrect,
		"confidence", confidence,
		"status", rec.Status,
		"interval_days", rec.IntervalDays,
	)

	return ReviewResult{
		NextReviewAt: rec.NextReviewAt,
		Status:       rec.Status,
		IntervalDays: rec.IntervalDays,
	}, nil
}

// seedRecord builds the unsaved initial state fed to the policy on the first
// answer for a pair.
func seedRecord(userID, conceptID int64) *models.ProgressRecord {
	return &models.ProgressRecord{
		UserID:       userID,
		ConceptID:    conceptID,
		Status:       models.StatusNew,
		IntervalDays: spaced_repetition.MinInterval,
		EaseFactor:   spaced_repetition.SeedEaseFactor,
	}
}

// daysToDuration converts a fractional day count to wall-clock time.
func daysToDuration(days float64) time.Duration {
	return time.Duration(days * 24 * float64(time.Hour))
}
