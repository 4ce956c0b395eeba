package review

import (
	"context"
	"fmt"

	"github.com/example/conceptbot/internal/spaced_repetition"
	"github.com/example/conceptbot/pkg/models"
)

// ConceptStatuses returns the user's concepts joined with their current
// progress. Concepts never answered default to status "new" with the seed
// ease factor. The view is recomputed on every call.
func (o *Orchestrator) ConceptStatuses(ctx context.Context, userID int64) ([]models.ConceptStatusView, error) {
	concepts, records, err := o.fetchUserData(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]models.ConceptStatusView, 0, len(concepts))
	for _, c := range concepts {
		view := models.ConceptStatusView{
			Concept:      c,
			Status:       models.StatusNew,
			EaseFactor:   spaced_repetition.SeedEaseFactor,
			IntervalDays: spaced_repetition.MinInterval,
		}
		if rec, ok := records[c.ID]; ok {
			view.Status = rec.Status
			view.EaseFactor = rec.EaseFactor
			view.IntervalDays = rec.IntervalDays
			at := rec.NextReviewAt
			view.NextReviewAt = &at
		}
		views = append(views, view)
	}
	return views, nil
}

// StatusSummary counts the user's concepts per status bucket. Stable,
// fragile, learning and lapsed are reported individually; new and reviewing
// concepts contribute to the total only.
func (o *Orchestrator) StatusSummary(ctx context.Context, userID int64) (models.StatusSummary, error) {
	views, err := o.ConceptStatuses(ctx, userID)
	if err != nil {
		return models.StatusSummary{}, err
	}

	summary := models.StatusSummary{UserID: userID, Total: len(views)}
	for _, v := range views {
		switch v.Status {
		case models.StatusStable:
			summary.Stable++
		case models.StatusFragile:
			summary.Fragile++
		case models.StatusLearning:
			summary.Learning++
		case models.StatusLapsed:
			summary.Lapsed++
		}
	}
	return summary, nil
}

// DueConcepts returns the concepts currently due for review: never answered,
// or next review time at or before now. Ordering among due concepts is not
// specified.
func (o *Orchestrator) DueConcepts(ctx context.Context, userID int64) ([]models.Concept, error) {
	concepts, records, err := o.fetchUserData(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := o.now()
	var due []models.Concept
	for _, c := range concepts {
		rec, ok := records[c.ID]
		if !ok || !rec.NextReviewAt.After(now) {
			due = append(due, c)
		}
	}
	return due, nil
}

// Concept returns one of the user's concepts by ID.
func (o *Orchestrator) Concept(ctx context.Context, userID, conceptID int64) (*models.Concept, error) {
	return o.concepts.Concept(ctx, userID, conceptID)
}

// NextDueQuestion picks one due concept for the user, or nil when nothing is
// due. Any element of the due set is a valid choice.
func (o *Orchestrator) NextDueQuestion(ctx context.Context, userID int64) (*models.Concept, error) {
	due, err := o.DueConcepts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}
	c := due[0]
	return &c, nil
}

func (o *Orchestrator) fetchUserData(ctx context.Context, userID int64) ([]models.Concept, map[int64]models.ProgressRecord, error) {
	concepts, err := o.concepts.UserConcepts(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load concepts: %w", err)
	}
	recs, err := o.progress.FindAllForUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load progress: %w", err)
	}

	byConcept := make(map[int64]models.ProgressRecord, len(recs))
	for _, r := range recs {
		byConcept[r.ConceptID] = r
	}
	return concepts, byConcept, nil
}
