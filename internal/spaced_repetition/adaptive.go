package spaced_repetition

import (
	"github.com/example/conceptbot/pkg/models"
)

// Scheduling constants. Intervals are in days.
const (
	// MinInterval is the shortest scheduling interval, roughly ten minutes.
	// Every incorrect answer resets the interval to this value.
	MinInterval = 0.007
	// EaseFloor is the hard lower bound on the ease factor.
	EaseFloor = 1.3
	// StableThreshold is the interval above which a concept counts as durable.
	StableThreshold = 21.0
	// SeedEaseFactor is the ease factor assigned before the first answer.
	SeedEaseFactor = 2.5
)

// Result is the outcome of applying the policy to one answer.
type Result struct {
	IntervalDays float64
	EaseFactor   float64
	Status       models.Status
}

// ComputeNext applies the adaptive scheduling policy to a single answer and
// returns the next interval, the new ease factor and the new status.
//
// The function is pure and total: any float input is accepted, including a
// zero or negative previous interval, which simply propagates through the
// interval multiplication. Confidence is ignored when the answer was wrong.
func ComputeNext(previousIntervalDays, easeFactor float64, wasCorrect bool, confidence models.Confidence) Result {
	if !wasCorrect {
		status := models.StatusLearning
		if previousIntervalDays > StableThreshold {
			// A concept that had become durable and is then forgotten is
			// lapsed, not merely learning.
			status = models.StatusLapsed
		}
		return Result{
			IntervalDays: MinInterval,
			EaseFactor:   flooredEase(easeFactor - 0.2),
			Status:       status,
		}
	}

	switch confidence {
	case models.ConfidenceHigh:
		ease := easeFactor + 0.1
		interval := previousIntervalDays * ease
		status := models.StatusReviewing
		if interval > StableThreshold {
			status = models.StatusStable
		}
		return Result{IntervalDays: interval, EaseFactor: ease, Status: status}

	case models.ConfidenceLow:
		// Correct but unsure: modest fixed growth, independent of the ease factor.
		return Result{
			IntervalDays: previousIntervalDays * 1.2,
			EaseFactor:   flooredEase(easeFactor - 0.15),
			Status:       models.StatusFragile,
		}

	default:
		// Correct by guessing: treated as evidence of low retention, so the
		// interval shrinks.
		return Result{
			IntervalDays: previousIntervalDays * 0.5,
			EaseFactor:   flooredEase(easeFactor - 0.2),
			Status:       models.StatusFragile,
		}
	}
}

func flooredEase(ease float64) float64 {
	if ease < EaseFloor {
		return EaseFloor
	}
	return ease
}
