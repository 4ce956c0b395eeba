package models

import "fmt"

// Status classifies how well a user currently holds a concept.
type Status string

const (
	// StatusNew is the seed status before the first answer is processed.
	StatusNew Status = "new"
	// StatusLearning marks a concept missed while still in the initial phase.
	StatusLearning Status = "learning"
	// StatusReviewing marks a concept answered correctly but not yet durable.
	StatusReviewing Status = "reviewing"
	// StatusStable marks a concept whose interval has grown past the stable threshold.
	StatusStable Status = "stable"
	// StatusFragile marks a concept answered correctly but with low confidence or by guessing.
	StatusFragile Status = "fragile"
	// StatusLapsed marks a previously stable concept that was answered incorrectly.
	StatusLapsed Status = "lapsed"
)

// Valid reports whether s is one of the six known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusLearning, StatusReviewing, StatusStable, StatusFragile, StatusLapsed:
		return true
	}
	return false
}

// Confidence is the learner's self-reported certainty at answer time.
type Confidence string

const (
	// ConfidenceHigh means the learner knew the answer outright.
	ConfidenceHigh Confidence = "high"
	// ConfidenceLow means the learner answered but was unsure.
	ConfidenceLow Confidence = "low"
	// ConfidenceNone means the learner guessed.
	ConfidenceNone Confidence = "none"
)

// Valid reports whether c is one of the three known confidence levels.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceLow, ConfidenceNone:
		return true
	}
	return false
}

// ParseConfidence converts a raw string (e.g. from a callback payload) into a Confidence.
func ParseConfidence(s string) (Confidence, error) {
	c := Confidence(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown confidence %q", s)
	}
	return c, nil
}
