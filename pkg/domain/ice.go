package domain

import (
	"fmt"
	"strings"
)

// ICE sub-score bounds.
const (
	MinICE = 0
	MaxICE = 10
)

// ICEField names one of the three ICE sub-scores.
type ICEField string

// ICE sub-score fields.
const (
	FieldImpact     ICEField = "impact"
	FieldConfidence ICEField = "confidence"
	FieldEase       ICEField = "ease"
)

// ParseICEField resolves a field name case-insensitively.
func ParseICEField(raw string) (ICEField, error) {
	switch f := ICEField(strings.ToLower(strings.TrimSpace(raw))); f {
	case FieldImpact, FieldConfidence, FieldEase:
		return f, nil
	}
	return "", &ValidationError{Field: "ice_field", Reason: fmt.Sprintf("unknown field %q", raw)}
}

// Score returns the composite ICE priority score. It performs no validation.
func Score(impact, confidence, ease int) int {
	return impact * confidence * ease
}

// ValidateICE rejects sub-scores outside [MinICE, MaxICE].
func ValidateICE(field ICEField, value int) error {
	if value < MinICE || value > MaxICE {
		return &ValidationError{Field: string(field), Reason: fmt.Sprintf("must be between %d and %d, got %d", MinICE, MaxICE, value)}
	}
	return nil
}

// ValidateScores checks all three sub-scores of e.
func (e Experiment) ValidateScores() error {
	if err := ValidateICE(FieldImpact, e.Impact); err != nil {
		return err
	}
	if err := ValidateICE(FieldConfidence, e.Confidence); err != nil {
		return err
	}
	return ValidateICE(FieldEase, e.Ease)
}

// SetICE assigns one sub-score and recomputes ICEScore in the same step.
func (e *Experiment) SetICE(field ICEField, value int) error {
	if err := ValidateICE(field, value); err != nil {
		return err
	}
	switch field {
	case FieldImpact:
		e.Impact = value
	case FieldConfidence:
		e.Confidence = value
	case FieldEase:
		e.Ease = value
	default:
		return &ValidationError{Field: "ice_field", Reason: fmt.Sprintf("unknown field %q", field)}
	}
	e.RecomputeScore()
	return nil
}

// ICE returns the value of one sub-score.
func (e Experiment) ICE(field ICEField) int {
	switch field {
	case FieldImpact:
		return e.Impact
	case FieldConfidence:
		return e.Confidence
	case FieldEase:
		return e.Ease
	}
	return 0
}

// RecomputeScore resets the derived ICEScore from the sub-scores.
func (e *Experiment) RecomputeScore() {
	e.ICEScore = Score(e.Impact, e.Confidence, e.Ease)
}

// ScoreConsistent reports whether ICEScore matches the sub-scores.
func (e Experiment) ScoreConsistent() bool {
	return e.ICEScore == Score(e.Impact, e.Confidence, e.Ease)
}

// ICEBand buckets a score for display: high >= 500, medium >= 250, otherwise low.
func ICEBand(score int) string {
	switch {
	case score >= 500:
		return "high"
	case score >= 250:
		return "medium"
	default:
		return "low"
	}
}
