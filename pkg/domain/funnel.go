package domain

import "strings"

// Valid reports whether f is one of FunnelStages. The empty stage is not valid.
func (f FunnelStage) Valid() bool {
	for _, s := range FunnelStages {
		if s == f {
			return true
		}
	}
	return false
}

// ParseFunnelStage resolves a stage name case-insensitively. Empty input
// returns the empty stage.
func ParseFunnelStage(raw string) (FunnelStage, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}
	for _, s := range FunnelStages {
		if strings.EqualFold(string(s), trimmed) {
			return s, nil
		}
	}
	return "", &ValidationError{Field: "funnel_stage", Reason: "unknown funnel stage " + raw}
}

// Valid reports whether t is a known metric type.
func (t MetricType) Valid() bool {
	switch t {
	case MetricCurrency, MetricCount, MetricPercentage, MetricRatio:
		return true
	}
	return false
}

// Valid reports whether s is a known objective status.
func (s ObjectiveStatus) Valid() bool {
	return s == ObjectiveActive || s == ObjectiveDone
}
