package domain

import (
	"math"
	"strconv"
	"strings"
)

// Progress returns completion toward the target as an integer percent in [0,100].
// A zero target yields 0. Negative ratios floor at 0.
func Progress(ns NorthStarMetric) int {
	if ns.TargetValue == 0 {
		return 0
	}
	ratio := ns.CurrentValue / ns.TargetValue * 100
	if math.IsNaN(ratio) {
		return 0
	}
	pct := math.Round(math.Min(100, ratio))
	if pct < 0 {
		return 0
	}
	return int(pct)
}

// ParseMetricValue parses user-entered numeric text. Thousands separators, a
// leading "$" and a trailing "%" are tolerated; suffixes like "1.5k" are not.
func ParseMetricValue(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "_", "")
	if s == "" {
		return 0, &ValidationError{Field: "value", Reason: "empty numeric value"}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ValidationError{Field: "value", Reason: "not a number: " + raw}
	}
	return v, nil
}
