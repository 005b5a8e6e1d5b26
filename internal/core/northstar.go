package core

import (
	"context"
	"fmt"
	"math"

	"growthcore/pkg/domain"
)

// NorthStarPatch carries the editable North-Star fields. Nil fields are left unchanged.
type NorthStarPatch struct {
	Name         *string
	Unit         *string
	Type         *domain.MetricType
	CurrentValue *float64
	TargetValue  *float64
}

func finite(field string, v *float64) error {
	if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
		return &domain.ValidationError{Field: field, Reason: "must be a finite number"}
	}
	return nil
}

// UpdateNorthStar edits the workspace metric.
func (s *Service) UpdateNorthStar(ctx context.Context, patch NorthStarPatch) (NorthStarMetric, Result, error) {
	var updated NorthStarMetric
	res, err := s.command(ctx, OpUpdateNorthStar, string(domain.EntityNorthStar), func(tx Transaction) error {
		if err := finite("current_value", patch.CurrentValue); err != nil {
			return err
		}
		if err := finite("target_value", patch.TargetValue); err != nil {
			return err
		}
		if patch.Type != nil && !patch.Type.Valid() {
			return &domain.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown metric type %q", *patch.Type)}
		}
		var err error
		updated, err = tx.UpdateNorthStar(func(ns *NorthStarMetric) error {
			setTrimmed(&ns.Name, patch.Name)
			setTrimmed(&ns.Unit, patch.Unit)
			if patch.Type != nil {
				ns.Type = *patch.Type
			}
			if patch.CurrentValue != nil {
				ns.CurrentValue = *patch.CurrentValue
			}
			if patch.TargetValue != nil {
				ns.TargetValue = *patch.TargetValue
			}
			return nil
		})
		return err
	})
	if err != nil {
		return NorthStarMetric{}, res, err
	}
	return updated, res, nil
}
