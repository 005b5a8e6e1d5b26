package core

import (
	"context"
	"fmt"

	"growthcore/pkg/domain"
)

// ReferentialIntegrityRule blocks commits that leave a strategy without its
// objective or an experiment linked to a missing strategy.
func ReferentialIntegrityRule() domain.Rule {
	return referentialIntegrityRule{}
}

type referentialIntegrityRule struct{}

func (referentialIntegrityRule) Name() string { return "referential_integrity" }

func (referentialIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	if !touchesHierarchy(changes) {
		return res, nil
	}
	for _, st := range view.ListStrategies() {
		if _, ok := view.FindObjective(st.ParentObjectiveID); !ok {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "referential_integrity",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("strategy %s references missing objective %s", st.ID, st.ParentObjectiveID),
				Entity:   domain.EntityStrategy,
				EntityID: st.ID,
			})
		}
	}
	for _, exp := range view.ListExperiments() {
		if exp.LinkedStrategyID == nil {
			continue
		}
		if _, ok := view.FindStrategy(*exp.LinkedStrategyID); !ok {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "referential_integrity",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("experiment %s links missing strategy %s", exp.ID, *exp.LinkedStrategyID),
				Entity:   domain.EntityExperiment,
				EntityID: exp.ID,
			})
		}
	}
	return res, nil
}

func touchesHierarchy(changes []domain.Change) bool {
	for _, c := range changes {
		if c.Entity != domain.EntityNorthStar {
			return true
		}
	}
	return false
}
