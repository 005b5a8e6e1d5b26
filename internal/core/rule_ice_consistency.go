package core

import (
	"context"
	"fmt"

	"growthcore/pkg/domain"
)

// ICEConsistencyRule blocks commits where a written experiment carries an
// out-of-range sub-score or an ICE score that is not their product.
func ICEConsistencyRule() domain.Rule {
	return iceConsistencyRule{}
}

type iceConsistencyRule struct{}

func (iceConsistencyRule) Name() string { return "ice_consistency" }

func (iceConsistencyRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityExperiment {
			continue
		}
		exp, ok := change.After.(domain.Experiment)
		if !ok {
			continue
		}
		if err := exp.ValidateScores(); err != nil {
			res.Violations = append(res.Violations, iceViolation(exp.ID, err.Error()))
			continue
		}
		if !exp.ScoreConsistent() {
			res.Violations = append(res.Violations, iceViolation(exp.ID,
				fmt.Sprintf("experiment %s ice score %d does not equal %d*%d*%d", exp.ID, exp.ICEScore, exp.Impact, exp.Confidence, exp.Ease)))
		}
	}
	return res, nil
}

func iceViolation(id, msg string) domain.Violation {
	return domain.Violation{
		Rule:     "ice_consistency",
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   domain.EntityExperiment,
		EntityID: id,
	}
}
