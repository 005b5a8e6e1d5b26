package core

import (
	"context"
	"fmt"

	"growthcore/pkg/domain"
)

// LifecycleTransitionRule blocks experiment status changes the policy rejects.
func LifecycleTransitionRule(policy LifecyclePolicy) domain.Rule {
	if policy == nil {
		policy = PermissiveLifecycle{}
	}
	return lifecycleTransitionRule{policy: policy}
}

type lifecycleTransitionRule struct {
	policy LifecyclePolicy
}

func (lifecycleTransitionRule) Name() string { return "lifecycle_transition" }

func (r lifecycleTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityExperiment || change.Action != domain.ActionUpdate {
			continue
		}
		before, ok := change.Before.(domain.Experiment)
		if !ok {
			continue
		}
		after, ok := change.After.(domain.Experiment)
		if !ok || before.Status == after.Status {
			continue
		}
		if guard := r.policy.CanTransition(before.Status, after.Status); !guard.Allowed {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "lifecycle_transition",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("experiment %s: %s", after.ID, guard.Reason),
				Entity:   domain.EntityExperiment,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}
