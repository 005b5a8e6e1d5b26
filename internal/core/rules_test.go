package core

import (
	"context"
	"errors"
	"testing"

	"growthcore/pkg/domain"
)

func evaluateOn(t *testing.T, svc *Service, rule domain.Rule, changes []Change) Result {
	t.Helper()
	var res Result
	err := svc.Store().View(context.Background(), func(v TransactionView) error {
		var err error
		res, err = rule.Evaluate(context.Background(), v, changes)
		return err
	})
	if err != nil {
		t.Fatalf("evaluate %s: %v", rule.Name(), err)
	}
	return res
}

func TestReferentialIntegrityRule(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	o := mustObjective(t, svc, "Activation")
	st := mustStrategy(t, svc, o.ID, "Guided setup")
	mustExperiment(t, svc, ExperimentInput{Title: "Checklist", LinkedStrategyID: st.ID})

	consistent := evaluateOn(t, svc, ReferentialIntegrityRule(), []Change{
		{Entity: domain.EntityStrategy, Action: domain.ActionCreate, ID: st.ID, After: st},
	})
	if len(consistent.Violations) != 0 {
		t.Fatalf("expected no violations, got %+v", consistent.Violations)
	}

	_, err := svc.Store().RunInTransaction(ctx, func(tx Transaction) error {
		tx.DeleteObjective(o.ID)
		return nil
	})
	var rv domain.RuleViolationError
	if !errors.As(err, &rv) || len(rv.Result.Violations) != 1 || rv.Result.Violations[0].EntityID != st.ID {
		t.Fatalf("expected orphaned strategy violation, got %v", err)
	}

	_, err = svc.Store().RunInTransaction(ctx, func(tx Transaction) error {
		tx.DeleteStrategy(st.ID)
		return nil
	})
	if !errors.As(err, &rv) || rv.Result.Violations[0].Entity != domain.EntityExperiment {
		t.Fatalf("expected dangling link violation, got %v", err)
	}
	if len(svc.Objectives()) != 1 || len(svc.Strategies()) != 1 {
		t.Fatalf("blocked transactions must not change state")
	}
}

func TestICEConsistencyRule(t *testing.T) {
	svc := newTestService(t)
	rule := ICEConsistencyRule()
	good := Experiment{Base: domain.Base{ID: "exp-a"}, Title: "Good", Impact: 2, Confidence: 3, Ease: 4, ICEScore: 24}
	drifted := good
	drifted.ID = "exp-b"
	drifted.ICEScore = 25
	outOfRange := good
	outOfRange.ID = "exp-c"
	outOfRange.Ease = 11

	res := evaluateOn(t, svc, rule, []Change{
		{Entity: domain.EntityExperiment, Action: domain.ActionCreate, ID: good.ID, After: good},
		{Entity: domain.EntityExperiment, Action: domain.ActionUpdate, ID: drifted.ID, After: drifted},
		{Entity: domain.EntityExperiment, Action: domain.ActionUpdate, ID: outOfRange.ID, After: outOfRange},
		{Entity: domain.EntityExperiment, Action: domain.ActionDelete, ID: "exp-d", Before: good},
	})
	if len(res.Violations) != 2 {
		t.Fatalf("expected two violations, got %+v", res.Violations)
	}
	if res.Violations[0].EntityID != "exp-b" || res.Violations[1].EntityID != "exp-c" {
		t.Fatalf("unexpected violation targets %+v", res.Violations)
	}
}

func TestDefaultRulesEngineRegistration(t *testing.T) {
	got := NewDefaultRulesEngine().Rules()
	want := []string{"referential_integrity", "ice_consistency"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if len(NewRulesEngine().Rules()) != 0 {
		t.Fatalf("bare engine should have no rules")
	}
}
