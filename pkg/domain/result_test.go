package domain

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fixedRule struct {
	name     string
	severity Severity
	err      error
}

func (r fixedRule) Name() string { return r.name }

func (r fixedRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	if r.err != nil {
		return Result{}, r.err
	}
	return Result{Violations: []Violation{{Rule: r.name, Severity: r.severity, Message: r.name + " fired"}}}, nil
}

// unscoredRule warns for every experiment in the view without an ICE score.
type unscoredRule struct{}

func (unscoredRule) Name() string { return "unscored" }

func (unscoredRule) Evaluate(_ context.Context, view RuleView, _ []Change) (Result, error) {
	var res Result
	for _, e := range view.ListExperiments() {
		if e.ICEScore == 0 {
			res.Violations = append(res.Violations, Violation{Rule: "unscored", Severity: SeverityWarn, Entity: EntityExperiment, EntityID: e.ID})
		}
	}
	return res, nil
}

type sliceView struct{ experiments []Experiment }

func (sliceView) NorthStar() NorthStarMetric               { return NorthStarMetric{} }
func (sliceView) ListObjectives() []Objective              { return nil }
func (sliceView) ListStrategies() []Strategy               { return nil }
func (v sliceView) ListExperiments() []Experiment          { return v.experiments }
func (sliceView) FindObjective(string) (Objective, bool)   { return Objective{}, false }
func (sliceView) FindStrategy(string) (Strategy, bool)     { return Strategy{}, false }
func (sliceView) FindExperiment(string) (Experiment, bool) { return Experiment{}, false }

func TestResultBlocking(t *testing.T) {
	var res Result
	res.Merge(Result{})
	res.Merge(Result{Violations: []Violation{{Rule: "soft", Severity: SeverityWarn}}})
	if res.HasBlocking() || len(res.Violations) != 1 {
		t.Fatalf("warnings alone must not block: %+v", res)
	}
	res.Merge(Result{Violations: []Violation{{Rule: "hard", Severity: SeverityBlock, Message: "stop"}}})
	if !res.HasBlocking() {
		t.Fatalf("expected blocking result")
	}
	if msg := (RuleViolationError{Result: res}).Error(); !strings.Contains(msg, "stop") {
		t.Fatalf("violation error should carry the blocking message: %q", msg)
	}
}

func TestRulesEngineAggregatesInOrder(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(fixedRule{name: "first", severity: SeverityWarn})
	engine.Register(unscoredRule{})
	engine.Register(fixedRule{name: "last", severity: SeverityBlock})

	if got := strings.Join(engine.Rules(), ","); got != "first,unscored,last" {
		t.Fatalf("unexpected rule order %s", got)
	}
	view := sliceView{experiments: []Experiment{
		{Base: Base{ID: "exp-1"}, ICEScore: 0},
		{Base: Base{ID: "exp-2"}, ICEScore: 120},
	}}
	res, err := engine.Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 3 || res.Violations[1].EntityID != "exp-1" || !res.HasBlocking() {
		t.Fatalf("unexpected result %+v", res.Violations)
	}
}

func TestRulesEngineStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	engine := NewRulesEngine()
	engine.Register(fixedRule{name: "broken", err: boom})
	engine.Register(fixedRule{name: "never", severity: SeverityBlock})
	res, err := engine.Evaluate(context.Background(), sliceView{}, nil)
	if !errors.Is(err, boom) || len(res.Violations) != 0 {
		t.Fatalf("expected bare error result, got %+v %v", res, err)
	}
}
