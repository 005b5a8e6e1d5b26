package core

import (
	"context"
	"errors"
	"testing"

	"growthcore/pkg/domain"
)

func TestCreateObjectiveScenario(t *testing.T) {
	svc := newTestService(t)
	before := len(svc.Objectives())

	o, _, err := svc.CreateObjective(context.Background(), "Grow Retention")
	if err != nil {
		t.Fatalf("create objective: %v", err)
	}
	if o.Status != domain.ObjectiveActive || o.Progress != 0 {
		t.Fatalf("expected Active/0, got %s/%d", o.Status, o.Progress)
	}
	if got := len(svc.Objectives()); got != before+1 {
		t.Fatalf("expected %d objectives, got %d", before+1, got)
	}
	if o.ID != "obj-1" || !o.CreatedAt.Equal(fixedNow) {
		t.Fatalf("unexpected id/timestamp %s %s", o.ID, o.CreatedAt)
	}
}

func TestCreateObjectiveRejectsBlankTitle(t *testing.T) {
	svc := newTestService(t)
	_, _, err := svc.CreateObjective(context.Background(), "   ")
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(svc.Objectives()) != 0 {
		t.Fatalf("blank title must not create an objective")
	}
}

func TestCreateExperimentComputesICEScore(t *testing.T) {
	svc := newTestService(t)
	e := mustExperiment(t, svc, ExperimentInput{Title: "Onboarding checklist", Impact: 8, Confidence: 5, Ease: 10})
	if e.ICEScore != 400 {
		t.Fatalf("expected ice 400, got %d", e.ICEScore)
	}
	if e.Status != domain.StatusIdea {
		t.Fatalf("expected Idea status, got %s", e.Status)
	}
	if e.NorthStarMetric != "Revenue" || e.StartDate != "2025-03-14" {
		t.Fatalf("expected captured north star and start date, got %q %q", e.NorthStarMetric, e.StartDate)
	}
	assertICEConsistent(t, svc)
}

func TestCreateExperimentValidation(t *testing.T) {
	svc := newTestService(t)
	cases := []struct {
		name string
		in   ExperimentInput
	}{
		{"blank title", ExperimentInput{Title: " "}},
		{"impact above range", ExperimentInput{Title: "x", Impact: 11}},
		{"negative ease", ExperimentInput{Title: "x", Ease: -1}},
		{"unknown status", ExperimentInput{Title: "x", Status: "Shipped"}},
		{"unknown stage", ExperimentInput{Title: "x", FunnelStage: "Awareness"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := svc.CreateExperiment(context.Background(), tc.in); !domain.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if len(svc.Experiments()) != 0 {
		t.Fatalf("rejected input must not create experiments")
	}
}

func TestCreateExperimentUnknownStrategy(t *testing.T) {
	svc := newTestService(t)
	_, _, err := svc.CreateExperiment(context.Background(), ExperimentInput{Title: "x", LinkedStrategyID: "strat-404"})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSelectionFollowsICEUpdate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	x := mustExperiment(t, svc, ExperimentInput{Title: "Referral bonus", Impact: 7, Confidence: 4, Ease: 6})
	if err := svc.SelectExperiment(ctx, x.ID); err != nil {
		t.Fatalf("select: %v", err)
	}

	if _, _, err := svc.UpdateExperimentICE(ctx, x.ID, domain.FieldConfidence, 9); err != nil {
		t.Fatalf("update ice: %v", err)
	}
	stored, _ := svc.Experiment(x.ID)
	sel, ok := svc.SelectedExperiment()
	if !ok {
		t.Fatalf("selection lost")
	}
	if stored.Confidence != 9 || sel.Confidence != 9 {
		t.Fatalf("expected confidence 9 in both, got %d/%d", stored.Confidence, sel.Confidence)
	}
	if stored.ICEScore != 7*9*6 || sel.ICEScore != stored.ICEScore {
		t.Fatalf("ice mismatch store=%d mirror=%d", stored.ICEScore, sel.ICEScore)
	}
	assertMirrorCoherent(t, svc)
}

func TestUpdateExperimentICERejectsOutOfRange(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	x := mustExperiment(t, svc, ExperimentInput{Title: "Pricing page", Impact: 5, Confidence: 5, Ease: 5})
	if _, _, err := svc.UpdateExperimentICE(ctx, x.ID, domain.FieldImpact, 12); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, _, err := svc.UpdateExperimentICE(ctx, x.ID, "reach", 3); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for unknown field, got %v", err)
	}
	got, _ := svc.Experiment(x.ID)
	if got.Impact != 5 || got.ICEScore != 125 {
		t.Fatalf("rejected update changed state: %+v", got)
	}
	if _, _, err := svc.UpdateExperimentICE(ctx, "exp-404", domain.FieldImpact, 3); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFinishedExperimentLeavesActiveProjection(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	x := mustExperiment(t, svc, ExperimentInput{Title: "Exit survey", Impact: 3, Confidence: 3, Ease: 3})
	other := mustExperiment(t, svc, ExperimentInput{Title: "Win-back email", Impact: 2, Confidence: 2, Ease: 2})

	if _, _, err := svc.TransitionExperimentStatus(ctx, x.ID, domain.StatusFinishedWinner); err != nil {
		t.Fatalf("transition: %v", err)
	}
	active := svc.ActiveExperiments()
	if len(active) != 1 || active[0].ID != other.ID {
		t.Fatalf("expected only %s active, got %+v", other.ID, active)
	}
	if _, err := svc.Experiment(x.ID); err != nil {
		t.Fatalf("finished experiment must stay addressable: %v", err)
	}
	if len(svc.Experiments()) != 2 {
		t.Fatalf("expected both experiments listed")
	}
}

func TestTransitionErrors(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	x := mustExperiment(t, svc, ExperimentInput{Title: "Trial length"})

	var nf domain.ErrNotFound
	if _, _, err := svc.TransitionExperimentStatus(ctx, "exp-404", domain.StatusBuilding); !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if nf.Entity != domain.EntityExperiment || nf.ID != "exp-404" {
		t.Fatalf("unexpected not found payload %+v", nf)
	}
	if _, _, err := svc.TransitionExperimentStatus(ctx, x.ID, "Shipped"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPermissiveLifecycleAllowsAnyJump(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	x := mustExperiment(t, svc, ExperimentInput{Title: "Jump"})
	for _, st := range []Status{domain.StatusFinishedLoser, domain.StatusIdea, domain.StatusAnalysis, domain.StatusPrioritized} {
		if _, _, err := svc.TransitionExperimentStatus(ctx, x.ID, st); err != nil {
			t.Fatalf("transition to %s: %v", st, err)
		}
	}
}

func TestCancelledObjectivePromptIsNoop(t *testing.T) {
	prompter := &scriptedPrompter{answers: []*string{nil}}
	persister := &memPersister{}
	svc := newTestService(t, WithPrompter(prompter), WithPersister(persister))

	o, ok, err := svc.CreateObjectiveFromPrompt(context.Background())
	if err != nil || ok {
		t.Fatalf("expected cancelled prompt, got ok=%t err=%v", ok, err)
	}
	if o.ID != "" || len(svc.Objectives()) != 0 {
		t.Fatalf("cancel must not create an objective")
	}
	if persister.saveCount() != 0 {
		t.Fatalf("cancel must not checkpoint")
	}
}

func TestNorthStarProgressScenario(t *testing.T) {
	svc := newTestService(t)
	current, target := 450000.0, 1000000.0
	ns, _, err := svc.UpdateNorthStar(context.Background(), NorthStarPatch{CurrentValue: &current, TargetValue: &target})
	if err != nil {
		t.Fatalf("update north star: %v", err)
	}
	if got := svc.Progress(); got != 45 {
		t.Fatalf("expected progress 45, got %d", got)
	}
	if got := domain.FormatProgress(ns); got != "$450,000 / $1,000,000" {
		t.Fatalf("unexpected formatted progress %q", got)
	}
}

func TestUpdateNorthStarValidation(t *testing.T) {
	svc := newTestService(t)
	blank := " "
	bogus := domain.MetricType("furlongs")
	if _, _, err := svc.UpdateNorthStar(context.Background(), NorthStarPatch{Name: &blank}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}
	if _, _, err := svc.UpdateNorthStar(context.Background(), NorthStarPatch{Type: &bogus}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for unknown type, got %v", err)
	}
	if svc.NorthStar().Name != "Revenue" {
		t.Fatalf("rejected update changed the north star")
	}
}

func TestDeleteExperimentIdempotentAndClearsSelection(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	x := mustExperiment(t, svc, ExperimentInput{Title: "Delete me"})
	keep := mustExperiment(t, svc, ExperimentInput{Title: "Keep me"})
	if err := svc.SelectExperiment(ctx, x.ID); err != nil {
		t.Fatalf("select: %v", err)
	}

	removed, _, err := svc.DeleteExperiment(ctx, x.ID)
	if err != nil || !removed {
		t.Fatalf("first delete: removed=%t err=%v", removed, err)
	}
	once := svc.Experiments()
	removed, _, err = svc.DeleteExperiment(ctx, x.ID)
	if err != nil || removed {
		t.Fatalf("second delete: removed=%t err=%v", removed, err)
	}
	twice := svc.Experiments()
	if len(once) != 1 || len(twice) != 1 || once[0].ID != keep.ID || twice[0].ID != keep.ID {
		t.Fatalf("delete not idempotent: %+v vs %+v", once, twice)
	}
	if _, ok := svc.SelectedExperiment(); ok {
		t.Fatalf("selection must clear when its experiment is deleted")
	}
}

func TestSelectExperimentUnknownIDKeepsSelection(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	x := mustExperiment(t, svc, ExperimentInput{Title: "Selected"})
	if err := svc.SelectExperiment(ctx, x.ID); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := svc.SelectExperiment(ctx, "exp-404"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if sel, ok := svc.SelectedExperiment(); !ok || sel.ID != x.ID {
		t.Fatalf("selection changed after failed select")
	}
	if err := svc.SelectExperiment(ctx, ""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := svc.SelectedExperiment(); ok {
		t.Fatalf("empty id must clear the selection")
	}
}

func TestUpdateExperimentPatch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	x := mustExperiment(t, svc, ExperimentInput{Title: "Original", Impact: 2, Confidence: 3, Ease: 4})
	if err := svc.SelectExperiment(ctx, x.ID); err != nil {
		t.Fatalf("select: %v", err)
	}
	title := "  Renamed  "
	labels := []string{"pricing", " ", "pricing", "ux"}
	stage := domain.StageActivation
	updated, _, err := svc.UpdateExperiment(ctx, x.ID, ExperimentPatch{Title: &title, Labels: &labels, FunnelStage: &stage})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Renamed" || len(updated.Labels) != 2 || updated.FunnelStage != stage {
		t.Fatalf("unexpected patch result %+v", updated)
	}
	if updated.ICEScore != 24 {
		t.Fatalf("patch must keep ice score, got %d", updated.ICEScore)
	}
	assertMirrorCoherent(t, svc)

	bad := domain.FunnelStage("Awareness")
	if _, _, err := svc.UpdateExperiment(ctx, x.ID, ExperimentPatch{FunnelStage: &bad}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFinishExperimentRecordsLearnings(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	x := mustExperiment(t, svc, ExperimentInput{Title: "Annual plan nudge"})
	if err := svc.SelectExperiment(ctx, x.ID); err != nil {
		t.Fatalf("select: %v", err)
	}

	if _, _, err := svc.FinishExperiment(ctx, x.ID, domain.StatusAnalysis, "n/a"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for non-finished status, got %v", err)
	}
	done, _, err := svc.FinishExperiment(ctx, x.ID, domain.StatusFinishedLoser, "  Users ignored the banner ")
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if done.Status != domain.StatusFinishedLoser || done.KeyLearnings != "Users ignored the banner" || done.EndDate != "2025-03-14" {
		t.Fatalf("unexpected finished experiment %+v", done)
	}
	if _, ok := svc.SelectedExperiment(); ok {
		t.Fatalf("finishing must clear the selection")
	}
}

func TestLinkExperiment(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	o := mustObjective(t, svc, "Activation")
	st := mustStrategy(t, svc, o.ID, "Shorten onboarding")
	x := mustExperiment(t, svc, ExperimentInput{Title: "Skip step 3"})

	linked, _, err := svc.LinkExperiment(ctx, x.ID, st.ID)
	if err != nil || !linked.LinkedTo(st.ID) {
		t.Fatalf("link: %v %+v", err, linked)
	}
	if _, _, err := svc.LinkExperiment(ctx, x.ID, "strat-404"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	unlinked, _, err := svc.LinkExperiment(ctx, x.ID, "")
	if err != nil || unlinked.LinkedStrategyID != nil {
		t.Fatalf("unlink: %v %+v", err, unlinked)
	}
}

func TestMirrorCoherenceAcrossCommandSequence(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	o := mustObjective(t, svc, "Revenue")
	st := mustStrategy(t, svc, o.ID, "Upsell")
	x := mustExperiment(t, svc, ExperimentInput{Title: "Seat upsell", Impact: 5, Confidence: 5, Ease: 5, LinkedStrategyID: st.ID})
	if err := svc.SelectExperiment(ctx, x.ID); err != nil {
		t.Fatalf("select: %v", err)
	}

	steps := []func() error{
		func() error { _, _, err := svc.UpdateExperimentICE(ctx, x.ID, domain.FieldEase, 2); return err },
		func() error {
			_, _, err := svc.TransitionExperimentStatus(ctx, x.ID, domain.StatusBuilding)
			return err
		},
		func() error { _, _, err := svc.DeleteStrategy(ctx, st.ID); return err },
		func() error { _, _, err := svc.UpdateExperimentICE(ctx, x.ID, domain.FieldImpact, 99); return err },
		func() error { _, _, err := svc.CreateExperiment(ctx, ExperimentInput{Title: "Other"}); return err },
	}
	for i, step := range steps {
		_ = step()
		assertMirrorCoherent(t, svc)
		assertICEConsistent(t, svc)
		if _, ok := svc.SelectedExperiment(); !ok {
			t.Fatalf("step %d dropped a selection that still exists", i)
		}
	}
	sel, _ := svc.SelectedExperiment()
	if sel.LinkedStrategyID != nil {
		t.Fatalf("mirror kept link to deleted strategy")
	}
}
