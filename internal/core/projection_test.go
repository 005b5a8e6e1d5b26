package core

import (
	"context"
	"testing"

	"growthcore/pkg/domain"
)

func expIDs(records []Experiment) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func equalIDs(t *testing.T, label string, got []Experiment, want ...string) {
	t.Helper()
	g := expIDs(got)
	if len(g) != len(want) {
		t.Fatalf("%s: expected %v, got %v", label, want, g)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("%s: expected %v, got %v", label, want, g)
		}
	}
}

func TestExploreSortsByICE(t *testing.T) {
	svc := newTestService(t)
	low := mustExperiment(t, svc, ExperimentInput{Title: "Low signup", Impact: 1, Confidence: 1, Ease: 1})
	high := mustExperiment(t, svc, ExperimentInput{Title: "High signup", Impact: 9, Confidence: 9, Ease: 9})
	tie := mustExperiment(t, svc, ExperimentInput{Title: "Tie signup", Impact: 1, Confidence: 1, Ease: 1, Status: domain.StatusAnalysis})
	mustExperiment(t, svc, ExperimentInput{Title: "Building signup", Impact: 10, Confidence: 10, Ease: 10, Status: domain.StatusBuilding})
	mustExperiment(t, svc, ExperimentInput{Title: "Pricing", Impact: 5, Confidence: 5, Ease: 5})

	equalIDs(t, "desc", svc.Explore("SIGNUP", SortDesc), high.ID, low.ID, tie.ID)
	equalIDs(t, "asc", svc.Explore("signup", SortAsc), low.ID, tie.ID, high.ID)
	if got := svc.Explore("", SortDesc); len(got) != 4 {
		t.Fatalf("empty query should list all explore statuses, got %v", expIDs(got))
	}
}

func TestBoardColumns(t *testing.T) {
	svc := newTestService(t)
	mustExperiment(t, svc, ExperimentInput{Title: "Idea only"})
	live := mustExperiment(t, svc, ExperimentInput{Title: "Live banner", Status: domain.StatusLiveTesting})
	mustExperiment(t, svc, ExperimentInput{Title: "Live popup", Status: domain.StatusLiveTesting})

	cols := svc.Board("")
	wantOrder := []Status{domain.StatusPrioritized, domain.StatusBuilding, domain.StatusLiveTesting, domain.StatusAnalysis}
	if len(cols) != len(wantOrder) {
		t.Fatalf("expected %d columns, got %d", len(wantOrder), len(cols))
	}
	for i, col := range cols {
		if col.Status != wantOrder[i] {
			t.Fatalf("column %d: expected %s, got %s", i, wantOrder[i], col.Status)
		}
	}
	if len(cols[2].Experiments) != 2 {
		t.Fatalf("expected two live experiments, got %v", expIDs(cols[2].Experiments))
	}
	equalIDs(t, "filtered live", svc.Board("banner")[2].Experiments, live.ID)
}

func TestLibraryFiltersAndOrder(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	finish := func(title string, status Status, stage domain.FunnelStage, end, learnings string) Experiment {
		t.Helper()
		x := mustExperiment(t, svc, ExperimentInput{Title: title, FunnelStage: stage})
		if _, _, err := svc.FinishExperiment(ctx, x.ID, status, learnings); err != nil {
			t.Fatalf("finish %s: %v", title, err)
		}
		done, _, err := svc.UpdateExperiment(ctx, x.ID, ExperimentPatch{EndDate: &end})
		if err != nil {
			t.Fatalf("set end date: %v", err)
		}
		return done
	}
	old := finish("Old winner", domain.StatusFinishedWinner, domain.StageAcquisition, "2025-01-10", "Social proof helps")
	recent := finish("Recent loser", domain.StatusFinishedLoser, domain.StageRetention, "2025-03-01", "Discounts churn")
	mid := finish("Mid inconclusive", domain.StatusFinishedInconclusive, domain.StageAcquisition, "2025-02-01", "")
	mustExperiment(t, svc, ExperimentInput{Title: "Still running", Status: domain.StatusLiveTesting})

	equalIDs(t, "all", svc.Library(LibraryFilter{Result: LibraryAll}), recent.ID, mid.ID, old.ID)
	equalIDs(t, "winners", svc.Library(LibraryFilter{Result: LibraryWinners}), old.ID)
	equalIDs(t, "losers", svc.Library(LibraryFilter{Result: LibraryLosers}), recent.ID)
	equalIDs(t, "stage", svc.Library(LibraryFilter{Stage: domain.StageAcquisition}), mid.ID, old.ID)
	equalIDs(t, "learnings text", svc.Library(LibraryFilter{Query: "social"}), old.ID)
}

func TestTreeAndGroupings(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	if _, _, err := svc.UpdateNorthStar(ctx, NorthStarPatch{CurrentValue: ptr(250.0), TargetValue: ptr(1000.0)}); err != nil {
		t.Fatalf("north star: %v", err)
	}
	o1 := mustObjective(t, svc, "Acquire")
	o2 := mustObjective(t, svc, "Retain")
	st := mustStrategy(t, svc, o1.ID, "SEO")
	linked := mustExperiment(t, svc, ExperimentInput{Title: "Landing pages", LinkedStrategyID: st.ID})
	loose := mustExperiment(t, svc, ExperimentInput{Title: "Loose idea"})

	tree := svc.Tree()
	if tree.Progress != 25 || len(tree.Objectives) != 2 {
		t.Fatalf("unexpected tree %+v", tree)
	}
	if tree.Objectives[0].Objective.ID != o1.ID || len(tree.Objectives[0].Strategies) != 1 {
		t.Fatalf("unexpected first objective node %+v", tree.Objectives[0])
	}
	equalIDs(t, "strategy node", tree.Objectives[0].Strategies[0].Experiments, linked.ID)
	if len(tree.Objectives[1].Strategies) != 0 {
		t.Fatalf("second objective should have no strategies")
	}
	equalIDs(t, "unlinked", tree.Unlinked, loose.ID)

	byObjective := svc.StrategiesByObjective()
	if len(byObjective[o1.ID]) != 1 || byObjective[o2.ID] == nil || len(byObjective[o2.ID]) != 0 {
		t.Fatalf("unexpected strategies by objective %+v", byObjective)
	}
	byStrategy := svc.ExperimentsByStrategy()
	equalIDs(t, "by strategy", byStrategy[st.ID], linked.ID)
	equalIDs(t, "by strategy unlinked", byStrategy[""], loose.ID)

	byStatus := svc.ExperimentsByStatus()
	if len(byStatus) != len(domain.Statuses) || len(byStatus[domain.StatusIdea]) != 2 {
		t.Fatalf("unexpected status grouping %+v", byStatus)
	}
}

func TestFilterComposition(t *testing.T) {
	records := []Experiment{
		{Base: domain.Base{ID: "a"}, Title: "Checkout copy", Status: domain.StatusIdea, FunnelStage: domain.StageRevenue},
		{Base: domain.Base{ID: "b"}, Title: "Checkout button", Status: domain.StatusFinishedWinner, FunnelStage: domain.StageRevenue},
		{Base: domain.Base{ID: "c"}, Title: "Welcome mail", Status: domain.StatusBuilding, FunnelStage: domain.StageActivation},
	}
	equalIDs(t, "active checkout", FilterExperiments(records, ExperimentsActive(), ExperimentsByTitle("checkout")), "a")
	equalIDs(t, "stage", FilterExperiments(records, ExperimentsByStage(domain.StageRevenue)), "a", "b")
	equalIDs(t, "no filters", FilterExperiments(records), "a", "b", "c")
}

func ptr[T any](v T) *T { return &v }
