package core

import (
	"strings"
	"testing"

	"growthcore/pkg/domain"
)

func TestSequenceGenerator(t *testing.T) {
	g := &SequenceGenerator{}
	got := []string{
		g.NewID(domain.EntityObjective),
		g.NewID(domain.EntityStrategy),
		g.NewID(domain.EntityExperiment),
	}
	want := []string{"obj-1", "strat-2", "exp-3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestKSUIDGeneratorUnique(t *testing.T) {
	g := KSUIDGenerator{}
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := g.NewID(domain.EntityExperiment)
		if !strings.HasPrefix(id, "exp_") {
			t.Fatalf("unexpected id %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestSequenceGeneratorObserve(t *testing.T) {
	g := &SequenceGenerator{}
	g.Observe("obj-4", "exp-12", "strat_2ZxK", "exp-x", "plain")
	if got := g.NewID(domain.EntityStrategy); got != "strat-13" {
		t.Fatalf("expected strat-13, got %s", got)
	}
	g.Observe("obj-2")
	if got := g.NewID(domain.EntityObjective); got != "obj-14" {
		t.Fatalf("observe must never move the counter back, got %s", got)
	}
}
