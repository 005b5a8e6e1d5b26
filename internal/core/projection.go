package core

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"growthcore/pkg/domain"
)

// ExperimentFilter narrows a list of experiments. Filters compose by
// applying them in sequence.
type ExperimentFilter func([]Experiment) []Experiment

// experimentFilter builds an ExperimentFilter that keeps records matching predicate.
func experimentFilter(predicate func(Experiment) bool) ExperimentFilter {
	return func(records []Experiment) []Experiment {
		filtered := make([]Experiment, 0, len(records))
		for _, record := range records {
			if predicate(record) {
				filtered = append(filtered, record)
			}
		}
		return filtered
	}
}

// ExperimentsByStatuses keeps experiments in any of the statuses.
func ExperimentsByStatuses(statuses ...Status) ExperimentFilter {
	return experimentFilter(func(e Experiment) bool {
		return slices.Contains(statuses, e.Status)
	})
}

// ExperimentsByTitle keeps experiments whose title contains query, ignoring case.
// An empty query keeps everything.
func ExperimentsByTitle(query string) ExperimentFilter {
	q := strings.ToLower(strings.TrimSpace(query))
	return experimentFilter(func(e Experiment) bool {
		return q == "" || strings.Contains(strings.ToLower(e.Title), q)
	})
}

// ExperimentsByText keeps experiments whose title or key learnings contain query.
func ExperimentsByText(query string) ExperimentFilter {
	q := strings.ToLower(strings.TrimSpace(query))
	return experimentFilter(func(e Experiment) bool {
		return q == "" ||
			strings.Contains(strings.ToLower(e.Title), q) ||
			strings.Contains(strings.ToLower(e.KeyLearnings), q)
	})
}

// ExperimentsByStage keeps experiments in the funnel stage. An empty stage keeps everything.
func ExperimentsByStage(stage domain.FunnelStage) ExperimentFilter {
	return experimentFilter(func(e Experiment) bool {
		return stage == "" || e.FunnelStage == stage
	})
}

// ExperimentsByStrategy keeps experiments linked to strategyID. An empty id
// keeps unlinked experiments.
func ExperimentsByStrategy(strategyID string) ExperimentFilter {
	return experimentFilter(func(e Experiment) bool {
		if strategyID == "" {
			return e.LinkedStrategyID == nil
		}
		return e.LinkedTo(strategyID)
	})
}

// FilterExperiments applies filters in order.
func FilterExperiments(records []Experiment, filters ...ExperimentFilter) []Experiment {
	out := records
	for _, f := range filters {
		out = f(out)
	}
	return out
}

// SortDirection orders ICE-sorted views.
type SortDirection string

// Sort directions for SortByICE.
const (
	SortDesc SortDirection = "desc" // highest ICE first
	SortAsc  SortDirection = "asc"  // lowest ICE first
)

// SortByICE orders experiments by ICE score, keeping creation order for ties.
func SortByICE(records []Experiment, dir SortDirection) []Experiment {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b Experiment) int {
		if dir == SortAsc {
			return cmp.Compare(a.ICEScore, b.ICEScore)
		}
		return cmp.Compare(b.ICEScore, a.ICEScore)
	})
	return out
}

var (
	exploreStatuses = []Status{domain.StatusIdea, domain.StatusPrioritized, domain.StatusLiveTesting, domain.StatusAnalysis}
	boardStatuses   = []Status{domain.StatusPrioritized, domain.StatusBuilding, domain.StatusLiveTesting, domain.StatusAnalysis}
	finishedStatus  = []Status{domain.StatusFinishedWinner, domain.StatusFinishedLoser, domain.StatusFinishedInconclusive}
)

// ExperimentsActive keeps experiments that have not reached a Finished status.
func ExperimentsActive() ExperimentFilter {
	return experimentFilter(func(e Experiment) bool {
		return !e.Status.Finished()
	})
}

// ActiveExperiments returns every experiment not yet finished.
func (s *Service) ActiveExperiments() []Experiment {
	return FilterExperiments(s.store.ListExperiments(), ExperimentsActive())
}

// ExperimentsByStatus groups every experiment under its status. Every known
// status has an entry.
func (s *Service) ExperimentsByStatus() map[Status][]Experiment {
	out := make(map[Status][]Experiment, len(domain.Statuses))
	for _, st := range domain.Statuses {
		out[st] = []Experiment{}
	}
	for _, e := range s.store.ListExperiments() {
		out[e.Status] = append(out[e.Status], e)
	}
	return out
}

// StrategiesByObjective groups strategies under their objective id. Every
// objective has an entry.
func (s *Service) StrategiesByObjective() map[string][]Strategy {
	var out map[string][]Strategy
	_ = s.store.View(context.Background(), func(v TransactionView) error {
		objectives := v.ListObjectives()
		out = make(map[string][]Strategy, len(objectives))
		for _, o := range objectives {
			out[o.ID] = []Strategy{}
		}
		for _, st := range v.ListStrategies() {
			out[st.ParentObjectiveID] = append(out[st.ParentObjectiveID], st)
		}
		return nil
	})
	return out
}

// ExperimentsByStrategy groups experiments under their strategy id. Unlinked
// experiments are listed under "".
func (s *Service) ExperimentsByStrategy() map[string][]Experiment {
	var out map[string][]Experiment
	_ = s.store.View(context.Background(), func(v TransactionView) error {
		strategies := v.ListStrategies()
		out = make(map[string][]Experiment, len(strategies)+1)
		out[""] = []Experiment{}
		for _, st := range strategies {
			out[st.ID] = []Experiment{}
		}
		for _, e := range v.ListExperiments() {
			key := ""
			if e.LinkedStrategyID != nil {
				key = *e.LinkedStrategyID
			}
			out[key] = append(out[key], e)
		}
		return nil
	})
	return out
}

// Explore lists backlog and running experiments matching query, ordered by ICE score.
func (s *Service) Explore(query string, dir SortDirection) []Experiment {
	return SortByICE(FilterExperiments(s.store.ListExperiments(),
		ExperimentsByStatuses(exploreStatuses...),
		ExperimentsByTitle(query),
	), dir)
}

// BoardColumn is one status lane of the board view.
type BoardColumn struct {
	Status      Status
	Experiments []Experiment
}

// Board returns the in-flight lanes in lifecycle order, each filtered by query.
func (s *Service) Board(query string) []BoardColumn {
	matching := FilterExperiments(s.store.ListExperiments(), ExperimentsByTitle(query))
	cols := make([]BoardColumn, 0, len(boardStatuses))
	for _, st := range boardStatuses {
		cols = append(cols, BoardColumn{Status: st, Experiments: FilterExperiments(matching, ExperimentsByStatuses(st))})
	}
	return cols
}

// LibraryResult selects which finished experiments the library shows.
type LibraryResult string

// Library result filters.
const (
	LibraryAll     LibraryResult = "all"     // winners and losers
	LibraryWinners LibraryResult = "winners" // Finished - Winner only
	LibraryLosers  LibraryResult = "losers"  // Finished - Loser only
)

// LibraryFilter narrows the learning library.
type LibraryFilter struct {
	Result LibraryResult
	Stage  domain.FunnelStage
	Query  string
}

// Library lists finished experiments, newest end date first.
func (s *Service) Library(f LibraryFilter) []Experiment {
	statuses := finishedStatus
	switch f.Result {
	case LibraryWinners:
		statuses = []Status{domain.StatusFinishedWinner}
	case LibraryLosers:
		statuses = []Status{domain.StatusFinishedLoser}
	}
	out := FilterExperiments(s.store.ListExperiments(),
		ExperimentsByStatuses(statuses...),
		ExperimentsByStage(f.Stage),
		ExperimentsByText(f.Query),
	)
	slices.SortStableFunc(out, func(a, b Experiment) int {
		return cmp.Compare(b.EndDate, a.EndDate)
	})
	return out
}

// StrategyNode is a strategy with its linked experiments.
type StrategyNode struct {
	Strategy    Strategy
	Experiments []Experiment
}

// ObjectiveNode is an objective with its strategies.
type ObjectiveNode struct {
	Objective  Objective
	Strategies []StrategyNode
}

// Tree is the hierarchy view below the North-Star.
type Tree struct {
	NorthStar  NorthStarMetric
	Progress   int
	Objectives []ObjectiveNode
	Unlinked   []Experiment
}

// Tree builds the hierarchy from one consistent snapshot.
func (s *Service) Tree() Tree {
	var tree Tree
	_ = s.store.View(context.Background(), func(v TransactionView) error {
		tree = buildTree(v)
		return nil
	})
	return tree
}

func buildTree(v domain.RuleView) Tree {
	experiments := v.ListExperiments()
	tree := Tree{
		NorthStar: v.NorthStar(),
		Progress:  domain.Progress(v.NorthStar()),
		Unlinked:  FilterExperiments(experiments, ExperimentsByStrategy("")),
	}
	strategies := v.ListStrategies()
	for _, o := range v.ListObjectives() {
		node := ObjectiveNode{Objective: o}
		for _, st := range strategies {
			if st.ParentObjectiveID != o.ID {
				continue
			}
			node.Strategies = append(node.Strategies, StrategyNode{
				Strategy:    st,
				Experiments: FilterExperiments(experiments, ExperimentsByStrategy(st.ID)),
			})
		}
		tree.Objectives = append(tree.Objectives, node)
	}
	return tree
}
