package memory

import "growthcore/pkg/domain"

type memoryState struct {
	northStar       NorthStarMetric
	objectives      map[string]Objective
	strategies      map[string]Strategy
	experiments     map[string]Experiment
	objectiveOrder  []string
	strategyOrder   []string
	experimentOrder []string
}

// Snapshot captures a point-in-time clone of the store state. Collections are
// kept in creation order.
type Snapshot struct {
	NorthStar   NorthStarMetric `json:"north_star"`
	Objectives  []Objective     `json:"objectives"`
	Strategies  []Strategy      `json:"strategies"`
	Experiments []Experiment    `json:"experiments"`
}

// DefaultNorthStar is installed in an empty workspace.
func DefaultNorthStar() NorthStarMetric {
	return NorthStarMetric{Name: "Revenue", Unit: "$", Type: domain.MetricCurrency}
}

func newMemoryState() memoryState {
	return memoryState{
		northStar:   DefaultNorthStar(),
		objectives:  make(map[string]Objective),
		strategies:  make(map[string]Strategy),
		experiments: make(map[string]Experiment),
	}
}

func (s memoryState) clone() memoryState {
	cloned := memoryState{
		northStar:       s.northStar,
		objectives:      make(map[string]Objective, len(s.objectives)),
		strategies:      make(map[string]Strategy, len(s.strategies)),
		experiments:     make(map[string]Experiment, len(s.experiments)),
		objectiveOrder:  append([]string(nil), s.objectiveOrder...),
		strategyOrder:   append([]string(nil), s.strategyOrder...),
		experimentOrder: append([]string(nil), s.experimentOrder...),
	}
	for k, v := range s.objectives {
		cloned.objectives[k] = cloneObjective(v)
	}
	for k, v := range s.strategies {
		cloned.strategies[k] = cloneStrategy(v)
	}
	for k, v := range s.experiments {
		cloned.experiments[k] = cloneExperiment(v)
	}
	return cloned
}

func cloneObjective(o Objective) Objective { return o }
func cloneStrategy(s Strategy) Strategy    { return s }
func cloneExperiment(e Experiment) Experiment {
	cp := e
	cp.Labels = append([]string(nil), e.Labels...)
	cp.VisualProof = append([]string(nil), e.VisualProof...)
	if e.LinkedStrategyID != nil {
		link := *e.LinkedStrategyID
		cp.LinkedStrategyID = &link
	}
	return cp
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	view := transactionView{state: &state}
	return Snapshot{
		NorthStar:   state.northStar,
		Objectives:  view.ListObjectives(),
		Strategies:  view.ListStrategies(),
		Experiments: view.ListExperiments(),
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	state.northStar = s.NorthStar
	for _, o := range s.Objectives {
		state.objectives[o.ID] = cloneObjective(o)
		state.objectiveOrder = append(state.objectiveOrder, o.ID)
	}
	for _, st := range s.Strategies {
		state.strategies[st.ID] = cloneStrategy(st)
		state.strategyOrder = append(state.strategyOrder, st.ID)
	}
	for _, e := range s.Experiments {
		state.experiments[e.ID] = cloneExperiment(e)
		state.experimentOrder = append(state.experimentOrder, e.ID)
	}
	return state
}

// migrateSnapshot normalises persisted data before import: records without
// ids and duplicate ids are dropped, missing defaults are filled, strategies
// whose objective is gone are removed, dangling experiment links are cleared,
// and every ICE score is recomputed from its sub-scores.
func migrateSnapshot(s Snapshot) Snapshot {
	out := Snapshot{NorthStar: s.NorthStar}
	if out.NorthStar.Name == "" {
		out.NorthStar = DefaultNorthStar()
	}
	if out.NorthStar.Type == "" {
		out.NorthStar.Type = domain.MetricCount
	}

	objectives := make(map[string]struct{}, len(s.Objectives))
	for _, o := range s.Objectives {
		if o.ID == "" {
			continue
		}
		if _, dup := objectives[o.ID]; dup {
			continue
		}
		objectives[o.ID] = struct{}{}
		if o.Status == "" {
			o.Status = domain.ObjectiveActive
		}
		o.Progress = clampPercent(o.Progress)
		out.Objectives = append(out.Objectives, o)
	}

	strategies := make(map[string]struct{}, len(s.Strategies))
	for _, st := range s.Strategies {
		if st.ID == "" {
			continue
		}
		if _, dup := strategies[st.ID]; dup {
			continue
		}
		if _, ok := objectives[st.ParentObjectiveID]; !ok {
			continue
		}
		strategies[st.ID] = struct{}{}
		out.Strategies = append(out.Strategies, st)
	}

	experiments := make(map[string]struct{}, len(s.Experiments))
	for _, e := range s.Experiments {
		if e.ID == "" {
			continue
		}
		if _, dup := experiments[e.ID]; dup {
			continue
		}
		experiments[e.ID] = struct{}{}
		e = cloneExperiment(e)
		if !e.Status.Valid() {
			e.Status = domain.StatusIdea
		}
		e.Impact = clampICE(e.Impact)
		e.Confidence = clampICE(e.Confidence)
		e.Ease = clampICE(e.Ease)
		e.RecomputeScore()
		normalizeLink(&e)
		if e.LinkedStrategyID != nil {
			if _, ok := strategies[*e.LinkedStrategyID]; !ok {
				e.LinkedStrategyID = nil
			}
		}
		out.Experiments = append(out.Experiments, e)
	}
	return out
}

func clampPercent(v int) int {
	return min(max(v, 0), 100)
}

func clampICE(v int) int {
	return min(max(v, domain.MinICE), domain.MaxICE)
}

// importChanges reports every entity that exists before or after an import so
// observers can re-derive anything they hold.
func importChanges(prev, next memoryState) []Change {
	var changes []Change
	changes = append(changes, Change{Entity: domain.EntityNorthStar, Action: domain.ActionUpdate, Before: prev.northStar, After: next.northStar})
	for _, id := range prev.objectiveOrder {
		if _, ok := next.objectives[id]; !ok {
			changes = append(changes, Change{Entity: domain.EntityObjective, Action: domain.ActionDelete, ID: id, Before: prev.objectives[id]})
		}
	}
	for _, id := range next.objectiveOrder {
		changes = append(changes, Change{Entity: domain.EntityObjective, Action: importAction(prev.objectives, id), ID: id, After: next.objectives[id]})
	}
	for _, id := range prev.strategyOrder {
		if _, ok := next.strategies[id]; !ok {
			changes = append(changes, Change{Entity: domain.EntityStrategy, Action: domain.ActionDelete, ID: id, Before: prev.strategies[id]})
		}
	}
	for _, id := range next.strategyOrder {
		changes = append(changes, Change{Entity: domain.EntityStrategy, Action: importAction(prev.strategies, id), ID: id, After: next.strategies[id]})
	}
	for _, id := range prev.experimentOrder {
		if _, ok := next.experiments[id]; !ok {
			changes = append(changes, Change{Entity: domain.EntityExperiment, Action: domain.ActionDelete, ID: id, Before: cloneExperiment(prev.experiments[id])})
		}
	}
	for _, id := range next.experimentOrder {
		changes = append(changes, Change{Entity: domain.EntityExperiment, Action: importAction(prev.experiments, id), ID: id, After: cloneExperiment(next.experiments[id])})
	}
	return changes
}

func importAction[T any](prev map[string]T, id string) domain.Action {
	if _, ok := prev[id]; ok {
		return domain.ActionUpdate
	}
	return domain.ActionCreate
}
