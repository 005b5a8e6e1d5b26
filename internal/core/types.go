// Package core exposes the growthcore service facade: commands and queries over
// the North-Star, objective, strategy and experiment hierarchy, the selection
// mirror, lifecycle policy, projections, and observability hooks.
package core

import (
	"growthcore/internal/infra/persistence/memory"
	"growthcore/pkg/domain"
)

type (
	NorthStarMetric = domain.NorthStarMetric
	Objective       = domain.Objective
	Strategy        = domain.Strategy
	Experiment      = domain.Experiment
	Status          = domain.Status
	Change          = domain.Change
	Result          = domain.Result
	RulesEngine     = domain.RulesEngine
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	// Snapshot is the persisted form of a workspace.
	Snapshot = memory.Snapshot
	// MemoryStore is the transactional entity store backing a Service.
	MemoryStore = memory.Store
)

// NewMemoryStore constructs an in-memory store with the supplied rules engine.
func NewMemoryStore(engine *RulesEngine) *MemoryStore {
	return memory.NewStore(engine)
}
