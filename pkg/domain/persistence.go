package domain

import "context"

// Transaction exposes the domain operations that a store implementation
// must support within an atomic scope. Every Update*Where call applies the
// transform to all matching records; nothing is visible outside the
// transaction until it commits.
type Transaction interface {
	Snapshot() TransactionView
	UpdateNorthStar(mutator func(*NorthStarMetric) error) (NorthStarMetric, error)
	CreateObjective(Objective) (Objective, error)
	UpdateObjective(id string, mutator func(*Objective) error) (Objective, error)
	UpdateObjectivesWhere(predicate func(Objective) bool, transform func(*Objective) error) (int, error)
	DeleteObjective(id string) bool
	CreateStrategy(Strategy) (Strategy, error)
	UpdateStrategy(id string, mutator func(*Strategy) error) (Strategy, error)
	UpdateStrategiesWhere(predicate func(Strategy) bool, transform func(*Strategy) error) (int, error)
	DeleteStrategy(id string) bool
	CreateExperiment(Experiment) (Experiment, error)
	UpdateExperiment(id string, mutator func(*Experiment) error) (Experiment, error)
	UpdateExperimentsWhere(predicate func(Experiment) bool, transform func(*Experiment) error) (int, error)
	DeleteExperiment(id string) bool
	FindObjective(id string) (Objective, bool)
	FindStrategy(id string) (Strategy, bool)
	FindExperiment(id string) (Experiment, bool)
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	RuleView
}

// PersistentStore is the store surface used by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	NorthStar() NorthStarMetric
	GetObjective(id string) (Objective, bool)
	ListObjectives() []Objective
	GetStrategy(id string) (Strategy, bool)
	ListStrategies() []Strategy
	GetExperiment(id string) (Experiment, bool)
	ListExperiments() []Experiment
}
