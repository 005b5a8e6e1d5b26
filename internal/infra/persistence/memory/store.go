// Package memory provides the in-memory transactional entity store that backs
// every growthcore workspace. Durable backends persist its snapshots.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"growthcore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// NorthStarMetric aliases domain.NorthStarMetric.
	NorthStarMetric = domain.NorthStarMetric
	// Objective aliases domain.Objective.
	Objective = domain.Objective
	// Strategy aliases domain.Strategy.
	Strategy = domain.Strategy
	// Experiment aliases domain.Experiment.
	Experiment = domain.Experiment
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// CommitHook observes the changes of every committed transaction. Hooks run
// synchronously after the new state is installed and before RunInTransaction returns.
type CommitHook func(changes []Change)

// Store provides an in-memory transactional store for the growth domain.
// Each transaction works on a private clone of the state; commit swaps the
// whole state, so snapshots handed out earlier never change.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
	hooks  []CommitHook
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// RulesEngine exposes the configured engine so callers can register rules.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used to stamp records.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc replaces the time provider. A nil fn is ignored.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// OnCommit registers a hook invoked with the changes of each committed transaction.
func (s *Store) OnCommit(hook CommitHook) {
	if hook == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot and notifies
// commit hooks about every entity present before or after the import.
func (s *Store) ImportState(snapshot Snapshot) {
	next := memoryStateFromSnapshot(migrateSnapshot(snapshot))
	s.mu.Lock()
	changes := importChanges(s.state, next)
	s.state = next
	hooks := append([]CommitHook(nil), s.hooks...)
	s.mu.Unlock()
	notify(hooks, changes)
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Any error returned by fn or a blocking rule violation discards the copy.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	result, changes, hooks, err := s.apply(ctx, fn)
	if err != nil {
		return result, err
	}
	notify(hooks, changes)
	return result, nil
}

func (s *Store) apply(ctx context.Context, fn func(tx Transaction) error) (Result, []Change, []CommitHook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}
	if err := fn(tx); err != nil {
		return Result{}, nil, nil, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, transactionView{state: &tx.state}, tx.changes)
		if err != nil {
			return Result{}, nil, nil, err
		}
		result = res
		if res.HasBlocking() {
			return res, nil, nil, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, tx.changes, append([]CommitHook(nil), s.hooks...), nil
}

func notify(hooks []CommitHook, changes []Change) {
	if len(changes) == 0 {
		return
	}
	for _, hook := range hooks {
		hook(append([]Change(nil), changes...))
	}
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(transactionView{state: &snapshot})
}

// NorthStar returns the workspace metric.
func (s *Store) NorthStar() NorthStarMetric {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.northStar
}

// GetObjective returns an objective by id.
func (s *Store) GetObjective(id string) (Objective, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.FindObjective(id)
}

// ListObjectives returns all objectives in creation order.
func (s *Store) ListObjectives() []Objective {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListObjectives()
}

// GetStrategy returns a strategy by id.
func (s *Store) GetStrategy(id string) (Strategy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.FindStrategy(id)
}

// ListStrategies returns all strategies in creation order.
func (s *Store) ListStrategies() []Strategy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListStrategies()
}

// GetExperiment returns an experiment by id.
func (s *Store) GetExperiment(id string) (Experiment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.FindExperiment(id)
}

// ListExperiments returns all experiments in creation order.
func (s *Store) ListExperiments() []Experiment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListExperiments()
}

type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func (v transactionView) NorthStar() NorthStarMetric { return v.state.northStar }

func (v transactionView) ListObjectives() []Objective {
	out := make([]Objective, 0, len(v.state.objectiveOrder))
	for _, id := range v.state.objectiveOrder {
		out = append(out, cloneObjective(v.state.objectives[id]))
	}
	return out
}

func (v transactionView) ListStrategies() []Strategy {
	out := make([]Strategy, 0, len(v.state.strategyOrder))
	for _, id := range v.state.strategyOrder {
		out = append(out, cloneStrategy(v.state.strategies[id]))
	}
	return out
}

func (v transactionView) ListExperiments() []Experiment {
	out := make([]Experiment, 0, len(v.state.experimentOrder))
	for _, id := range v.state.experimentOrder {
		out = append(out, cloneExperiment(v.state.experiments[id]))
	}
	return out
}

func (v transactionView) FindObjective(id string) (Objective, bool) {
	o, ok := v.state.objectives[id]
	if !ok {
		return Objective{}, false
	}
	return cloneObjective(o), true
}

func (v transactionView) FindStrategy(id string) (Strategy, bool) {
	st, ok := v.state.strategies[id]
	if !ok {
		return Strategy{}, false
	}
	return cloneStrategy(st), true
}

func (v transactionView) FindExperiment(id string) (Experiment, bool) {
	e, ok := v.state.experiments[id]
	if !ok {
		return Experiment{}, false
	}
	return cloneExperiment(e), true
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return transactionView{state: &tx.state}
}

func (tx *transaction) FindObjective(id string) (Objective, bool) {
	return transactionView{state: &tx.state}.FindObjective(id)
}

func (tx *transaction) FindStrategy(id string) (Strategy, bool) {
	return transactionView{state: &tx.state}.FindStrategy(id)
}

func (tx *transaction) FindExperiment(id string) (Experiment, bool) {
	return transactionView{state: &tx.state}.FindExperiment(id)
}

// UpdateNorthStar mutates the workspace metric.
func (tx *transaction) UpdateNorthStar(mutator func(*NorthStarMetric) error) (NorthStarMetric, error) {
	before := tx.state.northStar
	current := before
	if err := mutator(&current); err != nil {
		return NorthStarMetric{}, err
	}
	if strings.TrimSpace(current.Name) == "" {
		return NorthStarMetric{}, &domain.ValidationError{Field: "name", Reason: "north star name is required"}
	}
	if current.Type == "" {
		current.Type = domain.MetricCount
	}
	tx.state.northStar = current
	tx.recordChange(Change{Entity: domain.EntityNorthStar, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

func requireID(entity domain.EntityType, id string) error {
	if strings.TrimSpace(id) == "" {
		return &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("%s identifier must be supplied by the caller", entity)}
	}
	return nil
}

func requireTitle(entity domain.EntityType, title string) error {
	if strings.TrimSpace(title) == "" {
		return &domain.ValidationError{Field: "title", Reason: fmt.Sprintf("%s title is required", entity)}
	}
	return nil
}

func duplicate(entity domain.EntityType, id string) error {
	return &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("%s %q already exists", entity, id)}
}

func validateObjective(o Objective) error {
	if err := requireTitle(domain.EntityObjective, o.Title); err != nil {
		return err
	}
	switch o.Status {
	case domain.ObjectiveActive, domain.ObjectiveDone:
	default:
		return &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown objective status %q", o.Status)}
	}
	if o.Progress < 0 || o.Progress > 100 {
		return &domain.ValidationError{Field: "progress", Reason: fmt.Sprintf("must be between 0 and 100, got %d", o.Progress)}
	}
	return nil
}

// CreateObjective stores a new objective within the transaction.
func (tx *transaction) CreateObjective(o Objective) (Objective, error) {
	if err := requireID(domain.EntityObjective, o.ID); err != nil {
		return Objective{}, err
	}
	if _, exists := tx.state.objectives[o.ID]; exists {
		return Objective{}, duplicate(domain.EntityObjective, o.ID)
	}
	if o.Status == "" {
		o.Status = domain.ObjectiveActive
	}
	if err := validateObjective(o); err != nil {
		return Objective{}, err
	}
	o.CreatedAt = tx.now
	o.UpdatedAt = tx.now
	tx.state.objectives[o.ID] = cloneObjective(o)
	tx.state.objectiveOrder = append(tx.state.objectiveOrder, o.ID)
	tx.recordChange(Change{Entity: domain.EntityObjective, Action: domain.ActionCreate, ID: o.ID, After: cloneObjective(o)})
	return cloneObjective(o), nil
}

// UpdateObjective mutates an objective using the provided mutator.
func (tx *transaction) UpdateObjective(id string, mutator func(*Objective) error) (Objective, error) {
	current, ok := tx.state.objectives[id]
	if !ok {
		return Objective{}, domain.ErrNotFound{Entity: domain.EntityObjective, ID: id}
	}
	before := cloneObjective(current)
	next := cloneObjective(current)
	if err := mutator(&next); err != nil {
		return Objective{}, err
	}
	next.ID = id
	next.CreatedAt = before.CreatedAt
	if err := validateObjective(next); err != nil {
		return Objective{}, err
	}
	next.UpdatedAt = tx.now
	tx.state.objectives[id] = cloneObjective(next)
	tx.recordChange(Change{Entity: domain.EntityObjective, Action: domain.ActionUpdate, ID: id, Before: before, After: cloneObjective(next)})
	return cloneObjective(next), nil
}

// UpdateObjectivesWhere applies transform to every objective matching predicate.
func (tx *transaction) UpdateObjectivesWhere(predicate func(Objective) bool, transform func(*Objective) error) (int, error) {
	n := 0
	for _, id := range append([]string(nil), tx.state.objectiveOrder...) {
		if !predicate(cloneObjective(tx.state.objectives[id])) {
			continue
		}
		if _, err := tx.UpdateObjective(id, transform); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// DeleteObjective removes an objective. Missing ids are a no-op.
func (tx *transaction) DeleteObjective(id string) bool {
	current, ok := tx.state.objectives[id]
	if !ok {
		return false
	}
	delete(tx.state.objectives, id)
	tx.state.objectiveOrder = removeID(tx.state.objectiveOrder, id)
	tx.recordChange(Change{Entity: domain.EntityObjective, Action: domain.ActionDelete, ID: id, Before: cloneObjective(current)})
	return true
}

// CreateStrategy stores a new strategy. Its parent objective must exist.
func (tx *transaction) CreateStrategy(st Strategy) (Strategy, error) {
	if err := requireID(domain.EntityStrategy, st.ID); err != nil {
		return Strategy{}, err
	}
	if _, exists := tx.state.strategies[st.ID]; exists {
		return Strategy{}, duplicate(domain.EntityStrategy, st.ID)
	}
	if err := requireTitle(domain.EntityStrategy, st.Title); err != nil {
		return Strategy{}, err
	}
	if _, ok := tx.state.objectives[st.ParentObjectiveID]; !ok {
		return Strategy{}, domain.ErrNotFound{Entity: domain.EntityObjective, ID: st.ParentObjectiveID}
	}
	st.CreatedAt = tx.now
	st.UpdatedAt = tx.now
	tx.state.strategies[st.ID] = cloneStrategy(st)
	tx.state.strategyOrder = append(tx.state.strategyOrder, st.ID)
	tx.recordChange(Change{Entity: domain.EntityStrategy, Action: domain.ActionCreate, ID: st.ID, After: cloneStrategy(st)})
	return cloneStrategy(st), nil
}

// UpdateStrategy mutates a strategy. Re-parenting requires the new objective to exist.
func (tx *transaction) UpdateStrategy(id string, mutator func(*Strategy) error) (Strategy, error) {
	current, ok := tx.state.strategies[id]
	if !ok {
		return Strategy{}, domain.ErrNotFound{Entity: domain.EntityStrategy, ID: id}
	}
	before := cloneStrategy(current)
	next := cloneStrategy(current)
	if err := mutator(&next); err != nil {
		return Strategy{}, err
	}
	next.ID = id
	next.CreatedAt = before.CreatedAt
	if err := requireTitle(domain.EntityStrategy, next.Title); err != nil {
		return Strategy{}, err
	}
	if next.ParentObjectiveID != before.ParentObjectiveID {
		if _, ok := tx.state.objectives[next.ParentObjectiveID]; !ok {
			return Strategy{}, domain.ErrNotFound{Entity: domain.EntityObjective, ID: next.ParentObjectiveID}
		}
	}
	next.UpdatedAt = tx.now
	tx.state.strategies[id] = cloneStrategy(next)
	tx.recordChange(Change{Entity: domain.EntityStrategy, Action: domain.ActionUpdate, ID: id, Before: before, After: cloneStrategy(next)})
	return cloneStrategy(next), nil
}

// UpdateStrategiesWhere applies transform to every strategy matching predicate.
func (tx *transaction) UpdateStrategiesWhere(predicate func(Strategy) bool, transform func(*Strategy) error) (int, error) {
	n := 0
	for _, id := range append([]string(nil), tx.state.strategyOrder...) {
		if !predicate(cloneStrategy(tx.state.strategies[id])) {
			continue
		}
		if _, err := tx.UpdateStrategy(id, transform); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// DeleteStrategy removes a strategy. Missing ids are a no-op.
func (tx *transaction) DeleteStrategy(id string) bool {
	current, ok := tx.state.strategies[id]
	if !ok {
		return false
	}
	delete(tx.state.strategies, id)
	tx.state.strategyOrder = removeID(tx.state.strategyOrder, id)
	tx.recordChange(Change{Entity: domain.EntityStrategy, Action: domain.ActionDelete, ID: id, Before: cloneStrategy(current)})
	return true
}

func validateExperiment(e Experiment) error {
	if err := requireTitle(domain.EntityExperiment, e.Title); err != nil {
		return err
	}
	if !e.Status.Valid() {
		return &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", e.Status)}
	}
	return e.ValidateScores()
}

func normalizeLink(e *Experiment) {
	if e.LinkedStrategyID != nil && strings.TrimSpace(*e.LinkedStrategyID) == "" {
		e.LinkedStrategyID = nil
	}
}

func (tx *transaction) requireStrategy(link *string) error {
	if link == nil {
		return nil
	}
	if _, ok := tx.state.strategies[*link]; !ok {
		return domain.ErrNotFound{Entity: domain.EntityStrategy, ID: *link}
	}
	return nil
}

// CreateExperiment stores a new experiment, deriving its ICE score.
func (tx *transaction) CreateExperiment(e Experiment) (Experiment, error) {
	if err := requireID(domain.EntityExperiment, e.ID); err != nil {
		return Experiment{}, err
	}
	if _, exists := tx.state.experiments[e.ID]; exists {
		return Experiment{}, duplicate(domain.EntityExperiment, e.ID)
	}
	if e.Status == "" {
		e.Status = domain.StatusIdea
	}
	if err := validateExperiment(e); err != nil {
		return Experiment{}, err
	}
	normalizeLink(&e)
	if err := tx.requireStrategy(e.LinkedStrategyID); err != nil {
		return Experiment{}, err
	}
	e.RecomputeScore()
	e.CreatedAt = tx.now
	e.UpdatedAt = tx.now
	tx.state.experiments[e.ID] = cloneExperiment(e)
	tx.state.experimentOrder = append(tx.state.experimentOrder, e.ID)
	tx.recordChange(Change{Entity: domain.EntityExperiment, Action: domain.ActionCreate, ID: e.ID, After: cloneExperiment(e)})
	return cloneExperiment(e), nil
}

// UpdateExperiment mutates an experiment. The ICE score is recomputed from the
// sub-scores after every mutation, so it cannot be set independently.
func (tx *transaction) UpdateExperiment(id string, mutator func(*Experiment) error) (Experiment, error) {
	current, ok := tx.state.experiments[id]
	if !ok {
		return Experiment{}, domain.ErrNotFound{Entity: domain.EntityExperiment, ID: id}
	}
	before := cloneExperiment(current)
	next := cloneExperiment(current)
	if err := mutator(&next); err != nil {
		return Experiment{}, err
	}
	next.ID = id
	next.CreatedAt = before.CreatedAt
	if err := validateExperiment(next); err != nil {
		return Experiment{}, err
	}
	normalizeLink(&next)
	if !sameLink(before.LinkedStrategyID, next.LinkedStrategyID) {
		if err := tx.requireStrategy(next.LinkedStrategyID); err != nil {
			return Experiment{}, err
		}
	}
	next.RecomputeScore()
	next.UpdatedAt = tx.now
	tx.state.experiments[id] = cloneExperiment(next)
	tx.recordChange(Change{Entity: domain.EntityExperiment, Action: domain.ActionUpdate, ID: id, Before: before, After: cloneExperiment(next)})
	return cloneExperiment(next), nil
}

// UpdateExperimentsWhere applies transform to every experiment matching predicate.
func (tx *transaction) UpdateExperimentsWhere(predicate func(Experiment) bool, transform func(*Experiment) error) (int, error) {
	n := 0
	for _, id := range append([]string(nil), tx.state.experimentOrder...) {
		if !predicate(cloneExperiment(tx.state.experiments[id])) {
			continue
		}
		if _, err := tx.UpdateExperiment(id, transform); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// DeleteExperiment removes an experiment. Missing ids are a no-op.
func (tx *transaction) DeleteExperiment(id string) bool {
	current, ok := tx.state.experiments[id]
	if !ok {
		return false
	}
	delete(tx.state.experiments, id)
	tx.state.experimentOrder = removeID(tx.state.experimentOrder, id)
	tx.recordChange(Change{Entity: domain.EntityExperiment, Action: domain.ActionDelete, ID: id, Before: cloneExperiment(current)})
	return true
}

func sameLink(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
