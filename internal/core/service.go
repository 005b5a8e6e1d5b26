package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"growthcore/internal/blob"
	"growthcore/pkg/domain"
)

// Collaborator sentinels returned when an optional dependency is not configured.
var (
	ErrNoPrompter  = errors.New("no prompter configured")
	ErrNoBlobStore = errors.New("no blob store configured")
)

// Service is the command and query surface over one growth workspace.
type Service struct {
	store     *MemoryStore
	selection *SelectionMirror
	ids       IDGenerator
	lifecycle LifecyclePolicy
	prompter  Prompter
	blobs     blob.Store
	team      TeamDirectory

	clock   Clock
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer

	persister        Persister
	retryAttempts    uint
	retryDelay       time.Duration
	onPersistFailure PersistenceFailureHandler

	persistMu  sync.Mutex
	persistErr error
}

// NewService constructs a service backed by the supplied store. A nil store
// is replaced with an in-memory store using the default rules.
func NewService(store *MemoryStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if store == nil {
		store = NewMemoryStore(NewDefaultRulesEngine())
	}
	clock := o.clock
	if o.clockSet {
		store.SetNowFunc(clock.Now)
	} else {
		clock = ClockFunc(store.NowFunc())
	}
	if _, permissive := o.lifecycle.(PermissiveLifecycle); !permissive {
		registerOnce(store.RulesEngine(), LifecycleTransitionRule(o.lifecycle))
	}
	return &Service{
		store:            store,
		selection:        NewSelectionMirror(store),
		ids:              o.ids,
		lifecycle:        o.lifecycle,
		prompter:         o.prompter,
		blobs:            o.blobs,
		team:             o.team,
		clock:            clock,
		logger:           o.logger,
		audit:            o.audit,
		metrics:          o.metrics,
		tracer:           o.tracer,
		persister:        o.persister,
		retryAttempts:    o.retryAttempts,
		retryDelay:       o.retryDelay,
		onPersistFailure: o.onPersistFailure,
	}
}

// NewInMemoryService creates a service and in-memory store with the given
// rules engine. A nil engine uses NewDefaultRulesEngine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(NewMemoryStore(engine), opts...)
}

// Store returns the underlying store.
func (s *Service) Store() *MemoryStore {
	return s.store
}

// Selection returns the selection mirror bound to the store.
func (s *Service) Selection() *SelectionMirror {
	return s.selection
}

// Lifecycle returns the active transition policy.
func (s *Service) Lifecycle() LifecyclePolicy {
	return s.lifecycle
}

// run wraps one command with tracing, metrics, logging and audit.
func (s *Service) run(ctx context.Context, op, entityID string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	err := fn(ctx)
	duration := time.Since(started)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.logger.Warn("growthcore operation failed", "operation", op, "entity_id", entityID, "error", err)
		s.recordAuditError(ctx, op, entityID, duration, err)
		return err
	}
	s.logger.Debug("growthcore operation completed", "operation", op, "entity_id", entityID, "duration", duration)
	s.recordAuditSuccess(ctx, op, entityID, duration)
	return nil
}

// command runs fn as one transaction and checkpoints the workspace on success.
func (s *Service) command(ctx context.Context, op, entityID string, fn func(tx Transaction) error) (Result, error) {
	var res Result
	err := s.run(ctx, op, entityID, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, fn)
		if err != nil {
			return err
		}
		for _, v := range res.Violations {
			s.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "severity", v.Severity, "entity_id", v.EntityID, "message", v.Message)
		}
		// Save failures surface through PersistenceError; the commit stands.
		_ = s.checkpoint(ctx, op)
		return nil
	})
	return res, err
}

func (s *Service) recordAuditSuccess(ctx context.Context, op, entityID string, duration time.Duration) {
	s.recordAudit(ctx, op, entityID, duration, nil)
}

func (s *Service) recordAuditError(ctx context.Context, op, entityID string, duration time.Duration, err error) {
	s.recordAudit(ctx, op, entityID, duration, err)
}

func (s *Service) recordAudit(ctx context.Context, op, entityID string, duration time.Duration, err error) {
	meta, ok := operationMetadata[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Timestamp: s.clock.Now(),
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

func (s *Service) today() string {
	return s.clock.Now().Format(time.DateOnly)
}

func trimmed(v string) string {
	return strings.TrimSpace(v)
}

func notFound(entity domain.EntityType, id string) error {
	return domain.ErrNotFound{Entity: entity, ID: id}
}

// NorthStar returns the workspace metric.
func (s *Service) NorthStar() NorthStarMetric {
	return s.store.NorthStar()
}

// Progress returns completion toward the North-Star target as a percent in [0,100].
func (s *Service) Progress() int {
	return domain.Progress(s.store.NorthStar())
}

// Objectives returns all objectives in creation order.
func (s *Service) Objectives() []Objective {
	return s.store.ListObjectives()
}

// Strategies returns all strategies in creation order.
func (s *Service) Strategies() []Strategy {
	return s.store.ListStrategies()
}

// Experiments returns all experiments in creation order.
func (s *Service) Experiments() []Experiment {
	return s.store.ListExperiments()
}

// Objective returns one objective.
func (s *Service) Objective(id string) (Objective, error) {
	o, ok := s.store.GetObjective(id)
	if !ok {
		return Objective{}, notFound(domain.EntityObjective, id)
	}
	return o, nil
}

// Strategy returns one strategy.
func (s *Service) Strategy(id string) (Strategy, error) {
	st, ok := s.store.GetStrategy(id)
	if !ok {
		return Strategy{}, notFound(domain.EntityStrategy, id)
	}
	return st, nil
}

// Experiment returns one experiment.
func (s *Service) Experiment(id string) (Experiment, error) {
	e, ok := s.store.GetExperiment(id)
	if !ok {
		return Experiment{}, notFound(domain.EntityExperiment, id)
	}
	return e, nil
}

// SelectedExperiment returns the experiment under inspection, if any.
func (s *Service) SelectedExperiment() (Experiment, bool) {
	return s.selection.Current()
}

// SelectExperiment makes id the current selection. An empty id clears it.
func (s *Service) SelectExperiment(ctx context.Context, id string) error {
	return s.run(ctx, OpSelectExperiment, id, func(context.Context) error {
		return s.selection.Select(id)
	})
}

// ClearSelection drops the current selection.
func (s *Service) ClearSelection() {
	s.selection.Clear()
}
