package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"growthcore/internal/infra/persistence/memory"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func stubClock() Clock {
	return ClockFunc(func() time.Time { return fixedNow })
}

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	base := []ServiceOption{WithClock(stubClock()), WithIDGenerator(&SequenceGenerator{})}
	return NewInMemoryService(NewDefaultRulesEngine(), append(base, opts...)...)
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) log(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.log("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.log("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.log("error", msg, args) }

func (l *captureLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

type auditRecorderStub struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (r *auditRecorderStub) Record(_ context.Context, entry AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

type metricsStub struct {
	mu           sync.Mutex
	observations []string
}

func (m *metricsStub) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observations = append(m.observations, fmt.Sprintf("%s:%t", op, success))
}

// memPersister keeps the last saved snapshot and can be told to fail.
type memPersister struct {
	mu        sync.Mutex
	snapshot  Snapshot
	saves     int
	failSaves int
	loadErr   error
}

var errSaveUnavailable = errors.New("save unavailable")

func (p *memPersister) Load(context.Context) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return Snapshot{}, p.loadErr
	}
	return p.snapshot, nil
}

func (p *memPersister) Save(_ context.Context, snap memory.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	if p.failSaves != 0 {
		if p.failSaves > 0 {
			p.failSaves--
		}
		return errSaveUnavailable
	}
	p.snapshot = snap
	return nil
}

func (p *memPersister) saveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

// scriptedPrompter answers prompts from a fixed script. A nil answer cancels.
type scriptedPrompter struct {
	answers []*string
	asked   []PromptRequest
}

func answer(v string) *string { return &v }

func (p *scriptedPrompter) Prompt(_ context.Context, req PromptRequest) (string, bool, error) {
	p.asked = append(p.asked, req)
	if len(p.answers) == 0 {
		return "", false, errors.New("unexpected prompt " + req.Label)
	}
	next := p.answers[0]
	p.answers = p.answers[1:]
	if next == nil {
		return "", false, nil
	}
	return *next, true, nil
}

func mustObjective(t *testing.T, svc *Service, title string) Objective {
	t.Helper()
	o, _, err := svc.CreateObjective(context.Background(), title)
	if err != nil {
		t.Fatalf("create objective: %v", err)
	}
	return o
}

func mustStrategy(t *testing.T, svc *Service, objectiveID, title string) Strategy {
	t.Helper()
	st, _, err := svc.CreateStrategy(context.Background(), objectiveID, title)
	if err != nil {
		t.Fatalf("create strategy: %v", err)
	}
	return st
}

func mustExperiment(t *testing.T, svc *Service, in ExperimentInput) Experiment {
	t.Helper()
	e, _, err := svc.CreateExperiment(context.Background(), in)
	if err != nil {
		t.Fatalf("create experiment: %v", err)
	}
	return e
}

func assertMirrorCoherent(t *testing.T, svc *Service) {
	t.Helper()
	sel, ok := svc.SelectedExperiment()
	if !ok {
		return
	}
	stored, err := svc.Experiment(sel.ID)
	if err != nil {
		t.Fatalf("selection %s points at missing experiment", sel.ID)
	}
	if !reflect.DeepEqual(stored, sel) {
		t.Fatalf("selection diverged from store:\n store=%+v\nmirror=%+v", stored, sel)
	}
}

func assertICEConsistent(t *testing.T, svc *Service) {
	t.Helper()
	for _, e := range svc.Experiments() {
		if !e.ScoreConsistent() {
			t.Fatalf("experiment %s has ice %d for %d*%d*%d", e.ID, e.ICEScore, e.Impact, e.Confidence, e.Ease)
		}
	}
}
