package core

import (
	"context"
	"fmt"

	"github.com/avast/retry-go/v4"
)

// Persister loads and saves whole-workspace snapshots.
type Persister interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot) error
}

// PersistenceFailureHandler is called after a checkpoint exhausts its retries.
type PersistenceFailureHandler func(ctx context.Context, err error)

// CheckpointError reports a snapshot save that failed after a command
// committed. The in-memory state is kept.
type CheckpointError struct {
	Operation string
	Err       error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("persist workspace after %s: %v", e.Operation, e.Err)
}

func (e *CheckpointError) Unwrap() error { return e.Err }

// Load replaces the workspace with the persister's snapshot. Without a
// persister it is a no-op.
func (s *Service) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	return s.run(ctx, OpLoadWorkspace, "", func(ctx context.Context) error {
		snap, err := s.persister.Load(ctx)
		if err != nil {
			return fmt.Errorf("load workspace: %w", err)
		}
		s.store.ImportState(snap)
		s.logger.Info("workspace loaded",
			"objectives", len(snap.Objectives),
			"strategies", len(snap.Strategies),
			"experiments", len(snap.Experiments))
		return nil
	})
}

// Save writes the current workspace immediately. The outcome also updates
// PersistenceError.
func (s *Service) Save(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	var err error
	_ = s.run(ctx, OpPersistWorkspace, "", func(ctx context.Context) error {
		err = s.checkpoint(ctx, OpPersistWorkspace)
		return err
	})
	return err
}

// PersistenceError returns the failure of the most recent checkpoint, or nil
// once a later checkpoint succeeds.
func (s *Service) PersistenceError() error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	return s.persistErr
}

// checkpoint saves the committed state, retrying transient failures.
func (s *Service) checkpoint(ctx context.Context, op string) error {
	if s.persister == nil {
		return nil
	}
	snap := s.store.ExportState()
	err := retry.Do(
		func() error { return s.persister.Save(ctx, snap) },
		retry.Context(ctx),
		retry.Attempts(s.retryAttempts),
		retry.Delay(s.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("workspace save retry", "operation", op, "attempt", n+1, "error", err)
		}),
	)
	if err == nil {
		s.persistMu.Lock()
		s.persistErr = nil
		s.persistMu.Unlock()
		return nil
	}
	cerr := &CheckpointError{Operation: op, Err: err}
	s.persistMu.Lock()
	s.persistErr = cerr
	s.persistMu.Unlock()
	s.logger.Error("workspace save failed", "operation", op, "error", err)
	if s.onPersistFailure != nil {
		s.onPersistFailure(ctx, cerr)
	}
	return cerr
}
