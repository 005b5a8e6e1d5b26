package core

import (
	"context"
	"fmt"

	"growthcore/pkg/domain"
)

// ObjectivePatch carries the editable objective fields. Nil fields are left unchanged.
type ObjectivePatch struct {
	Title       *string
	Description *string
}

// StrategyPatch carries the editable strategy fields. Nil fields are left unchanged.
type StrategyPatch struct {
	Title        *string
	TargetMetric *string
}

// DeleteImpact describes what a delete removed or would remove.
type DeleteImpact struct {
	Removed             bool
	Strategies          []string
	UnlinkedExperiments []string
}

// CreateObjective adds an Active objective with zero progress.
func (s *Service) CreateObjective(ctx context.Context, title string) (Objective, Result, error) {
	id := s.ids.NewID(domain.EntityObjective)
	var created Objective
	res, err := s.command(ctx, OpCreateObjective, id, func(tx Transaction) error {
		var err error
		created, err = tx.CreateObjective(Objective{
			Base:   domain.Base{ID: id},
			Title:  trimmed(title),
			Status: domain.ObjectiveActive,
		})
		return err
	})
	if err != nil {
		return Objective{}, res, err
	}
	return created, res, nil
}

// EditObjective changes an objective's title and description.
func (s *Service) EditObjective(ctx context.Context, id string, patch ObjectivePatch) (Objective, Result, error) {
	return s.updateObjective(ctx, OpEditObjective, id, func(o *Objective) error {
		if patch.Title != nil {
			o.Title = trimmed(*patch.Title)
		}
		if patch.Description != nil {
			o.Description = trimmed(*patch.Description)
		}
		return nil
	})
}

// SetObjectiveStatus marks an objective Active or Done.
func (s *Service) SetObjectiveStatus(ctx context.Context, id string, status domain.ObjectiveStatus) (Objective, Result, error) {
	return s.updateObjective(ctx, OpSetObjectiveStatus, id, func(o *Objective) error {
		if !status.Valid() {
			return &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown objective status %q", status)}
		}
		o.Status = status
		return nil
	})
}

// SetObjectiveProgress records manual progress in [0,100].
func (s *Service) SetObjectiveProgress(ctx context.Context, id string, progress int) (Objective, Result, error) {
	return s.updateObjective(ctx, OpSetObjectiveProgress, id, func(o *Objective) error {
		o.Progress = progress
		return nil
	})
}

func (s *Service) updateObjective(ctx context.Context, op, id string, mutate func(*Objective) error) (Objective, Result, error) {
	var updated Objective
	res, err := s.command(ctx, op, id, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateObjective(id, mutate)
		return err
	})
	if err != nil {
		return Objective{}, res, err
	}
	return updated, res, nil
}

// ObjectiveDeleteImpact reports the strategies and experiment links that
// DeleteObjective would remove.
func (s *Service) ObjectiveDeleteImpact(id string) (DeleteImpact, error) {
	var impact DeleteImpact
	err := s.store.View(context.Background(), func(v TransactionView) error {
		if _, ok := v.FindObjective(id); !ok {
			return notFound(domain.EntityObjective, id)
		}
		impact = objectiveImpact(v, id)
		return nil
	})
	return impact, err
}

func objectiveImpact(v domain.RuleView, id string) DeleteImpact {
	impact := DeleteImpact{Removed: true}
	owned := make(map[string]struct{})
	for _, st := range v.ListStrategies() {
		if st.ParentObjectiveID == id {
			impact.Strategies = append(impact.Strategies, st.ID)
			owned[st.ID] = struct{}{}
		}
	}
	for _, e := range v.ListExperiments() {
		if e.LinkedStrategyID == nil {
			continue
		}
		if _, ok := owned[*e.LinkedStrategyID]; ok {
			impact.UnlinkedExperiments = append(impact.UnlinkedExperiments, e.ID)
		}
	}
	return impact
}

// DeleteObjective removes an objective with its strategies and unlinks the
// experiments of those strategies. Experiments are never deleted. A missing
// objective is a no-op.
func (s *Service) DeleteObjective(ctx context.Context, id string) (DeleteImpact, Result, error) {
	var impact DeleteImpact
	res, err := s.command(ctx, OpDeleteObjective, id, func(tx Transaction) error {
		if _, ok := tx.FindObjective(id); !ok {
			impact = DeleteImpact{}
			return nil
		}
		impact = objectiveImpact(tx.Snapshot(), id)
		if err := unlinkExperiments(tx, impact.UnlinkedExperiments); err != nil {
			return err
		}
		for _, sid := range impact.Strategies {
			tx.DeleteStrategy(sid)
		}
		tx.DeleteObjective(id)
		return nil
	})
	if err != nil {
		return DeleteImpact{}, res, err
	}
	return impact, res, nil
}

func unlinkExperiments(tx Transaction, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	targets := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		targets[id] = struct{}{}
	}
	_, err := tx.UpdateExperimentsWhere(
		func(e Experiment) bool {
			_, ok := targets[e.ID]
			return ok
		},
		func(e *Experiment) error {
			e.LinkedStrategyID = nil
			return nil
		},
	)
	return err
}

// CreateStrategy adds a strategy under an existing objective.
func (s *Service) CreateStrategy(ctx context.Context, objectiveID, title string) (Strategy, Result, error) {
	id := s.ids.NewID(domain.EntityStrategy)
	var created Strategy
	res, err := s.command(ctx, OpCreateStrategy, id, func(tx Transaction) error {
		var err error
		created, err = tx.CreateStrategy(Strategy{
			Base:              domain.Base{ID: id},
			Title:             trimmed(title),
			ParentObjectiveID: objectiveID,
		})
		return err
	})
	if err != nil {
		return Strategy{}, res, err
	}
	return created, res, nil
}

// EditStrategy changes a strategy's title and target metric.
func (s *Service) EditStrategy(ctx context.Context, id string, patch StrategyPatch) (Strategy, Result, error) {
	var updated Strategy
	res, err := s.command(ctx, OpEditStrategy, id, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateStrategy(id, func(st *Strategy) error {
			if patch.Title != nil {
				st.Title = trimmed(*patch.Title)
			}
			if patch.TargetMetric != nil {
				st.TargetMetric = trimmed(*patch.TargetMetric)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return Strategy{}, res, err
	}
	return updated, res, nil
}

// DeleteStrategy removes a strategy and unlinks its experiments. A missing
// strategy is a no-op.
func (s *Service) DeleteStrategy(ctx context.Context, id string) (DeleteImpact, Result, error) {
	var impact DeleteImpact
	res, err := s.command(ctx, OpDeleteStrategy, id, func(tx Transaction) error {
		if _, ok := tx.FindStrategy(id); !ok {
			impact = DeleteImpact{}
			return nil
		}
		impact = DeleteImpact{Removed: true, Strategies: []string{id}}
		for _, e := range tx.Snapshot().ListExperiments() {
			if e.LinkedTo(id) {
				impact.UnlinkedExperiments = append(impact.UnlinkedExperiments, e.ID)
			}
		}
		if err := unlinkExperiments(tx, impact.UnlinkedExperiments); err != nil {
			return err
		}
		tx.DeleteStrategy(id)
		return nil
	})
	if err != nil {
		return DeleteImpact{}, res, err
	}
	return impact, res, nil
}
