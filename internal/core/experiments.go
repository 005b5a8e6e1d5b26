package core

import (
	"context"
	"fmt"
	"slices"

	"growthcore/pkg/domain"
)

// ExperimentInput describes a new experiment. The North-Star name and start
// date are captured by the service at creation. OwnerID picks the owner from
// the team roster and takes precedence over Owner; with neither set the first
// roster member owns the experiment.
type ExperimentInput struct {
	Title            string
	Status           Status
	Owner            domain.Owner
	OwnerID          string
	Hypothesis       string
	Observation      string
	Problem          string
	Source           string
	Labels           []string
	SuccessCriteria  string
	TargetMetric     string
	Impact           int
	Confidence       int
	Ease             int
	FunnelStage      domain.FunnelStage
	LinkedStrategyID string
	TestURL          string
}

// ExperimentPatch carries descriptive experiment fields. Nil fields are left
// unchanged. Scores, status and links have dedicated commands.
type ExperimentPatch struct {
	Title           *string
	Owner           *domain.Owner
	OwnerID         *string
	Hypothesis      *string
	Observation     *string
	Problem         *string
	Source          *string
	Labels          *[]string
	SuccessCriteria *string
	TargetMetric    *string
	FunnelStage     *domain.FunnelStage
	TestURL         *string
	KeyLearnings    *string
	StartDate       *string
	EndDate         *string
}

func validateFunnelStage(stage domain.FunnelStage) error {
	if stage == "" || stage.Valid() {
		return nil
	}
	return &domain.ValidationError{Field: "funnel_stage", Reason: fmt.Sprintf("unknown funnel stage %q", stage)}
}

func validateStatus(status Status) error {
	if status.Valid() {
		return nil
	}
	return &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
}

func cleanLabels(labels []string) []string {
	var out []string
	for _, l := range labels {
		if l = trimmed(l); l != "" && !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}

// CreateExperiment adds an experiment. Status defaults to Idea and the ICE
// score is derived from the sub-scores.
func (s *Service) CreateExperiment(ctx context.Context, in ExperimentInput) (Experiment, Result, error) {
	id := s.ids.NewID(domain.EntityExperiment)
	var created Experiment
	res, err := s.command(ctx, OpCreateExperiment, id, func(tx Transaction) error {
		if in.Status != "" {
			if err := validateStatus(in.Status); err != nil {
				return err
			}
		}
		if err := validateFunnelStage(in.FunnelStage); err != nil {
			return err
		}
		owner, err := s.resolveOwner(in.Owner, in.OwnerID)
		if err != nil {
			return err
		}
		exp := Experiment{
			Base:            domain.Base{ID: id},
			Title:           trimmed(in.Title),
			Status:          in.Status,
			Owner:           owner,
			Hypothesis:      trimmed(in.Hypothesis),
			Observation:     trimmed(in.Observation),
			Problem:         trimmed(in.Problem),
			Source:          trimmed(in.Source),
			Labels:          cleanLabels(in.Labels),
			SuccessCriteria: trimmed(in.SuccessCriteria),
			TargetMetric:    trimmed(in.TargetMetric),
			Impact:          in.Impact,
			Confidence:      in.Confidence,
			Ease:            in.Ease,
			FunnelStage:     in.FunnelStage,
			NorthStarMetric: tx.Snapshot().NorthStar().Name,
			StartDate:       s.today(),
			TestURL:         trimmed(in.TestURL),
		}
		if link := trimmed(in.LinkedStrategyID); link != "" {
			exp.LinkedStrategyID = &link
		}
		created, err = tx.CreateExperiment(exp)
		return err
	})
	if err != nil {
		return Experiment{}, res, err
	}
	return created, res, nil
}

func (s *Service) updateExperiment(ctx context.Context, op, id string, mutate func(*Experiment) error) (Experiment, Result, error) {
	var updated Experiment
	res, err := s.command(ctx, op, id, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateExperiment(id, mutate)
		return err
	})
	if err != nil {
		return Experiment{}, res, err
	}
	return updated, res, nil
}

// UpdateExperiment applies a partial edit of descriptive fields.
func (s *Service) UpdateExperiment(ctx context.Context, id string, patch ExperimentPatch) (Experiment, Result, error) {
	return s.updateExperiment(ctx, OpUpdateExperiment, id, func(e *Experiment) error {
		if patch.FunnelStage != nil {
			if err := validateFunnelStage(*patch.FunnelStage); err != nil {
				return err
			}
			e.FunnelStage = *patch.FunnelStage
		}
		setTrimmed(&e.Title, patch.Title)
		setTrimmed(&e.Hypothesis, patch.Hypothesis)
		setTrimmed(&e.Observation, patch.Observation)
		setTrimmed(&e.Problem, patch.Problem)
		setTrimmed(&e.Source, patch.Source)
		setTrimmed(&e.SuccessCriteria, patch.SuccessCriteria)
		setTrimmed(&e.TargetMetric, patch.TargetMetric)
		setTrimmed(&e.TestURL, patch.TestURL)
		setTrimmed(&e.KeyLearnings, patch.KeyLearnings)
		setTrimmed(&e.StartDate, patch.StartDate)
		setTrimmed(&e.EndDate, patch.EndDate)
		if patch.Owner != nil {
			e.Owner = *patch.Owner
		}
		if patch.OwnerID != nil {
			m, err := s.teamMember(*patch.OwnerID)
			if err != nil {
				return err
			}
			e.Owner = m.AsOwner()
		}
		if patch.Labels != nil {
			e.Labels = cleanLabels(*patch.Labels)
		}
		return nil
	})
}

// resolveOwner picks the owner of a new experiment: the roster member named by
// memberID, else the explicit owner, else the first roster member.
func (s *Service) resolveOwner(owner domain.Owner, memberID string) (domain.Owner, error) {
	if memberID = trimmed(memberID); memberID != "" {
		m, err := s.teamMember(memberID)
		if err != nil {
			return domain.Owner{}, err
		}
		return m.AsOwner(), nil
	}
	if owner.Name != "" || s.team == nil {
		return owner, nil
	}
	if team := s.team.TeamMembers(); len(team) > 0 {
		return team[0].AsOwner(), nil
	}
	return owner, nil
}

func (s *Service) teamMember(id string) (domain.TeamMember, error) {
	if s.team == nil {
		return domain.TeamMember{}, notFound(domain.EntityTeamMember, id)
	}
	m, ok := s.team.FindTeamMember(trimmed(id))
	if !ok {
		return domain.TeamMember{}, notFound(domain.EntityTeamMember, id)
	}
	return m, nil
}

func setTrimmed(dst *string, v *string) {
	if v != nil {
		*dst = trimmed(*v)
	}
}

// UpdateExperimentICE sets one ICE sub-score. The composite score is
// recomputed in the same commit.
func (s *Service) UpdateExperimentICE(ctx context.Context, id string, field domain.ICEField, value int) (Experiment, Result, error) {
	return s.updateExperiment(ctx, OpUpdateExperimentICE, id, func(e *Experiment) error {
		return e.SetICE(field, value)
	})
}

// TransitionExperimentStatus moves an experiment to status under the active
// lifecycle policy.
func (s *Service) TransitionExperimentStatus(ctx context.Context, id string, status Status) (Experiment, Result, error) {
	return s.updateExperiment(ctx, OpTransitionExperiment, id, func(e *Experiment) error {
		if err := validateStatus(status); err != nil {
			return err
		}
		if err := s.lifecycle.CanTransition(e.Status, status).Error(); err != nil {
			return err
		}
		e.Status = status
		return nil
	})
}

// FinishExperiment moves an experiment to a Finished status, records its
// learnings and end date, and clears the selection when it is this experiment.
func (s *Service) FinishExperiment(ctx context.Context, id string, status Status, learnings string) (Experiment, Result, error) {
	if !status.Finished() {
		err := &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("%q is not a finished status", status)}
		return Experiment{}, Result{}, s.run(ctx, OpFinishExperiment, id, func(context.Context) error { return err })
	}
	exp, res, err := s.updateExperiment(ctx, OpFinishExperiment, id, func(e *Experiment) error {
		if err := s.lifecycle.CanTransition(e.Status, status).Error(); err != nil {
			return err
		}
		e.Status = status
		e.KeyLearnings = trimmed(learnings)
		e.EndDate = s.today()
		return nil
	})
	if err != nil {
		return Experiment{}, res, err
	}
	s.selection.ClearIfSelected(id)
	return exp, res, nil
}

// LinkExperiment attaches an experiment to a strategy. An empty strategyID unlinks it.
func (s *Service) LinkExperiment(ctx context.Context, id, strategyID string) (Experiment, Result, error) {
	return s.updateExperiment(ctx, OpLinkExperiment, id, func(e *Experiment) error {
		if link := trimmed(strategyID); link != "" {
			e.LinkedStrategyID = &link
		} else {
			e.LinkedStrategyID = nil
		}
		return nil
	})
}

// DeleteExperiment removes an experiment and reports whether it existed.
// Deleting a missing experiment is a no-op. Attached visual proofs are
// removed from the blob store on a best-effort basis.
func (s *Service) DeleteExperiment(ctx context.Context, id string) (bool, Result, error) {
	var removed Experiment
	var ok bool
	res, err := s.command(ctx, OpDeleteExperiment, id, func(tx Transaction) error {
		removed, ok = tx.FindExperiment(id)
		if ok {
			tx.DeleteExperiment(id)
		}
		return nil
	})
	if err != nil {
		return false, res, err
	}
	if ok {
		s.removeProofs(ctx, removed.VisualProof)
	}
	return ok, res, nil
}
