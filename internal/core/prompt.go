package core

import (
	"context"
	"fmt"
	"strings"

	"growthcore/pkg/domain"
)

// PromptKind hints how a value should be collected.
type PromptKind string

// Prompt kinds understood by Prompter implementations.
const (
	PromptText    PromptKind = "text"    // free-form line
	PromptNumber  PromptKind = "number"  // numeric value; may carry separators
	PromptConfirm PromptKind = "confirm" // yes/no answer
)

// PromptRequest asks the user for one value.
type PromptRequest struct {
	Kind    PromptKind
	Label   string
	Default string
}

// Prompter collects a value from the user. ok is false when the user
// cancelled; a cancelled prompt leaves the workspace untouched.
type Prompter interface {
	Prompt(ctx context.Context, req PromptRequest) (value string, ok bool, err error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, req PromptRequest) (string, bool, error)

// Prompt calls f.
func (f PrompterFunc) Prompt(ctx context.Context, req PromptRequest) (string, bool, error) {
	return f(ctx, req)
}

func (s *Service) prompt(ctx context.Context, req PromptRequest) (string, bool, error) {
	if s.prompter == nil {
		return "", false, ErrNoPrompter
	}
	v, ok, err := s.prompter.Prompt(ctx, req)
	if err != nil {
		return "", false, fmt.Errorf("prompt %q: %w", req.Label, err)
	}
	return v, ok, nil
}

// CreateObjectiveFromPrompt asks for a title and creates the objective.
// Cancelling returns ok=false and changes nothing.
func (s *Service) CreateObjectiveFromPrompt(ctx context.Context) (Objective, bool, error) {
	title, ok, err := s.prompt(ctx, PromptRequest{Kind: PromptText, Label: "Objective title"})
	if err != nil || !ok {
		return Objective{}, false, err
	}
	o, _, err := s.CreateObjective(ctx, title)
	return o, err == nil, err
}

// CreateStrategyFromPrompt asks for a strategy title under objectiveID.
func (s *Service) CreateStrategyFromPrompt(ctx context.Context, objectiveID string) (Strategy, bool, error) {
	if _, ok := s.store.GetObjective(objectiveID); !ok {
		return Strategy{}, false, notFound(domain.EntityObjective, objectiveID)
	}
	title, ok, err := s.prompt(ctx, PromptRequest{Kind: PromptText, Label: "Strategy title"})
	if err != nil || !ok {
		return Strategy{}, false, err
	}
	st, _, err := s.CreateStrategy(ctx, objectiveID, title)
	return st, err == nil, err
}

// UpdateNorthStarFromPrompt asks for the current and target values in turn.
// Cancelling either prompt discards both answers.
func (s *Service) UpdateNorthStarFromPrompt(ctx context.Context) (NorthStarMetric, bool, error) {
	ns := s.store.NorthStar()
	unit := domain.UnitLabel(ns.Type)
	rawCurrent, ok, err := s.prompt(ctx, PromptRequest{
		Kind:    PromptNumber,
		Label:   fmt.Sprintf("Current %s (%s)", ns.Name, unit),
		Default: formatPromptNumber(ns.CurrentValue),
	})
	if err != nil || !ok {
		return NorthStarMetric{}, false, err
	}
	current, err := domain.ParseMetricValue(rawCurrent)
	if err != nil {
		return NorthStarMetric{}, false, err
	}
	rawTarget, ok, err := s.prompt(ctx, PromptRequest{
		Kind:    PromptNumber,
		Label:   fmt.Sprintf("Target %s (%s)", ns.Name, unit),
		Default: formatPromptNumber(ns.TargetValue),
	})
	if err != nil || !ok {
		return NorthStarMetric{}, false, err
	}
	target, err := domain.ParseMetricValue(rawTarget)
	if err != nil {
		return NorthStarMetric{}, false, err
	}
	updated, _, err := s.UpdateNorthStar(ctx, NorthStarPatch{CurrentValue: &current, TargetValue: &target})
	return updated, err == nil, err
}

// FinishExperimentFromPrompt asks for the key learnings before finishing.
func (s *Service) FinishExperimentFromPrompt(ctx context.Context, id string, status Status) (Experiment, bool, error) {
	exp, ok := s.store.GetExperiment(id)
	if !ok {
		return Experiment{}, false, notFound(domain.EntityExperiment, id)
	}
	if !status.Finished() {
		return Experiment{}, false, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("%q is not a finished status", status)}
	}
	learnings, ok, err := s.prompt(ctx, PromptRequest{Kind: PromptText, Label: "Key learnings", Default: exp.KeyLearnings})
	if err != nil || !ok {
		return Experiment{}, false, err
	}
	finished, _, err := s.FinishExperiment(ctx, id, status, learnings)
	return finished, err == nil, err
}

// DeleteObjectiveFromPrompt asks for confirmation, naming the strategies and
// experiment links the cascade affects.
func (s *Service) DeleteObjectiveFromPrompt(ctx context.Context, id string) (DeleteImpact, bool, error) {
	impact, err := s.ObjectiveDeleteImpact(id)
	if err != nil {
		return DeleteImpact{}, false, err
	}
	o, _ := s.store.GetObjective(id)
	answer, ok, err := s.prompt(ctx, PromptRequest{
		Kind: PromptConfirm,
		Label: fmt.Sprintf("Delete objective %q, %d strategies, and unlink %d experiments?",
			o.Title, len(impact.Strategies), len(impact.UnlinkedExperiments)),
		Default: "no",
	})
	if err != nil || !ok || !confirmed(answer) {
		return DeleteImpact{}, false, err
	}
	done, _, err := s.DeleteObjective(ctx, id)
	return done, err == nil, err
}

func confirmed(answer string) bool {
	switch strings.ToLower(trimmed(answer)) {
	case "y", "yes", "true", "1":
		return true
	}
	return false
}

func formatPromptNumber(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
