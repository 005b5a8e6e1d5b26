package core

import (
	"context"
	"time"

	"growthcore/pkg/domain"
)

// Clock supplies the current time to the service.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock. A nil ClockFunc reports time.Now in UTC.
type ClockFunc func() time.Time

// Now returns the current time in UTC.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

// AuditStatus captures the outcome of an audited operation.
type AuditStatus string

// Audit outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry records one service command.
type AuditEntry struct {
	Timestamp time.Time
	Operation string
	Entity    domain.EntityType
	Action    domain.Action
	EntityID  string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
}

// AuditRecorder receives an entry for every service command.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder observes the latency and outcome of service commands.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts a span per service command.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the command error, if any.
type TraceSpan interface {
	End(err error)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type operationMeta struct {
	entity domain.EntityType
	action domain.Action
}

// Operation names reported to loggers, audit, metrics and tracing.
const (
	OpCreateObjective       = "create_objective"
	OpEditObjective         = "edit_objective"
	OpSetObjectiveStatus    = "set_objective_status"
	OpSetObjectiveProgress  = "set_objective_progress"
	OpDeleteObjective       = "delete_objective"
	OpCreateStrategy        = "create_strategy"
	OpEditStrategy          = "edit_strategy"
	OpDeleteStrategy        = "delete_strategy"
	OpCreateExperiment      = "create_experiment"
	OpUpdateExperiment      = "update_experiment"
	OpUpdateExperimentICE   = "update_experiment_ice"
	OpTransitionExperiment  = "transition_experiment"
	OpFinishExperiment      = "finish_experiment"
	OpLinkExperiment        = "link_experiment"
	OpDeleteExperiment      = "delete_experiment"
	OpAttachVisualProof     = "attach_visual_proof"
	OpSelectExperiment      = "select_experiment"
	OpUpdateNorthStar       = "update_north_star"
	OpLoadWorkspace         = "load_workspace"
	OpPersistWorkspace      = "persist_workspace"
	OpPresignVisualProofURL = "visual_proof_url"
	OpLoadPortfolio         = "load_portfolio"
	OpCreateProject         = "create_project"
	OpSelectProject         = "select_project"
	OpAddTeamMember         = "add_team_member"
	OpUpdateTeamMember      = "update_team_member"
	OpRemoveTeamMember      = "remove_team_member"
)

var operationMetadata = map[string]operationMeta{
	OpCreateObjective:      {domain.EntityObjective, domain.ActionCreate},
	OpEditObjective:        {domain.EntityObjective, domain.ActionUpdate},
	OpSetObjectiveStatus:   {domain.EntityObjective, domain.ActionUpdate},
	OpSetObjectiveProgress: {domain.EntityObjective, domain.ActionUpdate},
	OpDeleteObjective:      {domain.EntityObjective, domain.ActionDelete},
	OpCreateStrategy:       {domain.EntityStrategy, domain.ActionCreate},
	OpEditStrategy:         {domain.EntityStrategy, domain.ActionUpdate},
	OpDeleteStrategy:       {domain.EntityStrategy, domain.ActionDelete},
	OpCreateExperiment:     {domain.EntityExperiment, domain.ActionCreate},
	OpUpdateExperiment:     {domain.EntityExperiment, domain.ActionUpdate},
	OpUpdateExperimentICE:  {domain.EntityExperiment, domain.ActionUpdate},
	OpTransitionExperiment: {domain.EntityExperiment, domain.ActionUpdate},
	OpFinishExperiment:     {domain.EntityExperiment, domain.ActionUpdate},
	OpLinkExperiment:       {domain.EntityExperiment, domain.ActionUpdate},
	OpDeleteExperiment:     {domain.EntityExperiment, domain.ActionDelete},
	OpAttachVisualProof:    {domain.EntityExperiment, domain.ActionUpdate},
	OpUpdateNorthStar:      {domain.EntityNorthStar, domain.ActionUpdate},
	OpCreateProject:        {domain.EntityProject, domain.ActionCreate},
	OpSelectProject:        {domain.EntityProject, domain.ActionUpdate},
	OpAddTeamMember:        {domain.EntityTeamMember, domain.ActionCreate},
	OpUpdateTeamMember:     {domain.EntityTeamMember, domain.ActionUpdate},
	OpRemoveTeamMember:     {domain.EntityTeamMember, domain.ActionDelete},
}
