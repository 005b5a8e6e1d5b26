// Package domain defines the core growth-tracking entities, value types, and
// rule evaluation primitives used by growthcore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityNorthStar identifies the workspace North-Star metric singleton.
	EntityNorthStar EntityType = "north_star"
	// EntityObjective identifies an objective record.
	EntityObjective EntityType = "objective"
	// EntityStrategy identifies a strategy record.
	EntityStrategy EntityType = "strategy"
	// EntityExperiment identifies an experiment record.
	EntityExperiment EntityType = "experiment"
	// EntityProject identifies a portfolio project.
	EntityProject EntityType = "project"
	// EntityTeamMember identifies a roster entry.
	EntityTeamMember EntityType = "team_member"
)

// MetricType controls how North-Star values are formatted.
type MetricType string

// Supported North-Star metric types.
const (
	MetricCurrency   MetricType = "currency"
	MetricCount      MetricType = "count"
	MetricPercentage MetricType = "percentage"
	MetricRatio      MetricType = "ratio"
)

// ObjectiveStatus enumerates objective states.
type ObjectiveStatus string

// Objective statuses.
const (
	ObjectiveActive ObjectiveStatus = "Active"
	ObjectiveDone   ObjectiveStatus = "Done"
)

// FunnelStage is the AARRR stage an experiment targets.
type FunnelStage string

// Funnel stages.
const (
	StageAcquisition FunnelStage = "Acquisition"
	StageActivation  FunnelStage = "Activation"
	StageRetention   FunnelStage = "Retention"
	StageReferral    FunnelStage = "Referral"
	StageRevenue     FunnelStage = "Revenue"
)

// FunnelStages lists the stages in funnel order.
var FunnelStages = []FunnelStage{StageAcquisition, StageActivation, StageRetention, StageReferral, StageRevenue}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all identified domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NorthStarMetric is the single top-level success metric of a workspace.
type NorthStarMetric struct {
	Name         string     `json:"name"`
	Unit         string     `json:"unit"`
	Type         MetricType `json:"type"`
	CurrentValue float64    `json:"current_value"`
	TargetValue  float64    `json:"target_value"`
}

// Objective is a high-level goal decomposed into strategies.
type Objective struct {
	Base
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Status      ObjectiveStatus `json:"status"`
	Progress    int             `json:"progress"`
}

// Strategy is a plan belonging to one objective. The link is a foreign key,
// not containment.
type Strategy struct {
	Base
	Title             string `json:"title"`
	ParentObjectiveID string `json:"parent_objective_id"`
	TargetMetric      string `json:"target_metric,omitempty"`
}

// Owner identifies the person running an experiment.
// MemberID is set when the owner was picked from the team roster.
type Owner struct {
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	MemberID string `json:"member_id,omitempty"`
}

// Experiment is a testable growth action scored by ICE.
// ICEScore is derived and always equals Impact*Confidence*Ease once stored.
type Experiment struct {
	Base
	Title            string      `json:"title"`
	Status           Status      `json:"status"`
	Owner            Owner       `json:"owner"`
	Hypothesis       string      `json:"hypothesis,omitempty"`
	Observation      string      `json:"observation,omitempty"`
	Problem          string      `json:"problem,omitempty"`
	Source           string      `json:"source,omitempty"`
	Labels           []string    `json:"labels,omitempty"`
	SuccessCriteria  string      `json:"success_criteria,omitempty"`
	TargetMetric     string      `json:"target_metric,omitempty"`
	Impact           int         `json:"impact"`
	Confidence       int         `json:"confidence"`
	Ease             int         `json:"ease"`
	ICEScore         int         `json:"ice_score"`
	FunnelStage      FunnelStage `json:"funnel_stage,omitempty"`
	NorthStarMetric  string      `json:"north_star_metric,omitempty"`
	LinkedStrategyID *string     `json:"linked_strategy_id"`
	StartDate        string      `json:"start_date,omitempty"`
	EndDate          string      `json:"end_date,omitempty"`
	TestURL          string      `json:"test_url,omitempty"`
	KeyLearnings     string      `json:"key_learnings,omitempty"`
	VisualProof      []string    `json:"visual_proof,omitempty"`
}

// LinkedTo reports whether the experiment is linked to the strategy id.
func (e Experiment) LinkedTo(strategyID string) bool {
	return e.LinkedStrategyID != nil && *e.LinkedStrategyID == strategyID
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	ID     string
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured per transaction.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}
