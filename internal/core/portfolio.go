package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"growthcore/internal/infra/persistence/memory"
	"growthcore/pkg/domain"
)

// PortfolioState is the persisted project registry and team roster.
type PortfolioState = memory.Portfolio

// PortfolioPersister loads and saves the portfolio shared by all projects.
type PortfolioPersister interface {
	LoadPortfolio(ctx context.Context) (PortfolioState, error)
	SavePortfolio(ctx context.Context, portfolio PortfolioState) error
}

// TeamDirectory resolves experiment owners from a team roster.
type TeamDirectory interface {
	FindTeamMember(id string) (domain.TeamMember, bool)
	TeamMembers() []domain.TeamMember
}

// ProjectInput describes a new portfolio project.
type ProjectInput struct {
	Name     string
	Logo     string
	Industry string
}

// TeamMemberInput describes a new roster entry. Role defaults to Viewer and
// ProjectIDs to the active project.
type TeamMemberInput struct {
	Name       string
	Email      string
	Avatar     string
	Role       domain.MemberRole
	ProjectIDs []string
}

// TeamMemberPatch carries roster fields to change. Nil fields are kept.
type TeamMemberPatch struct {
	Name       *string
	Email      *string
	Avatar     *string
	Role       *domain.MemberRole
	ProjectIDs *[]string
}

// Portfolio manages the project registry and the team roster. Each mutation
// is saved through the optional persister; a failed save keeps the change in
// memory and returns a *CheckpointError.
type Portfolio struct {
	mu    sync.RWMutex
	state PortfolioState

	persister     PortfolioPersister
	ids           IDGenerator
	clock         Clock
	logger        Logger
	audit         AuditRecorder
	metrics       MetricsRecorder
	tracer        Tracer
	retryAttempts uint
	retryDelay    time.Duration
}

// NewPortfolio returns an empty portfolio. A nil persister keeps it in memory.
// The id generator, clock, logger, audit, metrics, tracer and retry options
// are honoured.
func NewPortfolio(persister PortfolioPersister, opts ...ServiceOption) *Portfolio {
	o := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Portfolio{
		persister:     persister,
		ids:           o.ids,
		clock:         o.clock,
		logger:        o.logger,
		audit:         o.audit,
		metrics:       o.metrics,
		tracer:        o.tracer,
		retryAttempts: o.retryAttempts,
		retryDelay:    o.retryDelay,
	}
}

// Load replaces the in-memory portfolio with the persisted one.
func (p *Portfolio) Load(ctx context.Context) error {
	if p.persister == nil {
		return nil
	}
	return p.run(ctx, OpLoadPortfolio, "", func(ctx context.Context) error {
		state, err := p.persister.LoadPortfolio(ctx)
		if err != nil {
			return fmt.Errorf("load portfolio: %w", err)
		}
		p.mu.Lock()
		p.state = state.Clone()
		p.mu.Unlock()
		p.logger.Info("portfolio loaded", "projects", len(state.Projects), "team", len(state.Team), "active", state.Active)
		return nil
	})
}

// State returns a copy of the portfolio.
func (p *Portfolio) State() PortfolioState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Clone()
}

// Projects returns the registered projects in creation order.
func (p *Portfolio) Projects() []domain.Project {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.state.Projects)
}

// Project looks up a project by id.
func (p *Portfolio) Project(id string) (domain.Project, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.findProject(id)
}

func (p *Portfolio) findProject(id string) (domain.Project, bool) {
	i := slices.IndexFunc(p.state.Projects, func(pr domain.Project) bool { return pr.ID == id })
	if i < 0 {
		return domain.Project{}, false
	}
	return p.state.Projects[i], true
}

// ActiveID returns the id of the selected project; "" is the default workspace.
func (p *Portfolio) ActiveID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Active
}

// ActiveProject returns the selected project. It reports false for the
// default workspace.
func (p *Portfolio) ActiveProject() (domain.Project, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state.Active == "" {
		return domain.Project{}, false
	}
	return p.findProject(p.state.Active)
}

// CreateProject registers a project and makes it the active one.
func (p *Portfolio) CreateProject(ctx context.Context, in ProjectInput) (domain.Project, error) {
	id := p.ids.NewID(domain.EntityProject)
	var created domain.Project
	err := p.mutate(ctx, OpCreateProject, id, func(st *PortfolioState) error {
		name := trimmed(in.Name)
		if name == "" {
			return &domain.ValidationError{Field: "name", Reason: "project name is required"}
		}
		created = domain.Project{
			ID:        id,
			Name:      name,
			Logo:      trimmed(in.Logo),
			Industry:  trimmed(in.Industry),
			CreatedAt: p.clock.Now().UTC(),
		}
		st.Projects = append(st.Projects, created)
		st.Active = id
		return nil
	})
	if created.ID == "" {
		return domain.Project{}, err
	}
	return created, err
}

// SelectProject makes id the active project. "" selects the default workspace.
func (p *Portfolio) SelectProject(ctx context.Context, id string) error {
	id = trimmed(id)
	return p.mutate(ctx, OpSelectProject, id, func(st *PortfolioState) error {
		if id != "" && !slices.ContainsFunc(st.Projects, func(pr domain.Project) bool { return pr.ID == id }) {
			return notFound(domain.EntityProject, id)
		}
		st.Active = id
		return nil
	})
}

// TeamMembers returns the roster in insertion order.
func (p *Portfolio) TeamMembers() []domain.TeamMember {
	return p.State().Team
}

// FindTeamMember looks up a roster entry by id.
func (p *Portfolio) FindTeamMember(id string) (domain.TeamMember, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	i := slices.IndexFunc(p.state.Team, func(m domain.TeamMember) bool { return m.ID == id })
	if i < 0 {
		return domain.TeamMember{}, false
	}
	m := p.state.Team[i]
	m.ProjectIDs = slices.Clone(m.ProjectIDs)
	return m, true
}

// MembersOf returns the roster entries with access to project id.
func (p *Portfolio) MembersOf(projectID string) []domain.TeamMember {
	var out []domain.TeamMember
	for _, m := range p.TeamMembers() {
		if m.HasProject(projectID) {
			out = append(out, m)
		}
	}
	return out
}

// AddTeamMember appends a member to the roster.
func (p *Portfolio) AddTeamMember(ctx context.Context, in TeamMemberInput) (domain.TeamMember, error) {
	id := p.ids.NewID(domain.EntityTeamMember)
	var added domain.TeamMember
	err := p.mutate(ctx, OpAddTeamMember, id, func(st *PortfolioState) error {
		m := domain.TeamMember{
			ID:         id,
			Name:       trimmed(in.Name),
			Email:      trimmed(in.Email),
			Avatar:     trimmed(in.Avatar),
			Role:       in.Role,
			ProjectIDs: cleanLabels(in.ProjectIDs),
		}
		if m.Role == "" {
			m.Role = domain.RoleViewer
		}
		if in.ProjectIDs == nil && st.Active != "" {
			m.ProjectIDs = []string{st.Active}
		}
		if err := validateMember(st, m); err != nil {
			return err
		}
		st.Team = append(st.Team, m)
		added = m
		return nil
	})
	if added.ID == "" {
		return domain.TeamMember{}, err
	}
	return added, err
}

// UpdateTeamMember applies patch to the member with id.
func (p *Portfolio) UpdateTeamMember(ctx context.Context, id string, patch TeamMemberPatch) (domain.TeamMember, error) {
	var updated domain.TeamMember
	err := p.mutate(ctx, OpUpdateTeamMember, id, func(st *PortfolioState) error {
		i := slices.IndexFunc(st.Team, func(m domain.TeamMember) bool { return m.ID == id })
		if i < 0 {
			return notFound(domain.EntityTeamMember, id)
		}
		m := st.Team[i]
		setTrimmed(&m.Name, patch.Name)
		setTrimmed(&m.Email, patch.Email)
		setTrimmed(&m.Avatar, patch.Avatar)
		if patch.Role != nil {
			m.Role = *patch.Role
		}
		if patch.ProjectIDs != nil {
			m.ProjectIDs = cleanLabels(*patch.ProjectIDs)
		}
		if err := validateMember(st, m); err != nil {
			return err
		}
		st.Team[i] = m
		updated = m
		return nil
	})
	if updated.ID == "" {
		return domain.TeamMember{}, err
	}
	return updated, err
}

// RemoveTeamMember drops the member with id. It reports whether a member was
// removed; removing an unknown id is not an error.
func (p *Portfolio) RemoveTeamMember(ctx context.Context, id string) (bool, error) {
	removed := false
	err := p.mutate(ctx, OpRemoveTeamMember, id, func(st *PortfolioState) error {
		n := len(st.Team)
		st.Team = slices.DeleteFunc(st.Team, func(m domain.TeamMember) bool { return m.ID == id })
		removed = len(st.Team) < n
		if !removed {
			return errUnchanged
		}
		return nil
	})
	return removed, err
}

func validateMember(st *PortfolioState, m domain.TeamMember) error {
	if err := m.Validate(); err != nil {
		return err
	}
	for _, pid := range m.ProjectIDs {
		if !slices.ContainsFunc(st.Projects, func(pr domain.Project) bool { return pr.ID == pid }) {
			return notFound(domain.EntityProject, pid)
		}
	}
	return nil
}

// errUnchanged ends a mutation successfully without saving.
var errUnchanged = errors.New("portfolio unchanged")

// mutate applies fn to a copy of the state, swaps it in and saves it. A
// failed save returns a *CheckpointError with the change kept.
func (p *Portfolio) mutate(ctx context.Context, op, id string, fn func(*PortfolioState) error) error {
	return p.run(ctx, op, id, func(ctx context.Context) error {
		p.mu.Lock()
		next := p.state.Clone()
		if err := fn(&next); err != nil {
			p.mu.Unlock()
			if errors.Is(err, errUnchanged) {
				return nil
			}
			return err
		}
		p.state = next
		p.mu.Unlock()
		return p.save(ctx, op, next)
	})
}

func (p *Portfolio) save(ctx context.Context, op string, state PortfolioState) error {
	if p.persister == nil {
		return nil
	}
	err := retry.Do(
		func() error { return p.persister.SavePortfolio(ctx, state) },
		retry.Context(ctx),
		retry.Attempts(p.retryAttempts),
		retry.Delay(p.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		p.logger.Error("portfolio save failed", "operation", op, "error", err)
		return &CheckpointError{Operation: op, Err: err}
	}
	return nil
}

func (p *Portfolio) run(ctx context.Context, op, entityID string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, op)
	started := time.Now()
	err := fn(ctx)
	duration := time.Since(started)
	span.End(err)
	p.metrics.Observe(ctx, op, err == nil, duration)
	entry := AuditEntry{Timestamp: p.clock.Now(), Operation: op, EntityID: entityID, Status: AuditStatusSuccess, Duration: duration}
	if meta, ok := operationMetadata[op]; ok {
		entry.Entity, entry.Action = meta.entity, meta.action
	}
	if err != nil {
		p.logger.Warn("growthcore operation failed", "operation", op, "entity_id", entityID, "error", err)
		entry.Status, entry.Error = AuditStatusError, err.Error()
	} else {
		p.logger.Debug("growthcore operation completed", "operation", op, "entity_id", entityID, "duration", duration)
	}
	if entry.Entity != "" {
		p.audit.Record(ctx, entry)
	}
	return err
}
