package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"growthcore/internal/blob"
	"growthcore/pkg/domain"
)

type memPortfolioPersister struct {
	mu        sync.Mutex
	state     PortfolioState
	saves     int
	failSaves bool
}

func (p *memPortfolioPersister) LoadPortfolio(context.Context) (PortfolioState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Clone(), nil
}

func (p *memPortfolioPersister) SavePortfolio(_ context.Context, state PortfolioState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	if p.failSaves {
		return errSaveUnavailable
	}
	p.state = state.Clone()
	return nil
}

func newTestPortfolio(t *testing.T, p PortfolioPersister, opts ...ServiceOption) *Portfolio {
	t.Helper()
	base := []ServiceOption{WithClock(stubClock()), WithIDGenerator(&SequenceGenerator{}), WithRetry(1, 0)}
	return NewPortfolio(p, append(base, opts...)...)
}

func TestPortfolioProjectsAndSelection(t *testing.T) {
	ctx := context.Background()
	store := &memPortfolioPersister{}
	audit := &auditRecorderStub{}
	pf := newTestPortfolio(t, store, WithAuditRecorder(audit))

	if _, err := pf.CreateProject(ctx, ProjectInput{Name: "  "}); err == nil {
		t.Fatalf("expected name validation error")
	}
	dental, err := pf.CreateProject(ctx, ProjectInput{Name: " Dental Clinic ", Industry: "Health"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	saas, err := pf.CreateProject(ctx, ProjectInput{Name: "SaaS"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if dental.Name != "Dental Clinic" || !dental.CreatedAt.Equal(fixedNow) {
		t.Fatalf("unexpected project %+v", dental)
	}
	if pf.ActiveID() != saas.ID {
		t.Fatalf("newest project should be active, got %q", pf.ActiveID())
	}

	if err := pf.SelectProject(ctx, dental.ID); err != nil {
		t.Fatalf("select: %v", err)
	}
	if active, ok := pf.ActiveProject(); !ok || active.ID != dental.ID {
		t.Fatalf("active project %+v %v", active, ok)
	}
	if err := pf.SelectProject(ctx, "proj-99"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if pf.ActiveID() != dental.ID {
		t.Fatalf("failed select must keep the active project")
	}

	reloaded := newTestPortfolio(t, store)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(reloaded.Projects()) != 2 || reloaded.ActiveID() != dental.ID {
		t.Fatalf("reloaded portfolio %+v", reloaded.State())
	}

	if err := reloaded.SelectProject(ctx, ""); err != nil {
		t.Fatalf("select default: %v", err)
	}
	if _, ok := reloaded.ActiveProject(); ok {
		t.Fatalf("default workspace has no project record")
	}
	if len(audit.entries) == 0 || audit.entries[0].Entity != domain.EntityProject {
		t.Fatalf("expected project audit entries, got %+v", audit.entries)
	}
}

func TestPortfolioRoster(t *testing.T) {
	ctx := context.Background()
	pf := newTestPortfolio(t, &memPortfolioPersister{})
	proj, err := pf.CreateProject(ctx, ProjectInput{Name: "Clinic"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	ana, err := pf.AddTeamMember(ctx, TeamMemberInput{Name: "Ana", Email: "ana@example.com"})
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if ana.Role != domain.RoleViewer || !ana.HasProject(proj.ID) {
		t.Fatalf("defaults not applied: %+v", ana)
	}

	var verr *domain.ValidationError
	if _, err := pf.AddTeamMember(ctx, TeamMemberInput{Name: "Bo", Email: "not-an-address"}); !errors.As(err, &verr) || verr.Field != "email" {
		t.Fatalf("expected email validation error, got %v", err)
	}
	if _, err := pf.AddTeamMember(ctx, TeamMemberInput{Name: "Bo", ProjectIDs: []string{"proj-404"}}); !domain.IsNotFound(err) {
		t.Fatalf("expected unknown project error, got %v", err)
	}
	lead := domain.RoleLead
	bo, err := pf.AddTeamMember(ctx, TeamMemberInput{Name: "Bo", Role: domain.RoleAdmin, ProjectIDs: []string{}})
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if bo.HasProject(proj.ID) {
		t.Fatalf("explicit empty project list must be kept")
	}

	name := " Bo Diaz "
	updated, err := pf.UpdateTeamMember(ctx, bo.ID, TeamMemberPatch{Name: &name, Role: &lead, ProjectIDs: &[]string{proj.ID}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Bo Diaz" || updated.Role != domain.RoleLead {
		t.Fatalf("unexpected update %+v", updated)
	}
	if got := pf.MembersOf(proj.ID); len(got) != 2 {
		t.Fatalf("expected both members on the project, got %+v", got)
	}
	bogus := domain.MemberRole("Owner")
	if _, err := pf.UpdateTeamMember(ctx, bo.ID, TeamMemberPatch{Role: &bogus}); !errors.As(err, &verr) {
		t.Fatalf("expected role validation error, got %v", err)
	}
	if m, _ := pf.FindTeamMember(bo.ID); m.Role != domain.RoleLead {
		t.Fatalf("rejected update must not apply: %+v", m)
	}
	if _, err := pf.UpdateTeamMember(ctx, "member-404", TeamMemberPatch{Name: &name}); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	removed, err := pf.RemoveTeamMember(ctx, ana.ID)
	if err != nil || !removed {
		t.Fatalf("remove: %v %v", removed, err)
	}
	removed, err = pf.RemoveTeamMember(ctx, ana.ID)
	if err != nil || removed {
		t.Fatalf("second remove should be a no-op: %v %v", removed, err)
	}
	if team := pf.TeamMembers(); len(team) != 1 || team[0].ID != bo.ID {
		t.Fatalf("unexpected roster %+v", team)
	}
}

func TestPortfolioSaveFailureKeepsChange(t *testing.T) {
	ctx := context.Background()
	store := &memPortfolioPersister{failSaves: true}
	pf := newTestPortfolio(t, store)

	proj, err := pf.CreateProject(ctx, ProjectInput{Name: "Offline"})
	var cerr *CheckpointError
	if !errors.As(err, &cerr) || cerr.Operation != OpCreateProject || !errors.Is(err, errSaveUnavailable) {
		t.Fatalf("expected checkpoint error, got %v", err)
	}
	if _, ok := pf.Project(proj.ID); !ok || pf.ActiveID() != proj.ID {
		t.Fatalf("project must stay registered in memory")
	}
}

func TestCreateExperimentResolvesOwnerFromRoster(t *testing.T) {
	ctx := context.Background()
	pf := newTestPortfolio(t, nil)
	ana, err := pf.AddTeamMember(ctx, TeamMemberInput{Name: "Ana", Avatar: "https://example.com/ana.png"})
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	bo, err := pf.AddTeamMember(ctx, TeamMemberInput{Name: "Bo"})
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	svc := newTestService(t, WithTeamDirectory(pf))

	fallback := mustExperiment(t, svc, ExperimentInput{Title: "Default owner"})
	if fallback.Owner != ana.AsOwner() {
		t.Fatalf("first roster member should own by default, got %+v", fallback.Owner)
	}
	picked := mustExperiment(t, svc, ExperimentInput{Title: "Picked", OwnerID: bo.ID})
	if picked.Owner.MemberID != bo.ID || picked.Owner.Name != "Bo" {
		t.Fatalf("unexpected owner %+v", picked.Owner)
	}
	explicit := mustExperiment(t, svc, ExperimentInput{Title: "External", Owner: domain.Owner{Name: "Agency"}})
	if explicit.Owner.Name != "Agency" || explicit.Owner.MemberID != "" {
		t.Fatalf("explicit owner must be kept, got %+v", explicit.Owner)
	}

	before := len(svc.Experiments())
	if _, _, err := svc.CreateExperiment(ctx, ExperimentInput{Title: "Ghost", OwnerID: "member-404"}); !domain.IsNotFound(err) {
		t.Fatalf("expected unknown member error, got %v", err)
	}
	if len(svc.Experiments()) != before {
		t.Fatalf("failed create must not add an experiment")
	}

	updated, _, err := svc.UpdateExperiment(ctx, fallback.ID, ExperimentPatch{OwnerID: &bo.ID})
	if err != nil || updated.Owner.MemberID != bo.ID {
		t.Fatalf("reassign owner: %+v %v", updated.Owner, err)
	}
}

func TestCreateExperimentWithoutRosterKeepsOwner(t *testing.T) {
	svc := newTestService(t)
	e := mustExperiment(t, svc, ExperimentInput{Title: "Solo"})
	if e.Owner != (domain.Owner{}) {
		t.Fatalf("no roster means no owner, got %+v", e.Owner)
	}
	if _, _, err := svc.CreateExperiment(context.Background(), ExperimentInput{Title: "X", OwnerID: "member-1"}); !domain.IsNotFound(err) {
		t.Fatalf("owner id without roster should be unknown, got %v", err)
	}
}

func TestOpenPersisterScopesProjects(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	open := func(project string) ClosablePersister {
		t.Helper()
		p, err := OpenPersister(ctx, StorageOptions{Driver: StorageBlob, Blob: store, Project: project})
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		return p
	}
	def, clinic := open(""), open("proj-1")
	mustObjective(t, newTestService(t, WithPersister(clinic)), "Clinic goal")

	svc := newTestService(t, WithPersister(def))
	if err := svc.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(svc.Objectives()) != 0 {
		t.Fatalf("project workspace leaked into the default one")
	}

	pf := newTestPortfolio(t, def)
	if _, err := pf.CreateProject(ctx, ProjectInput{Name: "Clinic"}); err != nil {
		t.Fatalf("create project: %v", err)
	}
	shared := newTestPortfolio(t, clinic)
	if err := shared.Load(ctx); err != nil || len(shared.Projects()) != 1 {
		t.Fatalf("portfolio should be shared across projects: %+v %v", shared.Projects(), err)
	}
}
