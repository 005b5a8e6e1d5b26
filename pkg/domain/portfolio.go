package domain

import (
	"net/mail"
	"slices"
	"strings"
	"time"
)

// MemberRole is the access level of a team member.
type MemberRole string

// Team member roles.
const (
	RoleAdmin  MemberRole = "Admin"
	RoleLead   MemberRole = "Lead"
	RoleViewer MemberRole = "Viewer"
)

// Valid reports whether r is a known role.
func (r MemberRole) Valid() bool {
	return r == RoleAdmin || r == RoleLead || r == RoleViewer
}

// ParseMemberRole resolves a role name case-insensitively.
func ParseMemberRole(raw string) (MemberRole, error) {
	for _, r := range []MemberRole{RoleAdmin, RoleLead, RoleViewer} {
		if strings.EqualFold(string(r), strings.TrimSpace(raw)) {
			return r, nil
		}
	}
	return "", &ValidationError{Field: "role", Reason: "unknown role " + raw}
}

// Project describes one workspace in the portfolio. Each project owns its
// own North-Star, objectives, strategies and experiments.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Logo      string    `json:"logo,omitempty"`
	Industry  string    `json:"industry,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TeamMember is a person who can own experiments in the projects listed in
// ProjectIDs.
type TeamMember struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email,omitempty"`
	Avatar     string     `json:"avatar,omitempty"`
	Role       MemberRole `json:"role"`
	ProjectIDs []string   `json:"project_ids,omitempty"`
}

// HasProject reports whether the member has access to project id.
func (m TeamMember) HasProject(id string) bool {
	return slices.Contains(m.ProjectIDs, id)
}

// AsOwner returns the experiment owner record for m.
func (m TeamMember) AsOwner() Owner {
	return Owner{Name: m.Name, Avatar: m.Avatar, MemberID: m.ID}
}

// Validate checks name, role and email.
func (m TeamMember) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return &ValidationError{Field: "name", Reason: "team member name is required"}
	}
	if !m.Role.Valid() {
		return &ValidationError{Field: "role", Reason: "unknown role " + string(m.Role)}
	}
	if m.Email != "" {
		if _, err := mail.ParseAddress(m.Email); err != nil {
			return &ValidationError{Field: "email", Reason: "invalid address " + m.Email}
		}
	}
	return nil
}
