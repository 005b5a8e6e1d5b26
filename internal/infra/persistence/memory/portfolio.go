package memory

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"growthcore/pkg/domain"
)

// BucketPortfolio is the reserved bucket holding the project registry and
// team roster. It is shared by every project.
const BucketPortfolio = "portfolio"

// Portfolio is the persisted project registry and team roster. Active names
// the project opened by default; "" is the default workspace.
type Portfolio struct {
	Active   string              `json:"active,omitempty"`
	Projects []domain.Project    `json:"projects"`
	Team     []domain.TeamMember `json:"team"`
}

// Clone returns a deep copy of p.
func (p Portfolio) Clone() Portfolio {
	out := Portfolio{Active: p.Active, Projects: slices.Clone(p.Projects)}
	out.Team = make([]domain.TeamMember, len(p.Team))
	for i, m := range p.Team {
		m.ProjectIDs = slices.Clone(m.ProjectIDs)
		out.Team[i] = m
	}
	return out
}

// EncodePortfolio returns the JSON payload stored under BucketPortfolio.
func EncodePortfolio(p Portfolio) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", BucketPortfolio, err)
	}
	return data, nil
}

// DecodePortfolio parses a BucketPortfolio payload. An empty payload yields
// an empty portfolio.
func DecodePortfolio(payload []byte) (Portfolio, error) {
	var p Portfolio
	if len(payload) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return Portfolio{}, fmt.Errorf("decode %s: %w", BucketPortfolio, err)
	}
	return p, nil
}

// ProjectBucket returns the storage key of bucket for project. The default
// project ("") uses the bare bucket name.
func ProjectBucket(project, bucket string) string {
	if project == "" {
		return bucket
	}
	return project + "/" + bucket
}

// SplitProjectBucket reverses ProjectBucket.
func SplitProjectBucket(key string) (project, bucket string) {
	if p, b, ok := strings.Cut(key, "/"); ok {
		return p, b
	}
	return "", key
}
