package domain

import "strings"

// Status is an experiment lifecycle state.
type Status string

// Experiment lifecycle states in forward order. The three Finished variants are terminal.
const (
	StatusIdea                 Status = "Idea"
	StatusPrioritized          Status = "Prioritized"
	StatusBuilding             Status = "Building"
	StatusLiveTesting          Status = "Live Testing"
	StatusAnalysis             Status = "Analysis"
	StatusFinishedWinner       Status = "Finished - Winner"
	StatusFinishedLoser        Status = "Finished - Loser"
	StatusFinishedInconclusive Status = "Finished - Inconclusive"
)

// Statuses lists every lifecycle state in forward order.
var Statuses = []Status{
	StatusIdea,
	StatusPrioritized,
	StatusBuilding,
	StatusLiveTesting,
	StatusAnalysis,
	StatusFinishedWinner,
	StatusFinishedLoser,
	StatusFinishedInconclusive,
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// Finished reports whether s is one of the terminal states.
func (s Status) Finished() bool {
	switch s {
	case StatusFinishedWinner, StatusFinishedLoser, StatusFinishedInconclusive:
		return true
	}
	return false
}

// Rank returns the forward position of s. Terminal states share one rank.
// Unknown states return -1.
func (s Status) Rank() int {
	switch s {
	case StatusIdea:
		return 0
	case StatusPrioritized:
		return 1
	case StatusBuilding:
		return 2
	case StatusLiveTesting:
		return 3
	case StatusAnalysis:
		return 4
	case StatusFinishedWinner, StatusFinishedLoser, StatusFinishedInconclusive:
		return 5
	}
	return -1
}

var statusAliases = map[string]Status{
	"idea":                 StatusIdea,
	"ideabacklog":          StatusIdea,
	"backlog":              StatusIdea,
	"prioritized":          StatusPrioritized,
	"building":             StatusBuilding,
	"livetesting":          StatusLiveTesting,
	"live":                 StatusLiveTesting,
	"analysis":             StatusAnalysis,
	"finishedwinner":       StatusFinishedWinner,
	"winner":               StatusFinishedWinner,
	"finishedloser":        StatusFinishedLoser,
	"loser":                StatusFinishedLoser,
	"finishedinconclusive": StatusFinishedInconclusive,
	"inconclusive":         StatusFinishedInconclusive,
}

// ParseStatus resolves display names ("Live Testing"), identifiers
// ("LiveTesting", "live_testing") and short forms ("winner").
func ParseStatus(raw string) (Status, error) {
	if s := Status(strings.TrimSpace(raw)); s.Valid() {
		return s, nil
	}
	key := strings.ToLower(raw)
	key = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(key)
	if s, ok := statusAliases[key]; ok {
		return s, nil
	}
	return "", &ValidationError{Field: "status", Reason: "unknown status " + raw}
}
