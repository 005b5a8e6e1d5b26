package core

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/segmentio/ksuid"

	"growthcore/pkg/domain"
)

// IDGenerator issues identifiers for newly created entities. Implementations
// never return the same identifier twice.
type IDGenerator interface {
	NewID(kind domain.EntityType) string
}

// idPrefix returns the short prefix identifying the entity kind.
func idPrefix(kind domain.EntityType) string {
	switch kind {
	case domain.EntityObjective:
		return "obj"
	case domain.EntityStrategy:
		return "strat"
	case domain.EntityExperiment:
		return "exp"
	case domain.EntityProject:
		return "proj"
	case domain.EntityTeamMember:
		return "member"
	default:
		return string(kind)
	}
}

// KSUIDGenerator issues "<prefix>_<ksuid>" identifiers.
type KSUIDGenerator struct{}

// NewID generates a new prefixed ksuid.
func (KSUIDGenerator) NewID(kind domain.EntityType) string {
	return idPrefix(kind) + "_" + ksuid.New().String()
}

// SequenceGenerator issues "<prefix>-<n>" identifiers from a process-wide
// counter. Output is deterministic for a fresh generator.
type SequenceGenerator struct {
	next atomic.Uint64
}

// NewID returns the next identifier in sequence.
func (g *SequenceGenerator) NewID(kind domain.EntityType) string {
	return idPrefix(kind) + "-" + strconv.FormatUint(g.next.Add(1), 10)
}

// Observe advances the counter past any "<prefix>-<n>" id so ids issued
// after loading a workspace never collide with stored ones.
func (g *SequenceGenerator) Observe(ids ...string) {
	for _, id := range ids {
		_, suffix, ok := strings.Cut(id, "-")
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(suffix, 10, 64)
		if err != nil {
			continue
		}
		for {
			cur := g.next.Load()
			if n <= cur || g.next.CompareAndSwap(cur, n) {
				break
			}
		}
	}
}
