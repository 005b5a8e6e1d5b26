package core

import (
	"slices"

	"growthcore/pkg/domain"
)

// NewRulesEngine constructs an engine without rules.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(ReferentialIntegrityRule())
	engine.Register(ICEConsistencyRule())
	return engine
}

func registerOnce(engine *RulesEngine, rule domain.Rule) {
	if engine == nil || slices.Contains(engine.Rules(), rule.Name()) {
		return
	}
	engine.Register(rule)
}
