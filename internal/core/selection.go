package core

import (
	"sync"

	"growthcore/pkg/domain"
)

// SelectionMirror holds the experiment currently under inspection. It never
// patches its own copy: every committed change to the selected experiment
// triggers a re-read from the store, and a deleted selection is cleared.
type SelectionMirror struct {
	store *MemoryStore

	mu      sync.RWMutex
	current *Experiment
}

// NewSelectionMirror constructs a mirror and registers it as a commit hook on store.
func NewSelectionMirror(store *MemoryStore) *SelectionMirror {
	m := &SelectionMirror{store: store}
	store.OnCommit(m.OnStoreMutated)
	return m
}

// Select makes the experiment with id the current selection. An empty id
// clears the selection; an unknown id leaves it unchanged.
func (m *SelectionMirror) Select(id string) error {
	if id == "" {
		m.Clear()
		return nil
	}
	exp, ok := m.store.GetExperiment(id)
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityExperiment, ID: id}
	}
	m.mu.Lock()
	m.current = &exp
	m.mu.Unlock()
	return nil
}

// Clear drops the current selection.
func (m *SelectionMirror) Clear() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}

// ClearIfSelected drops the selection only when it is the experiment with id.
func (m *SelectionMirror) ClearIfSelected(id string) {
	m.mu.Lock()
	if m.current != nil && m.current.ID == id {
		m.current = nil
	}
	m.mu.Unlock()
}

// Current returns a copy of the selected experiment.
func (m *SelectionMirror) Current() (Experiment, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Experiment{}, false
	}
	cp := *m.current
	cp.Labels = append([]string(nil), m.current.Labels...)
	cp.VisualProof = append([]string(nil), m.current.VisualProof...)
	if m.current.LinkedStrategyID != nil {
		link := *m.current.LinkedStrategyID
		cp.LinkedStrategyID = &link
	}
	return cp, true
}

// SelectedID returns the id of the selection, or "".
func (m *SelectionMirror) SelectedID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.ID
}

// OnStoreMutated reconciles the selection against committed changes.
func (m *SelectionMirror) OnStoreMutated(changes []Change) {
	var ids []string
	for _, c := range changes {
		if c.Entity == domain.EntityExperiment {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) > 0 {
		m.Reconcile(ids...)
	}
}

// Reconcile re-reads the selected experiment from the store when its id is
// among ids.
func (m *SelectionMirror) Reconcile(ids ...string) {
	selected := m.SelectedID()
	if selected == "" {
		return
	}
	for _, id := range ids {
		if id != selected {
			continue
		}
		exp, ok := m.store.GetExperiment(id)
		m.mu.Lock()
		if m.current != nil && m.current.ID == id {
			if ok {
				m.current = &exp
			} else {
				m.current = nil
			}
		}
		m.mu.Unlock()
		return
	}
}
