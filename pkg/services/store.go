package services

import (
	"sort"
	"sync"
	"time"

	"github.com/ufflow/oats/pkg/models"
)

// Store holds investigation records in memory. The cluster is the
// durable record of what ran; this map only serves the API for
// investigations this replica started.
// All accessors return copies; callers never share record memory.
type Store struct {
	mu      sync.RWMutex
	records map[string]*models.Investigation
}

func NewStore() *Store {
	return &Store{records: make(map[string]*models.Investigation)}
}

// Put inserts or replaces a record.
func (s *Store) Put(inv *models.Investigation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *inv
	s.records[inv.ID] = &cp
}

// Get returns a copy of the record.
func (s *Store) Get(id string) (*models.Investigation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.records[id]
	if !ok {
		return nil, false
	}
	cp := *inv
	return &cp, true
}

// List returns copies of every record, most recently created first.
func (s *Store) List() []*models.Investigation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Investigation, 0, len(s.records))
	for _, inv := range s.records {
		cp := *inv
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Transition moves a record to a new state, stamping TerminalAt when the
// state is terminal. Terminal records are immutable: a transition out of
// one reports false and changes nothing, which is what makes cancel and
// the watcher safe to race each other.
func (s *Store) Transition(id string, state models.InvestigationState, detail string) (*models.Investigation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.records[id]
	if !ok || inv.State.IsTerminal() {
		return nil, false
	}

	inv.State = state
	if detail != "" {
		inv.Error = detail
	}
	if state.IsTerminal() {
		now := time.Now().UTC()
		inv.TerminalAt = &now
	}

	cp := *inv
	return &cp, true
}

// PruneTerminal drops terminal records whose TerminalAt predates the
// cutoff. Returns how many were removed.
func (s *Store) PruneTerminal(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, inv := range s.records {
		if inv.TerminalAt != nil && inv.TerminalAt.Before(cutoff) {
			delete(s.records, id)
			pruned++
		}
	}
	return pruned
}

// Len reports how many records are held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
