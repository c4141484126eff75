// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/tickettriage/internal/triage"
)

// Store holds triage results in memory for the lifetime of the process.
type Store struct {
	mu      sync.RWMutex
	results map[string]*triage.Result // triage ID -> result
	seen    map[string]string         // content fingerprint -> triage ID (duplicate detection)
	order   []string                  // triage IDs in first-Put order
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		results: make(map[string]*triage.Result),
		seen:    make(map[string]string),
	}
}

// Get retrieves a triage result by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*triage.Result, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	if !ok {
		return nil, false, nil
	}
	return clone(r), true, nil
}

// GetByFingerprint retrieves the latest triage result for a content fingerprint. Returns a copy.
func (s *Store) GetByFingerprint(_ context.Context, fp string) (*triage.Result, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.seen[fp]
	if !ok {
		return nil, false, nil
	}
	return clone(s.results[id]), true, nil
}

// Put stores a copy of the triage result.
func (s *Store) Put(_ context.Context, r *triage.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[r.ID]; !exists {
		s.order = append(s.order, r.ID)
	}
	s.results[r.ID] = clone(r)
	if r.Fingerprint != "" {
		s.seen[r.Fingerprint] = r.ID
	}
	return nil
}

// List returns copies of all results in the order they were first stored.
func (s *Store) List(_ context.Context) ([]*triage.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*triage.Result, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, clone(s.results[id]))
	}
	return out, nil
}

func clone(r *triage.Result) *triage.Result {
	cp := *r
	cp.Report.NextSteps = append([]string(nil), r.Report.NextSteps...)
	return &cp
}
