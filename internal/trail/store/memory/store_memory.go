// Package memory provides the in-memory event store used by tests and
// single-process deployments.
package memory

import (
	"context"
	"sync"

	"sigil/internal/trail"
	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

// InMemoryStore keeps each envelope's chain as an append-only slice. The
// slice index doubles as the sequence number, which makes the gapless
// invariant a structural property rather than a runtime check.
type InMemoryStore struct {
	mu     sync.RWMutex
	chains map[id.EnvelopeID][]trail.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{chains: make(map[id.EnvelopeID][]trail.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, ev trail.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.chains[ev.EnvelopeID]
	if ev.Sequence != int64(len(chain)) {
		return sentinel.ErrConflict
	}
	s.chains[ev.EnvelopeID] = append(chain, ev)
	return nil
}

func (s *InMemoryStore) Head(_ context.Context, envelopeID id.EnvelopeID) (trail.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.chains[envelopeID]
	if len(chain) == 0 {
		return trail.Event{}, sentinel.ErrNotFound
	}
	return chain[len(chain)-1], nil
}

func (s *InMemoryStore) List(_ context.Context, envelopeID id.EnvelopeID, filter trail.Filter) ([]trail.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []trail.Event
	for _, ev := range s.chains[envelopeID] {
		if filter.Matches(ev) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Count(_ context.Context, envelopeID id.EnvelopeID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.chains[envelopeID])), nil
}

func (s *InMemoryStore) Purge(_ context.Context, envelopeID id.EnvelopeID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := int64(len(s.chains[envelopeID]))
	delete(s.chains, envelopeID)
	return removed, nil
}

// Tamper overwrites a stored event in place. It exists only so verifier
// tests can corrupt a chain; production code paths never reach it.
func (s *InMemoryStore) Tamper(envelopeID id.EnvelopeID, sequence int64, mutate func(*trail.Event)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.chains[envelopeID]
	if sequence < 0 || sequence >= int64(len(chain)) {
		return false
	}
	mutate(&chain[sequence])
	return true
}
