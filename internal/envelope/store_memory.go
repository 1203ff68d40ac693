package envelope

import (
	"context"
	"sync"

	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

// InMemoryStore keeps envelope snapshots in a map. Participants are copied
// on both save and find so callers never share backing arrays.
type InMemoryStore struct {
	mu        sync.RWMutex
	envelopes map[id.EnvelopeID]Envelope
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{envelopes: make(map[id.EnvelopeID]Envelope)}
}

func (s *InMemoryStore) Save(_ context.Context, env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	env.Participants = append([]Participant(nil), env.Participants...)
	s.envelopes[env.ID] = env
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, envelopeID id.EnvelopeID) (Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	env, ok := s.envelopes[envelopeID]
	if !ok {
		return Envelope{}, sentinel.ErrNotFound
	}
	env.Participants = append([]Participant(nil), env.Participants...)
	return env, nil
}
