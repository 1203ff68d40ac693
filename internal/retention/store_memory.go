package retention

import (
	"context"
	"sync"
	"time"

	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

// InMemoryHoldStore keeps holds in process memory. Suitable for tests and
// single-instance development.
type InMemoryHoldStore struct {
	mu    sync.RWMutex
	holds map[id.EnvelopeID][]LegalHold
}

func NewInMemoryHoldStore() *InMemoryHoldStore {
	return &InMemoryHoldStore{holds: make(map[id.EnvelopeID][]LegalHold)}
}

func (s *InMemoryHoldStore) Save(ctx context.Context, hold LegalHold) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.holds[hold.EnvelopeID]
	for i, existing := range list {
		if existing.ID == hold.ID {
			list[i] = hold
			return nil
		}
	}
	s.holds[hold.EnvelopeID] = append(list, hold)
	return nil
}

func (s *InMemoryHoldStore) Active(ctx context.Context, envelopeID id.EnvelopeID) (LegalHold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, hold := range s.holds[envelopeID] {
		if hold.Active() {
			return hold, nil
		}
	}
	return LegalHold{}, sentinel.ErrNotFound
}

func (s *InMemoryHoldStore) History(ctx context.Context, envelopeID id.EnvelopeID) ([]LegalHold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.holds[envelopeID]
	out := make([]LegalHold, len(list))
	copy(out, list)
	return out, nil
}

// InMemoryPolicyStore keeps retention policies in process memory.
type InMemoryPolicyStore struct {
	mu       sync.RWMutex
	policies map[id.EnvelopeID]Policy
}

func NewInMemoryPolicyStore() *InMemoryPolicyStore {
	return &InMemoryPolicyStore{policies: make(map[id.EnvelopeID]Policy)}
}

func (s *InMemoryPolicyStore) Save(ctx context.Context, policy Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[policy.EnvelopeID] = policy
	return nil
}

func (s *InMemoryPolicyStore) Find(ctx context.Context, envelopeID id.EnvelopeID) (Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policy, ok := s.policies[envelopeID]
	if !ok {
		return Policy{}, sentinel.ErrNotFound
	}
	return policy, nil
}

// InMemoryAuthorizationStore keeps delete authorizations in process memory
// with lazy expiry. The production deployment uses the Redis store so
// tokens survive restarts and are shared across instances.
type InMemoryAuthorizationStore struct {
	mu     sync.Mutex
	tokens map[id.AuthorizationID]memoryAuthz
	now    func() time.Time
}

type memoryAuthz struct {
	authz     DeleteAuthorization
	expiresAt time.Time
}

func NewInMemoryAuthorizationStore() *InMemoryAuthorizationStore {
	return &InMemoryAuthorizationStore{
		tokens: make(map[id.AuthorizationID]memoryAuthz),
		now:    time.Now,
	}
}

func (s *InMemoryAuthorizationStore) Put(ctx context.Context, authz DeleteAuthorization, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[authz.ID] = memoryAuthz{authz: authz, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *InMemoryAuthorizationStore) Consume(ctx context.Context, token id.AuthorizationID) (DeleteAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tokens[token]
	if !ok {
		return DeleteAuthorization{}, sentinel.ErrNotFound
	}
	delete(s.tokens, token)
	if s.now().After(entry.expiresAt) {
		return DeleteAuthorization{}, sentinel.ErrNotFound
	}
	return entry.authz, nil
}
