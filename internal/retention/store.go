package retention

import (
	"context"
	"time"

	id "sigil/pkg/domain"
)

// HoldStore persists legal holds. Released holds stay on record.
type HoldStore interface {
	// Save inserts or updates a hold.
	Save(ctx context.Context, hold LegalHold) error

	// Active returns the envelope's active hold, or sentinel.ErrNotFound
	// when none is in force.
	Active(ctx context.Context, envelopeID id.EnvelopeID) (LegalHold, error)

	// History returns every hold ever applied to the envelope, oldest first.
	History(ctx context.Context, envelopeID id.EnvelopeID) ([]LegalHold, error)
}

// PolicyStore persists retention policies, one per envelope.
type PolicyStore interface {
	// Save inserts or replaces the envelope's policy.
	Save(ctx context.Context, policy Policy) error

	// Find returns the envelope's policy, or sentinel.ErrNotFound.
	Find(ctx context.Context, envelopeID id.EnvelopeID) (Policy, error)
}

// AuthorizationStore holds delete authorizations until consumed or expired.
type AuthorizationStore interface {
	// Put stores the authorization with the given TTL.
	Put(ctx context.Context, authz DeleteAuthorization, ttl time.Duration) error

	// Consume atomically retrieves and removes the authorization. A token
	// that is unknown, expired, or already consumed yields
	// sentinel.ErrNotFound; the caller cannot distinguish the three, which
	// is deliberate.
	Consume(ctx context.Context, token id.AuthorizationID) (DeleteAuthorization, error)
}
