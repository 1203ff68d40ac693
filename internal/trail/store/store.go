// Package store defines the persistence contracts for the audit trail.
// Stores are interface-driven so the ledger, verifier, and certificate
// assembler can run against in-memory or Postgres persistence without
// rewiring business code.
package store

import (
	"context"

	"sigil/internal/trail"
	id "sigil/pkg/domain"
)

// EventStore is the append-only persistence contract for audit events.
//
// There is deliberately no update or single-event delete operation: events
// are immutable once appended. Purge removes an entire envelope's chain and
// is reachable only through the retention guard's consume-once
// authorization, never called directly by other collaborators.
type EventStore interface {
	// Append persists the fully populated event. The write must be
	// all-or-nothing, and a duplicate (envelope, sequence) pair must fail
	// with sentinel.ErrConflict so races past the ledger's serialization
	// point surface instead of corrupting the chain.
	Append(ctx context.Context, ev trail.Event) error

	// Head returns the event with the highest sequence number for the
	// envelope, or sentinel.ErrNotFound for an empty chain.
	Head(ctx context.Context, envelopeID id.EnvelopeID) (trail.Event, error)

	// List returns the envelope's events matching the filter, ordered by
	// sequence number ascending. Returned events are copies; mutating them
	// never touches stored state.
	List(ctx context.Context, envelopeID id.EnvelopeID, filter trail.Filter) ([]trail.Event, error)

	// Count returns the number of events in the envelope's chain.
	Count(ctx context.Context, envelopeID id.EnvelopeID) (int64, error)

	// Purge removes the envelope's whole chain and reports how many events
	// were removed. Callers outside the retention guard must not hold a
	// reference to this method.
	Purge(ctx context.Context, envelopeID id.EnvelopeID) (int64, error)
}
