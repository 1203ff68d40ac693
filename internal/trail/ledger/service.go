// Package ledger is the only writer of audit events. It serializes appends
// per envelope, assigns gapless sequence numbers, links each event to its
// predecessor through the hash chain, and hands committed events to the
// announcer for downstream fan-out.
package ledger

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sigil/internal/envelope"
	"sigil/internal/platform/metrics"
	"sigil/internal/trail"
	"sigil/internal/trail/hashchain"
	"sigil/internal/trail/store"
	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/platform/sentinel"
)

var tracer = otel.Tracer("sigil/internal/trail/ledger")

// Announcer receives committed events for downstream consumers. Delivery is
// best-effort; the store is the source of truth, so announcement failures
// never roll back an append.
type Announcer interface {
	Announce(ctx context.Context, ev trail.Event)
}

// Service is the ledger. Appends for the same envelope are serialized via a
// keyed mutex; the store's (envelope, sequence) uniqueness backs the lock up
// in case an external writer ever races past it.
type Service struct {
	events    store.EventStore
	envelopes envelope.Store
	announcer Announcer
	metrics   *metrics.Metrics

	locks *envelopeLocks
	now   func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithAnnouncer sets the post-append announcer.
func WithAnnouncer(a Announcer) Option {
	return func(s *Service) { s.announcer = a }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the timestamp source. Tests use this to make chains
// reproducible.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(events store.EventStore, envelopes envelope.Store, opts ...Option) *Service {
	s := &Service{
		events:    events,
		envelopes: envelopes,
		locks:     newEnvelopeLocks(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exclusive is a held per-envelope section. Appends through it reuse the
// lock already taken by WithExclusive, so a caller can inspect the chain,
// decide, and record the decision without another writer slipping between
// the check and the append.
type Exclusive struct {
	svc        *Service
	envelopeID id.EnvelopeID
}

// Append records one event inside the held section. Same contract as
// Service.Append.
func (e *Exclusive) Append(ctx context.Context, eventType trail.EventType, actor trail.Actor, metadata trail.Metadata) (trail.Event, error) {
	return e.svc.appendLocked(ctx, e.envelopeID, eventType, actor, metadata)
}

// WithExclusive runs fn while holding the envelope's exclusive section, the
// same lock Append takes. The retention guard runs its authorize-and-record
// and purge paths through this so no append can interleave with them.
func (s *Service) WithExclusive(envelopeID id.EnvelopeID, fn func(ex *Exclusive) error) error {
	release := s.locks.acquire(envelopeID)
	defer release()
	return fn(&Exclusive{svc: s, envelopeID: envelopeID})
}

// Append records one audit fact and returns the fully populated immutable
// event. Validation failures are rejected before any sequencing or hash
// work; nothing partial ever reaches the store.
func (s *Service) Append(
	ctx context.Context,
	envelopeID id.EnvelopeID,
	eventType trail.EventType,
	actor trail.Actor,
	metadata trail.Metadata,
) (trail.Event, error) {
	release := s.locks.acquire(envelopeID)
	defer release()
	return s.appendLocked(ctx, envelopeID, eventType, actor, metadata)
}

// appendLocked does the sequencing, hashing, and persistence. The caller
// must hold the envelope's exclusive section.
func (s *Service) appendLocked(
	ctx context.Context,
	envelopeID id.EnvelopeID,
	eventType trail.EventType,
	actor trail.Actor,
	metadata trail.Metadata,
) (trail.Event, error) {
	ctx, span := tracer.Start(ctx, "ledger.Append", trace.WithAttributes(
		attribute.String("envelope_id", envelopeID.String()),
		attribute.String("event_type", string(eventType)),
	))
	defer span.End()

	start := time.Now()

	if err := trail.ValidateInput(envelopeID, eventType, actor, metadata); err != nil {
		return trail.Event{}, err
	}

	env, err := s.envelopes.Find(ctx, envelopeID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return trail.Event{}, dErrors.Wrap(err, dErrors.CodeInternal, "load envelope snapshot")
	}
	if err == nil && env.Archived {
		return trail.Event{}, dErrors.New(dErrors.CodeInvalidEnvelopeState,
			"envelope "+envelopeID.String()+" is archived; its chain is read-only")
	}

	sequence := int64(0)
	previousHash := hashchain.Genesis
	head, err := s.events.Head(ctx, envelopeID)
	switch {
	case err == nil:
		sequence = head.Sequence + 1
		previousHash = head.Hash
	case errors.Is(err, sentinel.ErrNotFound):
		// empty chain, genesis linkage
	default:
		return trail.Event{}, dErrors.Wrap(err, dErrors.CodeInternal, "read chain head")
	}

	if metadata == nil {
		metadata = trail.NoMetadata{}
	}

	ev := trail.Event{
		ID:         id.NewEventID(),
		EnvelopeID: envelopeID,
		Sequence:   sequence,
		Type:       eventType,
		Actor:      actor,
		// TIMESTAMPTZ keeps microseconds, so anything finer would hash a
		// value the store cannot give back on reload.
		Timestamp:    s.now().UTC().Truncate(time.Microsecond),
		Metadata:     metadata,
		PreviousHash: previousHash,
		HashVersion:  hashchain.VersionV1,
	}

	hash, err := hashchain.Compute(ev.HashVersion, ev, previousHash)
	if err != nil {
		return trail.Event{}, dErrors.Wrap(err, dErrors.CodeInternal, "compute event hash")
	}
	ev.Hash = hash

	if err := s.events.Append(ctx, ev); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncAppendConflict()
			return trail.Event{}, dErrors.Wrap(err, dErrors.CodeConcurrentAppend,
				"concurrent append on envelope "+envelopeID.String()+"; retry")
		}
		return trail.Event{}, dErrors.Wrap(err, dErrors.CodeInternal, "persist audit event")
	}

	s.metrics.ObserveAppend(string(eventType), time.Since(start).Seconds())

	if s.announcer != nil {
		s.announcer.Announce(ctx, ev)
	}
	return ev, nil
}

// List returns the envelope's events matching the filter, ordered by
// sequence ascending.
func (s *Service) List(ctx context.Context, envelopeID id.EnvelopeID, filter trail.Filter) ([]trail.Event, error) {
	if envelopeID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "envelope ID is required")
	}
	events, err := s.events.List(ctx, envelopeID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list audit events")
	}
	return events, nil
}

// Count returns the chain length for the envelope.
func (s *Service) Count(ctx context.Context, envelopeID id.EnvelopeID) (int64, error) {
	count, err := s.events.Count(ctx, envelopeID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "count audit events")
	}
	return count, nil
}
