package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sigil/internal/platform/metrics"
	"sigil/internal/trail"
	"sigil/internal/trail/ledger"
	"sigil/internal/trail/store"
	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/platform/sentinel"
)

var tracer = otel.Tracer("sigil/internal/retention")

// DefaultAuthorizationTTL bounds how long a minted delete authorization
// stays redeemable.
const DefaultAuthorizationTTL = 15 * time.Minute

// Guard is the sole deletion path for audit chains. Every decision it makes,
// grant or denial, is itself recorded as an event on the chain it concerns.
type Guard struct {
	ledger   *ledger.Service
	events   store.EventStore
	holds    HoldStore
	policies PolicyStore
	authz    AuthorizationStore
	metrics  *metrics.Metrics
	ttl      time.Duration
	now      func() time.Time
}

// Option configures the Guard.
type Option func(*Guard)

// WithAuthorizationTTL overrides the delete authorization lifetime.
func WithAuthorizationTTL(ttl time.Duration) Option {
	return func(g *Guard) { g.ttl = ttl }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

func NewGuard(
	lg *ledger.Service,
	events store.EventStore,
	holds HoldStore,
	policies PolicyStore,
	authz AuthorizationStore,
	opts ...Option,
) *Guard {
	g := &Guard{
		ledger:   lg,
		events:   events,
		holds:    holds,
		policies: policies,
		authz:    authz,
		ttl:      DefaultAuthorizationTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ApplyLegalHold places a hold on the envelope. If a hold is already active
// the call changes nothing but still appends a legal_hold_applied event, so
// the chain shows the repeated request.
func (g *Guard) ApplyLegalHold(ctx context.Context, envelopeID id.EnvelopeID, actor trail.Actor, reason string) (LegalHold, error) {
	ctx, span := tracer.Start(ctx, "retention.ApplyLegalHold", trace.WithAttributes(
		attribute.String("envelope_id", envelopeID.String()),
	))
	defer span.End()

	if reason == "" {
		return LegalHold{}, dErrors.New(dErrors.CodeValidation, "hold reason is required")
	}

	hold, err := g.holds.Active(ctx, envelopeID)
	switch {
	case err == nil:
		// already held, no state change
	case errors.Is(err, sentinel.ErrNotFound):
		hold = LegalHold{
			ID:         id.NewHoldID(),
			EnvelopeID: envelopeID,
			Reason:     reason,
			AppliedBy:  actor.ID,
			AppliedAt:  g.now().UTC(),
		}
		if err := g.holds.Save(ctx, hold); err != nil {
			return LegalHold{}, dErrors.Wrap(err, dErrors.CodeInternal, "save legal hold")
		}
	default:
		return LegalHold{}, dErrors.Wrap(err, dErrors.CodeInternal, "check active hold")
	}

	_, err = g.ledger.Append(ctx, envelopeID, trail.EventLegalHoldApplied, actor, trail.HoldMetadata{
		HoldID: hold.ID.String(),
		Reason: reason,
	})
	if err != nil {
		return LegalHold{}, err
	}
	return hold, nil
}

// ReleaseLegalHold lifts the envelope's active hold. Releasing when nothing
// is held changes no state but is still recorded on the chain.
func (g *Guard) ReleaseLegalHold(ctx context.Context, envelopeID id.EnvelopeID, actor trail.Actor) error {
	ctx, span := tracer.Start(ctx, "retention.ReleaseLegalHold", trace.WithAttributes(
		attribute.String("envelope_id", envelopeID.String()),
	))
	defer span.End()

	meta := trail.HoldMetadata{}

	hold, err := g.holds.Active(ctx, envelopeID)
	switch {
	case err == nil:
		released := g.now().UTC()
		hold.ReleasedAt = &released
		if err := g.holds.Save(ctx, hold); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "release legal hold")
		}
		meta.HoldID = hold.ID.String()
		meta.Reason = hold.Reason
	case errors.Is(err, sentinel.ErrNotFound):
		// nothing held, release is a no-op on state
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "check active hold")
	}

	_, err = g.ledger.Append(ctx, envelopeID, trail.EventLegalHoldReleased, actor, meta)
	return err
}

// UpdatePolicy sets the envelope's retention period and records the change.
func (g *Guard) UpdatePolicy(ctx context.Context, envelopeID id.EnvelopeID, period time.Duration, completedAt time.Time, actor trail.Actor) (Policy, error) {
	if period <= 0 {
		return Policy{}, dErrors.New(dErrors.CodeValidation, "retention period must be positive")
	}
	if completedAt.IsZero() {
		return Policy{}, dErrors.New(dErrors.CodeValidation, "completion time is required")
	}

	previous := "none"
	if existing, err := g.policies.Find(ctx, envelopeID); err == nil {
		previous = existing.Period.String()
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return Policy{}, dErrors.Wrap(err, dErrors.CodeInternal, "load retention policy")
	}

	policy := Policy{
		EnvelopeID:  envelopeID,
		Period:      period,
		CompletedAt: completedAt.UTC(),
		UpdatedAt:   g.now().UTC(),
	}
	if err := g.policies.Save(ctx, policy); err != nil {
		return Policy{}, dErrors.Wrap(err, dErrors.CodeInternal, "save retention policy")
	}

	_, err := g.ledger.Append(ctx, envelopeID, trail.EventRetentionPolicyUpdated, actor, trail.SettingsMetadata{
		Setting:  "retention_period",
		OldValue: previous,
		NewValue: period.String(),
	})
	if err != nil {
		return Policy{}, err
	}
	return policy, nil
}

// AuthorizeDelete decides whether the envelope's chain may be purged. Both
// outcomes leave a trace: a denial appends deletion_denied with its reason,
// a grant appends deletion_authorized referencing the minted token.
func (g *Guard) AuthorizeDelete(ctx context.Context, envelopeID id.EnvelopeID, actor trail.Actor) (DeleteAuthorization, error) {
	ctx, span := tracer.Start(ctx, "retention.AuthorizeDelete", trace.WithAttributes(
		attribute.String("envelope_id", envelopeID.String()),
	))
	defer span.End()

	// The whole decision runs inside the envelope's exclusive section so no
	// append can land between the checks and the recorded outcome.
	var authz DeleteAuthorization
	err := g.ledger.WithExclusive(envelopeID, func(ex *ledger.Exclusive) error {
		if _, err := g.holds.Active(ctx, envelopeID); err == nil {
			return g.deny(ctx, ex, actor, DenialLegalHold,
				dErrors.New(dErrors.CodeLegalHold, "envelope "+envelopeID.String()+" is under legal hold"))
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "check active hold")
		}

		policy, err := g.policies.Find(ctx, envelopeID)
		if errors.Is(err, sentinel.ErrNotFound) {
			// No policy means the retention clock never started; deletion
			// cannot be shown to be safe, so it is denied.
			return g.deny(ctx, ex, actor, DenialRetentionNotExpired,
				dErrors.New(dErrors.CodeRetentionNotExpired, "no retention policy recorded for envelope "+envelopeID.String()))
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "load retention policy")
		}

		now := g.now().UTC()
		if eligible := policy.EligibleDeletionAt(); now.Before(eligible) {
			return g.deny(ctx, ex, actor, DenialRetentionNotExpired,
				dErrors.New(dErrors.CodeRetentionNotExpired,
					fmt.Sprintf("retention period for envelope %s runs until %s", envelopeID, eligible.Format(time.RFC3339))))
		}

		minted := DeleteAuthorization{
			ID:         id.NewAuthorizationID(),
			EnvelopeID: envelopeID,
			IssuedAt:   now,
			ExpiresAt:  now.Add(g.ttl),
		}

		// The grant is chained before the token becomes redeemable. A
		// failed append must never leave a live token with no record.
		if _, err := ex.Append(ctx, trail.EventDeletionAuthorized, actor, trail.RetentionMetadata{
			AuthorizationID: minted.ID.String(),
		}); err != nil {
			return err
		}
		if err := g.authz.Put(ctx, minted, g.ttl); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "store delete authorization")
		}
		authz = minted
		return nil
	})
	if err != nil {
		return DeleteAuthorization{}, err
	}

	g.metrics.IncDeletionAuthorized()
	return authz, nil
}

// deny records the refusal on the chain, counts it, and returns the caller's
// error. The denial event is best-effort ordering-wise but its absence would
// hide a refusal, so append failures take precedence over the denial itself.
func (g *Guard) deny(ctx context.Context, ex *ledger.Exclusive, actor trail.Actor, reason string, denial error) error {
	if _, err := ex.Append(ctx, trail.EventDeletionDenied, actor, trail.RetentionMetadata{
		Reason: reason,
	}); err != nil {
		return err
	}
	g.metrics.IncRetentionDenial(reason)
	return denial
}

// Purge redeems a delete authorization and removes the envelope's chain.
// The token is consumed before any deletion happens; a second redemption of
// the same token fails no matter how the first attempt ended. Hold history
// and policies are retained.
func (g *Guard) Purge(ctx context.Context, envelopeID id.EnvelopeID, token id.AuthorizationID) (int64, error) {
	ctx, span := tracer.Start(ctx, "retention.Purge", trace.WithAttributes(
		attribute.String("envelope_id", envelopeID.String()),
	))
	defer span.End()

	authz, err := g.authz.Consume(ctx, token)
	if errors.Is(err, sentinel.ErrNotFound) {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "delete authorization is unknown, expired, or already used")
	}
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "consume delete authorization")
	}
	if authz.EnvelopeID != envelopeID {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "delete authorization was issued for a different envelope")
	}

	// Deletion takes the envelope's exclusive section. An append racing the
	// purge would otherwise compute its sequence and linkage from a head
	// that no longer exists, leaving an orphan chain starting past zero.
	var removed int64
	if err := g.ledger.WithExclusive(envelopeID, func(*ledger.Exclusive) error {
		n, err := g.events.Purge(ctx, envelopeID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "purge audit events")
		}
		removed = n
		return nil
	}); err != nil {
		return 0, err
	}

	g.metrics.IncEnvelopePurged()
	return removed, nil
}
