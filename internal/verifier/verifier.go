// Package verifier recomputes an envelope's entire hash chain from genesis
// and reports the first point of divergence, if any. Verification never
// trusts stored hashes or cached results; every run is a full recompute.
package verifier

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sigil/internal/platform/metrics"
	"sigil/internal/trail"
	"sigil/internal/trail/hashchain"
	"sigil/internal/trail/store"
	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
)

var tracer = otel.Tracer("sigil/internal/verifier")

// Result is the outcome of a chain verification.
type Result struct {
	EnvelopeID id.EnvelopeID `json:"envelope_id"`
	Valid      bool          `json:"valid"`
	EventCount int64         `json:"event_count"`
	VerifiedAt time.Time     `json:"verified_at"`

	// FirstInvalidSequence is the sequence number of the earliest event that
	// failed verification. Nil when the chain is valid.
	FirstInvalidSequence *int64 `json:"first_invalid_sequence,omitempty"`

	// Reason describes the earliest failure in human terms. Empty when the
	// chain is valid.
	Reason string `json:"reason,omitempty"`
}

// Verifier checks chain integrity.
type Verifier struct {
	events  store.EventStore
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures the Verifier.
type Option func(*Verifier)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) { v.metrics = m }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

func New(events store.EventStore, opts ...Option) *Verifier {
	v := &Verifier{events: events, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify recomputes the full chain for the envelope. An empty chain is
// valid. The result always carries the earliest failure, never a later one.
func (v *Verifier) Verify(ctx context.Context, envelopeID id.EnvelopeID) (Result, error) {
	ctx, span := tracer.Start(ctx, "verifier.Verify", trace.WithAttributes(
		attribute.String("envelope_id", envelopeID.String()),
	))
	defer span.End()

	start := time.Now()

	if envelopeID.IsNil() {
		return Result{}, dErrors.New(dErrors.CodeValidation, "envelope ID is required")
	}

	events, err := v.events.List(ctx, envelopeID, trail.Filter{})
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "load chain for verification")
	}

	result := v.VerifyEvents(envelopeID, events)

	v.metrics.ObserveVerify(result.Valid, time.Since(start).Seconds())
	span.SetAttributes(attribute.Bool("chain.valid", result.Valid))

	return result, nil
}

// VerifyEvents checks an already-loaded chain snapshot. The certificate
// assembler uses this so the verified list and the certified list are the
// same slice, with no reload in between.
func (v *Verifier) VerifyEvents(envelopeID id.EnvelopeID, events []trail.Event) Result {
	result := Result{
		EnvelopeID: envelopeID,
		Valid:      true,
		EventCount: int64(len(events)),
		VerifiedAt: v.now().UTC(),
	}

	previousHash := hashchain.Genesis
	for i, ev := range events {
		seq := ev.Sequence
		fail := func(reason string) Result {
			result.Valid = false
			result.FirstInvalidSequence = &seq
			result.Reason = reason
			return result
		}

		if ev.Sequence != int64(i) {
			return fail(fmt.Sprintf("sequence gap: expected %d, found %d", i, ev.Sequence))
		}
		if ev.PreviousHash != previousHash {
			return fail(fmt.Sprintf("broken linkage at sequence %d: previous hash does not match predecessor", seq))
		}

		computed, err := hashchain.Compute(ev.HashVersion, ev, previousHash)
		if err != nil {
			return fail(fmt.Sprintf("unverifiable event at sequence %d: %v", seq, err))
		}
		if computed != ev.Hash {
			return fail(fmt.Sprintf("hash mismatch at sequence %d: event content does not match its recorded hash", seq))
		}

		previousHash = ev.Hash
	}

	return result
}

// VerifySingle recomputes a single event's hash against its recorded value.
// It checks content integrity only, not linkage; use Verify for the chain.
func (v *Verifier) VerifySingle(ev trail.Event) bool {
	computed, err := hashchain.Compute(ev.HashVersion, ev, ev.PreviousHash)
	if err != nil {
		return false
	}
	return computed == ev.Hash
}
