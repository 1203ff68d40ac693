// Package certificate assembles completion certificates: a verified snapshot
// of a completed envelope's chain together with its roster and a signed
// locator. Certificates are derived on demand and never persisted; the chain
// itself is the durable record.
package certificate

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
	"sigil/internal/trail/ledger"
	"sigil/internal/verifier"
	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/platform/sentinel"
)

var tracer = otel.Tracer("sigil/internal/certificate")

// EnvelopeSummary is the certificate's header block.
type EnvelopeSummary struct {
	Subject      string                `json:"subject"`
	SenderID     string                `json:"sender_id"`
	Status       envelope.Status       `json:"status"`
	SigningOrder envelope.SigningOrder `json:"signing_order"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
}

// ParticipantSummary is one roster line on the certificate.
type ParticipantSummary struct {
	ID           id.ParticipantID         `json:"id"`
	Name         string                   `json:"name"`
	Email        string                   `json:"email"`
	Role         envelope.ParticipantRole `json:"role"`
	SigningOrder int                      `json:"signing_order"`
	CompletedAt  *time.Time               `json:"completed_at,omitempty"`
}

// CertifiedEvent is one chain entry as it appears on the certificate.
type CertifiedEvent struct {
	EventID      id.EventID         `json:"event_id"`
	Sequence     int64              `json:"sequence_number"`
	Type         trail.EventType    `json:"event_type"`
	ActorID      string             `json:"actor_id"`
	ActorRole    trail.ActorRole    `json:"actor_role"`
	Timestamp    time.Time          `json:"timestamp"`
	MetadataKind trail.MetadataKind `json:"metadata_kind"`
	Metadata     map[string]string  `json:"metadata"`
	PreviousHash string             `json:"previous_event_hash"`
	Hash         string             `json:"event_hash"`
}

// CompletionCertificate is the assembled document. The event list is the
// chain exactly as it stood at snapshot time; the certificate_generated
// event recording this issuance lands after the snapshot and is not part
// of it.
type CompletionCertificate struct {
	EnvelopeID   id.EnvelopeID        `json:"envelope_id"`
	GeneratedAt  time.Time            `json:"generated_at"`
	Envelope     EnvelopeSummary      `json:"envelope"`
	Participants []ParticipantSummary `json:"participants"`
	Events       []CertifiedEvent     `json:"events"`
	FinalHash    string               `json:"final_hash"`
	Verification verifier.Result      `json:"verification"`
	Locator      string               `json:"locator"`
}

// Assembler builds completion certificates.
type Assembler struct {
	ledger    *ledger.Service
	envelopes envelope.Store
	verifier  *verifier.Verifier
	signer    *LocatorSigner
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option configures the Assembler.
type Option func(*Assembler)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assembler) { a.metrics = m }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

func NewAssembler(
	lg *ledger.Service,
	envelopes envelope.Store,
	v *verifier.Verifier,
	signer *LocatorSigner,
	opts ...Option,
) *Assembler {
	a := &Assembler{
		ledger:    lg,
		envelopes: envelopes,
		verifier:  v,
		signer:    signer,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Generate assembles a certificate for a completed envelope. The chain is
// snapshotted and verified first; only after the document is fully built is
// the certificate_generated event appended, so a certificate never contains
// the event that records its own issuance.
func (a *Assembler) Generate(ctx context.Context, envelopeID id.EnvelopeID, actor trail.Actor) (CompletionCertificate, error) {
	ctx, span := tracer.Start(ctx, "certificate.Generate", trace.WithAttributes(
		attribute.String("envelope_id", envelopeID.String()),
	))
	defer span.End()

	env, err := a.envelopes.Find(ctx, envelopeID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return CompletionCertificate{}, dErrors.New(dErrors.CodeNotFound, "envelope "+envelopeID.String()+" not found")
	}
	if err != nil {
		return CompletionCertificate{}, dErrors.Wrap(err, dErrors.CodeInternal, "load envelope")
	}

	events, err := a.ledger.List(ctx, envelopeID, trail.Filter{})
	if err != nil {
		return CompletionCertificate{}, err
	}

	completed := false
	for _, ev := range events {
		if ev.Type == trail.EventCompleted {
			completed = true
			break
		}
	}
	if !completed {
		return CompletionCertificate{}, dErrors.New(dErrors.CodeEnvelopeNotComplete,
			"envelope "+envelopeID.String()+" has no completion event; certificate unavailable")
	}

	result := a.verifier.VerifyEvents(envelopeID, events)
	if !result.Valid {
		return CompletionCertificate{}, dErrors.New(dErrors.CodeTamperDetected,
			"chain verification failed: "+result.Reason)
	}

	finalHash := hashchain.Genesis
	if n := len(events); n > 0 {
		finalHash = events[n-1].Hash
	}

	generatedAt := a.now().UTC()
	locator, err := a.signer.Sign(envelopeID, finalHash, generatedAt)
	if err != nil {
		return CompletionCertificate{}, dErrors.Wrap(err, dErrors.CodeInternal, "sign certificate locator")
	}

	certified := make([]CertifiedEvent, 0, len(events))
	for _, ev := range events {
		certified = append(certified, CertifiedEvent{
			EventID:      ev.ID,
			Sequence:     ev.Sequence,
			Type:         ev.Type,
			ActorID:      ev.Actor.ID,
			ActorRole:    ev.Actor.Role,
			Timestamp:    ev.Timestamp,
			MetadataKind: ev.Metadata.Kind(),
			Metadata:     ev.Metadata.CanonicalMap(),
			PreviousHash: ev.PreviousHash,
			Hash:         ev.Hash,
		})
	}

	roster := make([]ParticipantSummary, 0, len(env.Participants))
	for _, p := range env.Participants {
		roster = append(roster, ParticipantSummary{
			ID:           p.ID,
			Name:         p.Name,
			Email:        p.Email,
			Role:         p.Role,
			SigningOrder: p.SigningOrder,
			CompletedAt:  p.CompletedAt,
		})
	}

	cert := CompletionCertificate{
		EnvelopeID:  envelopeID,
		GeneratedAt: generatedAt,
		Envelope: EnvelopeSummary{
			Subject:      env.Subject,
			SenderID:     env.SenderID,
			Status:       env.Status,
			SigningOrder: env.SigningOrder,
			CompletedAt:  env.CompletedAt,
		},
		Participants: roster,
		Events:       certified,
		FinalHash:    finalHash,
		Verification: result,
		Locator:      locator,
	}

	_, err = a.ledger.Append(ctx, envelopeID, trail.EventCertificateGenerated, actor, trail.CertificateMetadata{
		FinalHash:     finalHash,
		LocatorDigest: hashchain.DigestString(locator),
	})
	if err != nil {
		return CompletionCertificate{}, err
	}

	a.metrics.IncCertificateGenerated()
	return cert, nil
}
