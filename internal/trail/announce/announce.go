// Package announce publishes committed audit events to Kafka for downstream
// consumers (analytics, archival, webhooks). The event store remains the
// source of truth; publication is best-effort and never blocks or fails an
// append.
package announce

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"sigil/internal/platform/kafka/producer"
	"sigil/internal/platform/metrics"
	"sigil/internal/trail"
)

// DefaultTopic is the trail event stream.
const DefaultTopic = "sigil.trail.events"

// Producer is the publishing surface the announcer needs.
type Producer interface {
	ProduceAsync(msg *producer.Message) error
}

// Announcer serializes events and hands them to the producer. Records are
// keyed by envelope ID so one envelope's events stay ordered within a
// partition.
type Announcer struct {
	producer Producer
	topic    string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the Announcer.
type Option func(*Announcer)

// WithTopic overrides the destination topic.
func WithTopic(topic string) Option {
	return func(a *Announcer) { a.topic = topic }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Announcer) { a.metrics = m }
}

func New(p Producer, logger *slog.Logger, opts ...Option) *Announcer {
	a := &Announcer{
		producer: p,
		topic:    DefaultTopic,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// payload is the wire shape of a published event.
type payload struct {
	EventID      string            `json:"event_id"`
	EnvelopeID   string            `json:"envelope_id"`
	Sequence     int64             `json:"sequence_number"`
	Type         string            `json:"event_type"`
	ActorID      string            `json:"actor_id"`
	ActorRole    string            `json:"actor_role"`
	Timestamp    time.Time         `json:"timestamp"`
	MetadataKind string            `json:"metadata_kind"`
	Metadata     map[string]string `json:"metadata"`
	PreviousHash string            `json:"previous_event_hash"`
	Hash         string            `json:"event_hash"`
	HashVersion  string            `json:"hash_version"`
}

// Announce publishes one committed event. Failures are logged and counted
// but never propagated to the caller.
func (a *Announcer) Announce(ctx context.Context, ev trail.Event) {
	body, err := json.Marshal(payload{
		EventID:      ev.ID.String(),
		EnvelopeID:   ev.EnvelopeID.String(),
		Sequence:     ev.Sequence,
		Type:         string(ev.Type),
		ActorID:      ev.Actor.ID,
		ActorRole:    string(ev.Actor.Role),
		Timestamp:    ev.Timestamp,
		MetadataKind: string(ev.Metadata.Kind()),
		Metadata:     ev.Metadata.CanonicalMap(),
		PreviousHash: ev.PreviousHash,
		Hash:         ev.Hash,
		HashVersion:  ev.HashVersion,
	})
	if err != nil {
		a.fail(ctx, ev, err)
		return
	}

	msg := &producer.Message{
		Topic: a.topic,
		Key:   []byte(ev.EnvelopeID.String()),
		Value: body,
		Headers: map[string]string{
			"event_type": string(ev.Type),
		},
	}
	if err := a.producer.ProduceAsync(msg); err != nil {
		a.fail(ctx, ev, err)
	}
}

func (a *Announcer) fail(ctx context.Context, ev trail.Event, err error) {
	a.metrics.IncAnnounceFailure()
	if a.logger != nil {
		a.logger.ErrorContext(ctx, "announce audit event failed",
			"envelope_id", ev.EnvelopeID.String(),
			"sequence", ev.Sequence,
			"event_type", ev.Type,
			"error", err,
		)
	}
}
