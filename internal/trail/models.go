// Package trail defines the immutable audit event model for envelope
// activity. Events are appended by the ledger, chained by hash, and never
// mutated after creation; any correction is expressed as a new event.
package trail

import (
	"time"

	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
)

// EventType classifies one audit fact. The set is closed: unknown types are
// rejected at construction so the chain only ever carries recognized facts.
type EventType string

const (
	// Envelope lifecycle
	EventCreated            EventType = "created"
	EventSent               EventType = "sent"
	EventDelivered          EventType = "delivered"
	EventViewed             EventType = "viewed"
	EventSignatureCompleted EventType = "signature_completed"
	EventDeclined           EventType = "declined"
	EventVoided             EventType = "voided"
	EventExpired            EventType = "expired"
	EventCompleted          EventType = "completed"

	// Consent and access
	EventConsentRecorded        EventType = "consent_recorded"
	EventDisclosureAcknowledged EventType = "disclosure_acknowledged"
	EventAccessGranted          EventType = "access_granted"
	EventAccessDenied           EventType = "access_denied"

	// Administrative
	EventSettingsChanged        EventType = "settings_changed"
	EventLegalHoldApplied       EventType = "legal_hold_applied"
	EventLegalHoldReleased      EventType = "legal_hold_released"
	EventRetentionPolicyUpdated EventType = "retention_policy_updated"
	EventDeletionDenied         EventType = "deletion_denied"
	EventDeletionAuthorized     EventType = "deletion_authorized"
	EventCertificateGenerated   EventType = "certificate_generated"
)

var knownEventTypes = map[EventType]struct{}{
	EventCreated:                {},
	EventSent:                   {},
	EventDelivered:              {},
	EventViewed:                 {},
	EventSignatureCompleted:     {},
	EventDeclined:               {},
	EventVoided:                 {},
	EventExpired:                {},
	EventCompleted:              {},
	EventConsentRecorded:        {},
	EventDisclosureAcknowledged: {},
	EventAccessGranted:          {},
	EventAccessDenied:           {},
	EventSettingsChanged:        {},
	EventLegalHoldApplied:       {},
	EventLegalHoldReleased:      {},
	EventRetentionPolicyUpdated: {},
	EventDeletionDenied:         {},
	EventDeletionAuthorized:     {},
	EventCertificateGenerated:   {},
}

// Known reports whether t is part of the recognized event type set.
func (t EventType) Known() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// ActorRole identifies who triggered an event.
type ActorRole string

const (
	RoleSender    ActorRole = "sender"
	RoleRecipient ActorRole = "recipient"
	RoleAdmin     ActorRole = "admin"
	RoleSystem    ActorRole = "system"
)

var knownActorRoles = map[ActorRole]struct{}{
	RoleSender:    {},
	RoleRecipient: {},
	RoleAdmin:     {},
	RoleSystem:    {},
}

// Actor is the identity that triggered an event. Automated transitions use
// SystemActor rather than an empty actor.
type Actor struct {
	ID   string
	Role ActorRole
}

// SystemActor marks automated transitions (expiry sweeps, scheduled purges).
var SystemActor = Actor{ID: "system", Role: RoleSystem}

// Event is one immutable audit fact in an envelope's chain. It is fully
// populated by the ledger at append time; no field changes afterwards.
type Event struct {
	ID         id.EventID
	EnvelopeID id.EnvelopeID

	// Sequence is assigned by the ledger: gapless, 0-based, unique within
	// the envelope's chain.
	Sequence int64

	Type      EventType
	Actor     Actor
	Timestamp time.Time
	Metadata  Metadata

	// PreviousHash is the hash of the event at Sequence-1, or the genesis
	// constant for the first event.
	PreviousHash string

	// Hash covers every field above plus PreviousHash under the
	// canonicalization identified by HashVersion.
	Hash        string
	HashVersion string
}

// Filter narrows ledger reads. Zero values mean "no constraint".
type Filter struct {
	Types   []EventType
	ActorID string
	From    time.Time
	To      time.Time
}

// Matches reports whether ev satisfies every set constraint.
func (f Filter) Matches(ev Event) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if ev.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ActorID != "" && ev.Actor.ID != f.ActorID {
		return false
	}
	if !f.From.IsZero() && ev.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ev.Timestamp.After(f.To) {
		return false
	}
	return true
}

// ValidateInput checks the caller-supplied portion of an event before any
// sequencing or hash work happens. Rejections here never touch the store.
func ValidateInput(envelopeID id.EnvelopeID, eventType EventType, actor Actor, metadata Metadata) error {
	if envelopeID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "envelope ID is required")
	}
	if !eventType.Known() {
		return dErrors.New(dErrors.CodeValidation, "unrecognized event type: "+string(eventType))
	}
	if actor.ID == "" {
		return dErrors.New(dErrors.CodeValidation, "actor ID is required")
	}
	if _, ok := knownActorRoles[actor.Role]; !ok {
		return dErrors.New(dErrors.CodeValidation, "unrecognized actor role: "+string(actor.Role))
	}
	return validateMetadata(eventType, metadata)
}
