// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "sigil/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing EnvelopeID where EventID is expected.
type (
	EnvelopeID      uuid.UUID
	EventID         uuid.UUID
	HoldID          uuid.UUID
	AuthorizationID uuid.UUID
	ParticipantID   uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseEnvelopeID(s string) (EnvelopeID, error) {
	id, err := parseUUID(s, "envelope ID")
	return EnvelopeID(id), err
}

func ParseEventID(s string) (EventID, error) {
	id, err := parseUUID(s, "event ID")
	return EventID(id), err
}

func ParseHoldID(s string) (HoldID, error) {
	id, err := parseUUID(s, "hold ID")
	return HoldID(id), err
}

func ParseAuthorizationID(s string) (AuthorizationID, error) {
	id, err := parseUUID(s, "authorization ID")
	return AuthorizationID(id), err
}

func ParseParticipantID(s string) (ParticipantID, error) {
	id, err := parseUUID(s, "participant ID")
	return ParticipantID(id), err
}

// String methods - for logging and debugging.

func (id EnvelopeID) String() string      { return uuid.UUID(id).String() }
func (id EventID) String() string         { return uuid.UUID(id).String() }
func (id HoldID) String() string          { return uuid.UUID(id).String() }
func (id AuthorizationID) String() string { return uuid.UUID(id).String() }
func (id ParticipantID) String() string   { return uuid.UUID(id).String() }

// IsNil reports whether the identifier is the zero UUID.

func (id EnvelopeID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id HoldID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id AuthorizationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ParticipantID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// New constructors for internally assigned identifiers.

func NewEnvelopeID() EnvelopeID           { return EnvelopeID(uuid.New()) }
func NewEventID() EventID                 { return EventID(uuid.New()) }
func NewHoldID() HoldID                   { return HoldID(uuid.New()) }
func NewAuthorizationID() AuthorizationID { return AuthorizationID(uuid.New()) }
func NewParticipantID() ParticipantID     { return ParticipantID(uuid.New()) }

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be the nil UUID")
	}
	return id, nil
}
