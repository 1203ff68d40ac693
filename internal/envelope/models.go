// Package envelope holds the read model the trail core keeps about each
// envelope: enough to answer "is this chain still writable" and to build the
// participant roster for completion certificates. The envelope workflow
// itself (state transitions, signing business rules) lives upstream; this
// package only mirrors the facts the workflow layer reports.
package envelope

import (
	"time"

	id "sigil/pkg/domain"
)

// Status mirrors the workflow states of the signing platform.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusSigned    Status = "signed"
	StatusCompleted Status = "completed"
	StatusDeclined  Status = "declined"
	StatusVoided    Status = "voided"
	StatusExpired   Status = "expired"
)

// SigningOrder is the workflow order type for an envelope's recipients.
type SigningOrder string

const (
	OrderParallel   SigningOrder = "parallel"
	OrderSequential SigningOrder = "sequential"
)

// ParticipantRole is the recipient's role in the envelope.
type ParticipantRole string

const (
	RoleSigner   ParticipantRole = "signer"
	RoleCC       ParticipantRole = "cc"
	RoleApprover ParticipantRole = "approver"
)

// Participant is one member of the envelope's roster.
type Participant struct {
	ID           id.ParticipantID
	Name         string
	Email        string
	Role         ParticipantRole
	SigningOrder int
	CompletedAt  *time.Time
}

// Envelope is the trail core's snapshot of one signable envelope.
type Envelope struct {
	ID           id.EnvelopeID
	SenderID     string
	Subject      string
	Status       Status
	SigningOrder SigningOrder
	CreatedAt    time.Time
	CompletedAt  *time.Time

	// Archived marks the chain read-only: no further events may be
	// appended, even by the workflow layer.
	Archived bool

	Participants []Participant
}
