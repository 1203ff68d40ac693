// Package retention guards envelope deletion. Nothing deletes a chain
// without passing through the Guard: legal holds block deletion outright,
// retention periods must have elapsed, and the only path to a purge is a
// short-lived consume-once authorization token minted here.
package retention

import (
	"time"

	id "sigil/pkg/domain"
)

// LegalHold freezes an envelope against deletion. At most one hold is
// active per envelope at a time; released holds are kept as history and
// never hard-deleted.
type LegalHold struct {
	ID         id.HoldID
	EnvelopeID id.EnvelopeID
	Reason     string
	AppliedBy  string
	AppliedAt  time.Time
	ReleasedAt *time.Time
}

// Active reports whether the hold still blocks deletion.
func (h LegalHold) Active() bool {
	return h.ReleasedAt == nil
}

// Policy sets how long an envelope's chain must be kept after completion.
type Policy struct {
	EnvelopeID  id.EnvelopeID
	Period      time.Duration
	CompletedAt time.Time
	UpdatedAt   time.Time
}

// EligibleDeletionAt is the earliest instant deletion may be authorized.
func (p Policy) EligibleDeletionAt() time.Time {
	return p.CompletedAt.Add(p.Period)
}

// DeleteAuthorization is a single-use ticket to purge one envelope's chain.
// It expires after TTL and is consumed atomically on first use.
type DeleteAuthorization struct {
	ID         id.AuthorizationID
	EnvelopeID id.EnvelopeID
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Denial reasons recorded on deletion_denied events and on the retention
// denial metric.
const (
	DenialLegalHold           = "legal_hold"
	DenialRetentionNotExpired = "retention_not_expired"
)
