// Package hashchain computes and checks the per-event cryptographic linkage
// of an envelope's audit trail. Each event's hash covers its own fields plus
// the previous event's hash, so any retroactive edit breaks every hash that
// follows it.
package hashchain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"sigil/internal/trail"
)

// VersionV1 identifies the canonical encoding below. The version is stored
// with every event; changing the encoding means a new version tag, never a
// retroactive change, or previously written chains become unverifiable.
const VersionV1 = "v1"

// Genesis is the previous-hash value for an envelope's first event: the
// SHA-256 digest of the empty string. A fixed constant rather than null, so
// verification never special-cases the chain head beyond comparing to it.
const Genesis = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// canonicalV1 is the exact byte layout hashed under VersionV1. Field order
// is fixed by struct declaration; the metadata map marshals with sorted keys
// (encoding/json guarantees this); the timestamp is normalized to UTC with a
// fixed format so no locale or zone leaks into the digest. Timestamps must
// carry at most microsecond precision before hashing: TIMESTAMPTZ columns
// truncate to microseconds, and hashing finer precision would make stored
// events unreproducible after a round-trip. The ledger truncates at append
// time; v1 treats that truncated value as the canonical one.
type canonicalV1 struct {
	V            string            `json:"v"`
	EventID      string            `json:"event_id"`
	EnvelopeID   string            `json:"envelope_id"`
	Sequence     int64             `json:"sequence"`
	Type         string            `json:"type"`
	ActorID      string            `json:"actor_id"`
	ActorRole    string            `json:"actor_role"`
	Timestamp    string            `json:"timestamp"`
	Metadata     map[string]string `json:"metadata"`
	PreviousHash string            `json:"previous_hash"`
}

// Compute returns the hex SHA-256 digest of the event's canonical form under
// the encoding named by version. The event's own Hash field is ignored;
// PreviousHash is taken from the prev argument, not the event.
func Compute(version string, ev trail.Event, prev string) (string, error) {
	switch version {
	case VersionV1:
		return computeV1(ev, prev)
	default:
		return "", fmt.Errorf("unknown hash version %q", version)
	}
}

func computeV1(ev trail.Event, prev string) (string, error) {
	metadata := map[string]string{}
	if ev.Metadata != nil {
		metadata = ev.Metadata.CanonicalMap()
	}

	payload, err := json.Marshal(canonicalV1{
		V:            VersionV1,
		EventID:      ev.ID.String(),
		EnvelopeID:   ev.EnvelopeID.String(),
		Sequence:     ev.Sequence,
		Type:         string(ev.Type),
		ActorID:      ev.Actor.ID,
		ActorRole:    string(ev.Actor.Role),
		Timestamp:    ev.Timestamp.UTC().Format(time.RFC3339Nano),
		Metadata:     metadata,
		PreviousHash: prev,
	})
	if err != nil {
		return "", fmt.Errorf("marshal canonical event: %w", err)
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyEvent recomputes one event's hash from its stored fields and stored
// PreviousHash and compares it to the stored Hash. It spot-checks a single
// link; walking the whole chain is the verifier's job.
func VerifyEvent(ev trail.Event) bool {
	computed, err := Compute(ev.HashVersion, ev, ev.PreviousHash)
	if err != nil {
		return false
	}
	return computed == ev.Hash
}

// DigestString returns the hex SHA-256 of an arbitrary string. Used for
// derived references (consent text, certificate locators) that are chained
// by digest instead of raw content.
func DigestString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
