package envelope

import (
	"context"

	id "sigil/pkg/domain"
)

// Store persists envelope snapshots. The workflow layer upserts the snapshot
// on each transition; the trail core only reads it.
type Store interface {
	Save(ctx context.Context, env Envelope) error
	Find(ctx context.Context, envelopeID id.EnvelopeID) (Envelope, error)
}
