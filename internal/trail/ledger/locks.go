package ledger

import (
	"sync"

	id "sigil/pkg/domain"
)

// envelopeLocks serializes appends per envelope without a global lock, so
// chains for different envelopes never contend with each other.
type envelopeLocks struct {
	mu    sync.Mutex
	locks map[id.EnvelopeID]*envelopeLock
}

type envelopeLock struct {
	mu   sync.Mutex
	refs int
}

func newEnvelopeLocks() *envelopeLocks {
	return &envelopeLocks{locks: make(map[id.EnvelopeID]*envelopeLock)}
}

// acquire blocks until the envelope's exclusive section is held and returns
// the release function. Lock entries are reference-counted and removed when
// the last holder releases, so the map does not grow with envelope count.
func (l *envelopeLocks) acquire(envelopeID id.EnvelopeID) func() {
	l.mu.Lock()
	entry, ok := l.locks[envelopeID]
	if !ok {
		entry = &envelopeLock{}
		l.locks[envelopeID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, envelopeID)
		}
		l.mu.Unlock()
	}
}
