//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sigil/internal/envelope"
	"sigil/internal/trail"
	"sigil/internal/trail/hashchain"
	"sigil/internal/trail/ledger"
	"sigil/internal/verifier"
	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
	"sigil/pkg/testutil/containers"
)

type StoreIntegrationSuite struct {
	suite.Suite

	ctx        context.Context
	container  *containers.PostgresContainer
	store      *Store
	envelopeID id.EnvelopeID
}

func TestStoreIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(StoreIntegrationSuite))
}

func (s *StoreIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.container = containers.GetManager().GetPostgres(s.T())
	s.store = New(s.container.DB)
}

func (s *StoreIntegrationSuite) SetupTest() {
	s.Require().NoError(s.container.TruncateTables(s.ctx, "audit_events"))
	s.envelopeID = id.NewEnvelopeID()
}

func (s *StoreIntegrationSuite) event(sequence int64, eventType trail.EventType, metadata trail.Metadata) trail.Event {
	if metadata == nil {
		metadata = trail.NoMetadata{}
	}
	return trail.Event{
		ID:           id.NewEventID(),
		EnvelopeID:   s.envelopeID,
		Sequence:     sequence,
		Type:         eventType,
		Actor:        trail.Actor{ID: "sender-1", Role: trail.RoleSender},
		Timestamp:    time.Date(2026, 8, 15, 9, 0, int(sequence), 123456000, time.UTC),
		Metadata:     metadata,
		PreviousHash: hashchain.Genesis,
		Hash:         hashchain.DigestString(s.envelopeID.String() + string(rune('a'+sequence))),
		HashVersion:  hashchain.VersionV1,
	}
}

func (s *StoreIntegrationSuite) TestAppendAndHead() {
	_, err := s.store.Head(s.ctx, s.envelopeID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.Append(s.ctx, s.event(0, trail.EventCreated, nil)))
	s.Require().NoError(s.store.Append(s.ctx, s.event(1, trail.EventSent, nil)))

	head, err := s.store.Head(s.ctx, s.envelopeID)
	s.Require().NoError(err)
	s.Equal(int64(1), head.Sequence)
	s.Equal(trail.EventSent, head.Type)
	s.Equal(s.envelopeID, head.EnvelopeID)
}

func (s *StoreIntegrationSuite) TestRoundTripPreservesEveryField() {
	ev := s.event(0, trail.EventViewed, trail.ViewMetadata{
		Access: trail.AccessMetadata{
			IP:          "203.0.113.9",
			Geolocation: "Lisbon, PT",
			UserAgent:   "Firefox 143; Linux",
			AuthMethod:  "email_link",
		},
		PagesViewed: "1-12",
		DurationMS:  90000,
	})
	s.Require().NoError(s.store.Append(s.ctx, ev))

	stored, err := s.store.Head(s.ctx, s.envelopeID)
	s.Require().NoError(err)

	s.Equal(ev.ID, stored.ID)
	s.Equal(ev.Type, stored.Type)
	s.Equal(ev.Actor, stored.Actor)
	s.True(ev.Timestamp.Equal(stored.Timestamp), "timestamp %v != %v", ev.Timestamp, stored.Timestamp)
	s.Equal(ev.Metadata.Kind(), stored.Metadata.Kind())
	s.Equal(ev.Metadata.CanonicalMap(), stored.Metadata.CanonicalMap())
	s.Equal(ev.PreviousHash, stored.PreviousHash)
	s.Equal(ev.Hash, stored.Hash)
	s.Equal(ev.HashVersion, stored.HashVersion)
}

func (s *StoreIntegrationSuite) TestDuplicateSequenceConflicts() {
	s.Require().NoError(s.store.Append(s.ctx, s.event(0, trail.EventCreated, nil)))

	err := s.store.Append(s.ctx, s.event(0, trail.EventSent, nil))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *StoreIntegrationSuite) TestConcurrentDuplicateAppendsResolveToOneWinner() {
	// Two writers race for the same sequence slot. The composite primary key
	// must let exactly one through.
	const racers = 8

	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		go func() {
			results <- s.store.Append(s.ctx, s.event(0, trail.EventCreated, nil))
		}()
	}

	var wins, conflicts int
	for i := 0; i < racers; i++ {
		err := <-results
		switch {
		case err == nil:
			wins++
		default:
			s.Require().ErrorIs(err, sentinel.ErrConflict)
			conflicts++
		}
	}

	s.Equal(1, wins)
	s.Equal(racers-1, conflicts)

	count, err := s.store.Count(s.ctx, s.envelopeID)
	s.Require().NoError(err)
	s.Equal(int64(1), count)
}

func (s *StoreIntegrationSuite) TestDuplicateEventIDConflicts() {
	ev := s.event(0, trail.EventCreated, nil)
	s.Require().NoError(s.store.Append(s.ctx, ev))

	dup := s.event(1, trail.EventSent, nil)
	dup.ID = ev.ID
	s.ErrorIs(s.store.Append(s.ctx, dup), sentinel.ErrConflict)
}

func (s *StoreIntegrationSuite) TestListFilters() {
	s.Require().NoError(s.store.Append(s.ctx, s.event(0, trail.EventCreated, nil)))
	s.Require().NoError(s.store.Append(s.ctx, s.event(1, trail.EventSent, nil)))

	viewed := s.event(2, trail.EventViewed, trail.ViewMetadata{PagesViewed: "1"})
	viewed.Actor = trail.Actor{ID: "recipient-1", Role: trail.RoleRecipient}
	s.Require().NoError(s.store.Append(s.ctx, viewed))

	s.Run("full chain in sequence order", func() {
		events, err := s.store.List(s.ctx, s.envelopeID, trail.Filter{})
		s.Require().NoError(err)
		s.Require().Len(events, 3)
		for i, ev := range events {
			s.Equal(int64(i), ev.Sequence)
		}
	})

	s.Run("by type", func() {
		events, err := s.store.List(s.ctx, s.envelopeID, trail.Filter{
			Types: []trail.EventType{trail.EventCreated, trail.EventViewed},
		})
		s.Require().NoError(err)
		s.Len(events, 2)
	})

	s.Run("by actor", func() {
		events, err := s.store.List(s.ctx, s.envelopeID, trail.Filter{ActorID: "recipient-1"})
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(trail.EventViewed, events[0].Type)
	})

	s.Run("by inclusive time window", func() {
		events, err := s.store.List(s.ctx, s.envelopeID, trail.Filter{
			From: time.Date(2026, 8, 15, 9, 0, 1, 0, time.UTC),
			To:   time.Date(2026, 8, 15, 9, 0, 2, 500000000, time.UTC),
		})
		s.Require().NoError(err)
		s.Len(events, 2)
	})

	s.Run("other envelopes are invisible", func() {
		events, err := s.store.List(s.ctx, id.NewEnvelopeID(), trail.Filter{})
		s.Require().NoError(err)
		s.Empty(events)
	})
}

func (s *StoreIntegrationSuite) TestLedgerChainVerifiesAfterReload() {
	// Events written through the real ledger, persisted to timestamptz
	// columns, and reloaded must still reproduce their stored hashes.
	lg := ledger.New(s.store, envelope.NewInMemoryStore())
	chainVerifier := verifier.New(s.store)

	actor := trail.Actor{ID: "sender-1", Role: trail.RoleSender}
	for _, eventType := range []trail.EventType{trail.EventCreated, trail.EventSent, trail.EventCompleted} {
		_, err := lg.Append(s.ctx, s.envelopeID, eventType, actor, nil)
		s.Require().NoError(err)
	}

	result, err := chainVerifier.Verify(s.ctx, s.envelopeID)
	s.Require().NoError(err)
	s.True(result.Valid, "reloaded chain failed verification: %s", result.Reason)
}

func (s *StoreIntegrationSuite) TestPurge() {
	other := id.NewEnvelopeID()

	s.Require().NoError(s.store.Append(s.ctx, s.event(0, trail.EventCreated, nil)))
	s.Require().NoError(s.store.Append(s.ctx, s.event(1, trail.EventSent, nil)))

	foreign := s.event(0, trail.EventCreated, nil)
	foreign.EnvelopeID = other
	s.Require().NoError(s.store.Append(s.ctx, foreign))

	removed, err := s.store.Purge(s.ctx, s.envelopeID)
	s.Require().NoError(err)
	s.Equal(int64(2), removed)

	count, err := s.store.Count(s.ctx, s.envelopeID)
	s.Require().NoError(err)
	s.Zero(count)

	count, err = s.store.Count(s.ctx, other)
	s.Require().NoError(err)
	s.Equal(int64(1), count, "purge must not touch other envelopes")
}
