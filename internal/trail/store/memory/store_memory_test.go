package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sigil/internal/trail"
	"sigil/internal/trail/hashchain"
	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite

	ctx        context.Context
	store      *InMemoryStore
	envelopeID id.EnvelopeID
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.envelopeID = id.NewEnvelopeID()
}

func (s *InMemoryStoreSuite) event(sequence int64, eventType trail.EventType, actorID string) trail.Event {
	return trail.Event{
		ID:           id.NewEventID(),
		EnvelopeID:   s.envelopeID,
		Sequence:     sequence,
		Type:         eventType,
		Actor:        trail.Actor{ID: actorID, Role: trail.RoleSender},
		Timestamp:    time.Date(2026, 5, 1, 10, 0, int(sequence), 0, time.UTC),
		Metadata:     trail.NoMetadata{},
		PreviousHash: hashchain.Genesis,
		Hash:         hashchain.DigestString(string(rune('a' + sequence))),
		HashVersion:  hashchain.VersionV1,
	}
}

func (s *InMemoryStoreSuite) TestAppendAndHead() {
	s.Run("empty chain has no head", func() {
		_, err := s.store.Head(s.ctx, s.envelopeID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("head tracks the latest append", func() {
		s.Require().NoError(s.store.Append(s.ctx, s.event(0, trail.EventCreated, "user-1")))
		s.Require().NoError(s.store.Append(s.ctx, s.event(1, trail.EventSent, "user-1")))

		head, err := s.store.Head(s.ctx, s.envelopeID)
		s.Require().NoError(err)
		s.Equal(int64(1), head.Sequence)
		s.Equal(trail.EventSent, head.Type)
	})

	s.Run("duplicate sequence conflicts", func() {
		err := s.store.Append(s.ctx, s.event(1, trail.EventDelivered, "user-2"))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("gap in sequence conflicts", func() {
		err := s.store.Append(s.ctx, s.event(5, trail.EventDelivered, "user-2"))
		s.ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *InMemoryStoreSuite) TestChainsAreIsolatedPerEnvelope() {
	other := id.NewEnvelopeID()

	s.Require().NoError(s.store.Append(s.ctx, s.event(0, trail.EventCreated, "user-1")))

	ev := s.event(0, trail.EventCreated, "user-9")
	ev.EnvelopeID = other
	s.Require().NoError(s.store.Append(s.ctx, ev))

	count, err := s.store.Count(s.ctx, s.envelopeID)
	s.Require().NoError(err)
	s.Equal(int64(1), count)

	count, err = s.store.Count(s.ctx, other)
	s.Require().NoError(err)
	s.Equal(int64(1), count)
}

func (s *InMemoryStoreSuite) TestListFilters() {
	s.Require().NoError(s.store.Append(s.ctx, s.event(0, trail.EventCreated, "sender-1")))
	s.Require().NoError(s.store.Append(s.ctx, s.event(1, trail.EventSent, "sender-1")))
	s.Require().NoError(s.store.Append(s.ctx, s.event(2, trail.EventDelivered, "recipient-1")))

	s.Run("no filter returns the whole chain in order", func() {
		events, err := s.store.List(s.ctx, s.envelopeID, trail.Filter{})
		s.Require().NoError(err)
		s.Require().Len(events, 3)
		for i, ev := range events {
			s.Equal(int64(i), ev.Sequence)
		}
	})

	s.Run("type filter", func() {
		events, err := s.store.List(s.ctx, s.envelopeID, trail.Filter{
			Types: []trail.EventType{trail.EventSent, trail.EventDelivered},
		})
		s.Require().NoError(err)
		s.Len(events, 2)
	})

	s.Run("actor filter", func() {
		events, err := s.store.List(s.ctx, s.envelopeID, trail.Filter{ActorID: "recipient-1"})
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(trail.EventDelivered, events[0].Type)
	})

	s.Run("time window is inclusive", func() {
		events, err := s.store.List(s.ctx, s.envelopeID, trail.Filter{
			From: time.Date(2026, 5, 1, 10, 0, 1, 0, time.UTC),
			To:   time.Date(2026, 5, 1, 10, 0, 2, 0, time.UTC),
		})
		s.Require().NoError(err)
		s.Len(events, 2)
	})

	s.Run("unknown envelope returns empty", func() {
		events, err := s.store.List(s.ctx, id.NewEnvelopeID(), trail.Filter{})
		s.Require().NoError(err)
		s.Empty(events)
	})
}

func (s *InMemoryStoreSuite) TestPurge() {
	s.Require().NoError(s.store.Append(s.ctx, s.event(0, trail.EventCreated, "user-1")))
	s.Require().NoError(s.store.Append(s.ctx, s.event(1, trail.EventSent, "user-1")))

	removed, err := s.store.Purge(s.ctx, s.envelopeID)
	s.Require().NoError(err)
	s.Equal(int64(2), removed)

	count, err := s.store.Count(s.ctx, s.envelopeID)
	s.Require().NoError(err)
	s.Zero(count)

	s.Run("purging again removes nothing", func() {
		removed, err := s.store.Purge(s.ctx, s.envelopeID)
		s.Require().NoError(err)
		s.Zero(removed)
	})

	s.Run("sequence restarts after purge", func() {
		s.NoError(s.store.Append(s.ctx, s.event(0, trail.EventCreated, "user-1")))
	})
}

func (s *InMemoryStoreSuite) TestTamper() {
	s.Require().NoError(s.store.Append(s.ctx, s.event(0, trail.EventCreated, "user-1")))

	s.Run("in range mutates stored state", func() {
		ok := s.store.Tamper(s.envelopeID, 0, func(ev *trail.Event) {
			ev.Actor.ID = "intruder"
		})
		s.Require().True(ok)

		head, err := s.store.Head(s.ctx, s.envelopeID)
		s.Require().NoError(err)
		s.Equal("intruder", head.Actor.ID)
	})

	s.Run("out of range reports false", func() {
		s.False(s.store.Tamper(s.envelopeID, 7, func(*trail.Event) {}))
		s.False(s.store.Tamper(s.envelopeID, -1, func(*trail.Event) {}))
	})
}
