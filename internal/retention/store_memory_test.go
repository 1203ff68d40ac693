package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

type MemoryStoresSuite struct {
	suite.Suite

	ctx        context.Context
	envelopeID id.EnvelopeID
}

func TestMemoryStoresSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoresSuite))
}

func (s *MemoryStoresSuite) SetupTest() {
	s.ctx = context.Background()
	s.envelopeID = id.NewEnvelopeID()
}

func (s *MemoryStoresSuite) TestHoldStore() {
	store := NewInMemoryHoldStore()

	s.Run("no active hold on a fresh envelope", func() {
		_, err := store.Active(s.ctx, s.envelopeID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	hold := LegalHold{
		ID:         id.NewHoldID(),
		EnvelopeID: s.envelopeID,
		Reason:     "litigation",
		AppliedBy:  "admin-1",
		AppliedAt:  time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
	}

	s.Run("saved hold becomes active", func() {
		s.Require().NoError(store.Save(s.ctx, hold))

		active, err := store.Active(s.ctx, s.envelopeID)
		s.Require().NoError(err)
		s.Equal(hold.ID, active.ID)
	})

	s.Run("saving with the same ID updates in place", func() {
		released := hold.AppliedAt.Add(time.Hour)
		hold.ReleasedAt = &released
		s.Require().NoError(store.Save(s.ctx, hold))

		_, err := store.Active(s.ctx, s.envelopeID)
		s.ErrorIs(err, sentinel.ErrNotFound)

		history, err := store.History(s.ctx, s.envelopeID)
		s.Require().NoError(err)
		s.Len(history, 1)
	})

	s.Run("history keeps released and active holds", func() {
		second := LegalHold{
			ID:         id.NewHoldID(),
			EnvelopeID: s.envelopeID,
			Reason:     "audit",
			AppliedBy:  "admin-2",
			AppliedAt:  hold.AppliedAt.Add(2 * time.Hour),
		}
		s.Require().NoError(store.Save(s.ctx, second))

		history, err := store.History(s.ctx, s.envelopeID)
		s.Require().NoError(err)
		s.Len(history, 2)

		active, err := store.Active(s.ctx, s.envelopeID)
		s.Require().NoError(err)
		s.Equal(second.ID, active.ID)
	})
}

func (s *MemoryStoresSuite) TestPolicyStore() {
	store := NewInMemoryPolicyStore()

	_, err := store.Find(s.ctx, s.envelopeID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	policy := Policy{
		EnvelopeID:  s.envelopeID,
		Period:      24 * time.Hour,
		CompletedAt: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 8, 1, 9, 5, 0, 0, time.UTC),
	}
	s.Require().NoError(store.Save(s.ctx, policy))

	found, err := store.Find(s.ctx, s.envelopeID)
	s.Require().NoError(err)
	s.Equal(policy.Period, found.Period)
	s.Equal(policy.CompletedAt.Add(policy.Period), found.EligibleDeletionAt())

	s.Run("save replaces the existing policy", func() {
		policy.Period = 48 * time.Hour
		s.Require().NoError(store.Save(s.ctx, policy))

		found, err := store.Find(s.ctx, s.envelopeID)
		s.Require().NoError(err)
		s.Equal(48*time.Hour, found.Period)
	})
}

func (s *MemoryStoresSuite) TestAuthorizationStore() {
	clock := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	store := NewInMemoryAuthorizationStore()
	store.now = func() time.Time { return clock }

	authz := DeleteAuthorization{
		ID:         id.NewAuthorizationID(),
		EnvelopeID: s.envelopeID,
		IssuedAt:   clock,
		ExpiresAt:  clock.Add(15 * time.Minute),
	}

	s.Run("consume returns the stored authorization once", func() {
		s.Require().NoError(store.Put(s.ctx, authz, 15*time.Minute))

		got, err := store.Consume(s.ctx, authz.ID)
		s.Require().NoError(err)
		s.Equal(authz.EnvelopeID, got.EnvelopeID)

		_, err = store.Consume(s.ctx, authz.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("unknown token", func() {
		_, err := store.Consume(s.ctx, id.NewAuthorizationID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("expired token is gone even on first consume", func() {
		s.Require().NoError(store.Put(s.ctx, authz, 15*time.Minute))
		clock = clock.Add(16 * time.Minute)

		_, err := store.Consume(s.ctx, authz.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
