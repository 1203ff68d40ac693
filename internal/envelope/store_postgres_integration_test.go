//go:build integration

package envelope

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
	"sigil/pkg/testutil/containers"
)

type PostgresStoreIntegrationSuite struct {
	suite.Suite

	ctx       context.Context
	container *containers.PostgresContainer
	store     *PostgresStore
}

func TestPostgresStoreIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreIntegrationSuite))
}

func (s *PostgresStoreIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.container = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgresStore(s.container.DB)
}

func (s *PostgresStoreIntegrationSuite) SetupTest() {
	s.Require().NoError(s.container.TruncateTables(s.ctx, "envelope_participants", "envelopes"))
}

func (s *PostgresStoreIntegrationSuite) TestSaveAndFind() {
	created := time.Now().UTC().Truncate(time.Microsecond)
	completed := created.Add(48 * time.Hour)
	signedAt := completed.Add(-time.Hour)

	env := Envelope{
		ID:           id.NewEnvelopeID(),
		SenderID:     "sender-1",
		Subject:      "Q3 services agreement",
		Status:       StatusCompleted,
		SigningOrder: OrderSequential,
		CreatedAt:    created,
		CompletedAt:  &completed,
		Participants: []Participant{
			{
				ID:           id.NewParticipantID(),
				Name:         "Ana Ferreira",
				Email:        "ana@example.com",
				Role:         RoleSigner,
				SigningOrder: 1,
				CompletedAt:  &signedAt,
			},
			{
				ID:           id.NewParticipantID(),
				Name:         "Legal Team",
				Email:        "legal@example.com",
				Role:         RoleCC,
				SigningOrder: 2,
			},
		},
	}
	s.Require().NoError(s.store.Save(s.ctx, env))

	found, err := s.store.Find(s.ctx, env.ID)
	s.Require().NoError(err)

	s.Equal(env.SenderID, found.SenderID)
	s.Equal(env.Subject, found.Subject)
	s.Equal(StatusCompleted, found.Status)
	s.Equal(OrderSequential, found.SigningOrder)
	s.True(created.Equal(found.CreatedAt))
	s.Require().NotNil(found.CompletedAt)
	s.True(completed.Equal(*found.CompletedAt))
	s.False(found.Archived)

	s.Require().Len(found.Participants, 2)
	s.Equal("Ana Ferreira", found.Participants[0].Name)
	s.Equal(RoleSigner, found.Participants[0].Role)
	s.Require().NotNil(found.Participants[0].CompletedAt)
	s.Equal("Legal Team", found.Participants[1].Name)
	s.Nil(found.Participants[1].CompletedAt)
}

func (s *PostgresStoreIntegrationSuite) TestFindUnknownEnvelope() {
	_, err := s.store.Find(s.ctx, id.NewEnvelopeID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreIntegrationSuite) TestSaveReplacesTheSnapshot() {
	env := Envelope{
		ID:        id.NewEnvelopeID(),
		SenderID:  "sender-1",
		Subject:   "Draft agreement",
		Status:    StatusDraft,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		Participants: []Participant{
			{ID: id.NewParticipantID(), Name: "Ana Ferreira", Email: "ana@example.com", Role: RoleSigner, SigningOrder: 1},
		},
	}
	s.Require().NoError(s.store.Save(s.ctx, env))

	env.Status = StatusVoided
	env.Archived = true
	env.Participants = nil
	s.Require().NoError(s.store.Save(s.ctx, env))

	found, err := s.store.Find(s.ctx, env.ID)
	s.Require().NoError(err)
	s.Equal(StatusVoided, found.Status)
	s.True(found.Archived)
	s.Empty(found.Participants, "save replaces the participant roster")
}
