package certificate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sigil/internal/envelope"
	"sigil/internal/trail"
	"sigil/internal/trail/ledger"
	"sigil/internal/trail/store/memory"
	"sigil/internal/verifier"
	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
)

type AssemblerSuite struct {
	suite.Suite

	ctx        context.Context
	events     *memory.InMemoryStore
	envelopes  *envelope.InMemoryStore
	ledger     *ledger.Service
	signer     *LocatorSigner
	assembler  *Assembler
	envelopeID id.EnvelopeID
}

func TestAssemblerSuite(t *testing.T) {
	suite.Run(t, new(AssemblerSuite))
}

func (s *AssemblerSuite) SetupTest() {
	s.ctx = context.Background()
	s.events = memory.NewInMemoryStore()
	s.envelopes = envelope.NewInMemoryStore()
	s.ledger = ledger.New(s.events, s.envelopes)
	s.signer = NewLocatorSigner("test-signing-key", "sigil-test")
	s.assembler = NewAssembler(s.ledger, s.envelopes, verifier.New(s.events), s.signer)
	s.envelopeID = id.NewEnvelopeID()
}

func (s *AssemblerSuite) admin() trail.Actor {
	return trail.Actor{ID: "admin-1", Role: trail.RoleAdmin}
}

func (s *AssemblerSuite) saveEnvelope(participants ...envelope.Participant) {
	completed := time.Date(2026, 8, 10, 16, 0, 0, 0, time.UTC)
	s.Require().NoError(s.envelopes.Save(s.ctx, envelope.Envelope{
		ID:           s.envelopeID,
		SenderID:     "sender-1",
		Subject:      "Q3 services agreement",
		Status:       envelope.StatusCompleted,
		SigningOrder: envelope.OrderSequential,
		CreatedAt:    completed.Add(-72 * time.Hour),
		CompletedAt:  &completed,
		Participants: participants,
	}))
}

// completeChain appends a minimal created/signed/completed history.
func (s *AssemblerSuite) completeChain() {
	sender := trail.Actor{ID: "sender-1", Role: trail.RoleSender}
	recipient := trail.Actor{ID: "recipient-1", Role: trail.RoleRecipient}

	_, err := s.ledger.Append(s.ctx, s.envelopeID, trail.EventCreated, sender, nil)
	s.Require().NoError(err)
	_, err = s.ledger.Append(s.ctx, s.envelopeID, trail.EventSignatureCompleted, recipient,
		trail.SignatureMetadata{FieldID: "sig-1", SignatureHash: "ab12"})
	s.Require().NoError(err)
	_, err = s.ledger.Append(s.ctx, s.envelopeID, trail.EventCompleted, sender, nil)
	s.Require().NoError(err)
}

func (s *AssemblerSuite) TestGenerateForUnknownEnvelope() {
	_, err := s.assembler.Generate(s.ctx, id.NewEnvelopeID(), s.admin())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "got %v", err)
}

func (s *AssemblerSuite) TestGenerateRequiresCompletionEvent() {
	s.saveEnvelope()
	_, err := s.ledger.Append(s.ctx, s.envelopeID, trail.EventCreated,
		trail.Actor{ID: "sender-1", Role: trail.RoleSender}, nil)
	s.Require().NoError(err)

	_, err = s.assembler.Generate(s.ctx, s.envelopeID, s.admin())
	s.True(dErrors.HasCode(err, dErrors.CodeEnvelopeNotComplete), "got %v", err)
}

func (s *AssemblerSuite) TestGenerateRefusesTamperedChain() {
	s.saveEnvelope()
	s.completeChain()

	s.Require().True(s.events.Tamper(s.envelopeID, 1, func(ev *trail.Event) {
		ev.Actor.ID = "intruder"
	}))

	_, err := s.assembler.Generate(s.ctx, s.envelopeID, s.admin())
	s.True(dErrors.HasCode(err, dErrors.CodeTamperDetected), "got %v", err)
	s.Contains(err.Error(), "chain verification failed")
}

func (s *AssemblerSuite) TestGenerate() {
	signedAt := time.Date(2026, 8, 10, 15, 30, 0, 0, time.UTC)
	s.saveEnvelope(envelope.Participant{
		ID:           id.NewParticipantID(),
		Name:         "Ana Ferreira",
		Email:        "ana@example.com",
		Role:         envelope.RoleSigner,
		SigningOrder: 1,
		CompletedAt:  &signedAt,
	})
	s.completeChain()

	cert, err := s.assembler.Generate(s.ctx, s.envelopeID, s.admin())
	s.Require().NoError(err)

	s.Run("carries the envelope summary and roster", func() {
		s.Equal(s.envelopeID, cert.EnvelopeID)
		s.Equal("Q3 services agreement", cert.Envelope.Subject)
		s.Equal(envelope.StatusCompleted, cert.Envelope.Status)
		s.Require().Len(cert.Participants, 1)
		s.Equal("Ana Ferreira", cert.Participants[0].Name)
	})

	s.Run("certifies the full chain at snapshot time", func() {
		s.Require().Len(cert.Events, 3)
		s.Equal(trail.EventCompleted, cert.Events[2].Type)
		s.Equal(cert.Events[2].Hash, cert.FinalHash)
		s.True(cert.Verification.Valid)
		s.Equal(int64(3), cert.Verification.EventCount)
	})

	s.Run("excludes its own issuance event", func() {
		for _, ev := range cert.Events {
			s.NotEqual(trail.EventCertificateGenerated, ev.Type)
		}

		count, err := s.ledger.Count(s.ctx, s.envelopeID)
		s.Require().NoError(err)
		s.Equal(int64(4), count, "the issuance event lands after the snapshot")

		events, err := s.ledger.List(s.ctx, s.envelopeID, trail.Filter{
			Types: []trail.EventType{trail.EventCertificateGenerated},
		})
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(cert.FinalHash, events[0].Metadata.CanonicalMap()["final_hash"])
	})

	s.Run("locator validates and binds the final hash", func() {
		claims, err := s.signer.Validate(cert.Locator)
		s.Require().NoError(err)
		s.Equal(s.envelopeID.String(), claims.EnvelopeID)
		s.Equal(cert.FinalHash, claims.FinalHash)
		s.Equal(cert.GeneratedAt.Unix(), claims.GeneratedAt)
		s.Equal("sigil-test", claims.Issuer)
	})

	s.Run("a second certificate certifies the issuance of the first", func() {
		second, err := s.assembler.Generate(s.ctx, s.envelopeID, s.admin())
		s.Require().NoError(err)
		s.Require().Len(second.Events, 4)
		s.Equal(trail.EventCertificateGenerated, second.Events[3].Type)
	})
}

func (s *AssemblerSuite) TestLocatorValidation() {
	generatedAt := time.Date(2026, 8, 10, 16, 5, 0, 0, time.UTC)
	locator, err := s.signer.Sign(s.envelopeID, "abcd", generatedAt)
	s.Require().NoError(err)

	s.Run("wrong key is rejected", func() {
		other := NewLocatorSigner("another-key", "sigil-test")
		_, err := other.Validate(locator)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("garbage token is rejected", func() {
		_, err := s.signer.Validate("not.a.token")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
