package hashchain

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sigil/internal/trail"
	id "sigil/pkg/domain"
)

type HashChainSuite struct {
	suite.Suite

	event trail.Event
}

func TestHashChainSuite(t *testing.T) {
	suite.Run(t, new(HashChainSuite))
}

func (s *HashChainSuite) SetupTest() {
	envelopeID, err := id.ParseEnvelopeID("6f1a2b3c-4d5e-4f60-8172-839405a6b7c8")
	s.Require().NoError(err)
	eventID, err := id.ParseEventID("0e1d2c3b-4a59-4687-9594-a3b2c1d0e0f1")
	s.Require().NoError(err)

	s.event = trail.Event{
		ID:         eventID,
		EnvelopeID: envelopeID,
		Sequence:   0,
		Type:       trail.EventCreated,
		Actor:      trail.Actor{ID: "user-7", Role: trail.RoleSender},
		Timestamp:  time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC),
	}
}

func (s *HashChainSuite) TestGenesisIsEmptyStringDigest() {
	sum := sha256.Sum256(nil)
	s.Equal(hex.EncodeToString(sum[:]), Genesis)
}

func (s *HashChainSuite) TestComputeIsDeterministic() {
	first, err := Compute(VersionV1, s.event, Genesis)
	s.Require().NoError(err)
	second, err := Compute(VersionV1, s.event, Genesis)
	s.Require().NoError(err)

	s.Equal(first, second)
	s.Len(first, 64)
}

func (s *HashChainSuite) TestComputeCoversPreviousHash() {
	withGenesis, err := Compute(VersionV1, s.event, Genesis)
	s.Require().NoError(err)
	withOther, err := Compute(VersionV1, s.event, DigestString("other"))
	s.Require().NoError(err)

	s.NotEqual(withGenesis, withOther)
}

func (s *HashChainSuite) TestComputeCoversEveryField() {
	base, err := Compute(VersionV1, s.event, Genesis)
	s.Require().NoError(err)

	cases := []struct {
		name   string
		mutate func(ev *trail.Event)
	}{
		{"event id", func(ev *trail.Event) { ev.ID = id.NewEventID() }},
		{"envelope id", func(ev *trail.Event) { ev.EnvelopeID = id.NewEnvelopeID() }},
		{"sequence", func(ev *trail.Event) { ev.Sequence = 1 }},
		{"type", func(ev *trail.Event) { ev.Type = trail.EventSent }},
		{"actor id", func(ev *trail.Event) { ev.Actor.ID = "user-8" }},
		{"actor role", func(ev *trail.Event) { ev.Actor.Role = trail.RoleAdmin }},
		{"timestamp", func(ev *trail.Event) { ev.Timestamp = ev.Timestamp.Add(time.Nanosecond) }},
		{"metadata", func(ev *trail.Event) {
			ev.Type = trail.EventViewed
			ev.Metadata = trail.ViewMetadata{PagesViewed: "1"}
		}},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			ev := s.event
			tc.mutate(&ev)
			mutated, err := Compute(VersionV1, ev, Genesis)
			s.Require().NoError(err)
			s.NotEqual(base, mutated, "changing %s must change the hash", tc.name)
		})
	}
}

func (s *HashChainSuite) TestComputeNormalizesTimezone() {
	lisbon := time.FixedZone("WET+1", 3600)

	utc, err := Compute(VersionV1, s.event, Genesis)
	s.Require().NoError(err)

	shifted := s.event
	shifted.Timestamp = s.event.Timestamp.In(lisbon)
	local, err := Compute(VersionV1, shifted, Genesis)
	s.Require().NoError(err)

	s.Equal(utc, local)
}

func (s *HashChainSuite) TestComputeIgnoresStoredHashFields() {
	base, err := Compute(VersionV1, s.event, Genesis)
	s.Require().NoError(err)

	ev := s.event
	ev.Hash = "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
	ev.PreviousHash = "0000000000000000000000000000000000000000000000000000000000000000"
	again, err := Compute(VersionV1, ev, Genesis)
	s.Require().NoError(err)

	s.Equal(base, again)
}

func (s *HashChainSuite) TestUnknownVersionIsAnError() {
	_, err := Compute("v99", s.event, Genesis)
	s.Require().Error(err)
	s.Contains(err.Error(), "v99")
}

func (s *HashChainSuite) TestVerifyEvent() {
	s.Run("intact event verifies", func() {
		ev := s.event
		ev.PreviousHash = Genesis
		ev.HashVersion = VersionV1

		hash, err := Compute(VersionV1, ev, ev.PreviousHash)
		s.Require().NoError(err)
		ev.Hash = hash

		s.True(VerifyEvent(ev))
	})

	s.Run("altered field fails", func() {
		ev := s.event
		ev.PreviousHash = Genesis
		ev.HashVersion = VersionV1

		hash, err := Compute(VersionV1, ev, ev.PreviousHash)
		s.Require().NoError(err)
		ev.Hash = hash

		ev.Actor.ID = "someone-else"
		s.False(VerifyEvent(ev))
	})

	s.Run("unknown version fails instead of panicking", func() {
		ev := s.event
		ev.PreviousHash = Genesis
		ev.HashVersion = "v0"
		ev.Hash = DigestString("whatever")

		s.False(VerifyEvent(ev))
	})
}

func (s *HashChainSuite) TestDigestString() {
	s.Equal(Genesis, DigestString(""))
	s.NotEqual(DigestString("a"), DigestString("b"))
	s.Len(DigestString("locator"), 64)
}
