package trail

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type MetadataSuite struct {
	suite.Suite
}

func TestMetadataSuite(t *testing.T) {
	suite.Run(t, new(MetadataSuite))
}

func (s *MetadataSuite) TestEveryEventTypeHasAKind() {
	for t := range knownEventTypes {
		_, ok := KindFor(t)
		s.True(ok, "event type %s has no metadata kind", t)
	}
}

func (s *MetadataSuite) TestCanonicalMapOmitsEmptyFields() {
	m := AccessMetadata{IP: "203.0.113.9"}
	out := m.CanonicalMap()
	s.Equal("203.0.113.9", out["ip"])
	s.NotContains(out, "geolocation")
	s.NotContains(out, "user_agent")
	s.NotContains(out, "auth_method")
}

func (s *MetadataSuite) TestViewMetadataDuration() {
	m := ViewMetadata{
		Access:      AccessMetadata{IP: "203.0.113.9"},
		PagesViewed: "1-4",
		DurationMS:  2500,
	}
	out := m.CanonicalMap()
	s.Equal("2500", out["duration_ms"])
	s.Equal("1-4", out["pages_viewed"])

	s.Run("zero duration is omitted", func() {
		out := ViewMetadata{PagesViewed: "1"}.CanonicalMap()
		s.NotContains(out, "duration_ms")
	})
}

func (s *MetadataSuite) TestRoundTripThroughStoredForm() {
	cases := []struct {
		name     string
		metadata Metadata
	}{
		{"none", NoMetadata{}},
		{"access", AccessMetadata{IP: "198.51.100.4", Geolocation: "Lisbon, PT", UserAgent: "Firefox 143; Linux", AuthMethod: "email_link"}},
		{"view", ViewMetadata{Access: AccessMetadata{IP: "198.51.100.4"}, PagesViewed: "1-12", DurationMS: 90000}},
		{"signature", SignatureMetadata{Access: AccessMetadata{IP: "198.51.100.4"}, FieldID: "sig-1", SignatureHash: "ab12"}},
		{"consent", ConsentMetadata{Access: AccessMetadata{IP: "198.51.100.4"}, ConsentTextHash: "cd34", DisclosureVersion: "2026-01"}},
		{"decline", DeclineMetadata{Access: AccessMetadata{IP: "198.51.100.4"}, Reason: "wrong signer"}},
		{"settings", SettingsMetadata{Setting: "expiry_days", OldValue: "30", NewValue: "60"}},
		{"hold", HoldMetadata{HoldID: "h-1", Reason: "litigation"}},
		{"retention", RetentionMetadata{Reason: "legal_hold"}},
		{"certificate", CertificateMetadata{FinalHash: "ef56", LocatorDigest: "0012"}},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			rebuilt, err := MetadataFromStored(tc.metadata.Kind(), tc.metadata.CanonicalMap())
			s.Require().NoError(err)
			s.Equal(tc.metadata.Kind(), rebuilt.Kind())
			s.Equal(tc.metadata.CanonicalMap(), rebuilt.CanonicalMap())
		})
	}
}

func (s *MetadataSuite) TestFromStoredRejectsBadInput() {
	s.Run("unknown kind", func() {
		_, err := MetadataFromStored("telemetry", nil)
		s.Error(err)
	})

	s.Run("non-integer duration", func() {
		_, err := MetadataFromStored(KindView, map[string]string{"duration_ms": "soon"})
		s.Error(err)
	})

	s.Run("empty kind falls back to none", func() {
		m, err := MetadataFromStored("", nil)
		s.Require().NoError(err)
		s.Equal(KindNone, m.Kind())
	})
}

func TestSummarizeUserAgent(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "desktop chrome",
			raw:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			want: "Chrome 120; Windows",
		},
		{
			name: "empty header",
			raw:  "",
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SummarizeUserAgent(tc.raw); got != tc.want {
				t.Errorf("SummarizeUserAgent(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}
