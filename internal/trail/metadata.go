package trail

import (
	"strconv"

	dErrors "sigil/pkg/domain-errors"
)

// MetadataKind names a metadata family. Each event type permits exactly one
// kind, so the "closed set of permitted keys per type" invariant holds at the
// type level rather than through runtime key checks.
type MetadataKind string

const (
	KindNone        MetadataKind = "none"
	KindAccess      MetadataKind = "access"
	KindView        MetadataKind = "view"
	KindSignature   MetadataKind = "signature"
	KindConsent     MetadataKind = "consent"
	KindDecline     MetadataKind = "decline"
	KindSettings    MetadataKind = "settings"
	KindHold        MetadataKind = "hold"
	KindRetention   MetadataKind = "retention"
	KindCertificate MetadataKind = "certificate"
)

// Metadata is the event-type-specific payload attached to an audit event.
// Implementations carry only their legal fields and never raw secrets or
// signature images - content stored elsewhere is referenced by digest.
type Metadata interface {
	// Kind identifies the metadata family for permission checks and storage.
	Kind() MetadataKind

	// CanonicalMap returns the flattened key/value view that is hashed into
	// the chain and serialized for storage and export. Empty fields are
	// omitted; implementations must be pure so recomputation is stable.
	CanonicalMap() map[string]string
}

// metadataKinds maps each event type to its single permitted metadata kind.
var metadataKinds = map[EventType]MetadataKind{
	EventCreated:                KindNone,
	EventSent:                   KindNone,
	EventCompleted:              KindNone,
	EventExpired:                KindNone,
	EventDelivered:              KindAccess,
	EventAccessGranted:          KindAccess,
	EventAccessDenied:           KindAccess,
	EventViewed:                 KindView,
	EventSignatureCompleted:     KindSignature,
	EventConsentRecorded:        KindConsent,
	EventDisclosureAcknowledged: KindConsent,
	EventDeclined:               KindDecline,
	EventVoided:                 KindDecline,
	EventSettingsChanged:        KindSettings,
	EventRetentionPolicyUpdated: KindSettings,
	EventLegalHoldApplied:       KindHold,
	EventLegalHoldReleased:      KindHold,
	EventDeletionDenied:         KindRetention,
	EventDeletionAuthorized:     KindRetention,
	EventCertificateGenerated:   KindCertificate,
}

// KindFor returns the single metadata kind permitted for the event type.
func KindFor(eventType EventType) (MetadataKind, bool) {
	kind, ok := metadataKinds[eventType]
	return kind, ok
}

func validateMetadata(eventType EventType, metadata Metadata) error {
	want, ok := metadataKinds[eventType]
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "no metadata mapping for event type: "+string(eventType))
	}
	if metadata == nil {
		if want == KindNone {
			return nil
		}
		return dErrors.New(dErrors.CodeValidation,
			"event type "+string(eventType)+" requires "+string(want)+" metadata")
	}
	if metadata.Kind() != want {
		return dErrors.New(dErrors.CodeValidation,
			"metadata kind "+string(metadata.Kind())+" not permitted for event type "+string(eventType))
	}
	return nil
}

// NoMetadata is the payload for events that carry no attributes.
type NoMetadata struct{}

func (NoMetadata) Kind() MetadataKind              { return KindNone }
func (NoMetadata) CanonicalMap() map[string]string { return map[string]string{} }

// AccessMetadata captures the pre-resolved request context supplied by the
// collaborator layer. Geolocation and browser summary arrive already
// resolved; nothing here triggers a lookup.
type AccessMetadata struct {
	IP          string
	Geolocation string
	UserAgent   string
	AuthMethod  string
}

func (AccessMetadata) Kind() MetadataKind { return KindAccess }

func (m AccessMetadata) CanonicalMap() map[string]string {
	out := map[string]string{}
	putNonEmpty(out, "ip", m.IP)
	putNonEmpty(out, "geolocation", m.Geolocation)
	putNonEmpty(out, "user_agent", m.UserAgent)
	putNonEmpty(out, "auth_method", m.AuthMethod)
	return out
}

// ViewMetadata records a document view: which pages and for how long.
type ViewMetadata struct {
	Access      AccessMetadata
	PagesViewed string
	DurationMS  int64
}

func (ViewMetadata) Kind() MetadataKind { return KindView }

func (m ViewMetadata) CanonicalMap() map[string]string {
	out := m.Access.CanonicalMap()
	putNonEmpty(out, "pages_viewed", m.PagesViewed)
	if m.DurationMS > 0 {
		out["duration_ms"] = strconv.FormatInt(m.DurationMS, 10)
	}
	return out
}

// SignatureMetadata references a completed signature by field and digest.
// The signature image itself lives in document storage; only its hash is
// chained here.
type SignatureMetadata struct {
	Access        AccessMetadata
	FieldID       string
	SignatureHash string
}

func (SignatureMetadata) Kind() MetadataKind { return KindSignature }

func (m SignatureMetadata) CanonicalMap() map[string]string {
	out := m.Access.CanonicalMap()
	putNonEmpty(out, "field_id", m.FieldID)
	putNonEmpty(out, "signature_hash", m.SignatureHash)
	return out
}

// ConsentMetadata records consent or disclosure acknowledgement. The consent
// text is referenced by digest so later wording changes are detectable.
type ConsentMetadata struct {
	Access            AccessMetadata
	ConsentTextHash   string
	DisclosureVersion string
}

func (ConsentMetadata) Kind() MetadataKind { return KindConsent }

func (m ConsentMetadata) CanonicalMap() map[string]string {
	out := m.Access.CanonicalMap()
	putNonEmpty(out, "consent_text_hash", m.ConsentTextHash)
	putNonEmpty(out, "disclosure_version", m.DisclosureVersion)
	return out
}

// DeclineMetadata records why an envelope was declined or voided.
type DeclineMetadata struct {
	Access AccessMetadata
	Reason string
}

func (DeclineMetadata) Kind() MetadataKind { return KindDecline }

func (m DeclineMetadata) CanonicalMap() map[string]string {
	out := m.Access.CanonicalMap()
	putNonEmpty(out, "reason", m.Reason)
	return out
}

// SettingsMetadata records an administrative change as old/new values.
// Corrections to past events are expressed this way, never by mutation.
type SettingsMetadata struct {
	Setting  string
	OldValue string
	NewValue string
}

func (SettingsMetadata) Kind() MetadataKind { return KindSettings }

func (m SettingsMetadata) CanonicalMap() map[string]string {
	out := map[string]string{}
	putNonEmpty(out, "setting", m.Setting)
	putNonEmpty(out, "old_value", m.OldValue)
	putNonEmpty(out, "new_value", m.NewValue)
	return out
}

// HoldMetadata records legal hold application and release.
type HoldMetadata struct {
	HoldID string
	Reason string
}

func (HoldMetadata) Kind() MetadataKind { return KindHold }

func (m HoldMetadata) CanonicalMap() map[string]string {
	out := map[string]string{}
	putNonEmpty(out, "hold_id", m.HoldID)
	putNonEmpty(out, "reason", m.Reason)
	return out
}

// RetentionMetadata records deletion attempts: both denials (with reason)
// and granted authorizations (with the token ID).
type RetentionMetadata struct {
	Reason          string
	AuthorizationID string
}

func (RetentionMetadata) Kind() MetadataKind { return KindRetention }

func (m RetentionMetadata) CanonicalMap() map[string]string {
	out := map[string]string{}
	putNonEmpty(out, "reason", m.Reason)
	putNonEmpty(out, "authorization_id", m.AuthorizationID)
	return out
}

// CertificateMetadata records certificate issuance. The locator digest lets
// an issued certificate be tied to this event without the event having to
// describe its own creation.
type CertificateMetadata struct {
	FinalHash     string
	LocatorDigest string
}

func (CertificateMetadata) Kind() MetadataKind { return KindCertificate }

func (m CertificateMetadata) CanonicalMap() map[string]string {
	out := map[string]string{}
	putNonEmpty(out, "final_hash", m.FinalHash)
	putNonEmpty(out, "locator_digest", m.LocatorDigest)
	return out
}

// MetadataFromStored rebuilds the typed metadata variant from its stored
// kind and flattened key/value form. Stores persist CanonicalMap output, so
// this is the inverse used on reads.
func MetadataFromStored(kind MetadataKind, fields map[string]string) (Metadata, error) {
	get := func(k string) string { return fields[k] }
	access := AccessMetadata{
		IP:          get("ip"),
		Geolocation: get("geolocation"),
		UserAgent:   get("user_agent"),
		AuthMethod:  get("auth_method"),
	}

	switch kind {
	case KindNone, "":
		return NoMetadata{}, nil
	case KindAccess:
		return access, nil
	case KindView:
		duration := int64(0)
		if raw := get("duration_ms"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, dErrors.New(dErrors.CodeValidation, "stored duration_ms is not an integer")
			}
			duration = parsed
		}
		return ViewMetadata{Access: access, PagesViewed: get("pages_viewed"), DurationMS: duration}, nil
	case KindSignature:
		return SignatureMetadata{Access: access, FieldID: get("field_id"), SignatureHash: get("signature_hash")}, nil
	case KindConsent:
		return ConsentMetadata{Access: access, ConsentTextHash: get("consent_text_hash"), DisclosureVersion: get("disclosure_version")}, nil
	case KindDecline:
		return DeclineMetadata{Access: access, Reason: get("reason")}, nil
	case KindSettings:
		return SettingsMetadata{Setting: get("setting"), OldValue: get("old_value"), NewValue: get("new_value")}, nil
	case KindHold:
		return HoldMetadata{HoldID: get("hold_id"), Reason: get("reason")}, nil
	case KindRetention:
		return RetentionMetadata{Reason: get("reason"), AuthorizationID: get("authorization_id")}, nil
	case KindCertificate:
		return CertificateMetadata{FinalHash: get("final_hash"), LocatorDigest: get("locator_digest")}, nil
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "unrecognized metadata kind: "+string(kind))
	}
}

func putNonEmpty(m map[string]string, key, value string) {
	if value != "" {
		m[key] = value
	}
}
