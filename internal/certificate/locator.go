package certificate

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
)

// LocatorClaims binds a certificate to its envelope and chain head. Anyone
// holding the locator can present it for re-verification without access to
// the certificate document itself.
type LocatorClaims struct {
	EnvelopeID  string `json:"envelope_id"`
	FinalHash   string `json:"final_hash"`
	GeneratedAt int64  `json:"generated_at"`
	jwt.RegisteredClaims
}

// LocatorSigner issues and validates signed certificate locators.
type LocatorSigner struct {
	signingKey []byte
	issuer     string
}

func NewLocatorSigner(signingKey string, issuer string) *LocatorSigner {
	return &LocatorSigner{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// Sign produces the locator token for a certificate.
func (s *LocatorSigner) Sign(envelopeID id.EnvelopeID, finalHash string, generatedAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, LocatorClaims{
		EnvelopeID:  envelopeID.String(),
		FinalHash:   finalHash,
		GeneratedAt: generatedAt.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(generatedAt),
			Issuer:   s.issuer,
			ID:       uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// Validate parses and verifies a locator token.
func (s *LocatorSigner) Validate(tokenString string) (*LocatorClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &LocatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "locator has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid locator")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid locator")
	}

	claims, ok := parsed.Claims.(*LocatorClaims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid locator claims")
	}
	return claims, nil
}
