package accounts

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
)

// TokenIssuer mints HS256 session tokens the session validator middleware accepts.
type TokenIssuer struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	nowFn      func() time.Time
}

// NewTokenIssuer validates the signing settings.
func NewTokenIssuer(signingKey []byte, issuer string, ttl time.Duration, now func() time.Time) (*TokenIssuer, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("%w: signing key is required", ErrInvalidServiceConfig)
	}
	if strings.TrimSpace(issuer) == "" {
		return nil, fmt.Errorf("%w: issuer is required", ErrInvalidServiceConfig)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: session ttl must be positive", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	return &TokenIssuer{signingKey: signingKey, issuer: issuer, ttl: ttl, nowFn: now}, nil
}

// Issue signs a session for the user.
func (issuer *TokenIssuer) Issue(user UserRecord) (Session, error) {
	issuedAt := issuer.nowFn().UTC()
	expiresAt := issuedAt.Add(issuer.ttl)
	claims := &sessionvalidator.Claims{
		UserID:          user.ID.String(),
		UserEmail:       user.Email,
		UserDisplayName: strings.TrimSpace(user.FirstName + " " + user.LastName),
		UserRoles:       []string{user.Role.String()},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer.issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(issuer.signingKey)
	if err != nil {
		return Session{}, fmt.Errorf("sign session: %w", err)
	}
	return Session{Token: signed, ExpiresAt: expiresAt}, nil
}

// TTL returns the session lifetime.
func (issuer *TokenIssuer) TTL() time.Duration {
	return issuer.ttl
}
