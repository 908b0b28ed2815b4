// Package token signs and validates the bearer tokens the admin console
// presents to the presence API. Tokens are HS256 with a shared key; the
// simulator and the local tooling derive the key from configuration.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"slices"
	"time"

	dErrors "vigil/pkg/domain-errors"

	"github.com/golang-jwt/jwt/v5"
)

// Scopes carried by admin console tokens.
const (
	// ScopePresenceRead grants read access to online users, stats and sessions.
	ScopePresenceRead = "presence:read"
	// ScopePresenceAdmin additionally grants forced logout and cleanup.
	ScopePresenceAdmin = "presence:admin"
)

// Claims represents the JWT claims for admin console tokens.
type Claims struct {
	AdminID string   `json:"admin_id"`
	Scope   []string `json:"scope"`
	jwt.RegisteredClaims
}

// HasScope reports whether the token carries the given scope.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scope, scope)
}

// Service handles token creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	tokenTTL   time.Duration
}

func NewService(signingKey string, issuer string, tokenTTL time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		tokenTTL:   tokenTTL,
	}
}

func (s *Service) Generate(adminID string, scopes []string) (string, error) {
	if adminID == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "admin id is required")
	}
	if len(scopes) == 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "scopes cannot be empty")
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	now := time.Now()

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		AdminID: adminID,
		Scope:   scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        hex.EncodeToString(b),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

// Validate parses and verifies a token string. Expired, malformed and
// wrongly signed tokens all come back as CodeUnauthorized so transport
// layers can map them straight to a 401.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "empty token")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token issuer")
	}

	return claims, nil
}

// FromAuthHeader extracts the bearer token from an Authorization header value.
func FromAuthHeader(authHeader string) (string, error) {
	const bearerPrefix = "Bearer "
	if len(authHeader) <= len(bearerPrefix) || authHeader[:len(bearerPrefix)] != bearerPrefix {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid authorization header")
	}
	return authHeader[len(bearerPrefix):], nil
}
