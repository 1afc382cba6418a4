// Package auth exchanges the operator API key for HMAC-signed JWTs and
// validates bearer tokens on API requests.
//
// The service carries a single operator key: clients POST it to
// /auth/token and use the returned JWT for everything else. The secret
// can be configured for multi-instance deployments; without one an
// ephemeral secret is generated and tokens do not survive a restart.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims extends jwt.RegisteredClaims with the client name the token
// was issued to.
type Claims struct {
	jwt.RegisteredClaims
	ClientName string `json:"client_name,omitempty"`
}

// Manager issues and validates HS256 JWTs against the operator key.
type Manager struct {
	apiKey     []byte
	secret     []byte
	expiration time.Duration
}

// NewManager creates a Manager. apiKey is required; an empty secret
// generates an ephemeral one.
func NewManager(apiKey, secret string, expiration time.Duration) (*Manager, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("auth: operator API key is required")
	}
	sec := []byte(secret)
	if len(sec) == 0 {
		slog.Warn("auth: no JWT secret configured, generating ephemeral secret (tokens will not survive a restart)")
		sec = make([]byte, 32)
		if _, err := rand.Read(sec); err != nil {
			return nil, fmt.Errorf("auth: generate secret: %w", err)
		}
	}
	return &Manager{apiKey: []byte(apiKey), secret: sec, expiration: expiration}, nil
}

// Exchange validates the presented API key in constant time and issues
// a signed token.
func (m *Manager) Exchange(presentedKey, clientName string) (string, time.Time, error) {
	if subtle.ConstantTimeCompare([]byte(presentedKey), m.apiKey) != 1 {
		return "", time.Time{}, fmt.Errorf("auth: invalid API key")
	}
	return m.issue(clientName)
}

func (m *Manager) issue(clientName string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(m.expiration)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientName,
			Issuer:    "tenran",
			Audience:  jwt.ClaimStrings{"tenran"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.New().String(),
		},
		ClientName: clientName,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// Validate parses and verifies a bearer token, returning its claims.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(t *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer("tenran"),
		jwt.WithAudience("tenran"),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("auth: parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token")
	}
	return claims, nil
}
