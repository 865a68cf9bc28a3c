// Package auth issues and verifies the signed session tokens the flow
// editor uses, and enforces them on HTTP routes. Tokens are HMAC-signed
// JWTs carrying the account's plan tier so quota checks never need a
// second lookup.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zapfunnel/flow-service/pkg/types"
)

var (
	// ErrInvalidToken covers malformed, mis-signed, and expired tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the session claims embedded in every token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string         `json:"uid"`
	Email  string         `json:"email,omitempty"`
	Plan   types.PlanTier `json:"plan"`
	// TrialEndsAt is set for trial accounts only.
	TrialEndsAt *time.Time `json:"trialEndsAt,omitempty"`
}

// PlanTier returns the claimed plan, defaulting unknown values to trial
// so a forged or stale tier never widens limits.
func (c *Claims) PlanTier() types.PlanTier {
	if c.Plan.Valid() {
		return c.Plan
	}
	return types.PlanTrial
}

// Manager signs and verifies session tokens with a shared HMAC secret.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewManager creates a token manager. ttl bounds session lifetime.
func NewManager(secret []byte, issuer string, ttl time.Duration) (*Manager, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: secret, issuer: issuer, ttl: ttl}, nil
}

// Issue signs a session token for an account.
func (m *Manager) Issue(userID, email string, plan types.PlanTier, trialEndsAt *time.Time) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		UserID:      userID,
		Email:       email,
		Plan:        plan,
		TrialEndsAt: trialEndsAt,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and checks a session token.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if m.issuer != "" && claims.Issuer != m.issuer {
		return nil, fmt.Errorf("%w: wrong issuer", ErrInvalidToken)
	}
	return claims, nil
}
