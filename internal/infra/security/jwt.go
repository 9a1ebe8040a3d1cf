package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// TokenManager issues and validates HS256-signed session tokens. Every token
// carries a unique jti so individual tokens can be revoked without touching
// the signing key.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenManager(secret, issuer string, ttl time.Duration) (*TokenManager, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("token secret must be at least 32 bytes, got %d", len(secret))
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

func (m *TokenManager) TTL() time.Duration { return m.ttl }

// Issue mints a signed token for the given user and returns it together with
// the claims embedded in it.
func (m *TokenManager) Issue(userID string) (string, domain.TokenClaims, error) {
	now := time.Now()
	claims := domain.TokenClaims{
		JTI:       uuid.NewString(),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        claims.JTI,
		Subject:   claims.UserID,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", domain.TokenClaims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse validates the token signature and expiry and extracts its claims.
func (m *TokenManager) Parse(tokenString string) (domain.TokenClaims, error) {
	var registered jwt.RegisteredClaims

	token, err := jwt.ParseWithClaims(tokenString, &registered, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.TokenClaims{}, ErrTokenExpired
		}
		return domain.TokenClaims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return domain.TokenClaims{}, ErrTokenInvalid
	}
	if registered.ID == "" || registered.Subject == "" {
		return domain.TokenClaims{}, fmt.Errorf("%w: missing jti or subject", ErrTokenInvalid)
	}

	claims := domain.TokenClaims{
		JTI:    registered.ID,
		UserID: registered.Subject,
	}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time
	}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}
	return claims, nil
}
