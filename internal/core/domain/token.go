package domain

import "time"

// TokenClaims is the validated content of a session token. A token maps to
// exactly one user for its whole validity window; once its JTI is denylisted
// the token never validates again.
type TokenClaims struct {
	JTI       string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the token elapsed its validity window.
func (c TokenClaims) IsExpired(at time.Time) bool {
	return !c.ExpiresAt.After(at)
}

// RemainingTTL returns how long the token stays valid from the supplied
// moment. Used to bound denylist entries: a revoked JTI only needs to be
// remembered until the token would have expired anyway.
func (c TokenClaims) RemainingTTL(at time.Time) time.Duration {
	if c.IsExpired(at) {
		return 0
	}
	return c.ExpiresAt.Sub(at)
}
