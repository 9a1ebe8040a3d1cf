package port

import (
	"context"
	"time"
)

// TokenDenylist remembers revoked token identifiers until their natural
// expiry. A denylisted JTI never validates again.
type TokenDenylist interface {
	Revoke(ctx context.Context, jti, reason string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
