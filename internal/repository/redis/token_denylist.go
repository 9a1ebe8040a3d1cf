package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/caspian-yx/socket-chat-app/internal/core/port"
)

// TokenDenylist implements port.TokenDenylist on per-JTI Redis keys. Each
// entry lives only as long as the revoked token would have remained valid.
type TokenDenylist struct {
	client *red.Client
	prefix string
}

// NewTokenDenylist wires a Redis-backed token denylist.
func NewTokenDenylist(client *red.Client, prefix string) *TokenDenylist {
	if prefix == "" {
		prefix = "chat:denylist"
	}
	return &TokenDenylist{client: client, prefix: prefix}
}

func (d *TokenDenylist) key(jti string) string {
	return fmt.Sprintf("%s:%s", d.prefix, jti)
}

// Revoke records the JTI until ttl elapses. A non-positive ttl still writes
// a short-lived entry so an in-flight validation cannot race past it.
func (d *TokenDenylist) Revoke(ctx context.Context, jti, reason string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := d.client.Set(ctx, d.key(jti), reason, ttl).Err(); err != nil {
		return fmt.Errorf("redis denylist set: %w", err)
	}
	return nil
}

// IsRevoked reports whether the JTI has been revoked.
func (d *TokenDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := d.client.Get(ctx, d.key(jti)).Err()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis denylist get: %w", err)
	}
	return true, nil
}

var _ port.TokenDenylist = (*TokenDenylist)(nil)
