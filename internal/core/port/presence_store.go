package port

import (
	"context"
	"time"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
)

// PresenceStore persists last-known availability. Entries carry a TTL so a
// crashed server does not leave users marked online forever.
type PresenceStore interface {
	Set(ctx context.Context, presence domain.Presence, ttl time.Duration) error
	Get(ctx context.Context, userID string) (*domain.Presence, error)
}
