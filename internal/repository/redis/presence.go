package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
	"github.com/caspian-yx/socket-chat-app/internal/core/port"
	"github.com/caspian-yx/socket-chat-app/internal/repository"
)

// PresenceStore implements port.PresenceStore on per-user Redis keys.
type PresenceStore struct {
	client *red.Client
	prefix string
}

// NewPresenceStore wires a Redis-backed presence store.
func NewPresenceStore(client *red.Client, prefix string) *PresenceStore {
	if prefix == "" {
		prefix = "chat:presence"
	}
	return &PresenceStore{client: client, prefix: prefix}
}

func (s *PresenceStore) key(userID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, userID)
}

type presenceRecord struct {
	State    string `json:"state"`
	LastSeen int64  `json:"last_seen"`
}

// Set writes the user's availability with a TTL so crashed servers do not
// leave stale online markers behind.
func (s *PresenceStore) Set(ctx context.Context, presence domain.Presence, ttl time.Duration) error {
	data, err := json.Marshal(presenceRecord{
		State:    string(presence.State),
		LastSeen: presence.LastSeen.Unix(),
	})
	if err != nil {
		return fmt.Errorf("encode presence: %w", err)
	}
	if err := s.client.Set(ctx, s.key(presence.UserID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis presence set: %w", err)
	}
	return nil
}

// Get returns the user's last known availability.
func (s *PresenceStore) Get(ctx context.Context, userID string) (*domain.Presence, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis presence get: %w", err)
	}

	var rec presenceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode presence: %w", err)
	}
	return &domain.Presence{
		UserID:   userID,
		State:    domain.PresenceState(rec.State),
		LastSeen: time.Unix(rec.LastSeen, 0),
	}, nil
}

var _ port.PresenceStore = (*PresenceStore)(nil)
