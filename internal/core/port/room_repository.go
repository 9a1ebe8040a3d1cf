package port

import (
	"context"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
)

// RoomRepository persists rooms and their memberships.
type RoomRepository interface {
	Create(ctx context.Context, room domain.Room) error
	Get(ctx context.Context, roomID string) (*domain.Room, error)
	Delete(ctx context.Context, roomID string) error
	AddMember(ctx context.Context, roomID, userID string) error
	RemoveMember(ctx context.Context, roomID, userID string) error
	ListMembers(ctx context.Context, roomID string) ([]string, error)
	ListForUser(ctx context.Context, userID string) ([]string, error)
}
