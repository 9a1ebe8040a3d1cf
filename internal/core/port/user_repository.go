package port

import (
	"context"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
)

// UserRepository abstracts the durable user store.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Exists(ctx context.Context, username string) (bool, error)
	TouchLastLogin(ctx context.Context, userID string) error
}
