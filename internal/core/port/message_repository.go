package port

import (
	"context"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
)

// MessageRepository persists chat messages for history queries.
type MessageRepository interface {
	Insert(ctx context.Context, message domain.Message) error
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
}
