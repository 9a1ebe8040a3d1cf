package port

import (
	"context"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
)

// EventPublisher fans lifecycle events out to the event bus. Publishing is
// fire-and-forget: delivery of chat traffic never waits on the bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishSessionAttached(ctx context.Context, event domain.SessionAttachedEvent) error
	PublishSessionDetached(ctx context.Context, event domain.SessionDetachedEvent) error
	PublishMessageQueued(ctx context.Context, event domain.MessageQueuedEvent) error
	PublishMessageDelivered(ctx context.Context, event domain.MessageDeliveredEvent) error
}
