package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
	"github.com/caspian-yx/socket-chat-app/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishUserRegistered logs chat.user.registered events.
func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	payload := map[string]any{
		"user_id":       event.UserID,
		"username":      event.Username,
		"registered_at": event.RegisteredAt,
	}
	p.logEvent("chat.user.registered", event.UserID, event.RegisteredAt, payload)
	return nil
}

// PublishSessionAttached logs chat.session.attached events.
func (p *StubPublisher) PublishSessionAttached(_ context.Context, event domain.SessionAttachedEvent) error {
	payload := map[string]any{
		"user_id":       event.UserID,
		"peer_addr":     event.PeerAddr,
		"attached_at":   event.AttachedAt,
		"first_session": event.FirstSession,
	}
	p.logEvent("chat.session.attached", event.UserID, event.AttachedAt, payload)
	return nil
}

// PublishSessionDetached logs chat.session.detached events.
func (p *StubPublisher) PublishSessionDetached(_ context.Context, event domain.SessionDetachedEvent) error {
	payload := map[string]any{
		"user_id":      event.UserID,
		"peer_addr":    event.PeerAddr,
		"detached_at":  event.DetachedAt,
		"last_session": event.LastSession,
		"reason":       event.Reason,
	}
	p.logEvent("chat.session.detached", event.UserID, event.DetachedAt, payload)
	return nil
}

// PublishMessageQueued logs chat.message.queued events.
func (p *StubPublisher) PublishMessageQueued(_ context.Context, event domain.MessageQueuedEvent) error {
	payload := map[string]any{
		"recipient_id": event.RecipientID,
		"seq":          event.Seq,
		"queued_at":    event.QueuedAt,
	}
	p.logEvent("chat.message.queued", event.RecipientID, event.QueuedAt, payload)
	return nil
}

// PublishMessageDelivered logs chat.message.delivered events.
func (p *StubPublisher) PublishMessageDelivered(_ context.Context, event domain.MessageDeliveredEvent) error {
	payload := map[string]any{
		"recipient_id": event.RecipientID,
		"mode":         event.Mode,
		"delivered_at": event.DeliveredAt,
	}
	p.logEvent("chat.message.delivered", event.RecipientID, event.DeliveredAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
