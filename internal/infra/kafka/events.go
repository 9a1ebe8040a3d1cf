package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
	"github.com/caspian-yx/socket-chat-app/internal/core/port"
	"github.com/caspian-yx/socket-chat-app/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	envelope := eventEnvelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata: envelopeMetadata{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserRegistered publishes chat.user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID       string    `json:"user_id"`
		Username     string    `json:"username"`
		RegisteredAt time.Time `json:"registered_at"`
	}{
		UserID:       event.UserID,
		Username:     event.Username,
		RegisteredAt: event.RegisteredAt.UTC(),
	}

	return p.publish(ctx, "chat.user.registered", event.UserID, event.RegisteredAt, payload)
}

// PublishSessionAttached publishes chat.session.attached events.
func (p *EventPublisher) PublishSessionAttached(ctx context.Context, event domain.SessionAttachedEvent) error {
	payload := struct {
		UserID       string    `json:"user_id"`
		PeerAddr     string    `json:"peer_addr"`
		AttachedAt   time.Time `json:"attached_at"`
		FirstSession bool      `json:"first_session"`
	}{
		UserID:       event.UserID,
		PeerAddr:     event.PeerAddr,
		AttachedAt:   event.AttachedAt.UTC(),
		FirstSession: event.FirstSession,
	}

	return p.publish(ctx, "chat.session.attached", event.UserID, event.AttachedAt, payload)
}

// PublishSessionDetached publishes chat.session.detached events.
func (p *EventPublisher) PublishSessionDetached(ctx context.Context, event domain.SessionDetachedEvent) error {
	payload := struct {
		UserID      string    `json:"user_id"`
		PeerAddr    string    `json:"peer_addr"`
		DetachedAt  time.Time `json:"detached_at"`
		LastSession bool      `json:"last_session"`
		Reason      string    `json:"reason,omitempty"`
	}{
		UserID:      event.UserID,
		PeerAddr:    event.PeerAddr,
		DetachedAt:  event.DetachedAt.UTC(),
		LastSession: event.LastSession,
		Reason:      event.Reason,
	}

	return p.publish(ctx, "chat.session.detached", event.UserID, event.DetachedAt, payload)
}

// PublishMessageQueued publishes chat.message.queued events.
func (p *EventPublisher) PublishMessageQueued(ctx context.Context, event domain.MessageQueuedEvent) error {
	payload := struct {
		RecipientID string    `json:"recipient_id"`
		Seq         int64     `json:"seq"`
		QueuedAt    time.Time `json:"queued_at"`
	}{
		RecipientID: event.RecipientID,
		Seq:         event.Seq,
		QueuedAt:    event.QueuedAt.UTC(),
	}

	return p.publish(ctx, "chat.message.queued", event.RecipientID, event.QueuedAt, payload)
}

// PublishMessageDelivered publishes chat.message.delivered events.
func (p *EventPublisher) PublishMessageDelivered(ctx context.Context, event domain.MessageDeliveredEvent) error {
	payload := struct {
		RecipientID string    `json:"recipient_id"`
		Mode        string    `json:"mode"`
		DeliveredAt time.Time `json:"delivered_at"`
	}{
		RecipientID: event.RecipientID,
		Mode:        event.Mode,
		DeliveredAt: event.DeliveredAt.UTC(),
	}

	return p.publish(ctx, "chat.message.delivered", event.RecipientID, event.DeliveredAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
