package usecase

import (
	"context"
	"errors"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caspian-yx/socket-chat-app/internal/chat"
	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
	"github.com/caspian-yx/socket-chat-app/internal/core/port"
	"github.com/caspian-yx/socket-chat-app/internal/protocol"
	"github.com/caspian-yx/socket-chat-app/internal/repository"
)

const defaultHistoryLimit = 50
const maxHistoryLimit = 200

// MessageService accepts chat messages, persists them, and hands them to
// the delivery pipeline. The ack answers durable acceptance, not delivery:
// 200 means every recipient with a live session got a push, 202 means at
// least one copy went to an offline queue.
type MessageService struct {
	messages port.MessageRepository
	rooms    port.RoomRepository
	delivery *DeliveryService
	logger   *zap.Logger
}

// NewMessageService constructs the message service.
func NewMessageService(messages port.MessageRepository, rooms port.RoomRepository, delivery *DeliveryService, logger *zap.Logger) *MessageService {
	return &MessageService{messages: messages, rooms: rooms, delivery: delivery, logger: logger}
}

// HandleSend persists the message and routes it to its target, a single
// user or every member of a room except the sender.
func (m *MessageService) HandleSend(ctx context.Context, env *domain.Envelope, s *chat.Session) (*domain.Envelope, error) {
	var payload protocol.MessageSendPayload
	if perr := protocol.Decode(env, &payload); perr != nil {
		return nil, perr
	}

	senderID := s.UserID()
	var recipients []string
	switch payload.Target.Type {
	case "user":
		recipients = []string{payload.Target.ID}
	case "room":
		members, perr := m.roomRecipients(ctx, payload.Target.ID, senderID)
		if perr != nil {
			return nil, perr
		}
		recipients = members
	}

	message := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: payload.ConversationID,
		SenderID:       senderID,
		Content:        payload.Content,
		CreatedAt:      time.Now(),
	}
	if err := m.messages.Insert(ctx, message); err != nil {
		return nil, err
	}

	event, err := domain.NewEvent(protocol.CmdMessageEvent, protocol.MessageEventPayload{
		ConversationID: payload.ConversationID,
		SenderID:       senderID,
		Content:        payload.Content,
		MessageID:      message.ID,
	})
	if err != nil {
		return nil, err
	}

	status := domain.StatusSuccess
	for _, recipient := range recipients {
		delivered, err := m.delivery.Deliver(ctx, recipient, event)
		if err != nil {
			return nil, err
		}
		if !delivered {
			status = domain.StatusAccepted
		}
	}

	return domain.NewResponse(env, protocol.AckCommand(env.Command), protocol.MessageAckPayload{
		Status:    int(status),
		MessageID: message.ID,
	})
}

// roomRecipients resolves a room target to its members minus the sender.
// Only members may post.
func (m *MessageService) roomRecipients(ctx context.Context, roomID, senderID string) ([]string, *domain.ProtocolError) {
	if _, err := m.rooms.Get(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewProtocolError(domain.StatusNotFound, 0, "room not found")
		}
		m.logger.Error("load room", zap.String("room", roomID), zap.Error(err))
		return nil, domain.NewProtocolError(domain.StatusInternalError, 0, "internal error")
	}

	members, err := m.rooms.ListMembers(ctx, roomID)
	if err != nil {
		m.logger.Error("list room members", zap.String("room", roomID), zap.Error(err))
		return nil, domain.NewProtocolError(domain.StatusInternalError, 0, "internal error")
	}

	recipients := make([]string, 0, len(members))
	isMember := false
	for _, member := range members {
		if member == senderID {
			isMember = true
			continue
		}
		recipients = append(recipients, member)
	}
	if !isMember {
		return nil, domain.NewProtocolError(domain.StatusForbidden, domain.ErrCodeNotRoomMember,
			"sender is not a member of the room")
	}
	return recipients, nil
}

// HandleHistory returns the most recent messages of a conversation in
// chronological order.
func (m *MessageService) HandleHistory(ctx context.Context, env *domain.Envelope, _ *chat.Session) (*domain.Envelope, error) {
	var payload protocol.MessageHistoryPayload
	if perr := protocol.Decode(env, &payload); perr != nil {
		return nil, perr
	}

	limit := payload.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	messages, err := m.messages.ListByConversation(ctx, payload.ConversationID, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]protocol.HistoryEntry, 0, len(messages))
	for _, msg := range messages {
		entries = append(entries, protocol.HistoryEntry{
			MessageID: msg.ID,
			SenderID:  msg.SenderID,
			Content:   msg.Content,
			Timestamp: msg.CreatedAt.Unix(),
		})
	}

	return domain.NewResponse(env, protocol.AckCommand(env.Command), protocol.MessageHistoryAckPayload{
		Status:   int(domain.StatusSuccess),
		Messages: entries,
	})
}
