package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
	"github.com/caspian-yx/socket-chat-app/internal/core/port"
)

// MessageRepository implements port.MessageRepository using PostgreSQL.
type MessageRepository struct {
	db      DB
	builder squirrel.StatementBuilderType
}

// NewMessageRepository wires a PostgreSQL-backed message repository.
func NewMessageRepository(db DB) *MessageRepository {
	return &MessageRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Insert persists one chat message.
func (r *MessageRepository) Insert(ctx context.Context, message domain.Message) error {
	sql, args, err := r.builder.Insert("chat.messages").
		Columns("id", "conversation_id", "sender_id", "content", "created_at").
		Values(message.ID, message.ConversationID, message.SenderID, []byte(message.Content), message.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert message: %w", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListByConversation returns the most recent messages of a conversation in
// chronological order.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	sql, args, err := r.builder.Select("id", "conversation_id", "sender_id", "content", "created_at").
		From("chat.messages").
		Where(squirrel.Eq{"conversation_id": conversationID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list messages: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		var content []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Content = content
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Query returns newest first; history is served oldest first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

var _ port.MessageRepository = (*MessageRepository)(nil)
