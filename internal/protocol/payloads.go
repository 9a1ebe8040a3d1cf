package protocol

import (
	"encoding/json"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
)

// Request payload shapes. Each command has a fixed request and response
// shape; Decode maps a malformed payload to a BadRequest protocol error
// before the handler sees it.

// LoginPayload carries credentials for auth/login and auth/register.
type LoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (p *LoginPayload) validate() *domain.ProtocolError {
	if p.Username == "" || p.Password == "" {
		return domain.BadRequest("username and password are required")
	}
	return nil
}

// RefreshPayload carries the token being exchanged.
type RefreshPayload struct {
	Token string `json:"token"`
}

func (p *RefreshPayload) validate() *domain.ProtocolError {
	if p.Token == "" {
		return domain.BadRequest("token is required")
	}
	return nil
}

// AuthAckPayload answers login, register, and refresh.
type AuthAckPayload struct {
	Status       int    `json:"status"`
	Token        string `json:"token"`
	UserID       string `json:"user_id"`
	ExpiresIn    int64  `json:"expires_in"`
	ErrorCode    int    `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Target addresses a message at a user or a room.
type Target struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// MessageSendPayload carries an outgoing chat message.
type MessageSendPayload struct {
	ConversationID string          `json:"conversation_id"`
	Target         Target          `json:"target"`
	Content        json.RawMessage `json:"content"`
}

func (p *MessageSendPayload) validate() *domain.ProtocolError {
	if p.ConversationID == "" {
		return domain.BadRequest("conversation_id is required")
	}
	if p.Target.Type != "user" && p.Target.Type != "room" {
		return domain.BadRequest(`target.type must be "user" or "room"`)
	}
	if p.Target.ID == "" {
		return domain.BadRequest("target.id is required")
	}
	if len(p.Content) == 0 {
		return domain.BadRequest("content is required")
	}
	return nil
}

// MessageAckPayload confirms durable acceptance of a message.
type MessageAckPayload struct {
	Status    int    `json:"status"`
	MessageID string `json:"message_id"`
}

// MessageEventPayload is the delivered form of a chat message.
type MessageEventPayload struct {
	ConversationID string          `json:"conversation_id"`
	SenderID       string          `json:"sender_id"`
	Content        json.RawMessage `json:"content"`
	MessageID      string          `json:"message_id"`
}

// MessageHistoryPayload requests recent messages of a conversation.
type MessageHistoryPayload struct {
	ConversationID string `json:"conversation_id"`
	Limit          int    `json:"limit"`
}

func (p *MessageHistoryPayload) validate() *domain.ProtocolError {
	if p.ConversationID == "" {
		return domain.BadRequest("conversation_id is required")
	}
	return nil
}

// HistoryEntry is one message in a history response.
type HistoryEntry struct {
	MessageID string          `json:"message_id"`
	SenderID  string          `json:"sender_id"`
	Content   json.RawMessage `json:"content"`
	Timestamp int64           `json:"timestamp"`
}

// MessageHistoryAckPayload answers message/history.
type MessageHistoryAckPayload struct {
	Status   int            `json:"status"`
	Messages []HistoryEntry `json:"messages"`
}

// PresenceUpdatePayload sets the caller's availability.
type PresenceUpdatePayload struct {
	State string `json:"state"`
}

func (p *PresenceUpdatePayload) validate() *domain.ProtocolError {
	if !domain.PresenceState(p.State).IsValid() {
		return domain.BadRequest("unknown presence state")
	}
	return nil
}

// PresenceListAckPayload answers presence/list.
type PresenceListAckPayload struct {
	Status int      `json:"status"`
	Users  []string `json:"users"`
}

// PresenceEventPayload announces a user's availability change.
type PresenceEventPayload struct {
	UserID   string `json:"user_id"`
	State    string `json:"state"`
	LastSeen int64  `json:"last_seen"`
}

// RoomPayload addresses a single room.
type RoomPayload struct {
	RoomID string `json:"room_id"`
}

func (p *RoomPayload) validate() *domain.ProtocolError {
	if p.RoomID == "" {
		return domain.BadRequest("room_id is required")
	}
	return nil
}

// RoomCreatePayload carries room creation parameters.
type RoomCreatePayload struct {
	RoomID string  `json:"room_id"`
	Topic  *string `json:"topic,omitempty"`
}

func (p *RoomCreatePayload) validate() *domain.ProtocolError {
	if p.RoomID == "" {
		return domain.BadRequest("room_id is required")
	}
	return nil
}

// RoomListAckPayload answers room/list with the caller's rooms.
type RoomListAckPayload struct {
	Status int      `json:"status"`
	Rooms  []string `json:"rooms"`
}

// RoomMembersAckPayload answers room/members.
type RoomMembersAckPayload struct {
	Status  int      `json:"status"`
	Members []string `json:"members"`
}

// StatusPayload is the minimal success response.
type StatusPayload struct {
	Status int `json:"status"`
}

type validatable interface {
	validate() *domain.ProtocolError
}

// Decode unmarshals the envelope payload into dst and runs its shape
// validation, mapping failures to BadRequest.
func Decode(env *domain.Envelope, dst validatable) *domain.ProtocolError {
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, dst); err != nil {
			return domain.BadRequest("malformed payload: " + err.Error())
		}
	}
	return dst.validate()
}
