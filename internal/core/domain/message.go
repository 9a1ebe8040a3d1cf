package domain

import (
	"encoding/json"
	"time"
)

// Message is a persisted chat message. Ordering is guaranteed per
// sender-recipient pair only; CreatedAt is informational.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        json.RawMessage
	CreatedAt      time.Time
}

// QueuedMessage is one offline-delivery unit. Envelope holds the serialized
// event exactly as it will be pushed on drain; Seq is assigned at enqueue
// time and is strictly increasing per recipient.
type QueuedMessage struct {
	Seq        int64           `json:"seq"`
	EnqueuedAt int64           `json:"enqueued_at"`
	Envelope   json.RawMessage `json:"envelope"`
}
