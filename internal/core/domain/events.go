package domain

import "time"

// UserRegisteredEvent reports a new account.
type UserRegisteredEvent struct {
	UserID       string
	Username     string
	RegisteredAt time.Time
}

// SessionAttachedEvent reports a connection binding to a user after login.
type SessionAttachedEvent struct {
	UserID       string
	PeerAddr     string
	AttachedAt   time.Time
	FirstSession bool
}

// SessionDetachedEvent reports a connection leaving the directory.
type SessionDetachedEvent struct {
	UserID      string
	PeerAddr    string
	DetachedAt  time.Time
	LastSession bool
	Reason      string
}

// MessageQueuedEvent reports a message durably queued for an offline user.
type MessageQueuedEvent struct {
	RecipientID string
	Seq         int64
	QueuedAt    time.Time
}

// MessageDeliveredEvent reports a message handed to a live session. Mode is
// "direct" for online pushes and "drain" for offline-queue deliveries.
type MessageDeliveredEvent struct {
	RecipientID string
	Mode        string
	DeliveredAt time.Time
}
