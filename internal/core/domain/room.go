package domain

import "time"

// Room is a named multi-user conversation. Messages targeted at a room fan
// out to every member through the delivery pipeline.
type Room struct {
	ID        string
	Owner     string
	CreatedAt time.Time
	Topic     *string
}
