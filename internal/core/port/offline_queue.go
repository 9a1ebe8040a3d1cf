package port

import (
	"context"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
)

// OfflineQueue is the durable per-recipient FIFO the delivery pipeline
// falls back to when no live session accepts a push.
//
// Drain returns and clears the queue atomically: an append racing with a
// drain lands after the drained snapshot, never inside it. RequeueFront
// prepends items preserving their relative order, used when a drain fails
// partway through.
type OfflineQueue interface {
	Enqueue(ctx context.Context, recipientID string, envelope []byte) (domain.QueuedMessage, error)
	Drain(ctx context.Context, recipientID string) ([]domain.QueuedMessage, error)
	RequeueFront(ctx context.Context, recipientID string, items []domain.QueuedMessage) error
	Depth(ctx context.Context, recipientID string) (int64, error)
}
