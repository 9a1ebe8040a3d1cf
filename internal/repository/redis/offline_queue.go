package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
	"github.com/caspian-yx/socket-chat-app/internal/core/port"
)

// OfflineQueueOptions bound per-recipient queue retention.
type OfflineQueueOptions struct {
	KeyPrefix string
	// MaxDepth caps each recipient's queue; the oldest entries are dropped
	// once the cap is exceeded. Zero means unbounded.
	MaxDepth int64
	// TTL expires an untouched queue entirely. Refreshed on every enqueue
	// and requeue. Zero means no expiry.
	TTL time.Duration
}

// OfflineQueue implements port.OfflineQueue on a Redis list per recipient.
// List order is the delivery order: RPUSH appends, LPUSH requeues at the
// front, and LRANGE+DEL inside a transaction makes drain atomic with
// respect to concurrent appends.
type OfflineQueue struct {
	client *red.Client
	opts   OfflineQueueOptions
}

// NewOfflineQueue wires a Redis-backed offline queue.
func NewOfflineQueue(client *red.Client, opts OfflineQueueOptions) *OfflineQueue {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "chat:offline"
	}
	return &OfflineQueue{client: client, opts: opts}
}

func (q *OfflineQueue) queueKey(recipientID string) string {
	return fmt.Sprintf("%s:queue:%s", q.opts.KeyPrefix, recipientID)
}

func (q *OfflineQueue) seqKey(recipientID string) string {
	return fmt.Sprintf("%s:seq:%s", q.opts.KeyPrefix, recipientID)
}

// Enqueue appends one serialized event to the recipient's queue and returns
// the stored record with its assigned sequence number.
func (q *OfflineQueue) Enqueue(ctx context.Context, recipientID string, envelope []byte) (domain.QueuedMessage, error) {
	seq, err := q.client.Incr(ctx, q.seqKey(recipientID)).Result()
	if err != nil {
		return domain.QueuedMessage{}, fmt.Errorf("redis incr offline seq: %w", err)
	}

	item := domain.QueuedMessage{
		Seq:        seq,
		EnqueuedAt: time.Now().Unix(),
		Envelope:   envelope,
	}
	data, err := json.Marshal(item)
	if err != nil {
		return domain.QueuedMessage{}, fmt.Errorf("encode queued message: %w", err)
	}

	key := q.queueKey(recipientID)
	_, err = q.client.TxPipelined(ctx, func(pipe red.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		if q.opts.MaxDepth > 0 {
			pipe.LTrim(ctx, key, -q.opts.MaxDepth, -1)
		}
		q.refreshTTL(ctx, pipe, recipientID)
		return nil
	})
	if err != nil {
		return domain.QueuedMessage{}, fmt.Errorf("redis enqueue offline message: %w", err)
	}
	return item, nil
}

// Drain returns and clears the whole queue atomically. An append racing
// with the drain lands in a fresh list and is picked up next time.
func (q *OfflineQueue) Drain(ctx context.Context, recipientID string) ([]domain.QueuedMessage, error) {
	key := q.queueKey(recipientID)

	var rangeCmd *red.StringSliceCmd
	_, err := q.client.TxPipelined(ctx, func(pipe red.Pipeliner) error {
		rangeCmd = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis drain offline queue: %w", err)
	}

	raw := rangeCmd.Val()
	if len(raw) == 0 {
		return nil, nil
	}

	items := make([]domain.QueuedMessage, 0, len(raw))
	for _, entry := range raw {
		var item domain.QueuedMessage
		if err := json.Unmarshal([]byte(entry), &item); err != nil {
			return nil, fmt.Errorf("decode queued message: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// RequeueFront prepends undelivered items preserving their relative order,
// ahead of anything appended since the drain snapshot was taken.
func (q *OfflineQueue) RequeueFront(ctx context.Context, recipientID string, items []domain.QueuedMessage) error {
	if len(items) == 0 {
		return nil
	}

	// LPUSH inserts each value at the head in argument order, so the batch
	// goes in reversed to land as items[0] first.
	values := make([]any, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		data, err := json.Marshal(items[i])
		if err != nil {
			return fmt.Errorf("encode queued message: %w", err)
		}
		values = append(values, data)
	}

	key := q.queueKey(recipientID)
	_, err := q.client.TxPipelined(ctx, func(pipe red.Pipeliner) error {
		pipe.LPush(ctx, key, values...)
		q.refreshTTL(ctx, pipe, recipientID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis requeue offline messages: %w", err)
	}
	return nil
}

// Depth returns the number of queued entries for the recipient.
func (q *OfflineQueue) Depth(ctx context.Context, recipientID string) (int64, error) {
	depth, err := q.client.LLen(ctx, q.queueKey(recipientID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis offline queue depth: %w", err)
	}
	return depth, nil
}

func (q *OfflineQueue) refreshTTL(ctx context.Context, pipe red.Pipeliner, recipientID string) {
	if q.opts.TTL > 0 {
		pipe.Expire(ctx, q.queueKey(recipientID), q.opts.TTL)
		pipe.Expire(ctx, q.seqKey(recipientID), q.opts.TTL)
	}
}

var _ port.OfflineQueue = (*OfflineQueue)(nil)
