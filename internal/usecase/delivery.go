package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/caspian-yx/socket-chat-app/internal/chat"
	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
	"github.com/caspian-yx/socket-chat-app/internal/core/port"
	"github.com/caspian-yx/socket-chat-app/internal/infra/telemetry"
)

// DeliveryService routes message events to recipients. A recipient with at
// least one live session accepting the push counts as delivered; otherwise
// the event goes to the durable offline queue and is drained the next time
// the recipient attaches.
type DeliveryService struct {
	directory *chat.Directory
	queue     port.OfflineQueue
	events    port.EventPublisher
	metrics   *telemetry.Metrics
	logger    *zap.Logger

	mu     sync.Mutex
	drains map[string]*sync.Mutex
	// pending holds envelopes whose durable enqueue failed. While a
	// recipient has parked envelopes, later ones for the same recipient
	// park behind them rather than going to the store, so send order
	// survives the outage. The backlog is re-enqueued on the recipient's
	// next online transition.
	pending map[string][][]byte
}

// NewDeliveryService constructs the delivery pipeline.
func NewDeliveryService(directory *chat.Directory, queue port.OfflineQueue, events port.EventPublisher, metrics *telemetry.Metrics, logger *zap.Logger) *DeliveryService {
	return &DeliveryService{
		directory: directory,
		queue:     queue,
		events:    events,
		metrics:   metrics,
		logger:    logger,
		drains:    make(map[string]*sync.Mutex),
		pending:   make(map[string][][]byte),
	}
}

// Deliver pushes the event to every live session of the recipient. It
// returns delivered=true when at least one session accepted the push;
// otherwise the event has been durably queued.
func (d *DeliveryService) Deliver(ctx context.Context, recipientID string, env *domain.Envelope) (delivered bool, err error) {
	if d.pushLive(recipientID, env) {
		d.recordDelivered(ctx, recipientID, telemetry.DeliveryModeDirect)
		return true, nil
	}
	return false, d.enqueue(ctx, recipientID, env)
}

// pushLive fans the event out to every attached session of the user.
// Individual push failures only exclude that session.
func (d *DeliveryService) pushLive(recipientID string, env *domain.Envelope) bool {
	accepted := 0
	for _, peer := range d.directory.Lookup(recipientID) {
		if err := peer.Push(env); err != nil {
			d.logger.Debug("push rejected",
				zap.String("recipient", recipientID),
				zap.String("peer", peer.PeerAddr()),
				zap.Error(err))
			continue
		}
		accepted++
	}
	return accepted > 0
}

func (d *DeliveryService) enqueue(ctx context.Context, recipientID string, env *domain.Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}

	// While earlier envelopes for this recipient sit parked, the store
	// must not receive newer ones first.
	d.mu.Lock()
	if len(d.pending[recipientID]) > 0 {
		d.pending[recipientID] = append(d.pending[recipientID], raw)
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	queued, err := d.queue.Enqueue(ctx, recipientID, raw)
	if err != nil {
		// Queue store unavailable. Park the envelope in memory and retry
		// on the recipient's next online transition.
		d.logger.Error("offline enqueue failed, parking in memory",
			zap.String("recipient", recipientID), zap.Error(err))
		d.mu.Lock()
		d.pending[recipientID] = append(d.pending[recipientID], raw)
		d.mu.Unlock()
		return nil
	}

	if d.metrics != nil {
		d.metrics.MessagesQueued.Inc()
	}
	d.publishQueued(ctx, domain.MessageQueuedEvent{
		RecipientID: recipientID,
		Seq:         queued.Seq,
		QueuedAt:    time.Unix(queued.EnqueuedAt, 0),
	})
	return nil
}

// OnUserOnline drains the recipient's offline queue into their live
// sessions, oldest first. Drains for the same user are serialized so two
// simultaneous logins cannot interleave or duplicate the backlog.
func (d *DeliveryService) OnUserOnline(ctx context.Context, userID string) {
	lock := d.drainLock(userID)
	lock.Lock()
	defer lock.Unlock()

	d.flushPending(ctx, userID)

	items, err := d.queue.Drain(ctx, userID)
	if err != nil {
		d.logger.Error("offline drain failed", zap.String("user", userID), zap.Error(err))
		return
	}
	if d.metrics != nil {
		d.metrics.DrainBatchSize.Observe(float64(len(items)))
	}
	if len(items) == 0 {
		return
	}

	for i, item := range items {
		var env domain.Envelope
		if err := json.Unmarshal(item.Envelope, &env); err != nil {
			d.logger.Error("dropping undecodable queued message",
				zap.String("user", userID), zap.Int64("seq", item.Seq), zap.Error(err))
			continue
		}
		if !d.pushLive(userID, &env) {
			// The user went away mid-drain. Everything not yet pushed,
			// including this item, goes back to the front in order.
			if err := d.queue.RequeueFront(ctx, userID, items[i:]); err != nil {
				d.logger.Error("requeue after failed drain push",
					zap.String("user", userID), zap.Error(err))
			}
			return
		}
		d.recordDelivered(ctx, userID, telemetry.DeliveryModeDrain)
	}
}

// flushPending moves envelopes parked after a failed enqueue back into the
// durable queue so the subsequent drain keeps a single ordered path. Items
// leave pending only once they are durable; until then concurrent sends for
// the same recipient keep parking behind them.
func (d *DeliveryService) flushPending(ctx context.Context, userID string) {
	for {
		d.mu.Lock()
		parked := d.pending[userID]
		if len(parked) == 0 {
			delete(d.pending, userID)
			d.mu.Unlock()
			return
		}
		raw := parked[0]
		d.mu.Unlock()

		if _, err := d.queue.Enqueue(ctx, userID, raw); err != nil {
			d.logger.Error("re-enqueue of parked message failed",
				zap.String("user", userID), zap.Error(err))
			return
		}

		d.mu.Lock()
		d.pending[userID] = d.pending[userID][1:]
		d.mu.Unlock()
	}
}

func (d *DeliveryService) drainLock(userID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.drains[userID]
	if !ok {
		lock = &sync.Mutex{}
		d.drains[userID] = lock
	}
	return lock
}

func (d *DeliveryService) recordDelivered(ctx context.Context, recipientID, mode string) {
	if d.metrics != nil {
		d.metrics.MessagesDelivered.WithLabelValues(mode).Inc()
	}
	if d.events == nil {
		return
	}
	event := domain.MessageDeliveredEvent{
		RecipientID: recipientID,
		Mode:        mode,
		DeliveredAt: time.Now(),
	}
	if err := d.events.PublishMessageDelivered(ctx, event); err != nil {
		d.logger.Warn("publish message delivered event", zap.Error(err))
	}
}

func (d *DeliveryService) publishQueued(ctx context.Context, event domain.MessageQueuedEvent) {
	if d.events == nil {
		return
	}
	if err := d.events.PublishMessageQueued(ctx, event); err != nil {
		d.logger.Warn("publish message queued event", zap.Error(err))
	}
}
