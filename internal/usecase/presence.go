package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/caspian-yx/socket-chat-app/internal/chat"
	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
	"github.com/caspian-yx/socket-chat-app/internal/core/port"
	"github.com/caspian-yx/socket-chat-app/internal/protocol"
)

// PresenceService tracks user availability and announces transitions to the
// rest of the connected population.
type PresenceService struct {
	directory *chat.Directory
	store     port.PresenceStore
	ttl       time.Duration
	logger    *zap.Logger
}

// NewPresenceService constructs the presence service. The TTL bounds how
// long a stored state outlives its last refresh.
func NewPresenceService(directory *chat.Directory, store port.PresenceStore, ttl time.Duration, logger *zap.Logger) *PresenceService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceService{directory: directory, store: store, ttl: ttl, logger: logger}
}

// HandleHeartbeat refreshes liveness. Heartbeats are events and get no
// response; the session's read deadline was already pushed by the frame
// itself, so only the stored presence TTL needs renewing.
func (p *PresenceService) HandleHeartbeat(ctx context.Context, _ *domain.Envelope, s *chat.Session) (*domain.Envelope, error) {
	p.persist(ctx, s.UserID(), domain.PresenceOnline)
	return nil, nil
}

// HandleUpdate sets the caller's availability and broadcasts the change.
func (p *PresenceService) HandleUpdate(ctx context.Context, env *domain.Envelope, s *chat.Session) (*domain.Envelope, error) {
	var payload protocol.PresenceUpdatePayload
	if perr := protocol.Decode(env, &payload); perr != nil {
		return nil, perr
	}

	state := domain.PresenceState(payload.State)
	p.persist(ctx, s.UserID(), state)
	p.broadcast(s.UserID(), state)

	return domain.NewResponse(env, protocol.AckCommand(env.Command),
		protocol.StatusPayload{Status: int(domain.StatusSuccess)})
}

// HandleList returns every user with at least one attached session.
func (p *PresenceService) HandleList(_ context.Context, env *domain.Envelope, _ *chat.Session) (*domain.Envelope, error) {
	return domain.NewResponse(env, protocol.AckCommand(env.Command), protocol.PresenceListAckPayload{
		Status: int(domain.StatusSuccess),
		Users:  p.directory.Online(),
	})
}

// NotifyStateChange persists and broadcasts a server-initiated transition,
// fired when a user gains their first session or loses their last one.
func (p *PresenceService) NotifyStateChange(ctx context.Context, userID string, state domain.PresenceState) {
	p.persist(ctx, userID, state)
	p.broadcast(userID, state)
}

func (p *PresenceService) persist(ctx context.Context, userID string, state domain.PresenceState) {
	if p.store == nil || userID == "" {
		return
	}
	presence := domain.Presence{UserID: userID, State: state, LastSeen: time.Now()}
	if err := p.store.Set(ctx, presence, p.ttl); err != nil {
		p.logger.Warn("persist presence", zap.String("user", userID), zap.Error(err))
	}
}

// broadcast pushes a presence/event to every attached user except the
// subject. Push failures drop the notification for that session only.
func (p *PresenceService) broadcast(userID string, state domain.PresenceState) {
	env, err := domain.NewEvent(protocol.CmdPresenceEvent, protocol.PresenceEventPayload{
		UserID:   userID,
		State:    string(state),
		LastSeen: time.Now().Unix(),
	})
	if err != nil {
		p.logger.Error("encode presence event", zap.Error(err))
		return
	}

	for _, other := range p.directory.Online() {
		if other == userID {
			continue
		}
		for _, peer := range p.directory.Lookup(other) {
			if err := peer.Push(env); err != nil {
				p.logger.Debug("drop presence event",
					zap.String("user", other), zap.Error(err))
			}
		}
	}
}
