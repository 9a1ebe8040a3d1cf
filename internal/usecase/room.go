package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/caspian-yx/socket-chat-app/internal/chat"
	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
	"github.com/caspian-yx/socket-chat-app/internal/core/port"
	"github.com/caspian-yx/socket-chat-app/internal/protocol"
	"github.com/caspian-yx/socket-chat-app/internal/repository"
)

// RoomService manages named multi-user conversations. The creator owns the
// room; only the owner may delete it.
type RoomService struct {
	rooms  port.RoomRepository
	logger *zap.Logger
}

// NewRoomService constructs the room service.
func NewRoomService(rooms port.RoomRepository, logger *zap.Logger) *RoomService {
	return &RoomService{rooms: rooms, logger: logger}
}

func roomNotFound() *domain.ProtocolError {
	return domain.NewProtocolError(domain.StatusNotFound, 0, "room not found")
}

// HandleCreate creates a room with the caller as owner and first member.
func (r *RoomService) HandleCreate(ctx context.Context, env *domain.Envelope, s *chat.Session) (*domain.Envelope, error) {
	var payload protocol.RoomCreatePayload
	if perr := protocol.Decode(env, &payload); perr != nil {
		return nil, perr
	}

	room := domain.Room{
		ID:        payload.RoomID,
		Owner:     s.UserID(),
		CreatedAt: time.Now(),
		Topic:     payload.Topic,
	}
	if err := r.rooms.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.NewProtocolError(domain.StatusConflict, 0, "room already exists")
		}
		return nil, err
	}

	return r.statusOK(env)
}

// HandleJoin adds the caller to an existing room. Joining twice succeeds.
func (r *RoomService) HandleJoin(ctx context.Context, env *domain.Envelope, s *chat.Session) (*domain.Envelope, error) {
	var payload protocol.RoomPayload
	if perr := protocol.Decode(env, &payload); perr != nil {
		return nil, perr
	}

	if _, err := r.rooms.Get(ctx, payload.RoomID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, roomNotFound()
		}
		return nil, err
	}
	if err := r.rooms.AddMember(ctx, payload.RoomID, s.UserID()); err != nil {
		return nil, err
	}

	return r.statusOK(env)
}

// HandleLeave removes the caller from a room.
func (r *RoomService) HandleLeave(ctx context.Context, env *domain.Envelope, s *chat.Session) (*domain.Envelope, error) {
	var payload protocol.RoomPayload
	if perr := protocol.Decode(env, &payload); perr != nil {
		return nil, perr
	}

	if err := r.rooms.RemoveMember(ctx, payload.RoomID, s.UserID()); err != nil {
		return nil, err
	}
	return r.statusOK(env)
}

// HandleList returns the rooms the caller belongs to.
func (r *RoomService) HandleList(ctx context.Context, env *domain.Envelope, s *chat.Session) (*domain.Envelope, error) {
	rooms, err := r.rooms.ListForUser(ctx, s.UserID())
	if err != nil {
		return nil, err
	}
	return domain.NewResponse(env, protocol.AckCommand(env.Command), protocol.RoomListAckPayload{
		Status: int(domain.StatusSuccess),
		Rooms:  rooms,
	})
}

// HandleMembers returns a room's member list. Only members may ask.
func (r *RoomService) HandleMembers(ctx context.Context, env *domain.Envelope, s *chat.Session) (*domain.Envelope, error) {
	var payload protocol.RoomPayload
	if perr := protocol.Decode(env, &payload); perr != nil {
		return nil, perr
	}

	if _, err := r.rooms.Get(ctx, payload.RoomID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, roomNotFound()
		}
		return nil, err
	}

	members, err := r.rooms.ListMembers(ctx, payload.RoomID)
	if err != nil {
		return nil, err
	}
	if !contains(members, s.UserID()) {
		return nil, domain.NewProtocolError(domain.StatusForbidden, domain.ErrCodeNotRoomMember,
			"not a member of the room")
	}

	return domain.NewResponse(env, protocol.AckCommand(env.Command), protocol.RoomMembersAckPayload{
		Status:  int(domain.StatusSuccess),
		Members: members,
	})
}

// HandleDelete removes a room. Owner only.
func (r *RoomService) HandleDelete(ctx context.Context, env *domain.Envelope, s *chat.Session) (*domain.Envelope, error) {
	var payload protocol.RoomPayload
	if perr := protocol.Decode(env, &payload); perr != nil {
		return nil, perr
	}

	room, err := r.rooms.Get(ctx, payload.RoomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, roomNotFound()
		}
		return nil, err
	}
	if room.Owner != s.UserID() {
		return nil, domain.NewProtocolError(domain.StatusForbidden, 0, "only the owner may delete a room")
	}

	if err := r.rooms.Delete(ctx, payload.RoomID); err != nil {
		return nil, err
	}
	return r.statusOK(env)
}

func (r *RoomService) statusOK(env *domain.Envelope) (*domain.Envelope, error) {
	return domain.NewResponse(env, protocol.AckCommand(env.Command),
		protocol.StatusPayload{Status: int(domain.StatusSuccess)})
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
