package usecase

import (
	"context"
	"errors"
	"regexp"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caspian-yx/socket-chat-app/internal/chat"
	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
	"github.com/caspian-yx/socket-chat-app/internal/core/port"
	"github.com/caspian-yx/socket-chat-app/internal/infra/security"
	"github.com/caspian-yx/socket-chat-app/internal/protocol"
	"github.com/caspian-yx/socket-chat-app/internal/repository"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

// RegistrationService handles new account creation over the chat protocol.
type RegistrationService struct {
	users  port.UserRepository
	events port.EventPublisher
	logger *zap.Logger
}

// NewRegistrationService constructs the registration service.
func NewRegistrationService(users port.UserRepository, events port.EventPublisher, logger *zap.Logger) *RegistrationService {
	return &RegistrationService{users: users, events: events, logger: logger}
}

// HandleRegister creates an account. The new user still logs in separately;
// registration never attaches the session.
func (r *RegistrationService) HandleRegister(ctx context.Context, env *domain.Envelope, _ *chat.Session) (*domain.Envelope, error) {
	var payload protocol.LoginPayload
	if perr := protocol.Decode(env, &payload); perr != nil {
		return nil, perr
	}

	if !usernamePattern.MatchString(payload.Username) {
		return nil, domain.BadRequest("username must be 3-32 characters of letters, digits, or underscore")
	}
	if err := security.ValidatePassword(payload.Password, payload.Username); err != nil {
		return nil, domain.BadRequest(err.Error())
	}

	hash, err := security.HashPassword(payload.Password)
	if err != nil {
		return nil, err
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Username:     payload.Username,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}

	if err := r.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.NewProtocolError(domain.StatusConflict, domain.ErrCodeUserExists,
				"username already taken")
		}
		return nil, err
	}

	if r.events != nil {
		event := domain.UserRegisteredEvent{
			UserID:       user.ID,
			Username:     user.Username,
			RegisteredAt: user.CreatedAt,
		}
		if err := r.events.PublishUserRegistered(ctx, event); err != nil {
			r.logger.Warn("publish user registered event", zap.Error(err))
		}
	}

	return domain.NewResponse(env, protocol.AckCommand(env.Command), protocol.AuthAckPayload{
		Status: int(domain.StatusSuccess),
		UserID: user.ID,
	})
}
