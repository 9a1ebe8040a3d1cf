package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/caspian-yx/socket-chat-app/internal/chat"
	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
	"github.com/caspian-yx/socket-chat-app/internal/core/port"
	"github.com/caspian-yx/socket-chat-app/internal/infra/logger"
	"github.com/caspian-yx/socket-chat-app/internal/infra/security"
	"github.com/caspian-yx/socket-chat-app/internal/infra/telemetry"
	"github.com/caspian-yx/socket-chat-app/internal/protocol"
	"github.com/caspian-yx/socket-chat-app/internal/repository"
)

// AuthService owns the credential and token side of the session lifecycle:
// login, token refresh, logout, and the cleanup that runs when a connection
// dies without saying goodbye.
type AuthService struct {
	users     port.UserRepository
	tokens    *security.TokenManager
	denylist  port.TokenDenylist
	directory *chat.Directory
	presence  *PresenceService
	delivery  *DeliveryService
	events    port.EventPublisher
	metrics   *telemetry.Metrics
	logger    *zap.Logger
}

// NewAuthService constructs the auth service.
func NewAuthService(
	users port.UserRepository,
	tokens *security.TokenManager,
	denylist port.TokenDenylist,
	directory *chat.Directory,
	presence *PresenceService,
	delivery *DeliveryService,
	events port.EventPublisher,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		denylist:  denylist,
		directory: directory,
		presence:  presence,
		delivery:  delivery,
		events:    events,
		metrics:   metrics,
		logger:    logger,
	}
}

func invalidCredentials() *domain.ProtocolError {
	return domain.NewProtocolError(domain.StatusUnauthorized, domain.ErrCodeInvalidCredentials,
		"invalid username or password")
}

// HandleLogin verifies credentials, mints a session token, and attaches the
// connection to the user. Attaching triggers an offline-queue drain.
func (a *AuthService) HandleLogin(ctx context.Context, env *domain.Envelope, s *chat.Session) (*domain.Envelope, error) {
	var payload protocol.LoginPayload
	if perr := protocol.Decode(env, &payload); perr != nil {
		return nil, perr
	}
	if s.IsAuthenticated() {
		return nil, domain.NewProtocolError(domain.StatusConflict, 0, "session already authenticated")
	}

	user, err := a.users.GetByUsername(ctx, payload.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalidCredentials()
		}
		return nil, err
	}

	ok, err := security.VerifyPassword(payload.Password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, invalidCredentials()
	}

	token, claims, err := a.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	if err := a.users.TouchLastLogin(ctx, user.ID); err != nil {
		a.logger.Warn("touch last login", zap.String("user", user.ID), zap.Error(err))
	}

	a.attach(ctx, s, user.ID, claims.JTI)

	return domain.NewResponse(env, protocol.AckCommand(env.Command), protocol.AuthAckPayload{
		Status:    int(domain.StatusSuccess),
		Token:     token,
		UserID:    user.ID,
		ExpiresIn: int64(a.tokens.TTL().Seconds()),
	})
}

// HandleRefresh exchanges a still-valid token for a fresh one. The old
// token's JTI is denylisted before the new token is issued, so there is no
// point at which both validate.
func (a *AuthService) HandleRefresh(ctx context.Context, env *domain.Envelope, s *chat.Session) (*domain.Envelope, error) {
	var payload protocol.RefreshPayload
	if perr := protocol.Decode(env, &payload); perr != nil {
		return nil, perr
	}

	claims, err := a.tokens.Parse(payload.Token)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, domain.NewProtocolError(domain.StatusUnauthorized, domain.ErrCodeTokenExpired,
				"token expired")
		}
		return nil, domain.NewProtocolError(domain.StatusUnauthorized, domain.ErrCodeTokenInvalid,
			"token invalid")
	}

	revoked, err := a.denylist.IsRevoked(ctx, claims.JTI)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, domain.NewProtocolError(domain.StatusUnauthorized, domain.ErrCodeTokenInvalid,
			"token revoked")
	}

	if s.IsAuthenticated() && s.UserID() != claims.UserID {
		return nil, domain.NewProtocolError(domain.StatusForbidden, domain.ErrCodeTokenInvalid,
			"token belongs to a different user")
	}

	if err := a.denylist.Revoke(ctx, claims.JTI, "refresh", claims.RemainingTTL(time.Now())); err != nil {
		return nil, err
	}

	token, newClaims, err := a.tokens.Issue(claims.UserID)
	if err != nil {
		return nil, err
	}

	a.logger.Info("token refreshed",
		zap.String("user", claims.UserID),
		zap.String("old_jti", logger.MaskString(claims.JTI)),
		zap.String("new_jti", logger.MaskString(newClaims.JTI)))

	if s.IsAuthenticated() {
		s.ReplaceToken(newClaims.JTI)
	} else {
		// Refresh on an unauthenticated connection resumes the session:
		// a valid token is proof of identity.
		a.attach(ctx, s, claims.UserID, newClaims.JTI)
	}

	return domain.NewResponse(env, protocol.AckCommand(env.Command), protocol.AuthAckPayload{
		Status:    int(domain.StatusSuccess),
		Token:     token,
		UserID:    claims.UserID,
		ExpiresIn: int64(a.tokens.TTL().Seconds()),
	})
}

// HandleLogout revokes the session token and detaches the user. The
// connection survives and may authenticate again.
func (a *AuthService) HandleLogout(ctx context.Context, env *domain.Envelope, s *chat.Session) (*domain.Envelope, error) {
	if !s.IsAuthenticated() {
		return nil, domain.Unauthenticated("not logged in")
	}

	if jti := s.TokenJTI(); jti != "" {
		// The exact remaining validity is unknown here; the full TTL is a
		// safe upper bound for the denylist entry.
		if err := a.denylist.Revoke(ctx, jti, "logout", a.tokens.TTL()); err != nil {
			a.logger.Warn("revoke token on logout",
				zap.String("jti", logger.MaskString(jti)), zap.Error(err))
		}
	}

	userID := s.ResetAuth()
	a.detach(ctx, s, userID, "logout")

	return domain.NewResponse(env, protocol.AckCommand(env.Command),
		protocol.StatusPayload{Status: int(domain.StatusSuccess)})
}

// HandleDisconnect runs when a session closes for any reason. It is
// idempotent with logout: a logged-out session holds no user and detaches
// nothing here.
func (a *AuthService) HandleDisconnect(s *chat.Session) {
	userID := s.UserID()
	if userID == "" {
		return
	}
	a.detach(context.Background(), s, userID, "disconnect")
}

// attach binds the session to the user and fires the side effects of coming
// online: directory membership, presence, lifecycle event, queue drain.
func (a *AuthService) attach(ctx context.Context, s *chat.Session, userID, jti string) {
	s.MarkAuthenticated(userID, jti)
	first := a.directory.Attach(userID, s)
	a.updateAttachedGauge()

	if a.events != nil {
		event := domain.SessionAttachedEvent{
			UserID:       userID,
			PeerAddr:     s.PeerAddr(),
			AttachedAt:   time.Now(),
			FirstSession: first,
		}
		if err := a.events.PublishSessionAttached(ctx, event); err != nil {
			a.logger.Warn("publish session attached event", zap.Error(err))
		}
	}

	if first {
		a.presence.NotifyStateChange(ctx, userID, domain.PresenceOnline)
	}

	// The drain runs after the session is visible in the directory, so the
	// backlog lands on this very connection.
	go a.delivery.OnUserOnline(context.WithoutCancel(ctx), userID)
}

func (a *AuthService) detach(ctx context.Context, s *chat.Session, userID, reason string) {
	last, attached := a.directory.Detach(userID, s)
	if !attached {
		return
	}
	a.updateAttachedGauge()

	if a.events != nil {
		event := domain.SessionDetachedEvent{
			UserID:      userID,
			PeerAddr:    s.PeerAddr(),
			DetachedAt:  time.Now(),
			LastSession: last,
			Reason:      reason,
		}
		if err := a.events.PublishSessionDetached(ctx, event); err != nil {
			a.logger.Warn("publish session detached event", zap.Error(err))
		}
	}

	if last {
		a.presence.NotifyStateChange(ctx, userID, domain.PresenceOffline)
	}
}

func (a *AuthService) updateAttachedGauge() {
	if a.metrics == nil {
		return
	}
	users, _ := a.directory.Counts()
	a.metrics.AttachedUsers.Set(float64(users))
}
