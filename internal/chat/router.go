package chat

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
	"github.com/caspian-yx/socket-chat-app/internal/infra/telemetry"
	"github.com/caspian-yx/socket-chat-app/internal/protocol"
)

// Handler processes one validated envelope for one session. A request
// handler returns the response envelope; an event handler returns nil.
// Failures are returned as errors and never reach the transport raw.
type Handler func(ctx context.Context, env *domain.Envelope, s *Session) (*domain.Envelope, error)

// Router is a registration-time dispatch table from command name to
// handler. Dispatch guarantees exactly one response envelope per request
// envelope, echoing the request id.
type Router struct {
	handlers map[string]Handler
	logger   *zap.Logger
	metrics  *telemetry.Metrics
}

// NewRouter creates an empty router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// WithMetrics counts structured error responses on the given collectors.
func (r *Router) WithMetrics(m *telemetry.Metrics) *Router {
	r.metrics = m
	return r
}

// Register binds a handler to a command name. Registration happens at
// wiring time, before any dispatch; the table is read-only afterwards.
func (r *Router) Register(command string, h Handler) {
	r.handlers[command] = h
}

// Dispatch routes one envelope. For requests the return value is never nil;
// handler failures come back as structured error envelopes. Events yield no
// response regardless of outcome.
func (r *Router) Dispatch(ctx context.Context, env *domain.Envelope, s *Session) *domain.Envelope {
	h, ok := r.handlers[env.Command]
	if !ok {
		perr := domain.NewProtocolError(domain.StatusNotFound, domain.ErrCodeUnknownCommand,
			"no handler for command "+env.Command)
		return r.errorResponse(env, perr)
	}

	resp, err := h(ctx, env, s)
	if err != nil {
		var perr *domain.ProtocolError
		if !errors.As(err, &perr) {
			r.logger.Error("handler failed",
				zap.String("command", env.Command),
				zap.String("peer", s.PeerAddr()),
				zap.Error(err))
			perr = domain.NewProtocolError(domain.StatusInternalError, 0, "internal error")
		}
		return r.errorResponse(env, perr)
	}

	if env.Kind != domain.KindRequest {
		return nil
	}
	if resp == nil {
		r.logger.Error("handler produced no response for request",
			zap.String("command", env.Command))
		perr := domain.NewProtocolError(domain.StatusInternalError, 0, "internal error")
		return r.errorResponse(env, perr)
	}
	return resp
}

func (r *Router) errorResponse(req *domain.Envelope, perr *domain.ProtocolError) *domain.Envelope {
	if req.Kind != domain.KindRequest {
		return nil
	}
	if r.metrics != nil {
		r.metrics.ProtocolErrors.WithLabelValues(strconv.Itoa(int(perr.Status))).Inc()
	}
	resp, err := domain.NewResponse(req, protocol.AckCommand(req.Command), perr.Payload())
	if err != nil {
		r.logger.Error("encode error response", zap.Error(err))
		return nil
	}
	return resp
}
