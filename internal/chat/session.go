package chat

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
	"github.com/caspian-yx/socket-chat-app/internal/protocol"
)

// State is a connection session lifecycle state. Transitions move forward
// only, with two exceptions: logout resets Active back to Authenticating,
// and Faulted absorbs any non-terminal state on protocol or I/O error.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateActive
	StateClosing
	StateClosed
	StateFaulted
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

var (
	// ErrSessionClosed indicates a push against a session that no longer
	// accepts writes. It counts as a delivery failure for that session.
	ErrSessionClosed = errors.New("chat: session closed")
	// ErrWriteQueueFull indicates the peer is not draining its outbound
	// queue fast enough.
	ErrWriteQueueFull = errors.New("chat: write queue full")
)

// SessionOptions bound a single connection's resource usage.
type SessionOptions struct {
	MaxPayload        int
	HeartbeatInterval time.Duration
	HeartbeatGrace    int
	WriteQueueSize    int
	WriteTimeout      time.Duration
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.MaxPayload <= 0 {
		o.MaxPayload = protocol.DefaultMaxPayload
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 15 * time.Second
	}
	if o.HeartbeatGrace <= 0 {
		o.HeartbeatGrace = 3
	}
	if o.WriteQueueSize <= 0 {
		o.WriteQueueSize = 64
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	return o
}

// Session owns one physical connection: its read loop, its write queue, and
// its lifecycle state. The read duty and write duty run as independent
// goroutines that communicate only through the outbound queue and shared
// state, so a slow peer on one side cannot stall the other.
type Session struct {
	conn   net.Conn
	opts   SessionOptions
	router *Router
	logger *zap.Logger

	outbound chan *domain.Envelope
	done     chan struct{}

	mu       sync.Mutex
	state    State
	userID   string
	tokenJTI string
	lastSeen time.Time
	faulted  bool

	closeOnce sync.Once
	writerWG  sync.WaitGroup

	// onClose runs exactly once after both duties have stopped. The server
	// uses it to detach the session from the directory.
	onClose func(s *Session)
}

// NewSession wraps an accepted connection. The session starts in
// StateConnecting; call Run to start both duties.
func NewSession(conn net.Conn, router *Router, logger *zap.Logger, opts SessionOptions, onClose func(*Session)) *Session {
	opts = opts.withDefaults()
	return &Session{
		conn:     conn,
		opts:     opts,
		router:   router,
		logger:   logger.With(zap.String("peer", conn.RemoteAddr().String())),
		outbound: make(chan *domain.Envelope, opts.WriteQueueSize),
		done:     make(chan struct{}),
		state:    StateConnecting,
		lastSeen: time.Now(),
		onClose:  onClose,
	}
}

// PeerAddr returns the remote address.
func (s *Session) PeerAddr() string {
	return s.conn.RemoteAddr().String()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserID returns the attached user id, empty before authentication.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// TokenJTI returns the identifier of the token this session logged in with.
func (s *Session) TokenJTI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenJTI
}

// LastSeen returns the time of the last frame received from the peer.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// IsAuthenticated reports whether a user is attached.
func (s *Session) IsAuthenticated() bool {
	return s.UserID() != ""
}

// MarkAuthenticated binds the session to a user after a successful login
// and moves it to StateActive.
func (s *Session) MarkAuthenticated(userID, tokenJTI string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.tokenJTI = tokenJTI
	if s.state == StateConnecting || s.state == StateAuthenticating {
		s.state = StateActive
	}
}

// ReplaceToken swaps the session's token identifier after a refresh.
func (s *Session) ReplaceToken(tokenJTI string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenJTI = tokenJTI
}

// ResetAuth detaches the user from the session on logout. The connection
// survives and returns to StateAuthenticating; this is the one deliberate
// backward transition in the lifecycle.
func (s *Session) ResetAuth() (userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID = s.userID
	s.userID = ""
	s.tokenJTI = ""
	if s.state == StateActive {
		s.state = StateAuthenticating
	}
	return userID
}

// Touch records peer liveness.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// Push queues an envelope for the write duty. It never blocks: a session
// past StateActive or with a full queue rejects the push, which the caller
// treats as a delivery failure for this session only.
func (s *Session) Push(env *domain.Envelope) error {
	s.mu.Lock()
	closed := s.state >= StateClosing
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}

	select {
	case s.outbound <- env:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		return ErrWriteQueueFull
	}
}

// Run executes the read duty on the calling goroutine and the write duty on
// a second one. It returns once the session is fully closed.
func (s *Session) Run(ctx context.Context) {
	s.writerWG.Add(1)
	go s.writeLoop()

	s.readLoop(ctx)
	s.Close()
}

// Close tears the session down exactly once: stop accepting writes, flush
// pending writes best-effort, release the socket, then run the detach hook.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.state < StateClosing {
			s.state = StateClosing
		}
		s.mu.Unlock()

		close(s.done)
		s.writerWG.Wait()
		_ = s.conn.Close()

		s.mu.Lock()
		if s.faulted {
			s.state = StateFaulted
		} else {
			s.state = StateClosed
		}
		s.mu.Unlock()

		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

// fault records a connection-fatal error and tears the session down.
func (s *Session) fault(reason string, err error) {
	s.mu.Lock()
	s.faulted = true
	s.mu.Unlock()
	s.logger.Warn("session faulted", zap.String("reason", reason), zap.Error(err))
	s.Close()
}

func (s *Session) readDeadline() time.Time {
	return time.Now().Add(s.opts.HeartbeatInterval * time.Duration(s.opts.HeartbeatGrace))
}

func (s *Session) readLoop(ctx context.Context) {
	dec := protocol.NewDecoderMax(s.conn, s.opts.MaxPayload)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		default:
		}

		// Any frame proves liveness; the deadline is the heartbeat
		// watchdog. Missing it for a grace multiple of the interval
		// reaps the connection.
		_ = s.conn.SetReadDeadline(s.readDeadline())

		env, err := dec.Next()
		if err != nil {
			switch {
			case errors.Is(err, protocol.ErrFrameTooLarge):
				// Connection-fatal, no response: the stream can no
				// longer be trusted.
				s.fault("frame too large", err)
			case errors.Is(err, io.EOF):
				s.logger.Debug("peer closed connection")
			case isTimeout(err):
				s.logger.Info("reaping stale session",
					zap.Time("last_seen", s.LastSeen()))
			case errors.Is(err, net.ErrClosed):
				// Local shutdown already in progress.
			default:
				s.fault("read error", err)
			}
			return
		}

		s.Touch()
		s.handle(ctx, env)
	}
}

// handle validates one envelope and routes it. Requests are handled one at
// a time per session, so responses never interleave.
func (s *Session) handle(ctx context.Context, env *domain.Envelope) {
	if perr := protocol.Validate(env); perr != nil {
		s.respondError(env, perr)
		return
	}

	s.mu.Lock()
	if s.state == StateConnecting {
		// Version check passed; the handshake is done.
		s.state = StateAuthenticating
	}
	gate := s.state == StateAuthenticating
	s.mu.Unlock()

	// Before authentication only the auth domain is reachable. The
	// rejection is request-fatal, not connection-fatal: the peer may
	// retry login on the same socket.
	if gate && protocol.Group(env.Command) != "auth" {
		s.respondError(env, domain.Unauthenticated("authenticate first"))
		return
	}

	if resp := s.router.Dispatch(ctx, env, s); resp != nil {
		if err := s.Push(resp); err != nil {
			s.logger.Warn("dropping response, session not writable",
				zap.String("command", env.Command), zap.Error(err))
		}
	}
}

func (s *Session) respondError(req *domain.Envelope, perr *domain.ProtocolError) {
	resp := s.router.errorResponse(req, perr)
	if resp == nil {
		return
	}
	if err := s.Push(resp); err != nil {
		s.logger.Debug("drop error response", zap.Error(err))
	}
}

func (s *Session) writeLoop() {
	defer s.writerWG.Done()

	for {
		select {
		case env := <-s.outbound:
			if !s.writeFrame(env) {
				return
			}
		case <-s.done:
			s.flush()
			return
		}
	}
}

// flush drains whatever the queue still holds. Best-effort: the first
// failed write abandons the remainder.
func (s *Session) flush() {
	for {
		select {
		case env := <-s.outbound:
			if !s.writeFrame(env) {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) writeFrame(env *domain.Envelope) bool {
	frame, err := protocol.EncodeMax(env, s.opts.MaxPayload)
	if err != nil {
		s.logger.Error("encode outbound frame",
			zap.String("command", env.Command), zap.Error(err))
		return true
	}

	_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	if _, err := s.conn.Write(frame); err != nil {
		s.mu.Lock()
		alreadyClosing := s.state >= StateClosing
		if !alreadyClosing {
			s.faulted = true
		}
		s.mu.Unlock()
		if !alreadyClosing {
			s.logger.Warn("write failed", zap.Error(err))
			// Unblock the read duty; Close itself must run outside the
			// writer because Close waits for the writer to stop.
			_ = s.conn.Close()
		}
		return false
	}
	return true
}

func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
