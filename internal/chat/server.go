package chat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/caspian-yx/socket-chat-app/internal/infra/telemetry"
)

// Server accepts raw connections and runs one Session per connection.
type Server struct {
	addr    string
	opts    SessionOptions
	router  *Router
	logger  *zap.Logger
	metrics *telemetry.Metrics

	// onSessionClose runs after a session fully closes; the auth layer
	// uses it to detach the session and fire presence transitions.
	onSessionClose func(s *Session)

	listener net.Listener
	quit     chan struct{}
	wg       sync.WaitGroup

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewServer builds a chat server. onSessionClose may be nil.
func NewServer(addr string, opts SessionOptions, router *Router, metrics *telemetry.Metrics, logger *zap.Logger, onSessionClose func(*Session)) *Server {
	return &Server{
		addr:           addr,
		opts:           opts,
		router:         router,
		logger:         logger,
		metrics:        metrics,
		onSessionClose: onSessionClose,
		quit:           make(chan struct{}),
		sessions:       make(map[*Session]struct{}),
	}
}

// Start binds the listener and begins accepting in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = listener

	s.logger.Info("chat server listening", zap.String("addr", listener.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop(ctx)
	return nil
}

// Addr returns the bound listen address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", zap.Error(err))
			continue
		}

		session := NewSession(conn, s.router, s.logger, s.opts, s.sessionClosed)
		s.track(session)

		if s.metrics != nil {
			s.metrics.ConnectionsAccepted.Inc()
			s.metrics.ActiveConnections.Inc()
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			session.Run(ctx)
		}()
	}
}

func (s *Server) track(session *Session) {
	s.mu.Lock()
	s.sessions[session] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) sessionClosed(session *Session) {
	s.mu.Lock()
	delete(s.sessions, session)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ActiveConnections.Dec()
	}
	if s.onSessionClose != nil {
		s.onSessionClose(session)
	}
}

// Stop closes the listener and tears down every live session, waiting for
// their duties to finish.
func (s *Server) Stop() {
	close(s.quit)
	if s.listener != nil {
		_ = s.listener.Close()
	}

	s.mu.Lock()
	open := make([]*Session, 0, len(s.sessions))
	for session := range s.sessions {
		open = append(open, session)
	}
	s.mu.Unlock()

	for _, session := range open {
		session.Close()
	}
	s.wg.Wait()
	s.logger.Info("chat server stopped")
}
