package chat

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
	"github.com/caspian-yx/socket-chat-app/internal/protocol"
)

// startSession runs a session over one end of a pipe and returns the client
// end plus a channel closed when the session finishes.
func startSession(t *testing.T, router *Router, opts SessionOptions) (net.Conn, *Session, chan struct{}) {
	t.Helper()
	serverEnd, clientEnd := net.Pipe()

	s := NewSession(serverEnd, router, zaptest.NewLogger(t), opts, nil)
	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	t.Cleanup(func() {
		_ = clientEnd.Close()
		s.Close()
		<-done
	})
	return clientEnd, s, done
}

func writeFrame(t *testing.T, conn net.Conn, env *domain.Envelope) {
	t.Helper()
	frame, err := protocol.Encode(env)
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readFrame(t *testing.T, dec *protocol.Decoder) *domain.Envelope {
	t.Helper()
	env, err := dec.Next()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return env
}

func TestSessionGatesCommandsBeforeAuth(t *testing.T) {
	router := NewRouter(zaptest.NewLogger(t))
	router.Register(protocol.CmdMessageSend, func(_ context.Context, env *domain.Envelope, _ *Session) (*domain.Envelope, error) {
		t.Error("handler must not run before authentication")
		return domain.NewResponse(env, protocol.AckCommand(env.Command), protocol.StatusPayload{Status: 200})
	})

	client, s, _ := startSession(t, router, SessionOptions{})
	dec := protocol.NewDecoder(client)

	req := request(t, protocol.CmdMessageSend, protocol.MessageSendPayload{
		ConversationID: "c1",
		Target:         protocol.Target{Type: "user", ID: "bob"},
		Content:        json.RawMessage(`"hi"`),
	})
	writeFrame(t, client, req)

	resp := readFrame(t, dec)
	if resp.ID != req.ID {
		t.Errorf("response id = %q, want %q", resp.ID, req.ID)
	}
	var payload domain.ErrorPayload
	if err := json.Unmarshal(resp.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Status != int(domain.StatusUnauthorized) {
		t.Errorf("status = %d, want %d", payload.Status, domain.StatusUnauthorized)
	}
	if payload.ErrorCode != int(domain.ErrCodeUnauthenticated) {
		t.Errorf("error_code = %d, want %d", payload.ErrorCode, domain.ErrCodeUnauthenticated)
	}

	// The rejection is request-fatal only; the connection stays usable.
	if got := s.State(); got != StateAuthenticating {
		t.Errorf("state = %v, want authenticating", got)
	}
}

func TestSessionAuthCommandsPassTheGate(t *testing.T) {
	router := NewRouter(zaptest.NewLogger(t))
	router.Register(protocol.CmdAuthLogin, func(_ context.Context, env *domain.Envelope, s *Session) (*domain.Envelope, error) {
		s.MarkAuthenticated("alice", "jti-1")
		return domain.NewResponse(env, protocol.AckCommand(env.Command), protocol.AuthAckPayload{
			Status: 200, Token: "tok", UserID: "alice",
		})
	})

	client, s, _ := startSession(t, router, SessionOptions{})
	dec := protocol.NewDecoder(client)

	writeFrame(t, client, request(t, protocol.CmdAuthLogin, protocol.LoginPayload{Username: "alice", Password: "pw"}))
	resp := readFrame(t, dec)
	if resp.Command != protocol.CmdAuthLoginAck {
		t.Errorf("response command = %q, want %q", resp.Command, protocol.CmdAuthLoginAck)
	}

	if got := s.State(); got != StateActive {
		t.Errorf("state = %v, want active", got)
	}
	if s.UserID() != "alice" || s.TokenJTI() != "jti-1" {
		t.Errorf("identity = (%q, %q), want (alice, jti-1)", s.UserID(), s.TokenJTI())
	}
}

func TestSessionFaultsOnOversizedFrame(t *testing.T) {
	router := NewRouter(zaptest.NewLogger(t))
	client, s, done := startSession(t, router, SessionOptions{MaxPayload: 64})

	// Header declares a frame far beyond the limit. No payload bytes needed;
	// the decoder rejects on the declared length alone.
	header := []byte{0x00, 0x10, 0x00, 0x00}
	if _, err := client.Write(header); err != nil {
		t.Fatalf("write header: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not close after oversized frame")
	}
	if got := s.State(); got != StateFaulted {
		t.Errorf("state = %v, want faulted", got)
	}
}

func TestSessionReapsSilentPeer(t *testing.T) {
	router := NewRouter(zaptest.NewLogger(t))
	_, s, done := startSession(t, router, SessionOptions{
		HeartbeatInterval: 20 * time.Millisecond,
		HeartbeatGrace:    2,
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("silent session was not reaped")
	}
	if got := s.State(); got != StateClosed {
		t.Errorf("state = %v, want closed", got)
	}
}

func TestSessionPushAfterCloseFails(t *testing.T) {
	router := NewRouter(zaptest.NewLogger(t))
	_, s, done := startSession(t, router, SessionOptions{})

	s.Close()
	<-done

	env, err := domain.NewEvent(protocol.CmdMessageEvent, nil)
	if err != nil {
		t.Fatalf("build event: %v", err)
	}
	if err := s.Push(env); err != ErrSessionClosed {
		t.Errorf("push after close = %v, want ErrSessionClosed", err)
	}
}

func TestSessionResetAuthReturnsToAuthenticating(t *testing.T) {
	router := NewRouter(zaptest.NewLogger(t))
	_, s, _ := startSession(t, router, SessionOptions{})

	s.MarkAuthenticated("alice", "jti-1")
	if got := s.State(); got != StateActive {
		t.Fatalf("state = %v, want active", got)
	}

	userID := s.ResetAuth()
	if userID != "alice" {
		t.Errorf("ResetAuth returned %q, want alice", userID)
	}
	if got := s.State(); got != StateAuthenticating {
		t.Errorf("state after logout = %v, want authenticating", got)
	}
	if s.IsAuthenticated() {
		t.Error("session should not be authenticated after reset")
	}
}
