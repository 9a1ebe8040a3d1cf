package usecase

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/caspian-yx/socket-chat-app/internal/chat"
	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
	"github.com/caspian-yx/socket-chat-app/internal/protocol"
)

type messageFixture struct {
	directory *chat.Directory
	queue     *memQueue
	messages  *memMessageRepo
	rooms     *memRoomRepo
	svc       *MessageService
}

func newMessageFixture(t *testing.T) *messageFixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	directory := chat.NewDirectory()
	queue := newMemQueue()
	messages := &memMessageRepo{}
	rooms := newMemRoomRepo()
	delivery := NewDeliveryService(directory, queue, &eventRecorder{}, nil, log)
	return &messageFixture{
		directory: directory,
		queue:     queue,
		messages:  messages,
		rooms:     rooms,
		svc:       NewMessageService(messages, rooms, delivery, log),
	}
}

func authedSession(t *testing.T, userID string) *chat.Session {
	t.Helper()
	s, _ := newRunningSession(t)
	s.MarkAuthenticated(userID, "jti-"+userID)
	return s
}

func sendRequest(t *testing.T, targetType, targetID, body string) *domain.Envelope {
	t.Helper()
	env, err := domain.NewRequest(protocol.CmdMessageSend, protocol.MessageSendPayload{
		ConversationID: "c1",
		Target:         protocol.Target{Type: targetType, ID: targetID},
		Content:        rawContent(body),
	})
	if err != nil {
		t.Fatalf("build send request: %v", err)
	}
	return env
}

func decodeMessageAck(t *testing.T, env *domain.Envelope) protocol.MessageAckPayload {
	t.Helper()
	var ack protocol.MessageAckPayload
	if err := env.DecodePayload(&ack); err != nil {
		t.Fatalf("decode message ack: %v", err)
	}
	return ack
}

func TestSendToOnlineUser(t *testing.T) {
	fx := newMessageFixture(t)
	sender := authedSession(t, "alice")

	peer := &fakePeer{addr: "bob-peer"}
	fx.directory.Attach("bob", peer)

	resp, err := fx.svc.HandleSend(context.Background(), sendRequest(t, "user", "bob", "hi"), sender)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	ack := decodeMessageAck(t, resp)
	if ack.Status != int(domain.StatusSuccess) {
		t.Errorf("status = %d, want 200 for live delivery", ack.Status)
	}
	if ack.MessageID == "" {
		t.Error("ack must carry the message id")
	}
	if resp.Command != protocol.CmdMessageAck {
		t.Errorf("ack command = %q, want %q", resp.Command, protocol.CmdMessageAck)
	}

	got := peer.envelopes()
	if len(got) != 1 {
		t.Fatalf("recipient got %d events, want 1", len(got))
	}
	var event protocol.MessageEventPayload
	if err := got[0].DecodePayload(&event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.SenderID != "alice" || event.MessageID != ack.MessageID {
		t.Errorf("event = %+v, want sender alice and id %q", event, ack.MessageID)
	}

	if len(fx.messages.messages) != 1 {
		t.Errorf("persisted %d messages, want 1", len(fx.messages.messages))
	}
}

func TestSendToOfflineUserQueues(t *testing.T) {
	fx := newMessageFixture(t)
	sender := authedSession(t, "alice")

	resp, err := fx.svc.HandleSend(context.Background(), sendRequest(t, "user", "bob", "hi"), sender)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	ack := decodeMessageAck(t, resp)
	if ack.Status != int(domain.StatusAccepted) {
		t.Errorf("status = %d, want 202 for queued delivery", ack.Status)
	}
	if depth, _ := fx.queue.Depth(context.Background(), "bob"); depth != 1 {
		t.Errorf("queue depth = %d, want 1", depth)
	}
}

func TestSendToRoomFansOut(t *testing.T) {
	fx := newMessageFixture(t)
	sender := authedSession(t, "alice")

	if err := fx.rooms.Create(context.Background(), domain.Room{ID: "general", Owner: "alice", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("create room: %v", err)
	}
	for _, member := range []string{"bob", "carol"} {
		if err := fx.rooms.AddMember(context.Background(), "general", member); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}

	bobPeer := &fakePeer{addr: "bob"}
	fx.directory.Attach("bob", bobPeer)
	alicePeer := &fakePeer{addr: "alice"}
	fx.directory.Attach("alice", alicePeer)

	resp, err := fx.svc.HandleSend(context.Background(), sendRequest(t, "room", "general", "hello room"), sender)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	ack := decodeMessageAck(t, resp)
	// carol is offline, so at least one copy was queued.
	if ack.Status != int(domain.StatusAccepted) {
		t.Errorf("status = %d, want 202", ack.Status)
	}
	if len(bobPeer.envelopes()) != 1 {
		t.Errorf("bob got %d events, want 1", len(bobPeer.envelopes()))
	}
	if len(alicePeer.envelopes()) != 0 {
		t.Error("the sender must not receive their own room message")
	}
	if depth, _ := fx.queue.Depth(context.Background(), "carol"); depth != 1 {
		t.Errorf("carol queue depth = %d, want 1", depth)
	}
}

func TestSendToRoomRequiresMembership(t *testing.T) {
	fx := newMessageFixture(t)
	sender := authedSession(t, "mallory")

	if err := fx.rooms.Create(context.Background(), domain.Room{ID: "general", Owner: "alice", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("create room: %v", err)
	}

	_, err := fx.svc.HandleSend(context.Background(), sendRequest(t, "room", "general", "hi"), sender)
	perr := asProtocolError(t, err)
	if perr.Status != domain.StatusForbidden || perr.Code != domain.ErrCodeNotRoomMember {
		t.Errorf("error = (%d, %d), want (403, %d)", perr.Status, perr.Code, domain.ErrCodeNotRoomMember)
	}
	if len(fx.messages.messages) != 0 {
		t.Error("rejected message must not be persisted")
	}
}

func TestSendToUnknownRoom(t *testing.T) {
	fx := newMessageFixture(t)
	sender := authedSession(t, "alice")

	_, err := fx.svc.HandleSend(context.Background(), sendRequest(t, "room", "nowhere", "hi"), sender)
	perr := asProtocolError(t, err)
	if perr.Status != domain.StatusNotFound {
		t.Errorf("status = %d, want 404", perr.Status)
	}
}

func TestHistoryReturnsChronologicalEntries(t *testing.T) {
	fx := newMessageFixture(t)
	sender := authedSession(t, "alice")

	for _, body := range []string{"one", "two", "three"} {
		if _, err := fx.svc.HandleSend(context.Background(), sendRequest(t, "user", "bob", body), sender); err != nil {
			t.Fatalf("send %q: %v", body, err)
		}
	}

	req, err := domain.NewRequest(protocol.CmdMessageHistory, protocol.MessageHistoryPayload{
		ConversationID: "c1",
		Limit:          2,
	})
	if err != nil {
		t.Fatalf("build history request: %v", err)
	}
	resp, err := fx.svc.HandleHistory(context.Background(), req, sender)
	if err != nil {
		t.Fatalf("history: %v", err)
	}

	var payload protocol.MessageHistoryAckPayload
	if err := resp.DecodePayload(&payload); err != nil {
		t.Fatalf("decode history ack: %v", err)
	}
	if payload.Status != int(domain.StatusSuccess) {
		t.Errorf("status = %d, want 200", payload.Status)
	}
	if len(payload.Messages) != 2 {
		t.Fatalf("history returned %d entries, want 2", len(payload.Messages))
	}
	if string(payload.Messages[0].Content) != `"two"` || string(payload.Messages[1].Content) != `"three"` {
		t.Errorf("history window = (%s, %s), want the two most recent in order",
			payload.Messages[0].Content, payload.Messages[1].Content)
	}
}
