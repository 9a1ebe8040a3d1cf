package usecase

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
	"github.com/caspian-yx/socket-chat-app/internal/protocol"
)

func newRoomFixture(t *testing.T) (*memRoomRepo, *RoomService) {
	t.Helper()
	rooms := newMemRoomRepo()
	return rooms, NewRoomService(rooms, zaptest.NewLogger(t))
}

func roomRequest(t *testing.T, command, roomID string) *domain.Envelope {
	t.Helper()
	env, err := domain.NewRequest(command, protocol.RoomPayload{RoomID: roomID})
	if err != nil {
		t.Fatalf("build room request: %v", err)
	}
	return env
}

func TestRoomCreateMakesOwnerAMember(t *testing.T) {
	rooms, svc := newRoomFixture(t)
	s := authedSession(t, "alice")

	req, err := domain.NewRequest(protocol.CmdRoomCreate, protocol.RoomCreatePayload{RoomID: "general"})
	if err != nil {
		t.Fatalf("build create request: %v", err)
	}
	resp, err := svc.HandleCreate(context.Background(), req, s)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var status protocol.StatusPayload
	if err := resp.DecodePayload(&status); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if status.Status != int(domain.StatusSuccess) {
		t.Errorf("status = %d, want 200", status.Status)
	}

	members, err := rooms.ListMembers(context.Background(), "general")
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 || members[0] != "alice" {
		t.Errorf("members = %v, want [alice]", members)
	}

	// Creating the same room again conflicts.
	_, err = svc.HandleCreate(context.Background(), req, s)
	perr := asProtocolError(t, err)
	if perr.Status != domain.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", perr.Status)
	}
}

func TestRoomJoinUnknownRoom(t *testing.T) {
	_, svc := newRoomFixture(t)
	s := authedSession(t, "bob")

	_, err := svc.HandleJoin(context.Background(), roomRequest(t, protocol.CmdRoomJoin, "nowhere"), s)
	perr := asProtocolError(t, err)
	if perr.Status != domain.StatusNotFound {
		t.Errorf("status = %d, want 404", perr.Status)
	}
}

func TestRoomJoinLeaveAndList(t *testing.T) {
	rooms, svc := newRoomFixture(t)
	owner := authedSession(t, "alice")
	joiner := authedSession(t, "bob")

	createReq, err := domain.NewRequest(protocol.CmdRoomCreate, protocol.RoomCreatePayload{RoomID: "general"})
	if err != nil {
		t.Fatalf("build create request: %v", err)
	}
	if _, err := svc.HandleCreate(context.Background(), createReq, owner); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.HandleJoin(context.Background(), roomRequest(t, protocol.CmdRoomJoin, "general"), joiner); err != nil {
		t.Fatalf("join: %v", err)
	}

	resp, err := svc.HandleList(context.Background(), roomRequest(t, protocol.CmdRoomList, "general"), joiner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var list protocol.RoomListAckPayload
	if err := resp.DecodePayload(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Rooms) != 1 || list.Rooms[0] != "general" {
		t.Errorf("rooms = %v, want [general]", list.Rooms)
	}

	if _, err := svc.HandleLeave(context.Background(), roomRequest(t, protocol.CmdRoomLeave, "general"), joiner); err != nil {
		t.Fatalf("leave: %v", err)
	}
	members, _ := rooms.ListMembers(context.Background(), "general")
	if len(members) != 1 {
		t.Errorf("members after leave = %v, want only the owner", members)
	}
}

func TestRoomMembersRequiresMembership(t *testing.T) {
	_, svc := newRoomFixture(t)
	owner := authedSession(t, "alice")
	outsider := authedSession(t, "mallory")

	createReq, err := domain.NewRequest(protocol.CmdRoomCreate, protocol.RoomCreatePayload{RoomID: "general"})
	if err != nil {
		t.Fatalf("build create request: %v", err)
	}
	if _, err := svc.HandleCreate(context.Background(), createReq, owner); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.HandleMembers(context.Background(), roomRequest(t, protocol.CmdRoomMembers, "general"), outsider)
	perr := asProtocolError(t, err)
	if perr.Status != domain.StatusForbidden || perr.Code != domain.ErrCodeNotRoomMember {
		t.Errorf("error = (%d, %d), want (403, %d)", perr.Status, perr.Code, domain.ErrCodeNotRoomMember)
	}
}

func TestRoomDeleteOwnerOnly(t *testing.T) {
	rooms, svc := newRoomFixture(t)
	owner := authedSession(t, "alice")
	member := authedSession(t, "bob")

	createReq, err := domain.NewRequest(protocol.CmdRoomCreate, protocol.RoomCreatePayload{RoomID: "general"})
	if err != nil {
		t.Fatalf("build create request: %v", err)
	}
	if _, err := svc.HandleCreate(context.Background(), createReq, owner); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.HandleJoin(context.Background(), roomRequest(t, protocol.CmdRoomJoin, "general"), member); err != nil {
		t.Fatalf("join: %v", err)
	}

	_, err = svc.HandleDelete(context.Background(), roomRequest(t, protocol.CmdRoomDelete, "general"), member)
	perr := asProtocolError(t, err)
	if perr.Status != domain.StatusForbidden {
		t.Errorf("non-owner delete status = %d, want 403", perr.Status)
	}

	if _, err := svc.HandleDelete(context.Background(), roomRequest(t, protocol.CmdRoomDelete, "general"), owner); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := rooms.Get(context.Background(), "general"); err == nil {
		t.Error("room should be gone after delete")
	}
}
