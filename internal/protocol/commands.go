// Package protocol defines the wire codec and the command vocabulary shared
// by client and server: namespaced command names, envelope validation, and
// the typed payload shapes each command carries.
package protocol

import "strings"

// Command names, namespaced as domain/action.
const (
	CmdAuthLogin       = "auth/login"
	CmdAuthLoginAck    = "auth/login_ack"
	CmdAuthRegister    = "auth/register"
	CmdAuthRegisterAck = "auth/register_ack"
	CmdAuthRefresh     = "auth/refresh"
	CmdAuthRefreshAck  = "auth/refresh_ack"
	CmdAuthLogout      = "auth/logout"

	CmdPresenceHeartbeat = "presence/heartbeat"
	CmdPresenceUpdate    = "presence/update"
	CmdPresenceList      = "presence/list"
	CmdPresenceEvent     = "presence/event"

	CmdMessageSend    = "message/send"
	CmdMessageAck     = "message/ack"
	CmdMessageEvent   = "message/event"
	CmdMessageHistory = "message/history"

	CmdRoomCreate  = "room/create"
	CmdRoomJoin    = "room/join"
	CmdRoomLeave   = "room/leave"
	CmdRoomList    = "room/list"
	CmdRoomMembers = "room/members"
	CmdRoomDelete  = "room/delete"
)

var knownCommands = map[string]struct{}{
	CmdAuthLogin:       {},
	CmdAuthLoginAck:    {},
	CmdAuthRegister:    {},
	CmdAuthRegisterAck: {},
	CmdAuthRefresh:     {},
	CmdAuthRefreshAck:  {},
	CmdAuthLogout:      {},

	CmdPresenceHeartbeat: {},
	CmdPresenceUpdate:    {},
	CmdPresenceList:      {},
	CmdPresenceEvent:     {},

	CmdMessageSend:    {},
	CmdMessageAck:     {},
	CmdMessageEvent:   {},
	CmdMessageHistory: {},

	CmdRoomCreate:  {},
	CmdRoomJoin:    {},
	CmdRoomLeave:   {},
	CmdRoomList:    {},
	CmdRoomMembers: {},
	CmdRoomDelete:  {},
}

// ackCommands maps requests to their dedicated ack command; requests absent
// from the map are acked under their own command name.
var ackCommands = map[string]string{
	CmdAuthLogin:    CmdAuthLoginAck,
	CmdAuthRegister: CmdAuthRegisterAck,
	CmdAuthRefresh:  CmdAuthRefreshAck,
	CmdMessageSend:  CmdMessageAck,
}

// IsKnown reports whether command is part of the protocol vocabulary.
func IsKnown(command string) bool {
	_, ok := knownCommands[command]
	return ok
}

// Group returns the domain part of a namespaced command ("auth/login" →
// "auth"). Commands without a namespace return themselves.
func Group(command string) string {
	if i := strings.IndexByte(command, '/'); i >= 0 {
		return command[:i]
	}
	return command
}

// AckCommand returns the command name a response to the given request
// travels under.
func AckCommand(request string) string {
	if ack, ok := ackCommands[request]; ok {
		return ack
	}
	return request
}
