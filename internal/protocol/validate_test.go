package protocol

import (
	"testing"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
)

func validEnvelope() *domain.Envelope {
	return &domain.Envelope{
		ID:      "req-1",
		Kind:    domain.KindRequest,
		Command: CmdAuthLogin,
		Headers: map[string]string{domain.HeaderVersion: domain.ProtocolVersion},
	}
}

func TestValidateAcceptsWellFormedEnvelope(t *testing.T) {
	if perr := Validate(validEnvelope()); perr != nil {
		t.Fatalf("unexpected error: %v", perr)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*domain.Envelope)
		wantStatus domain.StatusCode
		wantCode   domain.ErrorCode
	}{
		{
			name:       "missing id",
			mutate:     func(e *domain.Envelope) { e.ID = "" },
			wantStatus: domain.StatusBadRequest,
			wantCode:   domain.ErrCodeParamMissing,
		},
		{
			name:       "unknown kind",
			mutate:     func(e *domain.Envelope) { e.Kind = "notify" },
			wantStatus: domain.StatusBadRequest,
			wantCode:   domain.ErrCodeParamMissing,
		},
		{
			name:       "missing command",
			mutate:     func(e *domain.Envelope) { e.Command = "" },
			wantStatus: domain.StatusBadRequest,
			wantCode:   domain.ErrCodeParamMissing,
		},
		{
			name:       "missing version header",
			mutate:     func(e *domain.Envelope) { e.Headers = nil },
			wantStatus: domain.StatusBadRequest,
			wantCode:   domain.ErrCodeParamMissing,
		},
		{
			name:       "unsupported version",
			mutate:     func(e *domain.Envelope) { e.Headers[domain.HeaderVersion] = "9.9" },
			wantStatus: domain.StatusUpgradeRequired,
			wantCode:   domain.ErrCodeVersionUnsupported,
		},
		{
			name:       "unknown command",
			mutate:     func(e *domain.Envelope) { e.Command = "files/upload" },
			wantStatus: domain.StatusNotFound,
			wantCode:   domain.ErrCodeUnknownCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := validEnvelope()
			tt.mutate(env)

			perr := Validate(env)
			if perr == nil {
				t.Fatal("expected a protocol error")
			}
			if perr.Status != tt.wantStatus {
				t.Errorf("status = %d, want %d", perr.Status, tt.wantStatus)
			}
			if perr.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", perr.Code, tt.wantCode)
			}
		})
	}
}

func TestGroupAndAckCommand(t *testing.T) {
	if got := Group(CmdMessageSend); got != "message" {
		t.Errorf("Group(%q) = %q, want message", CmdMessageSend, got)
	}
	if got := Group("ping"); got != "ping" {
		t.Errorf("Group(ping) = %q, want ping", got)
	}
	if got := AckCommand(CmdAuthLogin); got != CmdAuthLoginAck {
		t.Errorf("AckCommand(login) = %q, want %q", got, CmdAuthLoginAck)
	}
	if got := AckCommand(CmdRoomJoin); got != CmdRoomJoin {
		t.Errorf("AckCommand(room/join) = %q, want itself", got)
	}
}
