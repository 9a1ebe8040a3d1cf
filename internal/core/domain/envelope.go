package domain

import (
	"encoding/json"
	"time"

	uuid "github.com/google/uuid"
)

// Kind discriminates the three envelope flavours on the wire.
type Kind string

const (
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
	KindEvent    Kind = "event"
)

// IsValid reports whether the kind is one of the three wire values.
func (k Kind) IsValid() bool {
	return k == KindRequest || k == KindResponse || k == KindEvent
}

// HeaderVersion is the header key carrying the protocol version.
const HeaderVersion = "version"

// ProtocolVersion is the version this server speaks.
const ProtocolVersion = "1.0"

// Envelope is one decoded protocol record. Requests and responses are
// correlated by ID; events carry their own identifier.
type Envelope struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"type"`
	Timestamp int64             `json:"timestamp"`
	Command   string            `json:"command"`
	Headers   map[string]string `json:"headers"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
}

// Version returns the protocol version header, empty when absent.
func (e *Envelope) Version() string {
	if e.Headers == nil {
		return ""
	}
	return e.Headers[HeaderVersion]
}

// NewRequest builds a request envelope with a fresh id and timestamp.
func NewRequest(command string, payload any) (*Envelope, error) {
	return newEnvelope(KindRequest, command, payload)
}

// NewEvent builds an event envelope with a fresh id and timestamp.
func NewEvent(command string, payload any) (*Envelope, error) {
	return newEnvelope(KindEvent, command, payload)
}

// NewResponse builds a response envelope correlated with the request.
// The response echoes the request id and headers; the command may differ
// when the protocol names a dedicated ack command.
func NewResponse(req *Envelope, command string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{HeaderVersion: ProtocolVersion}
	if req != nil {
		for k, v := range req.Headers {
			headers[k] = v
		}
		headers[HeaderVersion] = ProtocolVersion
	}

	id := ""
	if req != nil {
		id = req.ID
	}
	if id == "" {
		id = uuid.NewString()
	}

	return &Envelope{
		ID:        id,
		Kind:      KindResponse,
		Timestamp: time.Now().Unix(),
		Command:   command,
		Headers:   headers,
		Payload:   raw,
	}, nil
}

func newEnvelope(kind Kind, command string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now().Unix(),
		Command:   command,
		Headers:   map[string]string{HeaderVersion: ProtocolVersion},
		Payload:   raw,
	}, nil
}

// DecodePayload unmarshals the command specific payload into dst.
func (e *Envelope) DecodePayload(dst any) error {
	if len(e.Payload) == 0 {
		return json.Unmarshal([]byte("{}"), dst)
	}
	return json.Unmarshal(e.Payload, dst)
}
