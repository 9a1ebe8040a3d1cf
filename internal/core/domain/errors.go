package domain

import "fmt"

// StatusCode is the HTTP-like numeric status carried by every response payload.
type StatusCode int

const (
	StatusSuccess         StatusCode = 200
	StatusAccepted        StatusCode = 202
	StatusBadRequest      StatusCode = 400
	StatusUnauthorized    StatusCode = 401
	StatusForbidden       StatusCode = 403
	StatusNotFound        StatusCode = 404
	StatusConflict        StatusCode = 409
	StatusUpgradeRequired StatusCode = 426
	StatusTooManyRequests StatusCode = 429
	StatusInternalError   StatusCode = 500
)

// ErrorCode is the machine-readable qualifier accompanying an error status.
type ErrorCode int

const (
	ErrCodeTokenInvalid       ErrorCode = 1001
	ErrCodeVersionUnsupported ErrorCode = 1002
	ErrCodeTokenExpired       ErrorCode = 1003
	ErrCodeParamMissing       ErrorCode = 1004
	ErrCodeUserExists         ErrorCode = 1006
	ErrCodeUnknownCommand     ErrorCode = 1007
	ErrCodeUnauthenticated    ErrorCode = 1008
	ErrCodeInvalidCredentials ErrorCode = 1009
	ErrCodeNotRoomMember      ErrorCode = 1010
)

// ProtocolError is a request-fatal error the peer can act on. The connection
// survives it; the router converts it into a structured error response.
type ProtocolError struct {
	Status  StatusCode
	Code    ErrorCode
	Message string
}

// NewProtocolError constructs a ProtocolError with an optional error code.
func NewProtocolError(status StatusCode, code ErrorCode, message string) *ProtocolError {
	return &ProtocolError{Status: status, Code: code, Message: message}
}

// BadRequest is shorthand for a 400 shape-validation failure.
func BadRequest(message string) *ProtocolError {
	return &ProtocolError{Status: StatusBadRequest, Code: ErrCodeParamMissing, Message: message}
}

// Unauthenticated is returned when a command requires an attached user.
func Unauthenticated(message string) *ProtocolError {
	return &ProtocolError{Status: StatusUnauthorized, Code: ErrCodeUnauthenticated, Message: message}
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error %d (code=%d): %s", e.Status, e.Code, e.Message)
}

// ErrorPayload is the payload fragment carried by error responses.
type ErrorPayload struct {
	Status       int    `json:"status"`
	ErrorCode    int    `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Payload maps the error into the fragment consumable by clients.
func (e *ProtocolError) Payload() ErrorPayload {
	return ErrorPayload{
		Status:       int(e.Status),
		ErrorCode:    int(e.Code),
		ErrorMessage: e.Message,
	}
}
