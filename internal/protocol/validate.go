package protocol

import (
	"fmt"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
)

// supportedVersions lists protocol versions this server accepts.
var supportedVersions = map[string]struct{}{
	domain.ProtocolVersion: {},
}

// Validate checks envelope shape and protocol version. It runs before any
// handler: an envelope that fails here never reaches dispatch.
func Validate(env *domain.Envelope) *domain.ProtocolError {
	if env.ID == "" {
		return domain.BadRequest("envelope id is required")
	}
	if !env.Kind.IsValid() {
		return domain.BadRequest(fmt.Sprintf("unknown envelope type %q", env.Kind))
	}
	if env.Command == "" {
		return domain.BadRequest("command is required")
	}

	version := env.Version()
	if version == "" {
		return domain.BadRequest("version header is required")
	}
	if _, ok := supportedVersions[version]; !ok {
		return domain.NewProtocolError(
			domain.StatusUpgradeRequired,
			domain.ErrCodeVersionUnsupported,
			fmt.Sprintf("protocol version %s is not supported", version),
		)
	}

	if !IsKnown(env.Command) {
		return domain.NewProtocolError(
			domain.StatusNotFound,
			domain.ErrCodeUnknownCommand,
			fmt.Sprintf("unknown command %q", env.Command),
		)
	}

	return nil
}
