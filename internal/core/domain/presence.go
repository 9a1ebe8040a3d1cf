package domain

import "time"

// PresenceState is a user-visible availability state.
type PresenceState string

const (
	PresenceOnline  PresenceState = "online"
	PresenceAway    PresenceState = "away"
	PresenceOffline PresenceState = "offline"
)

// IsValid reports whether the state is one a client may set.
func (s PresenceState) IsValid() bool {
	return s == PresenceOnline || s == PresenceAway || s == PresenceOffline
}

// Presence is the last known availability of a user.
type Presence struct {
	UserID   string
	State    PresenceState
	LastSeen time.Time
}
