// Package chat implements the session and delivery engine: the connection
// lifecycle state machine, command routing, and the in-memory directory of
// attached users.
package chat

import (
	"sort"
	"sync"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
)

// Peer is the directory's view of an attached connection. The directory
// holds identity only; it never manages a peer's lifetime.
type Peer interface {
	Push(env *domain.Envelope) error
	PeerAddr() string
}

// Directory maps authenticated user ids to their live sessions. It is the
// single source of truth for "is this user reachable right now". Mutations
// are serialized; lookups may run concurrently with each other.
type Directory struct {
	mu     sync.RWMutex
	byUser map[string]map[Peer]struct{}
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{byUser: make(map[string]map[Peer]struct{})}
}

// Attach adds a session to the user's reachability set. Membership is a
// set: multiple simultaneous sessions per user are permitted. Returns true
// when this is the user's first attached session.
func (d *Directory) Attach(userID string, p Peer) (first bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.byUser[userID]
	if !ok {
		set = make(map[Peer]struct{})
		d.byUser[userID] = set
	}
	set[p] = struct{}{}
	return !ok
}

// Detach removes a session from the user's set. Returns last=true when the
// user has no remaining sessions, and attached=false when the session was
// not a member (detach is idempotent).
func (d *Directory) Detach(userID string, p Peer) (last, attached bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.byUser[userID]
	if !ok {
		return false, false
	}
	if _, ok := set[p]; !ok {
		return false, false
	}
	delete(set, p)
	if len(set) == 0 {
		delete(d.byUser, userID)
		return true, true
	}
	return false, true
}

// Lookup returns a snapshot of the user's live sessions. The slice is owned
// by the caller; an empty result means the user is unreachable.
func (d *Directory) Lookup(userID string) []Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()

	set := d.byUser[userID]
	if len(set) == 0 {
		return nil
	}
	peers := make([]Peer, 0, len(set))
	for p := range set {
		peers = append(peers, p)
	}
	return peers
}

// IsAttached reports whether the user has at least one live session.
func (d *Directory) IsAttached(userID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byUser[userID]) > 0
}

// Online returns the sorted list of attached user ids.
func (d *Directory) Online() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	users := make([]string, 0, len(d.byUser))
	for userID := range d.byUser {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

// Counts returns the number of attached users and total sessions.
func (d *Directory) Counts() (users, sessions int) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	users = len(d.byUser)
	for _, set := range d.byUser {
		sessions += len(set)
	}
	return users, sessions
}
