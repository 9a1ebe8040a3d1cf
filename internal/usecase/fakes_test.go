package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
	"github.com/caspian-yx/socket-chat-app/internal/repository"
)

// fakePeer records pushes. failAfter > 0 makes pushes fail once that many
// have been accepted, simulating a peer dying mid-drain.
type fakePeer struct {
	mu        sync.Mutex
	addr      string
	pushed    []*domain.Envelope
	failAfter int
	failAll   bool
}

func (p *fakePeer) Push(env *domain.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll {
		return errors.New("peer gone")
	}
	if p.failAfter > 0 && len(p.pushed) >= p.failAfter {
		return errors.New("peer gone")
	}
	p.pushed = append(p.pushed, env)
	return nil
}

func (p *fakePeer) PeerAddr() string { return p.addr }

func (p *fakePeer) envelopes() []*domain.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*domain.Envelope, len(p.pushed))
	copy(out, p.pushed)
	return out
}

// memQueue is an in-memory port.OfflineQueue with controllable failures.
type memQueue struct {
	mu         sync.Mutex
	items      map[string][]domain.QueuedMessage
	seq        map[string]int64
	enqueueErr error
	// drainHook runs at the start of Drain, outside the lock.
	drainHook func()
}

func newMemQueue() *memQueue {
	return &memQueue{
		items: make(map[string][]domain.QueuedMessage),
		seq:   make(map[string]int64),
	}
}

func (q *memQueue) Enqueue(_ context.Context, recipientID string, envelope []byte) (domain.QueuedMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return domain.QueuedMessage{}, q.enqueueErr
	}
	q.seq[recipientID]++
	item := domain.QueuedMessage{
		Seq:        q.seq[recipientID],
		EnqueuedAt: time.Now().Unix(),
		Envelope:   append([]byte(nil), envelope...),
	}
	q.items[recipientID] = append(q.items[recipientID], item)
	return item, nil
}

func (q *memQueue) Drain(_ context.Context, recipientID string) ([]domain.QueuedMessage, error) {
	if q.drainHook != nil {
		q.drainHook()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items[recipientID]
	delete(q.items, recipientID)
	return items, nil
}

func (q *memQueue) RequeueFront(_ context.Context, recipientID string, items []domain.QueuedMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[recipientID] = append(append([]domain.QueuedMessage(nil), items...), q.items[recipientID]...)
	return nil
}

func (q *memQueue) Depth(_ context.Context, recipientID string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items[recipientID])), nil
}

// memDenylist is an in-memory port.TokenDenylist.
type memDenylist struct {
	mu      sync.Mutex
	revoked map[string]string
}

func newMemDenylist() *memDenylist {
	return &memDenylist{revoked: make(map[string]string)}
}

func (d *memDenylist) Revoke(_ context.Context, jti, reason string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revoked[jti] = reason
	return nil
}

func (d *memDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.revoked[jti]
	return ok, nil
}

// memUserRepo is an in-memory port.UserRepository keyed by username.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]domain.User)}
}

func (r *memUserRepo) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Username]; ok {
		return repository.ErrDuplicate
	}
	r.users[user.Username] = user
	return nil
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := user
	return &copy, nil
}

func (r *memUserRepo) Exists(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[username]
	return ok, nil
}

func (r *memUserRepo) TouchLastLogin(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for username, user := range r.users {
		if user.ID == userID {
			user.LastLogin = &now
			r.users[username] = user
		}
	}
	return nil
}

// memPresenceStore is an in-memory port.PresenceStore.
type memPresenceStore struct {
	mu     sync.Mutex
	states map[string]domain.Presence
}

func newMemPresenceStore() *memPresenceStore {
	return &memPresenceStore{states: make(map[string]domain.Presence)}
}

func (s *memPresenceStore) Set(_ context.Context, presence domain.Presence, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[presence.UserID] = presence
	return nil
}

func (s *memPresenceStore) Get(_ context.Context, userID string) (*domain.Presence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	presence, ok := s.states[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := presence
	return &copy, nil
}

// eventRecorder counts published lifecycle events.
type eventRecorder struct {
	mu        sync.Mutex
	attached  []domain.SessionAttachedEvent
	detached  []domain.SessionDetachedEvent
	queued    []domain.MessageQueuedEvent
	delivered []domain.MessageDeliveredEvent
	users     []domain.UserRegisteredEvent
}

func (r *eventRecorder) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, event)
	return nil
}

func (r *eventRecorder) PublishSessionAttached(_ context.Context, event domain.SessionAttachedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached = append(r.attached, event)
	return nil
}

func (r *eventRecorder) PublishSessionDetached(_ context.Context, event domain.SessionDetachedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detached = append(r.detached, event)
	return nil
}

func (r *eventRecorder) PublishMessageQueued(_ context.Context, event domain.MessageQueuedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queued = append(r.queued, event)
	return nil
}

func (r *eventRecorder) PublishMessageDelivered(_ context.Context, event domain.MessageDeliveredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = append(r.delivered, event)
	return nil
}

// memMessageRepo is an in-memory port.MessageRepository.
type memMessageRepo struct {
	mu       sync.Mutex
	messages []domain.Message
}

func (r *memMessageRepo) Insert(_ context.Context, message domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

func (r *memMessageRepo) ListByConversation(_ context.Context, conversationID string, limit int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, msg := range r.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// memRoomRepo is an in-memory port.RoomRepository.
type memRoomRepo struct {
	mu      sync.Mutex
	rooms   map[string]domain.Room
	members map[string]map[string]struct{}
}

func newMemRoomRepo() *memRoomRepo {
	return &memRoomRepo{
		rooms:   make(map[string]domain.Room),
		members: make(map[string]map[string]struct{}),
	}
}

func (r *memRoomRepo) Create(_ context.Context, room domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[room.ID]; ok {
		return repository.ErrDuplicate
	}
	r.rooms[room.ID] = room
	r.members[room.ID] = map[string]struct{}{room.Owner: {}}
	return nil
}

func (r *memRoomRepo) Get(_ context.Context, roomID string) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := room
	return &copy, nil
}

func (r *memRoomRepo) Delete(_ context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, roomID)
	delete(r.members, roomID)
	return nil
}

func (r *memRoomRepo) AddMember(_ context.Context, roomID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.members[roomID]
	if !ok {
		set = make(map[string]struct{})
		r.members[roomID] = set
	}
	set[userID] = struct{}{}
	return nil
}

func (r *memRoomRepo) RemoveMember(_ context.Context, roomID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members[roomID], userID)
	return nil
}

func (r *memRoomRepo) ListMembers(_ context.Context, roomID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for member := range r.members[roomID] {
		out = append(out, member)
	}
	return out, nil
}

func (r *memRoomRepo) ListForUser(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for roomID, set := range r.members {
		if _, ok := set[userID]; ok {
			out = append(out, roomID)
		}
	}
	return out, nil
}

func rawContent(s string) json.RawMessage {
	return json.RawMessage(`"` + s + `"`)
}
