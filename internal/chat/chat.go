// Package chat is a message room whose history lives in a store.
//
// Posting appends to the history in place and then calls Update on the
// store, so subscribers see every message without the history being copied
// on each post.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/vango-dev/state/pkg/state"
)

var (
	// ErrUnknownParticipant is returned when posting as someone who has not
	// joined.
	ErrUnknownParticipant = errors.New("chat: unknown participant")

	// ErrEmptyMessage is returned for a blank message body.
	ErrEmptyMessage = errors.New("chat: message is empty")
)

// Message is one chat line.
type Message struct {
	ID   ulid.ULID `json:"id"`
	From uuid.UUID `json:"from"`
	Name string    `json:"name"`
	Body string    `json:"body"`
	At   time.Time `json:"at"`
}

// History is the message log of a room. Appends happen in place, so
// readers outside the posting goroutine use Snapshot or MarshalJSON.
type History struct {
	mu       sync.RWMutex
	Messages []Message `json:"messages"`
}

func (h *History) append(m Message) {
	h.mu.Lock()
	h.Messages = append(h.Messages, m)
	h.mu.Unlock()
}

// Snapshot returns a copy of the messages.
func (h *History) Snapshot() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.Messages)
}

// MarshalJSON encodes the history under its read lock.
func (h *History) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Messages []Message `json:"messages"`
	}{h.Snapshot()})
}

// Participant is a member of a room.
type Participant struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Room holds the history and participants of one chat.
type Room struct {
	history *state.Leaf[*History]
	now     func() time.Time

	// membersMu serializes the read-clone-write of member changes.
	membersMu sync.Mutex
	members   *state.Leaf[map[uuid.UUID]Participant]
}

// Option configures a Room.
type Option func(*Room)

// WithClock sets the time source for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Room) {
		r.now = now
	}
}

// NewRoom creates an empty room.
func NewRoom(opts ...Option) *Room {
	r := &Room{
		history: state.New(&History{}, state.WithName[*History]("chat")),
		members: state.New(map[uuid.UUID]Participant{}, state.WithName[map[uuid.UUID]Participant]("chat.members")),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// History returns the history store.
func (r *Room) History() state.Store[*History] {
	return r.history
}

// Members returns the participant store.
func (r *Room) Members() state.Store[map[uuid.UUID]Participant] {
	return r.members
}

// Join adds a participant with a fresh id.
func (r *Room) Join(ctx context.Context, name string) (Participant, error) {
	p := Participant{ID: uuid.New(), Name: strings.TrimSpace(name)}
	if p.Name == "" {
		p.Name = "anonymous"
	}

	r.membersMu.Lock()
	defer r.membersMu.Unlock()

	members, _ := r.members.Value()
	next := maps.Clone(members)
	next[p.ID] = p
	if err := r.members.Set(ctx, next); err != nil {
		return Participant{}, err
	}
	return p, nil
}

// Leave removes a participant. Their messages stay in the history.
func (r *Room) Leave(ctx context.Context, id uuid.UUID) error {
	r.membersMu.Lock()
	defer r.membersMu.Unlock()

	members, _ := r.members.Value()
	if _, ok := members[id]; !ok {
		return ErrUnknownParticipant
	}
	next := maps.Clone(members)
	delete(next, id)
	return r.members.Set(ctx, next)
}

// Post appends a message from participant id and notifies subscribers.
func (r *Room) Post(id uuid.UUID, body string) (Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Message{}, ErrEmptyMessage
	}
	members, _ := r.members.Value()
	p, ok := members[id]
	if !ok {
		return Message{}, ErrUnknownParticipant
	}

	msg := Message{
		ID:   ulid.Make(),
		From: p.ID,
		Name: p.Name,
		Body: body,
		At:   r.now(),
	}

	history, _ := r.history.Value()
	history.append(msg)
	r.history.Update()
	return msg, nil
}

// Messages returns a copy of the history.
func (r *Room) Messages() []Message {
	history, _ := r.history.Value()
	return history.Snapshot()
}
