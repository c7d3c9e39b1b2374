package relay

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrUnknownRoom is returned when joining a room the relay does not serve.
var ErrUnknownRoom = errors.New("unknown room")

// outboxSize bounds the messages queued for one slow member.
const outboxSize = 32

// member is one connected chat session.
type member struct {
	id     uint64
	name   string
	room   string
	outbox chan string
}

// Hub tracks the members of every room and fans messages out.
type Hub struct {
	mu      sync.Mutex
	allowed []string
	rooms   map[string]map[uint64]*member
	nextID  uint64
}

// NewHub creates a hub serving rooms.
func NewHub(rooms []string) *Hub {
	allowed := slices.Clone(rooms)
	slices.Sort(allowed)
	return &Hub{
		allowed: slices.Compact(allowed),
		rooms:   make(map[string]map[uint64]*member),
	}
}

// Valid reports whether room is served.
func (h *Hub) Valid(room string) bool {
	_, ok := slices.BinarySearch(h.allowed, room)
	return ok
}

// Rooms lists the served rooms in order.
func (h *Hub) Rooms() []string {
	return slices.Clone(h.allowed)
}

// newMember registers a session outside of any room.
func (h *Hub) newMember(name string) *member {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	return &member{id: h.nextID, name: name, outbox: make(chan string, outboxSize)}
}

// join moves m into room, leaving its current room first.
func (h *Hub) join(m *member, room string) error {
	if !h.Valid(room) {
		return fmt.Errorf("%q: %w", room, ErrUnknownRoom)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(m)
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[uint64]*member)
		h.rooms[room] = members
	}
	members[m.id] = m
	m.room = room
	return nil
}

// leave removes m from its room.
func (h *Hub) leave(m *member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(m)
}

func (h *Hub) removeLocked(m *member) {
	if m.room == "" {
		return
	}
	if members, ok := h.rooms[m.room]; ok {
		delete(members, m.id)
		if len(members) == 0 {
			delete(h.rooms, m.room)
		}
	}
	m.room = ""
}

// rename changes the name m posts under.
func (h *Hub) rename(m *member, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m.name = name
}

// Size is the number of members in room.
func (h *Hub) Size(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// broadcast posts text as "@name - text" to every other member of the
// sender's room. Members whose outbox is full miss the message. It returns
// the number of members reached.
func (h *Hub) broadcast(from *member, text string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if from.room == "" {
		return 0
	}

	msg := fmt.Sprintf("@%s - %s", from.name, text)
	reached := 0
	for id, m := range h.rooms[from.room] {
		if id == from.id {
			continue
		}
		select {
		case m.outbox <- msg:
			reached++
		default:
		}
	}
	return reached
}
