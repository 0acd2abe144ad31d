package runtime

import (
	"sync"

	"chat-relay/domain"

	"github.com/samber/lo"
)

// RoomTable tracks which connections subscribed to which rooms, with the
// inverse index kept in lockstep for disconnect cleanup. One mutex guards
// both maps: the forward and inverse entries must move together or
// invariant checks (no dangling membership) break under concurrent purges.
type RoomTable struct {
	mu      sync.RWMutex
	members map[domain.RoomID]Set
	joined  map[domain.ConnectionID]map[domain.RoomID]struct{}
}

func NewRoomTable() *RoomTable {
	return &RoomTable{
		members: make(map[domain.RoomID]Set),
		joined:  make(map[domain.ConnectionID]map[domain.RoomID]struct{}),
	}
}

// Join subscribes a connection to a room. Joining an already-joined room
// is a no-op.
func (t *RoomTable) Join(room domain.RoomID, conn domain.ConnectionID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.members[room]; !ok {
		t.members[room] = make(Set)
	}
	t.members[room][conn] = struct{}{}

	if _, ok := t.joined[conn]; !ok {
		t.joined[conn] = make(map[domain.RoomID]struct{})
	}
	t.joined[conn][room] = struct{}{}
}

// Leave unsubscribes a connection from a room. Leaving a room the
// connection never joined is a no-op.
func (t *RoomTable) Leave(room domain.RoomID, conn domain.ConnectionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(room, conn)
}

// MembersOf returns the connections currently subscribed to a room.
// Nil when the room has no members.
func (t *RoomTable) MembersOf(room domain.RoomID) []domain.ConnectionID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	conns, ok := t.members[room]
	if !ok {
		return nil
	}
	return lo.Keys(conns)
}

// RoomsOf returns the rooms a connection has joined. Nil when none.
func (t *RoomTable) RoomsOf(conn domain.ConnectionID) []domain.RoomID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rooms, ok := t.joined[conn]
	if !ok {
		return nil
	}
	return lo.Keys(rooms)
}

// PurgeConnection removes the connection from every room it belongs to in
// one critical section, so a join racing a purge resolves to either
// "present then removed" or "never added" and never to a dangling entry.
func (t *RoomTable) PurgeConnection(conn domain.ConnectionID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for room := range t.joined[conn] {
		t.removeLocked(room, conn)
	}
}

// CountRooms reports the number of rooms with at least one member.
func (t *RoomTable) CountRooms() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.members)
}

func (t *RoomTable) removeLocked(room domain.RoomID, conn domain.ConnectionID) {
	if conns, ok := t.members[room]; ok {
		delete(conns, conn)
		// Empty rooms are pruned to keep the map from growing forever.
		if len(conns) == 0 {
			delete(t.members, room)
		}
	}
	if rooms, ok := t.joined[conn]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(t.joined, conn)
		}
	}
}
