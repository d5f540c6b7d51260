package main

import (
	"errors"
	"sync"
)

// Color identifies which side of the board a room slot plays.
type Color string

const (
	ColorWhite Color = "white"
	ColorBlack Color = "black"
)

// ErrRoomFull is returned by Join when a room already holds two players.
var ErrRoomFull = errors.New("room is full")

const roomCapacity = 2

// Registry tracks which participants occupy which rooms. Rooms are created
// implicitly on first join and deleted as soon as they drain, so a drained
// room is indistinguishable from one that never existed.
//
// Color assignment is purely positional: the first occupant of a room plays
// white, the second black. A departure followed by a fresh arrival hands the
// newcomer the vacated position; colors are not sticky across membership
// changes.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string][]string // roomID -> occupant IDs in arrival order
	members map[string]string   // participantID -> roomID reverse index
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string][]string),
		members: make(map[string]string),
	}
}

func colorForPosition(position int) Color {
	if position == 0 {
		return ColorWhite
	}
	return ColorBlack
}

// Join adds participantID to roomID and reports the color of its position.
// Joining a room the participant already occupies is idempotent and returns
// the color already held.
func (reg *Registry) Join(roomID, participantID string) (Color, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	occupants := reg.rooms[roomID]

	for i, id := range occupants {
		if id == participantID {
			return colorForPosition(i), nil
		}
	}

	if len(occupants) >= roomCapacity {
		return "", ErrRoomFull
	}

	reg.rooms[roomID] = append(occupants, participantID)
	reg.members[participantID] = roomID

	return colorForPosition(len(occupants)), nil
}

// Leave removes participantID from roomID and returns the remaining
// occupant count, deleting the room entry once it empties. Removing an
// absent participant is a no-op that reports the current count.
func (reg *Registry) Leave(roomID, participantID string) int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	occupants, ok := reg.rooms[roomID]
	if !ok {
		return 0
	}

	dst := occupants[:0]
	for _, id := range occupants {
		if id == participantID {
			continue
		}
		dst = append(dst, id)
	}

	if reg.members[participantID] == roomID {
		delete(reg.members, participantID)
	}

	if len(dst) == 0 {
		delete(reg.rooms, roomID)
		return 0
	}

	reg.rooms[roomID] = dst
	return len(dst)
}

// Occupancy returns the occupant count for roomID, 0 for unknown rooms.
func (reg *Registry) Occupancy(roomID string) int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	return len(reg.rooms[roomID])
}

// Occupants returns a snapshot of roomID's occupants in arrival order.
func (reg *Registry) Occupants(roomID string) []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	occupants := reg.rooms[roomID]
	out := make([]string, len(occupants))
	copy(out, occupants)

	return out
}

// RoomOf reports which room, if any, participantID currently occupies.
func (reg *Registry) RoomOf(participantID string) (string, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	roomID, ok := reg.members[participantID]
	return roomID, ok
}
