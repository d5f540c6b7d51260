package main

import (
	"errors"
	"testing"
)

func TestJoinAssignsPositionalColors(t *testing.T) {
	reg := NewRegistry()

	color, err := reg.Join("r1", "a")
	if err != nil {
		t.Fatalf("expected first join to succeed, got %v", err)
	}
	if color != ColorWhite {
		t.Fatalf("expected first occupant to play white, got %q", color)
	}

	color, err = reg.Join("r1", "b")
	if err != nil {
		t.Fatalf("expected second join to succeed, got %v", err)
	}
	if color != ColorBlack {
		t.Fatalf("expected second occupant to play black, got %q", color)
	}

	if _, err := reg.Join("r1", "c"); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("expected third join to fail with ErrRoomFull, got %v", err)
	}

	if n := reg.Occupancy("r1"); n != 2 {
		t.Fatalf("expected rejected join to leave occupancy at 2, got %d", n)
	}
	if _, ok := reg.RoomOf("c"); ok {
		t.Fatalf("expected rejected joiner to hold no seat")
	}
}

func TestJoinIsIdempotentForExistingMember(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Join("r1", "a"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	color, err := reg.Join("r1", "a")
	if err != nil {
		t.Fatalf("expected re-join of a member to succeed, got %v", err)
	}
	if color != ColorWhite {
		t.Fatalf("expected re-join to return the held color, got %q", color)
	}
	if n := reg.Occupancy("r1"); n != 1 {
		t.Fatalf("expected re-join to not duplicate the member, occupancy %d", n)
	}
}

func TestLeaveDrainsAndDeletesRooms(t *testing.T) {
	reg := NewRegistry()

	_, _ = reg.Join("r1", "a")
	_, _ = reg.Join("r1", "b")

	if remaining := reg.Leave("r1", "a"); remaining != 1 {
		t.Fatalf("expected 1 remaining after first leave, got %d", remaining)
	}
	if _, ok := reg.RoomOf("a"); ok {
		t.Fatalf("expected reverse index entry for %q to be gone", "a")
	}

	// Removing an already-absent participant is a no-op, not an error.
	if remaining := reg.Leave("r1", "a"); remaining != 1 {
		t.Fatalf("expected idempotent leave to report current count 1, got %d", remaining)
	}

	if remaining := reg.Leave("r1", "b"); remaining != 0 {
		t.Fatalf("expected 0 remaining after room drains, got %d", remaining)
	}

	// A drained room is indistinguishable from one that never existed.
	if n := reg.Occupancy("r1"); n != 0 {
		t.Fatalf("expected drained room occupancy 0, got %d", n)
	}
	if occ := reg.Occupants("r1"); len(occ) != 0 {
		t.Fatalf("expected drained room to have no occupants, got %v", occ)
	}
	if remaining := reg.Leave("r1", "b"); remaining != 0 {
		t.Fatalf("expected leave on unknown room to be a no-op, got %d", remaining)
	}
}

func TestOccupancyIsTotalForUnknownRooms(t *testing.T) {
	reg := NewRegistry()

	if n := reg.Occupancy("never-created"); n != 0 {
		t.Fatalf("expected unknown room occupancy 0, got %d", n)
	}
	if _, ok := reg.RoomOf("nobody"); ok {
		t.Fatalf("expected unknown participant to have no room")
	}
}

func TestColorAssignmentIsPositionalNotSticky(t *testing.T) {
	reg := NewRegistry()

	// A room fully drained hands white to the next arrival.
	_, _ = reg.Join("r2", "a")
	reg.Leave("r2", "a")

	color, err := reg.Join("r2", "c")
	if err != nil {
		t.Fatalf("join after drain failed: %v", err)
	}
	if color != ColorWhite {
		t.Fatalf("expected first arrival in drained room to play white, got %q", color)
	}

	// A partial departure assigns by current list length, so the newcomer
	// gets black even though black just left.
	_, _ = reg.Join("r3", "a")
	_, _ = reg.Join("r3", "b")
	reg.Leave("r3", "a")

	color, err = reg.Join("r3", "d")
	if err != nil {
		t.Fatalf("join into vacated seat failed: %v", err)
	}
	if color != ColorBlack {
		t.Fatalf("expected positional assignment to give black, got %q", color)
	}
}

func TestOccupancyTracksJoinLeaveCycles(t *testing.T) {
	reg := NewRegistry()

	for i := 0; i < 5; i++ {
		if _, err := reg.Join("r4", "a"); err != nil {
			t.Fatalf("cycle %d: join failed: %v", i, err)
		}
		if n := reg.Occupancy("r4"); n != 1 {
			t.Fatalf("cycle %d: expected occupancy 1, got %d", i, n)
		}
		reg.Leave("r4", "a")
		if n := reg.Occupancy("r4"); n != 0 {
			t.Fatalf("cycle %d: expected occupancy 0, got %d", i, n)
		}
	}
}
