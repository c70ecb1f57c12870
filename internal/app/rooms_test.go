package app

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/teamscreen/teamscreen/internal/domain"
)

func TestJoinUnknownRoom(t *testing.T) {
	m := NewRoomManager(5, 16)
	sess, _ := newFakeSession("alice")
	if _, _, err := m.Join("nope", sess, "alice"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestJoinReturnsPreJoinSnapshot(t *testing.T) {
	m := NewRoomManager(5, 16)
	id := m.Create("demo", 5)

	bob, _ := newFakeSession("bob")
	snap, _, err := m.Join(id, bob, "Bob")
	if err != nil {
		t.Fatalf("bob join: %v", err)
	}
	if len(snap) != 0 {
		t.Fatalf("first joiner should see empty snapshot, got %v", snap)
	}

	alice, _ := newFakeSession("alice")
	snap, _, err = m.Join(id, alice, "Alice")
	if err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if len(snap) != 1 || snap[0].ID != "bob" || snap[0].Nickname != "Bob" {
		t.Fatalf("snapshot should hold bob only, got %v", snap)
	}
}

func TestJoinReturnsFanOutSessions(t *testing.T) {
	m := NewRoomManager(5, 16)
	id := m.Create("fan", 5)
	bob, _ := newFakeSession("bob")
	if _, _, err := m.Join(id, bob, "Bob"); err != nil {
		t.Fatalf("bob join: %v", err)
	}

	alice, _ := newFakeSession("alice")
	snap, peers, err := m.Join(id, alice, "Alice")
	if err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if len(peers) != 1 || peers[0].Meta().ID != "bob" {
		t.Fatalf("fan-out set should be bob only, got %v", peers)
	}
	if len(snap) != len(peers) {
		t.Fatalf("snapshot and fan-out set must describe the same membership: %d vs %d", len(snap), len(peers))
	}
}

func TestJoinFullRoomRejectedAndUnchanged(t *testing.T) {
	m := NewRoomManager(5, 16)
	id := m.Create("small", 2)
	for i := 0; i < 2; i++ {
		sess, _ := newFakeSession(fmt.Sprintf("m%d", i))
		if _, _, err := m.Join(id, sess, ""); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}

	late, _ := newFakeSession("late")
	if _, _, err := m.Join(id, late, "late"); !errors.Is(err, domain.ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}
	if _, ok := m.RoomOf("late"); ok {
		t.Fatal("rejected joiner must not be registered anywhere")
	}
	if got := len(m.RoomMembers("m0")); got != 2 {
		t.Fatalf("membership changed by rejected join: %d members", got)
	}
}

func TestConcurrentJoinsNeverOverAdmit(t *testing.T) {
	m := NewRoomManager(5, 64)
	id := m.Create("race", 3)

	const contenders = 20
	var wg sync.WaitGroup
	errs := make(chan error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, _ := newFakeSession(fmt.Sprintf("c%d", i))
			_, _, err := m.Join(id, sess, "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	admitted, full := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			admitted++
		case errors.Is(err, domain.ErrRoomFull):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if admitted != 3 || full != contenders-3 {
		t.Fatalf("capacity 3: admitted=%d full=%d", admitted, full)
	}
}

func TestLeaveDeletesEmptyRoom(t *testing.T) {
	m := NewRoomManager(5, 16)
	id := m.Create("solo", 5)
	sess, _ := newFakeSession("only")
	if _, _, err := m.Join(id, sess, ""); err != nil {
		t.Fatalf("join: %v", err)
	}

	roomID, remaining, deleted := m.Leave("only")
	if roomID != id || !deleted || remaining != nil {
		t.Fatalf("leave = (%v, %v, %v), want (%v, nil, true)", roomID, remaining, deleted, id)
	}
	if rooms := m.List(); len(rooms) != 0 {
		t.Fatalf("empty room must disappear from the lobby, got %v", rooms)
	}
	again, _ := newFakeSession("again")
	if _, _, err := m.Join(id, again, ""); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("deleted room id must not be joinable, got %v", err)
	}
}

func TestLeaveReportsRemainder(t *testing.T) {
	m := NewRoomManager(5, 16)
	id := m.Create("pair", 5)
	a, _ := newFakeSession("a")
	b, _ := newFakeSession("b")
	m.Join(id, a, "")
	m.Join(id, b, "")

	_, remaining, deleted := m.Leave("a")
	if deleted {
		t.Fatal("room with a remaining member must not be deleted")
	}
	if len(remaining) != 1 || remaining[0].Meta().ID != "b" {
		t.Fatalf("remaining = %v, want just b", remaining)
	}
}

func TestMemberOccupiesOneRoom(t *testing.T) {
	m := NewRoomManager(5, 16)
	first := m.Create("first", 5)
	second := m.Create("second", 5)

	keep, _ := newFakeSession("keep")
	m.Join(first, keep, "")
	mover, _ := newFakeSession("mover")
	m.Join(first, mover, "")

	if _, _, err := m.Join(second, mover, ""); err != nil {
		t.Fatalf("move: %v", err)
	}
	if id, _ := m.RoomOf("mover"); id != second {
		t.Fatalf("mover should be in %v, got %v", second, id)
	}
	if got := len(m.RoomMembers("keep")); got != 1 {
		t.Fatalf("first room should be down to 1 member, got %d", got)
	}
}

func TestRejoinSameRoomRefreshes(t *testing.T) {
	m := NewRoomManager(5, 16)
	id := m.Create("again", 2)
	sess, _ := newFakeSession("dup")
	if _, _, err := m.Join(id, sess, "old"); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if _, _, err := m.Join(id, sess, "new"); err != nil {
		t.Fatalf("rejoin must not count against capacity: %v", err)
	}
	members := m.RoomMembers("dup")
	if len(members) != 1 {
		t.Fatalf("rejoin double-counted: %d members", len(members))
	}
	if nick := members[0].Meta().Nickname; nick != "new" {
		t.Fatalf("rejoin should refresh nickname, got %q", nick)
	}
}

func TestCapacityNormalization(t *testing.T) {
	m := NewRoomManager(5, 16)
	m.GetOrCreate("defaulted", "", 0)
	m.GetOrCreate("clamped", "", 100)

	caps := make(map[string]int)
	for _, r := range m.List() {
		caps[r.ID] = r.Capacity
	}
	if caps["defaulted"] != 5 {
		t.Errorf("capacity 0 should fall back to default 5, got %d", caps["defaulted"])
	}
	if caps["clamped"] != 16 {
		t.Errorf("capacity above max should clamp to 16, got %d", caps["clamped"])
	}
}

func TestListOrderedByCreation(t *testing.T) {
	m := NewRoomManager(5, 16)
	m.GetOrCreate("older", "Older", 0)
	time.Sleep(2 * time.Millisecond)
	m.GetOrCreate("newer", "Newer", 0)

	rooms := m.List()
	if len(rooms) != 2 || rooms[0].ID != "older" || rooms[1].ID != "newer" {
		t.Fatalf("lobby order wrong: %v", rooms)
	}
}
