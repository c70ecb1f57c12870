package app

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/teamscreen/teamscreen/internal/core"
	"github.com/teamscreen/teamscreen/internal/domain"
	"github.com/teamscreen/teamscreen/pkg/protocol"
)

// roomEntry pairs room meta with its live member sessions.
type roomEntry struct {
	room    *domain.Room
	members map[domain.MemberID]core.MemberSession
}

// RoomManager is the room registry: the only mutable shared state of
// the coordinator. Every operation that checks and mutates membership
// does so under a single lock acquisition, so two joins racing for the
// last slot can never over-admit and notifications never describe a
// state that has already changed again.
type RoomManager struct {
	mu         sync.RWMutex
	rooms      map[domain.RoomID]*roomEntry
	memberRoom map[domain.MemberID]domain.RoomID
	defaultCap int
	maxCap     int
}

func NewRoomManager(defaultCapacity, maxCapacity int) *RoomManager {
	if defaultCapacity <= 0 {
		defaultCapacity = 5
	}
	return &RoomManager{
		rooms:      make(map[domain.RoomID]*roomEntry),
		memberRoom: make(map[domain.MemberID]domain.RoomID),
		defaultCap: defaultCapacity,
		maxCap:     maxCapacity,
	}
}

func (m *RoomManager) normalizeCapacity(c int) int {
	if c <= 0 {
		return m.defaultCap
	}
	if m.maxCap > 0 && c > m.maxCap {
		return m.maxCap
	}
	return c
}

// Create allocates a fresh room. It always succeeds.
func (m *RoomManager) Create(name string, capacity int) domain.RoomID {
	return m.GetOrCreate("", name, capacity)
}

// GetOrCreate registers a room under a caller-supplied id, keeping the
// flow where clients pick their own room codes. An empty id gets a
// generated one; an existing id leaves the room untouched.
func (m *RoomManager) GetOrCreate(id domain.RoomID, name string, capacity int) domain.RoomID {
	if id == "" {
		id = domain.RoomID(uuid.NewString())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; !ok {
		if name == "" {
			name = string(id)
		}
		m.rooms[id] = &roomEntry{
			room: &domain.Room{
				ID:        id,
				Name:      domain.RoomName(name),
				Capacity:  m.normalizeCapacity(capacity),
				CreatedAt: time.Now(),
			},
			members: make(map[domain.MemberID]core.MemberSession),
		}
		log.Info().Str("module", "app.rooms").Str("room", string(id)).Int("capacity", m.rooms[id].room.Capacity).Msg("room created")
	}
	return id
}

// Join is the atomic check-and-insert. On success it returns the
// snapshot of members present before insertion, for delivery to the
// joining client, and their live sessions, the fan-out set for the
// user_joined delta. Both come out of the same lock acquisition as the
// insert, so the fan-out can never describe a membership that has
// moved on. A join against a full room is rejected, never queued, and
// leaves membership unchanged.
func (m *RoomManager) Join(id domain.RoomID, sess core.MemberSession, nickname string) ([]protocol.MemberInfo, []core.MemberSession, error) {
	mid := sess.Meta().ID
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.rooms[id]
	if !ok {
		return nil, nil, domain.ErrRoomNotFound
	}
	if prev, ok := m.memberRoom[mid]; ok && prev == id {
		// rejoin of the same room: refresh rather than double-count
		delete(e.members, mid)
		delete(m.memberRoom, mid)
	}
	if len(e.members) >= e.room.Capacity {
		return nil, nil, domain.ErrRoomFull
	}
	if prev, ok := m.memberRoom[mid]; ok {
		// a member occupies at most one room at a time
		m.removeLocked(prev, mid)
	}

	snapshot := memberInfosLocked(e)
	peers := sessionsLocked(e, "")
	meta := sess.Meta()
	meta.SetNickname(nickname)
	meta.Sharing = false
	e.members[mid] = sess
	m.memberRoom[mid] = id
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("member", string(mid)).Str("nickname", meta.Nickname).Msg("member joined")
	return snapshot, peers, nil
}

// Leave removes the member from whatever room it occupies; a room left
// with zero members is deleted in the same step. It reports the room,
// the remaining sessions to notify and whether the room was deleted.
func (m *RoomManager) Leave(mid domain.MemberID) (domain.RoomID, []core.MemberSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.memberRoom[mid]
	if !ok {
		return "", nil, false
	}
	deleted := m.removeLocked(id, mid)
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("member", string(mid)).Bool("room_deleted", deleted).Msg("member left")
	if deleted {
		return id, nil, true
	}
	return id, sessionsLocked(m.rooms[id], ""), false
}

// removeLocked drops mid from the room and deletes the room when it
// becomes empty. Caller holds the write lock.
func (m *RoomManager) removeLocked(id domain.RoomID, mid domain.MemberID) bool {
	e, ok := m.rooms[id]
	if !ok {
		return false
	}
	delete(e.members, mid)
	delete(m.memberRoom, mid)
	if len(e.members) == 0 {
		delete(m.rooms, id)
		return true
	}
	return false
}

// RoomOf reports which room the member currently occupies.
func (m *RoomManager) RoomOf(mid domain.MemberID) (domain.RoomID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.memberRoom[mid]
	return id, ok
}

// RoomMembers returns every session in mid's room, mid included.
func (m *RoomManager) RoomMembers(mid domain.MemberID) []core.MemberSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.memberRoom[mid]
	if !ok {
		return nil
	}
	return sessionsLocked(m.rooms[id], "")
}

// setSharing flips the presence flag under the registry lock. Only the
// presence tracker calls this; the prior value and the peers to notify
// come back from the same synchronous step.
func (m *RoomManager) setSharing(mid domain.MemberID, sharing bool) (bool, []core.MemberSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.memberRoom[mid]
	if !ok {
		return false, nil, domain.ErrNotInRoom
	}
	e := m.rooms[id]
	meta := e.members[mid].Meta()
	prior := meta.Sharing
	meta.Sharing = sharing
	return prior, sessionsLocked(e, mid), nil
}

// List is the read-only lobby snapshot, oldest room first.
func (m *RoomManager) List() []protocol.RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]protocol.RoomInfo, 0, len(m.rooms))
	for _, e := range m.rooms {
		out = append(out, protocol.RoomInfo{
			ID:          string(e.room.ID),
			Name:        string(e.room.Name),
			MemberCount: len(e.members),
			Capacity:    e.room.Capacity,
			CreatedAt:   e.room.CreatedAt.UnixMilli(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func memberInfosLocked(e *roomEntry) []protocol.MemberInfo {
	out := make([]protocol.MemberInfo, 0, len(e.members))
	for _, ms := range e.members {
		meta := ms.Meta()
		out = append(out, protocol.MemberInfo{
			ID:        string(meta.ID),
			Nickname:  meta.Nickname,
			IsSharing: meta.Sharing,
		})
	}
	return out
}

func sessionsLocked(e *roomEntry, exclude domain.MemberID) []core.MemberSession {
	out := make([]core.MemberSession, 0, len(e.members))
	for mid, ms := range e.members {
		if mid == exclude {
			continue
		}
		out = append(out, ms)
	}
	return out
}
