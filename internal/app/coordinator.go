package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/teamscreen/teamscreen/internal/core"
	"github.com/teamscreen/teamscreen/internal/domain"
	"github.com/teamscreen/teamscreen/pkg/protocol"
)

// Coordinator is the session gateway core. It binds connections to
// member identities, drives the room registry and presence tracker,
// and computes the notification fan-out for every operation in the
// same synchronous step as the mutation, so a notification never
// describes a state that has already changed again.
type Coordinator struct {
	Rooms    *RoomManager
	Sessions *Registry
	Presence *PresenceTracker
	Relay    *Relay
}

func NewCoordinator(rooms *RoomManager) *Coordinator {
	sessions := NewRegistry()
	return &Coordinator{
		Rooms:    rooms,
		Sessions: sessions,
		Presence: NewPresenceTracker(rooms),
		Relay:    NewRelay(sessions),
	}
}

// Connect binds a fresh connection and tells the client the id the
// transport assigned to it.
func (c *Coordinator) Connect(sess core.MemberSession, cancel context.CancelFunc) {
	mid := sess.Meta().ID
	c.Sessions.Bind(mid, sess, cancel)
	c.send(sess, protocol.Welcome{Type: protocol.KindWelcome, ID: string(mid)})
}

// CreateRoom allocates (or revives) a room and auto-joins the creator.
// Creation itself always succeeds; the auto-join still runs the
// capacity check, so creating into an existing full room is rejected
// like any other join.
func (c *Coordinator) CreateRoom(mid domain.MemberID, roomID, name, nickname string, capacity int) {
	sess, ok := c.Sessions.Get(mid)
	if !ok {
		return
	}
	id := c.Rooms.GetOrCreate(domain.RoomID(roomID), name, capacity)
	c.send(sess, protocol.RoomCreated{Type: protocol.KindRoomCreated, RoomID: string(id)})
	c.join(mid, sess, id, nickname)
}

// Join attempts to place the member into the room. The joiner receives
// the pre-join snapshot, everyone already there receives the delta.
func (c *Coordinator) Join(mid domain.MemberID, roomID, nickname string) {
	sess, ok := c.Sessions.Get(mid)
	if !ok {
		return
	}
	c.join(mid, sess, domain.RoomID(roomID), nickname)
}

func (c *Coordinator) join(mid domain.MemberID, sess core.MemberSession, id domain.RoomID, nickname string) {
	// Switching rooms is an explicit leave first, so the old room
	// observes the departure before the new one sees the arrival.
	if cur, ok := c.Rooms.RoomOf(mid); ok && cur != id {
		c.Leave(mid)
	}

	snapshot, peers, err := c.Rooms.Join(id, sess, nickname)
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		c.send(sess, protocol.Envelope{Type: protocol.KindRoomNotFound})
		return
	case errors.Is(err, domain.ErrRoomFull):
		c.send(sess, protocol.Envelope{Type: protocol.KindRoomFull})
		return
	case err != nil:
		log.Error().Err(err).Str("module", "app.coordinator").Str("member", string(mid)).Msg("join")
		return
	}

	c.send(sess, protocol.AllUsers{Type: protocol.KindAllUsers, Users: snapshot})

	meta := sess.Meta()
	c.broadcast(peers, protocol.UserJoined{
		Type: protocol.KindUserJoined,
		MemberInfo: protocol.MemberInfo{
			ID:        string(mid),
			Nickname:  meta.Nickname,
			IsSharing: meta.Sharing,
		},
	})
}

// Leave removes the member from its room and notifies the remainder.
// A room emptied by the departure is already gone by the time this
// returns, so nobody is notified about it.
func (c *Coordinator) Leave(mid domain.MemberID) {
	roomID, remaining, deleted := c.Rooms.Leave(mid)
	if roomID == "" {
		return
	}
	if !deleted {
		c.broadcast(remaining, protocol.UserExit{Type: protocol.KindUserExit, ID: string(mid)})
	}
}

// Disconnect is transport loss: the same cleanup as an explicit leave,
// then the connection context is cancelled so its pumps stop, and the
// binding is released.
func (c *Coordinator) Disconnect(mid domain.MemberID) {
	c.Leave(mid)
	c.Sessions.Cancel(mid)
	c.Sessions.Unbind(mid)
}

// SetSharing flips the presence flag and notifies everyone else in the
// room. The toggling member never hears its own change.
func (c *Coordinator) SetSharing(mid domain.MemberID, sharing bool) {
	prior, peers, err := c.Presence.SetSharing(mid, sharing)
	if err != nil {
		log.Debug().Err(err).Str("module", "app.coordinator").Str("member", string(mid)).Msg("set sharing outside a room")
		return
	}
	log.Info().Str("module", "app.coordinator").Str("member", string(mid)).Bool("sharing", sharing).Bool("prior", prior).Msg("sharing status")
	c.broadcast(peers, protocol.UserScreenShareStatus{
		Type:      protocol.KindUserScreenShareStatus,
		UserID:    string(mid),
		IsSharing: sharing,
	})
}

// Chat echoes the message to the whole room including the sender,
// stamped with the server time. Not persisted anywhere.
func (c *Coordinator) Chat(mid domain.MemberID, text string) {
	sess, ok := c.Sessions.Get(mid)
	if !ok {
		return
	}
	members := c.Rooms.RoomMembers(mid)
	if len(members) == 0 {
		return
	}
	c.broadcast(members, protocol.ReceiveMessage{
		Type:      protocol.KindReceiveMessage,
		SenderID:  string(mid),
		Nickname:  sess.Meta().Nickname,
		Message:   text,
		Timestamp: time.Now().UnixMilli(),
	})
}

// Offer, Answer, Candidate and RequestOffer hand the opaque payloads
// to the relay with the sender identity resolved.

func (c *Coordinator) Offer(mid domain.MemberID, to string, sdp json.RawMessage) {
	if sess, ok := c.Sessions.Get(mid); ok {
		c.Relay.Offer(sess, domain.MemberID(to), sdp)
	}
}

func (c *Coordinator) Answer(mid domain.MemberID, to string, sdp json.RawMessage) {
	if sess, ok := c.Sessions.Get(mid); ok {
		c.Relay.Answer(sess, domain.MemberID(to), sdp)
	}
}

func (c *Coordinator) Candidate(mid domain.MemberID, to string, candidate json.RawMessage) {
	if sess, ok := c.Sessions.Get(mid); ok {
		c.Relay.Candidate(sess, domain.MemberID(to), candidate)
	}
}

func (c *Coordinator) RequestOffer(mid domain.MemberID, to string) {
	if sess, ok := c.Sessions.Get(mid); ok {
		c.Relay.RequestOffer(sess, domain.MemberID(to))
	}
}

func (c *Coordinator) send(sess core.MemberSession, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Msg("marshal")
		return
	}
	if err := sess.Signal().TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "app.coordinator").Str("member", string(sess.Meta().ID)).Msg("send dropped")
	}
}

func (c *Coordinator) broadcast(sessions []core.MemberSession, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Msg("marshal")
		return
	}
	for _, sess := range sessions {
		if err := sess.Signal().TrySend(b); err != nil {
			log.Debug().Err(err).Str("module", "app.coordinator").Str("member", string(sess.Meta().ID)).Msg("broadcast drop")
		}
	}
}
