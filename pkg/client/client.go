// Package client is the Go client library for the teamscreen
// coordinator. It speaks the signaling protocol over a websocket,
// keeps the room roster, and drives one negotiation link per peer
// through a pluggable media engine.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/teamscreen/teamscreen/pkg/protocol"
)

var ErrClosed = errors.New("client: connection closed")

// Events are optional callbacks fired from the read loop. Handlers
// must not block; slow work belongs on the caller's own goroutine.
type Events struct {
	OnWelcome        func(selfID string)
	OnRoomCreated    func(roomID string)
	OnJoined         func(users []protocol.MemberInfo)
	OnJoinRejected   func(reason string)
	OnMemberJoined   func(u protocol.MemberInfo)
	OnMemberLeft     func(id string)
	OnSharingChanged func(id string, sharing bool)
	OnChat           func(msg protocol.ReceiveMessage)
	OnLinkState      func(peerID string, state LinkState)
	OnDisconnect     func(err error)
}

type Options struct {
	// URL of the signaling endpoint, e.g. ws://host:9090/api/ws/signal.
	URL      string
	Nickname string
	// Negotiate builds the media engine per peer. Required for any
	// client that shares or views; a chat-only client may leave it nil.
	Negotiate NegotiatorFactory
	// RetryDelays overrides the renegotiation retry cadence.
	RetryDelays []time.Duration
	Dialer      *websocket.Dialer
	Events      Events
}

// Client is one signaling connection. Safe for concurrent use; writes
// are serialized on an internal mutex.
type Client struct {
	conn  *websocket.Conn
	opts  Options
	peers *PeerManager

	writeMu sync.Mutex

	mu     sync.Mutex
	selfID string

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the coordinator and starts the read loop. The
// returned client is ready once the welcome message arrives; callers
// that need their own id before acting should wait for OnWelcome.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn: conn,
		opts: opts,
		done: make(chan struct{}),
	}
	factory := opts.Negotiate
	if factory == nil {
		factory = func(string, func(webrtc.ICECandidateInit), func()) (Negotiator, error) {
			return nil, errors.New("client: no negotiator configured")
		}
	}
	c.peers = NewPeerManager(c, factory, newRetryScheduler(opts.RetryDelays), opts.Events.OnLinkState)

	go c.readLoop()
	return c, nil
}

// SelfID returns the transport-assigned member id, empty before the
// welcome message has arrived.
func (c *Client) SelfID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfID
}

// Peers exposes the roster and link states.
func (c *Client) Peers() *PeerManager { return c.peers }

// Close tears down every peer link and the websocket.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.peers.Close()
		err = c.conn.Close()
	})
	return err
}

// CreateRoom asks the coordinator for a room and joins it. Empty id
// lets the server pick one; capacity 0 means the server default.
func (c *Client) CreateRoom(roomID, roomName string, capacity int) error {
	return c.sendJSON(protocol.CreateRoom{
		Type:     protocol.KindCreateRoom,
		RoomID:   roomID,
		RoomName: roomName,
		Nickname: c.opts.Nickname,
		Capacity: capacity,
	})
}

// Join enters an existing room. Rejections arrive as OnJoinRejected.
func (c *Client) Join(roomID string) error {
	return c.sendJSON(protocol.JoinRoom{
		Type:     protocol.KindJoinRoom,
		RoomID:   roomID,
		Nickname: c.opts.Nickname,
	})
}

// Leave exits the current room without closing the connection. Every
// peer link is torn down first; the peers are gone from our point of
// view the moment we step out.
func (c *Client) Leave() error {
	c.peers.Reset()
	return c.sendJSON(protocol.Envelope{Type: protocol.KindLeaveRoom})
}

// SetSharing flips the local sharing flag and announces it to the
// room. Viewers then request offers themselves.
func (c *Client) SetSharing(sharing bool) error {
	c.peers.SetSharing(sharing)
	return c.sendJSON(protocol.ScreenShareStatus{
		Type:      protocol.KindScreenShareStatus,
		IsSharing: sharing,
	})
}

// SendChat broadcasts a chat message to the room, sender included.
func (c *Client) SendChat(message string) error {
	return c.sendJSON(protocol.SendMessage{
		Type:    protocol.KindSendMessage,
		Message: message,
	})
}

// Ping sends an application-level ping; the server echoes a pong.
func (c *Client) Ping() error {
	return c.sendJSON(protocol.Envelope{Type: protocol.KindPing})
}

// SendOffer and the other senders below implement signalSender for the
// peer manager. Payloads are marshalled here and travel opaque from
// the server's point of view.
func (c *Client) SendOffer(to string, sdp webrtc.SessionDescription) error {
	raw, err := json.Marshal(sdp)
	if err != nil {
		return err
	}
	return c.sendJSON(protocol.Offer{Type: protocol.KindOffer, To: to, SDP: raw})
}

func (c *Client) SendAnswer(to string, sdp webrtc.SessionDescription) error {
	raw, err := json.Marshal(sdp)
	if err != nil {
		return err
	}
	return c.sendJSON(protocol.Answer{Type: protocol.KindAnswer, To: to, SDP: raw})
}

func (c *Client) SendCandidate(to string, candidate webrtc.ICECandidateInit) error {
	raw, err := json.Marshal(candidate)
	if err != nil {
		return err
	}
	return c.sendJSON(protocol.Candidate{Type: protocol.KindCandidate, To: to, Candidate: raw})
}

func (c *Client) SendRequestOffer(to string) error {
	return c.sendJSON(protocol.RequestOffer{Type: protocol.KindRequestOffer, To: to})
}

func (c *Client) sendJSON(v any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *Client) readLoop() {
	var readErr error
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		c.dispatch(data)
	}

	select {
	case <-c.done:
		readErr = nil
	default:
		c.Close()
	}
	if c.opts.Events.OnDisconnect != nil {
		c.opts.Events.OnDisconnect(readErr)
	}
}

func (c *Client) dispatch(data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debug().Err(err).Str("module", "client").Msg("unparseable message")
		return
	}

	ev := c.opts.Events
	switch env.Type {
	case protocol.KindWelcome:
		var msg protocol.Welcome
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		c.mu.Lock()
		c.selfID = msg.ID
		c.mu.Unlock()
		if ev.OnWelcome != nil {
			ev.OnWelcome(msg.ID)
		}

	case protocol.KindRoomCreated:
		var msg protocol.RoomCreated
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		if ev.OnRoomCreated != nil {
			ev.OnRoomCreated(msg.RoomID)
		}

	case protocol.KindAllUsers:
		var msg protocol.AllUsers
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		c.peers.HandleRoster(msg.Users)
		if ev.OnJoined != nil {
			ev.OnJoined(msg.Users)
		}

	case protocol.KindRoomNotFound, protocol.KindRoomFull:
		if ev.OnJoinRejected != nil {
			ev.OnJoinRejected(env.Type)
		}

	case protocol.KindUserJoined:
		var msg protocol.UserJoined
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		c.peers.HandleUserJoined(msg.MemberInfo)
		if ev.OnMemberJoined != nil {
			ev.OnMemberJoined(msg.MemberInfo)
		}

	case protocol.KindUserExit:
		var msg protocol.UserExit
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		c.peers.HandleUserExit(msg.ID)
		if ev.OnMemberLeft != nil {
			ev.OnMemberLeft(msg.ID)
		}

	case protocol.KindGetOffer:
		var msg protocol.GetOffer
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		var sdp webrtc.SessionDescription
		if err := json.Unmarshal(msg.SDP, &sdp); err != nil {
			log.Debug().Err(err).Str("module", "client").Str("from", msg.SenderID).Msg("bad offer payload")
			return
		}
		c.peers.HandleOffer(msg.SenderID, sdp)

	case protocol.KindGetAnswer:
		var msg protocol.GetAnswer
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		var sdp webrtc.SessionDescription
		if err := json.Unmarshal(msg.SDP, &sdp); err != nil {
			log.Debug().Err(err).Str("module", "client").Str("from", msg.SenderID).Msg("bad answer payload")
			return
		}
		c.peers.HandleAnswer(msg.SenderID, sdp)

	case protocol.KindGetCandidate:
		var msg protocol.GetCandidate
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		var candidate webrtc.ICECandidateInit
		if err := json.Unmarshal(msg.Candidate, &candidate); err != nil {
			log.Debug().Err(err).Str("module", "client").Str("from", msg.SenderID).Msg("bad candidate payload")
			return
		}
		c.peers.HandleCandidate(msg.SenderID, candidate)

	case protocol.KindRequestOffer:
		var msg protocol.RequestOffer
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		c.peers.HandleRequestOffer(msg.RequesterID)

	case protocol.KindUserScreenShareStatus:
		var msg protocol.UserScreenShareStatus
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		c.peers.HandleSharingChanged(msg.UserID, msg.IsSharing)
		if ev.OnSharingChanged != nil {
			ev.OnSharingChanged(msg.UserID, msg.IsSharing)
		}

	case protocol.KindReceiveMessage:
		var msg protocol.ReceiveMessage
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		if ev.OnChat != nil {
			ev.OnChat(msg)
		}

	case protocol.KindPong:
		// keepalive echo, nothing to do

	default:
		log.Debug().Str("module", "client").Str("type", env.Type).Msg("unknown message type")
	}
}
