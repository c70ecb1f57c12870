// Package protocol defines the signaling wire format shared by the
// server and the client library. Every message is a flat JSON object
// carrying a "type" discriminator; SDP and ICE payloads stay opaque
// (json.RawMessage) on the server side.
package protocol

import "encoding/json"

// Message type names. Inbound (client→server) and outbound
// (server→client) kinds live in one place so there is exactly one
// source of truth for the protocol surface.
const (
	// room lifecycle
	KindCreateRoom   = "create_room"
	KindRoomCreated  = "room_created"
	KindJoinRoom     = "join_room"
	KindLeaveRoom    = "leave_room"
	KindAllUsers     = "all_users"
	KindRoomNotFound = "room_not_found"
	KindRoomFull     = "room_full"
	KindUserJoined   = "user_joined"
	KindUserExit     = "user_exit"

	// connection negotiation relay (payloads are never inspected)
	KindOffer        = "offer"
	KindGetOffer     = "getOffer"
	KindAnswer       = "answer"
	KindGetAnswer    = "getAnswer"
	KindCandidate    = "candidate"
	KindGetCandidate = "getCandidate"
	KindRequestOffer = "request_offer"

	// presence and chat
	KindScreenShareStatus     = "screen_share_status"
	KindUserScreenShareStatus = "user_screen_share_status"
	KindSendMessage           = "send_message"
	KindReceiveMessage        = "receive_message"

	// connection control
	KindWelcome = "welcome"
	KindPing    = "ping"
	KindPong    = "pong"
)

// Envelope carries only the discriminator; handlers re-unmarshal the
// full payload for the kind they own.
type Envelope struct {
	Type string `json:"type"`
}

// MemberInfo is the public view of one room participant.
type MemberInfo struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	IsSharing bool   `json:"isSharing"`
}

// RoomInfo is the lobby view of a room.
type RoomInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"memberCount"`
	Capacity    int    `json:"capacity"`
	CreatedAt   int64  `json:"createdAt"`
}

// Welcome tells a freshly connected client its transport-assigned id.
type Welcome struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type CreateRoom struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId,omitempty"`
	RoomName string `json:"roomName,omitempty"`
	Nickname string `json:"nickname"`
	Capacity int    `json:"capacity,omitempty"`
}

type RoomCreated struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

type JoinRoom struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	Nickname string `json:"nickname"`
}

type AllUsers struct {
	Type  string       `json:"type"`
	Users []MemberInfo `json:"users"`
}

// UserJoined flattens the member info into the event, matching the
// shape of the entries in the all_users snapshot.
type UserJoined struct {
	Type string `json:"type"`
	MemberInfo
}

type UserExit struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Offer, Answer and Candidate are the inbound halves of the relay:
// the sender names one receiver, the payload passes through untouched.
type Offer struct {
	Type string          `json:"type"`
	To   string          `json:"to"`
	SDP  json.RawMessage `json:"sdp"`
}

type Answer struct {
	Type string          `json:"type"`
	To   string          `json:"to"`
	SDP  json.RawMessage `json:"sdp"`
}

type Candidate struct {
	Type      string          `json:"type"`
	To        string          `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

// GetOffer, GetAnswer and GetCandidate are the outbound halves, with
// the sender identity attached by the server.
type GetOffer struct {
	Type           string          `json:"type"`
	SDP            json.RawMessage `json:"sdp"`
	SenderID       string          `json:"senderId"`
	SenderNickname string          `json:"senderNickname"`
}

type GetAnswer struct {
	Type     string          `json:"type"`
	SDP      json.RawMessage `json:"sdp"`
	SenderID string          `json:"senderId"`
}

type GetCandidate struct {
	Type      string          `json:"type"`
	Candidate json.RawMessage `json:"candidate"`
	SenderID  string          `json:"senderId"`
}

// RequestOffer asks a sharing peer to (re)send an offer. Inbound it
// names the target; outbound it carries the requester identity.
type RequestOffer struct {
	Type              string `json:"type"`
	To                string `json:"to,omitempty"`
	RequesterID       string `json:"requesterId,omitempty"`
	RequesterNickname string `json:"requesterNickname,omitempty"`
}

type ScreenShareStatus struct {
	Type      string `json:"type"`
	IsSharing bool   `json:"isSharing"`
}

type UserScreenShareStatus struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	IsSharing bool   `json:"isSharing"`
}

type SendMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ReceiveMessage struct {
	Type      string `json:"type"`
	SenderID  string `json:"senderId"`
	Nickname  string `json:"nickname"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}
