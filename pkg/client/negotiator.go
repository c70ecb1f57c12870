package client

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// Negotiator is the pluggable media-negotiation engine behind one peer
// link. The library never generates or interprets descriptions itself;
// it only moves the engine's SDP and candidates through the
// coordinator.
type Negotiator interface {
	// CreateOffer produces the local description for a fresh link.
	CreateOffer(ctx context.Context) (webrtc.SessionDescription, error)
	// AcceptOffer applies a remote offer and produces the answer.
	AcceptOffer(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
	// AcceptAnswer applies the remote answer to a link we offered on.
	AcceptAnswer(ctx context.Context, answer webrtc.SessionDescription) error
	// AddCandidate feeds a remote network-path candidate to the engine.
	AddCandidate(webrtc.ICECandidateInit) error
	Close() error
}

// NegotiatorFactory builds the engine for one peer link. The engine
// must call emitCandidate for every locally discovered candidate and
// onConnected once the direct connection is established.
type NegotiatorFactory func(peerID string, emitCandidate func(webrtc.ICECandidateInit), onConnected func()) (Negotiator, error)
