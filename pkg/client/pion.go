package client

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// PionFactory builds negotiators backed by pion peer connections.
// configure runs on every new connection before negotiation starts;
// this is where callers add tracks or data channels. Candidates
// trickle, so offers and answers are returned without waiting for
// gathering to complete.
func PionFactory(cfg webrtc.Configuration, configure func(peerID string, pc *webrtc.PeerConnection) error) NegotiatorFactory {
	return func(peerID string, emitCandidate func(webrtc.ICECandidateInit), onConnected func()) (Negotiator, error) {
		pc, err := webrtc.NewPeerConnection(cfg)
		if err != nil {
			return nil, err
		}
		if configure != nil {
			if err := configure(peerID, pc); err != nil {
				pc.Close()
				return nil, err
			}
		}
		pc.OnICECandidate(func(c *webrtc.ICECandidate) {
			if c == nil {
				return
			}
			emitCandidate(c.ToJSON())
		})
		pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
			if s == webrtc.PeerConnectionStateConnected {
				onConnected()
			}
		})
		return &pionNegotiator{pc: pc}, nil
	}
}

type pionNegotiator struct {
	pc *webrtc.PeerConnection
}

func (n *pionNegotiator) CreateOffer(ctx context.Context) (webrtc.SessionDescription, error) {
	offer, err := n.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := n.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return offer, nil
}

func (n *pionNegotiator) AcceptOffer(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := n.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	answer, err := n.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := n.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

func (n *pionNegotiator) AcceptAnswer(ctx context.Context, answer webrtc.SessionDescription) error {
	return n.pc.SetRemoteDescription(answer)
}

func (n *pionNegotiator) AddCandidate(c webrtc.ICECandidateInit) error {
	return n.pc.AddICECandidate(c)
}

func (n *pionNegotiator) Close() error {
	return n.pc.Close()
}
