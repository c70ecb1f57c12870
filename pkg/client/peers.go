package client

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/teamscreen/teamscreen/pkg/protocol"
)

// LinkState tracks one peer link through negotiation.
type LinkState int

const (
	LinkIdle LinkState = iota
	LinkOfferSent
	LinkOfferReceived
	LinkAnswerExchanged
	LinkConnected
	LinkClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkIdle:
		return "idle"
	case LinkOfferSent:
		return "offer_sent"
	case LinkOfferReceived:
		return "offer_received"
	case LinkAnswerExchanged:
		return "answer_exchanged"
	case LinkConnected:
		return "connected"
	case LinkClosed:
		return "closed"
	}
	return "unknown"
}

// signalSender is the outbound half the manager needs from the
// transport. *Client implements it.
type signalSender interface {
	SendOffer(to string, sdp webrtc.SessionDescription) error
	SendAnswer(to string, sdp webrtc.SessionDescription) error
	SendCandidate(to string, candidate webrtc.ICECandidateInit) error
	SendRequestOffer(to string) error
}

type peerLink struct {
	id    string
	state LinkState
	neg   Negotiator
}

// PeerManager owns the room roster and at most one link per peer. All
// roster and link mutations happen under one mutex; negotiation engine
// calls are only ever made through the owning peer's link.
type PeerManager struct {
	mu      sync.Mutex
	out     signalSender
	factory NegotiatorFactory
	retries *retryScheduler
	roster  map[string]protocol.MemberInfo
	links   map[string]*peerLink
	sharing bool
	onState func(peerID string, state LinkState)
}

func NewPeerManager(out signalSender, factory NegotiatorFactory, retries *retryScheduler, onState func(string, LinkState)) *PeerManager {
	return &PeerManager{
		out:     out,
		factory: factory,
		retries: retries,
		roster:  make(map[string]protocol.MemberInfo),
		links:   make(map[string]*peerLink),
		onState: onState,
	}
}

// Roster returns a copy of the known room membership.
func (m *PeerManager) Roster() []protocol.MemberInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]protocol.MemberInfo, 0, len(m.roster))
	for _, u := range m.roster {
		out = append(out, u)
	}
	return out
}

// LinkStateOf reports the negotiation state toward one peer.
func (m *PeerManager) LinkStateOf(peerID string) LinkState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.links[peerID]; ok {
		return l.state
	}
	return LinkIdle
}

// HandleRoster replaces the roster with the join snapshot. Duplicate
// ids in the snapshot collapse to one entry. Links toward peers absent
// from the new snapshot are torn down, so switching rooms never leaves
// engines open toward former peers. Peers already sharing get an offer
// request with retries, since their pipeline may predate us.
func (m *PeerManager) HandleRoster(users []protocol.MemberInfo) {
	m.mu.Lock()
	m.roster = make(map[string]protocol.MemberInfo, len(users))
	for _, u := range users {
		m.roster[u.ID] = u
	}
	var stale []*peerLink
	for id, link := range m.links {
		if _, ok := m.roster[id]; !ok {
			delete(m.links, id)
			stale = append(stale, link)
		}
	}
	sharers := make([]string, 0)
	for id, u := range m.roster {
		if u.IsSharing {
			sharers = append(sharers, id)
		}
	}
	m.mu.Unlock()

	for _, link := range stale {
		m.retries.Cancel(offerKey(link.id))
		m.retries.Cancel(requestKey(link.id))
		m.closeLink(link)
	}
	for _, id := range sharers {
		m.scheduleRequestOffer(id)
	}
}

// HandleUserJoined records a new member. If we are currently sharing,
// the newcomer needs an offer; it is retried because their media
// pipeline may lag their membership.
func (m *PeerManager) HandleUserJoined(u protocol.MemberInfo) {
	m.mu.Lock()
	m.roster[u.ID] = u
	sharing := m.sharing
	m.mu.Unlock()

	if sharing {
		m.scheduleOffer(u.ID)
	}
}

// HandleUserExit drops the member, cancels any pending retries toward
// them and tears the link down.
func (m *PeerManager) HandleUserExit(id string) {
	m.retries.Cancel(offerKey(id))
	m.retries.Cancel(requestKey(id))

	m.mu.Lock()
	delete(m.roster, id)
	link, ok := m.links[id]
	if ok {
		delete(m.links, id)
	}
	m.mu.Unlock()

	if ok {
		m.closeLink(link)
	}
}

// HandleSharingChanged updates the roster flag. A peer that started
// sharing gets an offer request; one that stopped has its pending
// requests cancelled.
func (m *PeerManager) HandleSharingChanged(id string, sharing bool) {
	m.mu.Lock()
	u, ok := m.roster[id]
	if ok {
		u.IsSharing = sharing
		m.roster[id] = u
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	if sharing {
		m.scheduleRequestOffer(id)
	} else {
		m.retries.Cancel(requestKey(id))
	}
}

// HandleOffer answers a remote offer. An offer on a link that is
// already mid-handshake or established replaces it: the stale engine
// is closed and a fresh one takes the new offer.
func (m *PeerManager) HandleOffer(from string, offer webrtc.SessionDescription) {
	m.mu.Lock()
	if _, known := m.roster[from]; !known {
		m.mu.Unlock()
		log.Debug().Str("module", "client.peers").Str("from", from).Msg("offer from unknown peer, ignoring")
		return
	}

	if stale, ok := m.links[from]; ok {
		delete(m.links, from)
		go m.closeLink(stale)
	}

	link, err := m.newLinkLocked(from)
	if err != nil {
		m.mu.Unlock()
		log.Error().Err(err).Str("module", "client.peers").Str("from", from).Msg("negotiator build failed")
		return
	}
	m.setStateLocked(link, LinkOfferReceived)

	answer, err := link.neg.AcceptOffer(context.Background(), offer)
	if err != nil {
		delete(m.links, from)
		m.setStateLocked(link, LinkClosed)
		m.mu.Unlock()
		link.neg.Close()
		log.Error().Err(err).Str("module", "client.peers").Str("from", from).Msg("accept offer failed")
		return
	}
	m.setStateLocked(link, LinkAnswerExchanged)
	m.mu.Unlock()

	if err := m.out.SendAnswer(from, answer); err != nil {
		log.Error().Err(err).Str("module", "client.peers").Str("to", from).Msg("send answer failed")
	}
}

// HandleAnswer completes a handshake we initiated.
func (m *PeerManager) HandleAnswer(from string, answer webrtc.SessionDescription) {
	m.mu.Lock()
	link, ok := m.links[from]
	if !ok || link.state != LinkOfferSent {
		m.mu.Unlock()
		log.Debug().Str("module", "client.peers").Str("from", from).Msg("unexpected answer, ignoring")
		return
	}
	if err := link.neg.AcceptAnswer(context.Background(), answer); err != nil {
		m.mu.Unlock()
		log.Error().Err(err).Str("module", "client.peers").Str("from", from).Msg("accept answer failed")
		return
	}
	m.setStateLocked(link, LinkAnswerExchanged)
	m.mu.Unlock()
}

// HandleCandidate feeds a remote candidate to the link's engine.
// Candidates can outrun the offer; with no link yet they are dropped,
// the retried offer exchange will regenerate them.
func (m *PeerManager) HandleCandidate(from string, candidate webrtc.ICECandidateInit) {
	m.mu.Lock()
	link, ok := m.links[from]
	m.mu.Unlock()
	if !ok {
		log.Debug().Str("module", "client.peers").Str("from", from).Msg("candidate without link, dropping")
		return
	}
	if err := link.neg.AddCandidate(candidate); err != nil {
		log.Error().Err(err).Str("module", "client.peers").Str("from", from).Msg("add candidate failed")
	}
}

// HandleRequestOffer responds to a viewer asking for our stream. The
// offer is retried; no-op when we are not sharing.
func (m *PeerManager) HandleRequestOffer(requesterID string) {
	m.mu.Lock()
	sharing := m.sharing
	m.mu.Unlock()
	if !sharing {
		log.Debug().Str("module", "client.peers").Str("from", requesterID).Msg("offer requested while not sharing")
		return
	}
	m.scheduleOffer(requesterID)
}

// SetSharing records the local sharing flag. Viewers learn about it
// through the coordinator broadcast and ask for offers themselves.
func (m *PeerManager) SetSharing(sharing bool) {
	m.mu.Lock()
	m.sharing = sharing
	m.mu.Unlock()
}

// Reset drops the whole roster, cancels every pending retry and closes
// every link. Leaving a room goes through here: a member out of the
// room has no peers left to negotiate with.
func (m *PeerManager) Reset() {
	m.mu.Lock()
	ids := make(map[string]struct{}, len(m.roster)+len(m.links))
	for id := range m.roster {
		ids[id] = struct{}{}
	}
	links := make([]*peerLink, 0, len(m.links))
	for id, l := range m.links {
		ids[id] = struct{}{}
		links = append(links, l)
	}
	m.roster = make(map[string]protocol.MemberInfo)
	m.links = make(map[string]*peerLink)
	m.mu.Unlock()

	for id := range ids {
		m.retries.Cancel(offerKey(id))
		m.retries.Cancel(requestKey(id))
	}
	for _, l := range links {
		m.closeLink(l)
	}
}

// Close is Reset plus shutting the scheduler down for good.
func (m *PeerManager) Close() {
	m.Reset()
	m.retries.Close()
}

// scheduleOffer starts a retried offer toward peerID. Each attempt
// verifies the peer is still in the room, we are still sharing and the
// link has not connected in the meantime.
func (m *PeerManager) scheduleOffer(peerID string) {
	m.retries.Schedule(offerKey(peerID), func() bool {
		return m.attemptOffer(peerID)
	})
}

func (m *PeerManager) attemptOffer(peerID string) bool {
	m.mu.Lock()
	if _, known := m.roster[peerID]; !known || !m.sharing {
		m.mu.Unlock()
		return false
	}
	if link, ok := m.links[peerID]; ok {
		if link.state == LinkConnected {
			m.mu.Unlock()
			return false
		}
		delete(m.links, peerID)
		go m.closeLink(link)
	}

	link, err := m.newLinkLocked(peerID)
	if err != nil {
		m.mu.Unlock()
		log.Error().Err(err).Str("module", "client.peers").Str("to", peerID).Msg("negotiator build failed")
		return true
	}
	offer, err := link.neg.CreateOffer(context.Background())
	if err != nil {
		delete(m.links, peerID)
		m.setStateLocked(link, LinkClosed)
		m.mu.Unlock()
		link.neg.Close()
		log.Error().Err(err).Str("module", "client.peers").Str("to", peerID).Msg("create offer failed")
		return true
	}
	m.setStateLocked(link, LinkOfferSent)
	m.mu.Unlock()

	if err := m.out.SendOffer(peerID, offer); err != nil {
		log.Error().Err(err).Str("module", "client.peers").Str("to", peerID).Msg("send offer failed")
	}
	return true
}

// scheduleRequestOffer asks a sharing peer for their stream, retried
// because the request can race their pipeline setup.
func (m *PeerManager) scheduleRequestOffer(peerID string) {
	m.retries.Schedule(requestKey(peerID), func() bool {
		m.mu.Lock()
		u, known := m.roster[peerID]
		link, haveLink := m.links[peerID]
		connected := haveLink && link.state == LinkConnected
		m.mu.Unlock()
		if !known || !u.IsSharing || connected {
			return false
		}
		if err := m.out.SendRequestOffer(peerID); err != nil {
			log.Error().Err(err).Str("module", "client.peers").Str("to", peerID).Msg("request offer failed")
		}
		return true
	})
}

func (m *PeerManager) newLinkLocked(peerID string) (*peerLink, error) {
	link := &peerLink{id: peerID, state: LinkIdle}
	neg, err := m.factory(peerID,
		func(c webrtc.ICECandidateInit) {
			if err := m.out.SendCandidate(peerID, c); err != nil {
				log.Error().Err(err).Str("module", "client.peers").Str("to", peerID).Msg("send candidate failed")
			}
		},
		func() {
			// Engines may report connected from their own goroutine or
			// synchronously from an Accept call; dispatch to avoid
			// re-entering the manager lock.
			go m.markConnected(peerID, link)
		},
	)
	if err != nil {
		return nil, err
	}
	link.neg = neg
	m.links[peerID] = link
	return link, nil
}

func (m *PeerManager) markConnected(peerID string, link *peerLink) {
	m.retries.Cancel(offerKey(peerID))
	m.retries.Cancel(requestKey(peerID))

	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.links[peerID]; !ok || current != link {
		return
	}
	m.setStateLocked(link, LinkConnected)
}

func (m *PeerManager) closeLink(link *peerLink) {
	if err := link.neg.Close(); err != nil {
		log.Debug().Err(err).Str("module", "client.peers").Str("peer", link.id).Msg("link close")
	}
	m.mu.Lock()
	m.setStateLocked(link, LinkClosed)
	m.mu.Unlock()
}

func (m *PeerManager) setStateLocked(link *peerLink, state LinkState) {
	if link.state == state {
		return
	}
	link.state = state
	if m.onState != nil {
		go m.onState(link.id, state)
	}
}

func offerKey(peerID string) string   { return "offer:" + peerID }
func requestKey(peerID string) string { return "request:" + peerID }
