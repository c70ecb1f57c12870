package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/teamscreen/teamscreen/internal/core"
	"github.com/teamscreen/teamscreen/internal/domain"
	"github.com/teamscreen/teamscreen/pkg/protocol"
)

// Relay forwards negotiation messages to exactly one named receiver.
// It never inspects the payload, and a missing or dead target is
// dropped without telling the sender; the client's retry loop is the
// recovery path for that.
type Relay struct {
	Sessions *Registry
}

func NewRelay(sessions *Registry) *Relay {
	return &Relay{Sessions: sessions}
}

func (r *Relay) Offer(from core.MemberSession, to domain.MemberID, sdp json.RawMessage) {
	meta := from.Meta()
	r.deliver(protocol.KindGetOffer, to, protocol.GetOffer{
		Type:           protocol.KindGetOffer,
		SDP:            sdp,
		SenderID:       string(meta.ID),
		SenderNickname: meta.Nickname,
	})
}

func (r *Relay) Answer(from core.MemberSession, to domain.MemberID, sdp json.RawMessage) {
	r.deliver(protocol.KindGetAnswer, to, protocol.GetAnswer{
		Type:     protocol.KindGetAnswer,
		SDP:      sdp,
		SenderID: string(from.Meta().ID),
	})
}

func (r *Relay) Candidate(from core.MemberSession, to domain.MemberID, candidate json.RawMessage) {
	r.deliver(protocol.KindGetCandidate, to, protocol.GetCandidate{
		Type:      protocol.KindGetCandidate,
		Candidate: candidate,
		SenderID:  string(from.Meta().ID),
	})
}

func (r *Relay) RequestOffer(from core.MemberSession, to domain.MemberID) {
	meta := from.Meta()
	r.deliver(protocol.KindRequestOffer, to, protocol.RequestOffer{
		Type:              protocol.KindRequestOffer,
		RequesterID:       string(meta.ID),
		RequesterNickname: meta.Nickname,
	})
}

func (r *Relay) deliver(kind string, to domain.MemberID, v any) bool {
	sess, ok := r.Sessions.Get(to)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("kind", kind).Str("to", string(to)).Msg("target unavailable, dropped")
		return false
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("kind", kind).Msg("marshal")
		return false
	}
	if err := sess.Signal().TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "app.relay").Str("kind", kind).Str("to", string(to)).Msg("send failed, dropped")
		return false
	}
	return true
}
