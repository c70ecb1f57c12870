package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/teamscreen/teamscreen/internal/domain"
	"github.com/teamscreen/teamscreen/pkg/protocol"
)

// The negotiation handlers never look inside sdp/candidate blobs; they
// only name a receiver and pass the payload through the relay.

func (ctl *Controller) handleOffer(mid domain.MemberID, data []byte) {
	var p protocol.Offer
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad offer payload")
		return
	}
	if p.To == "" || len(p.SDP) == 0 {
		return
	}
	ctl.Coord.Offer(mid, p.To, p.SDP)
}

func (ctl *Controller) handleAnswer(mid domain.MemberID, data []byte) {
	var p protocol.Answer
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad answer payload")
		return
	}
	if p.To == "" || len(p.SDP) == 0 {
		return
	}
	ctl.Coord.Answer(mid, p.To, p.SDP)
}

func (ctl *Controller) handleCandidate(mid domain.MemberID, data []byte) {
	var p protocol.Candidate
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		return
	}
	if p.To == "" || len(p.Candidate) == 0 {
		return
	}
	ctl.Coord.Candidate(mid, p.To, p.Candidate)
}

func (ctl *Controller) handleRequestOffer(mid domain.MemberID, data []byte) {
	var p protocol.RequestOffer
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad request_offer payload")
		return
	}
	if p.To == "" {
		return
	}
	ctl.Coord.RequestOffer(mid, p.To)
}
