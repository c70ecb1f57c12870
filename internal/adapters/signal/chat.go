package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/teamscreen/teamscreen/internal/domain"
	"github.com/teamscreen/teamscreen/pkg/protocol"
)

func (ctl *Controller) handleSendMessage(mid domain.MemberID, data []byte) {
	var p protocol.SendMessage
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad send_message payload")
		return
	}
	if p.Message == "" {
		return
	}
	if !ctl.chat.Allow(mid) {
		log.Warn().Str("module", "signal").Str("member", string(mid)).Msg("chat flood, message dropped")
		return
	}
	ctl.Coord.Chat(mid, p.Message)
}
