package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/teamscreen/teamscreen/internal/domain"
	"github.com/teamscreen/teamscreen/pkg/protocol"
)

func (ctl *Controller) handleShareStatus(mid domain.MemberID, data []byte) {
	var p protocol.ScreenShareStatus
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad screen_share_status payload")
		return
	}
	ctl.Coord.SetSharing(mid, p.IsSharing)
}
