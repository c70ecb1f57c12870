package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/teamscreen/teamscreen/internal/domain"
	"github.com/teamscreen/teamscreen/pkg/protocol"
)

func (ctl *Controller) handleCreateRoom(mid domain.MemberID, data []byte) {
	var p protocol.CreateRoom
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad create_room payload")
		return
	}
	log.Info().Str("module", "signal").Str("member", string(mid)).Str("room", p.RoomID).Msg("create_room")
	ctl.Coord.CreateRoom(mid, p.RoomID, p.RoomName, p.Nickname, p.Capacity)
}

func (ctl *Controller) handleJoinRoom(mid domain.MemberID, data []byte) {
	var p protocol.JoinRoom
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join_room payload")
		return
	}
	log.Info().Str("module", "signal").Str("member", string(mid)).Str("room", p.RoomID).Msg("join_room")
	ctl.Coord.Join(mid, p.RoomID, p.Nickname)
}

// handleLeaveRoom leaves the current room; the connection stays up.
func (ctl *Controller) handleLeaveRoom(mid domain.MemberID) {
	log.Info().Str("module", "signal").Str("member", string(mid)).Msg("leave_room")
	ctl.Coord.Leave(mid)
}
