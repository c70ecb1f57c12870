package app

import (
	"github.com/teamscreen/teamscreen/internal/core"
	"github.com/teamscreen/teamscreen/internal/domain"
)

// PresenceTracker owns the transient per-member flags layered on the
// room registry. It is the only mutation path for them, so a flag
// never changes without the gateway learning who to notify.
type PresenceTracker struct {
	rooms *RoomManager
}

func NewPresenceTracker(rooms *RoomManager) *PresenceTracker {
	return &PresenceTracker{rooms: rooms}
}

// SetSharing updates the member's screen-sharing flag and reports the
// prior value plus the peers to notify. Setting the same value again
// still reports; the gateway broadcasts on every receipt, no dedup.
func (p *PresenceTracker) SetSharing(mid domain.MemberID, sharing bool) (bool, []core.MemberSession, error) {
	return p.rooms.setSharing(mid, sharing)
}
