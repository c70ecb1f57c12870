package signal

import "github.com/teamscreen/teamscreen/pkg/protocol"

func (ctl *Controller) handlePing(c *wsConn) {
	ctl.sendJSON(c, protocol.Envelope{Type: protocol.KindPong})
}
