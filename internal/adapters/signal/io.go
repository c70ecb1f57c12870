package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/teamscreen/teamscreen/internal/domain"
	"github.com/teamscreen/teamscreen/pkg/protocol"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, mid domain.MemberID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("member", string(mid)).Msg("readPump closing")
		ctl.Coord.Disconnect(mid)
		ctl.chat.Forget(mid)
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	pongWait := ctl.Cfg.PingPeriod * 10 / 9
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug().Err(err).Str("module", "signal").Str("member", string(mid)).Msg("readPump read error")
				}
				return
			}
			ctl.handleMessage(mid, c, data)
		}
	}
}

func (ctl *Controller) handleMessage(mid domain.MemberID, c *wsConn, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case protocol.KindCreateRoom:
		ctl.handleCreateRoom(mid, data)
	case protocol.KindJoinRoom:
		ctl.handleJoinRoom(mid, data)
	case protocol.KindLeaveRoom:
		ctl.handleLeaveRoom(mid)
	case protocol.KindOffer:
		ctl.handleOffer(mid, data)
	case protocol.KindAnswer:
		ctl.handleAnswer(mid, data)
	case protocol.KindCandidate:
		ctl.handleCandidate(mid, data)
	case protocol.KindRequestOffer:
		ctl.handleRequestOffer(mid, data)
	case protocol.KindScreenShareStatus:
		ctl.handleShareStatus(mid, data)
	case protocol.KindSendMessage:
		ctl.handleSendMessage(mid, data)
	case protocol.KindPing:
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
