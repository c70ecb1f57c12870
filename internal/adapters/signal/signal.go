package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/teamscreen/teamscreen/internal/app"
	"github.com/teamscreen/teamscreen/internal/config"
	"github.com/teamscreen/teamscreen/internal/core"
	"github.com/teamscreen/teamscreen/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller is the websocket side of the session gateway: one
// instance serves every connection, each connection gets its own
// member identity and pump pair.
type Controller struct {
	Coord *app.Coordinator
	Cfg   *config.Config
	chat  *ChatRateLimiter
}

func NewController(coord *app.Coordinator, cfg *config.Config) *Controller {
	return &Controller{
		Coord: coord,
		Cfg:   cfg,
		chat:  NewChatRateLimiter(cfg.ChatBurst, cfg.ChatInterval),
	}
}

type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades the request, assigns a fresh member id to the
// connection and starts its pumps.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	mid := domain.MemberID(uuid.NewString())
	log.Info().Str("module", "signal").Str("member", string(mid)).Msg("new WS connection")

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	sess := core.NewMemberSession(domain.NewMember(mid), conn)

	ctx, cancel := context.WithCancel(ctx)
	ctl.Coord.Connect(sess, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, mid, conn)
}
