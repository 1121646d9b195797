package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lockstep/internal/app"
	"github.com/dkeye/Lockstep/internal/config"
	"github.com/dkeye/Lockstep/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

// SignalWSController owns the WebSocket side of the sync protocol:
// upgrade, pumps, decode and dispatch to the coordinator.
type SignalWSController struct {
	Coord   *app.Coordinator
	Limiter *MessageRateLimiter
	cfg     *config.Config
}

func NewSignalWSController(coord *app.Coordinator, cfg *config.Config) *SignalWSController {
	return &SignalWSController{
		Coord:   coord,
		Limiter: NewMessageRateLimiter(cfg.MsgRateLimit, cfg.MsgRateWindow),
		cfg:     cfg,
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
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

func (c *WsSignalConn) Close() {
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

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request, allocates the session and starts
// the pumps. The session greeting goes out through the coordinator.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	sid := ctl.Coord.Connect(conn, cancel)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}
