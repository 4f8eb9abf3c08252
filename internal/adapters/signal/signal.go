package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/devcord-rt/internal/app/orch"
	"github.com/dkeye/devcord-rt/internal/config"
	"github.com/dkeye/devcord-rt/internal/core"
	"github.com/dkeye/devcord-rt/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = core.ErrClosed
)

type Options struct {
	ReadLimit    int64
	PingPeriod   time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	SendBuffer   int
	RateLimit    int
	RateInterval time.Duration
}

func OptionsFrom(cfg *config.Config) Options {
	return Options{
		ReadLimit:    cfg.ReadLimit,
		PingPeriod:   cfg.PingPeriod,
		PongWait:     cfg.PongWait,
		WriteWait:    cfg.WriteWait,
		SendBuffer:   cfg.SendBuffer,
		RateLimit:    cfg.RateLimit.Limit,
		RateInterval: cfg.RateLimit.Interval,
	}
}

// SignalWSController owns every WebSocket connection of the process and
// turns their frames into orchestrator calls.
type SignalWSController struct {
	Orch    *orch.Orchestrator
	opts    Options
	limiter *RateLimiter
	wg      conc.WaitGroup
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	return &SignalWSController{
		Orch:    o,
		opts:    opts,
		limiter: NewRateLimiter(opts.RateLimit, opts.RateInterval),
	}
}

// Wait blocks until every pump has returned. Call after the connections
// have been closed.
func (ctl *SignalWSController) Wait() {
	ctl.wg.Wait()
}

// WsSignalConn is the transport handle stored in the registry. TrySend
// never blocks: a full buffer is reported as ErrBackpressure.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, buffer),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
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

// session is what a handler knows about the connection a frame came from.
type session struct {
	id   core.ConnID
	user domain.User
	conn *WsSignalConn
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades an already authenticated request and starts its
// pumps. The identity is bound before any frame is read.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, user *domain.User) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := newWsSignalConn(ws, ctl.opts.SendBuffer)
	id := ctl.Orch.Registry.Register(conn)
	if err := ctl.Orch.Registry.Bind(id, *user); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("bind identity")
		conn.Close()
		ctl.Orch.OnDisconnect(id)
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("user", string(user.ID)).Msg("new WS connection")

	s := &session{id: id, user: *user, conn: conn}
	ctx, cancel := context.WithCancel(ctx)
	ctl.wg.Go(func() {
		defer cancel()
		ctl.writePump(ctx, s)
	})
	ctl.wg.Go(func() {
		defer cancel()
		ctl.readPump(ctx, s)
	})
}
