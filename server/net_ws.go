package server

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"citydrive/protocol"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 1 << 16

	// HeaderPlayerID 升级响应头中携带分配给连接的玩家 id
	HeaderPlayerID = "X-Citydrive-Player"
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws       *websocket.Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once
	drops    atomic.Int64 // 连续丢弃次数
	maxDrops int64
	metrics  *Metrics
	dropLog  rate.Sometimes
}

func NewClientConn(ws *websocket.Conn, queue, maxDrops int, m *Metrics) *ClientConn {
	return &ClientConn{
		ws:       ws,
		send:     make(chan []byte, queue),
		done:     make(chan struct{}),
		maxDrops: int64(maxDrops),
		metrics:  m,
		dropLog:  rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
// 连续丢弃达到 maxDrops 视为慢连接，直接关闭，由读泵走断开流程
func (c *ClientConn) Enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		c.drops.Store(0)
		return true
	default:
	}
	n := c.drops.Add(1)
	c.metrics.IncDropped()
	c.dropLog.Do(func() {
		Log.Warnf("send queue full, dropping message: remote=%s consecutive=%d", c.ws.RemoteAddr(), n)
	})
	if c.maxDrops > 0 && n >= c.maxDrops {
		c.metrics.IncClosedSlow()
		Log.Warnf("closing slow connection: remote=%s drops=%d", c.ws.RemoteAddr(), n)
		c.Close()
	}
	return false
}

// Close 关闭底层连接；可重复调用
func (c *ClientConn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端消息，转换为 Command 交给 Dispatcher
// 退出时一定投递 Disconnect（Dispatcher 侧幂等）
func (c *ClientConn) readPump(d *Dispatcher, id PlayerID) {
	defer func() {
		c.Close()
		d.Handle(Command{Kind: CmdDisconnect, PlayerID: id})
	}()
	c.ws.SetReadLimit(maxMessage)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				Log.Debugf("read error: player=%s err=%v", id, err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		cmd, err := decodeCommand(id, payload)
		if err != nil {
			c.metrics.IncMalformed()
			Log.Debugf("dropping message: player=%s err=%v", id, err)
			continue
		}
		d.Handle(cmd)
	}
}

var errUnexpectedType = errors.New("unexpected message type")

// decodeCommand 客户端只会发送 playerMovement
func decodeCommand(id PlayerID, payload []byte) (Command, error) {
	env, err := protocol.DecodeEnvelope(payload)
	if err != nil {
		return Command{}, err
	}
	if env.Type != protocol.TypePlayerMovement {
		return Command{}, errUnexpectedType
	}
	m, err := protocol.DecodeMovement(env.Payload)
	if err != nil {
		return Command{}, err
	}
	return Command{Kind: CmdMove, PlayerID: id, Move: m}, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入：分配 UUID 作为玩家 id，先入场再启动读泵
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	id := PlayerID(uuid.NewString())
	hdr := http.Header{}
	hdr.Set(HeaderPlayerID, string(id))

	ws, err := upgrader.Upgrade(w, r, hdr)
	if err != nil {
		Log.Warnf("upgrade error: %v", err)
		return
	}

	client := NewClientConn(ws, s.cfg.Net.SendQueue, s.cfg.Net.MaxDrops, s.metrics)
	go client.writePump()
	s.dispatcher.Handle(Command{Kind: CmdJoin, PlayerID: id, Out: client})
	go client.readPump(s.dispatcher, id)
}
