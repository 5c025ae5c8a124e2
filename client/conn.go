package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"citydrive/protocol"
)

const (
	writeWait = 5 * time.Second
	sendQueue = 32

	// headerPlayerID 与服务端升级响应头一致
	headerPlayerID = "X-Citydrive-Player"
)

// ErrConnectionLost 传输层断开；没有重连协议，需要重新完整入场
var ErrConnectionLost = errors.New("connection lost")

// Conn 客户端 WebSocket 连接：读协程投递消息，写协程清空发送队列
type Conn struct {
	ws   *websocket.Conn
	id   string
	send chan []byte
	done chan struct{}
	once sync.Once
	log  *zap.SugaredLogger

	readDone chan struct{} // 读协程退出后关闭
}

// dial 完成握手并取得服务端分配的玩家 id；读写协程由 start 启动
func dial(ctx context.Context, url string, log *zap.SugaredLogger) (*Conn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	id := resp.Header.Get(headerPlayerID)
	if id == "" {
		_ = ws.Close()
		return nil, fmt.Errorf("dial %s: missing %s header", url, headerPlayerID)
	}
	return &Conn{
		ws:   ws,
		id:   id,
		send: make(chan []byte, sendQueue),
		done: make(chan struct{}),
		log:  log,

		readDone: make(chan struct{}),
	}, nil
}

func (c *Conn) start(handle func(protocol.Envelope)) {
	go c.readLoop(handle)
	go c.writeLoop()
}

func (c *Conn) ID() string { return c.id }

// Send 发出即忘：队列满时丢弃
func (c *Conn) Send(typ string, payload any) bool {
	b, err := protocol.Encode(typ, payload)
	if err != nil {
		c.log.Warnf("encode %s: %v", typ, err)
		return false
	}
	select {
	case <-c.done:
		return false
	case c.send <- b:
		return true
	default:
		c.log.Debugf("send queue full, dropping %s", typ)
		return false
	}
}

// Done 连接关闭后关闭
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close 关闭连接；可重复调用
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = c.ws.Close()
	})
}

// Wait 等待读协程退出，之后不会再有消息被投递
func (c *Conn) Wait() {
	<-c.readDone
}

func (c *Conn) readLoop(handle func(protocol.Envelope)) {
	defer close(c.readDone)
	defer c.Close()
	for {
		_, b, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.log.Infof("connection closed: %v", err)
			}
			return
		}
		env, err := protocol.DecodeEnvelope(b)
		if err != nil {
			c.log.Debugf("dropping frame: %v", err)
			continue
		}
		handle(env)
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case b := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				c.Close()
				return
			}
		}
	}
}
