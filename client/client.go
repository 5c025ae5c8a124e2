package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"citydrive/protocol"
)

// Client 一个驾驶会话：镜像、插值引擎与连接
type Client struct {
	Mirrors *MirrorStore
	Engine  *Engine

	log *zap.SugaredLogger

	mu     sync.Mutex
	selfID string
	conn   *Conn
	world  *protocol.CityMap
}

func New(r Renderer, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	m := NewMirrorStore(r)
	return &Client{Mirrors: m, Engine: NewEngine(m), log: log}
}

// Connect 拨号并开始接收消息；一个 Client 只连接一次
func (c *Client) Connect(ctx context.Context, url string) error {
	conn, err := dial(ctx, url, c.log)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		conn.Close()
		return errors.New("client already connected")
	}
	c.selfID = conn.ID()
	c.conn = conn
	c.mu.Unlock()

	conn.start(func(env protocol.Envelope) {
		if err := c.HandleMessage(env); err != nil {
			c.log.Debugf("ignored %s: %v", env.Type, err)
		}
	})
	return nil
}

// SelfID 服务端分配的本地玩家 id
func (c *Client) SelfID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfID
}

// SetSelfID 供不经过 Connect 的场景（测试、回放）使用
func (c *Client) SetSelfID(id string) {
	c.mu.Lock()
	c.selfID = id
	c.mu.Unlock()
}

// World 已收到的城市地图
func (c *Client) World() (protocol.CityMap, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.world == nil {
		return protocol.CityMap{}, false
	}
	return *c.world, true
}

// HandleMessage 将一条服务端消息应用到镜像；返回错误的消息被丢弃
func (c *Client) HandleMessage(env protocol.Envelope) error {
	self := c.SelfID()
	switch env.Type {
	case protocol.TypeCityMap:
		var m protocol.CityMap
		if err := decode(env, &m); err != nil {
			return err
		}
		c.mu.Lock()
		c.world = &m
		c.mu.Unlock()
		c.Engine.SetWorld(m)

	case protocol.TypeCurrentPlayers:
		var players protocol.CurrentPlayers
		if err := decode(env, &players); err != nil {
			return err
		}
		for id, p := range players {
			if id == self {
				c.Engine.SpawnSelf(id, p)
				continue
			}
			c.Mirrors.UpsertPlayer(id, p)
		}

	case protocol.TypeNewPlayer:
		var np protocol.NewPlayer
		if err := decode(env, &np); err != nil {
			return err
		}
		if np.ID == "" {
			return fmt.Errorf("%w: newPlayer without id", protocol.ErrMalformed)
		}
		if np.ID != self {
			c.Mirrors.UpsertPlayer(np.ID, np.Player)
		}

	case protocol.TypePlayerMoved:
		var m protocol.PlayerMoved
		if err := decode(env, &m); err != nil {
			return err
		}
		if m.ID == self {
			return nil
		}
		return c.Mirrors.MovePlayer(m)

	case protocol.TypePlayerDisconnected:
		var id string
		if err := decode(env, &id); err != nil {
			return err
		}
		return c.Mirrors.RemovePlayer(id)

	case protocol.TypeUpdateAI:
		list, err := protocol.DecodeTraffic(env.Payload)
		if err != nil {
			return err
		}
		for _, t := range list {
			c.Mirrors.UpsertTraffic(t)
		}

	default:
		return fmt.Errorf("%w: unknown type %q", protocol.ErrMalformed, env.Type)
	}
	return nil
}

func decode(env protocol.Envelope, v any) error {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", protocol.ErrMalformed, env.Type, err)
	}
	return nil
}

// Report 上报本地玩家位置，发出即忘
func (c *Client) Report(m protocol.PlayerMovement) bool {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return false
	}
	return conn.Send(protocol.TypePlayerMovement, m)
}

// Conn 当前连接；未连接时为 nil
func (c *Client) Conn() *Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Done 连接断开时关闭；未连接时返回 nil
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.Done()
}

// Close 关闭连接并释放全部镜像与本地车辆
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
		conn.Wait()
	}
	c.Mirrors.Reset()
	c.Engine.Reset()
}
