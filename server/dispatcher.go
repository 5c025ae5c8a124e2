package server

import (
	"errors"
	"sync"

	"citydrive/protocol"
)

// Dispatcher 根据入场/移动/断开/车流 Tick 四种触发向连接扇出消息
// 每次触发在 mu 下完成“修改注册表 + 入队”，保证各连接队列内的顺序与逻辑顺序一致；
// 入队不阻塞，持锁时间很短
type Dispatcher struct {
	mu       sync.Mutex
	world    *World
	registry *Registry
	metrics  *Metrics
}

func NewDispatcher(w *World, reg *Registry, m *Metrics) *Dispatcher {
	return &Dispatcher{world: w, registry: reg, metrics: m}
}

// Handle 连接命令的唯一入口
func (d *Dispatcher) Handle(cmd Command) {
	switch cmd.Kind {
	case CmdJoin:
		d.join(cmd.PlayerID, cmd.Out)
	case CmdMove:
		d.move(cmd.PlayerID, cmd.Move)
	case CmdDisconnect:
		d.leave(cmd.PlayerID)
	default:
		Log.Warnf("unknown command kind=%d player=%s", cmd.Kind, cmd.PlayerID)
	}
}

// join 先给新连接发送 cityMap 与完整玩家快照（含自身），再通知其他连接
func (d *Dispatcher) join(id PlayerID, out Outbox) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, err := d.registry.Register(id, out)
	if err != nil {
		Log.Warnf("join rejected: player=%s err=%v", id, err)
		return
	}
	d.metrics.IncJoin()

	if d.deliver(out, d.world.Message()) {
		d.deliver(out, protocol.MustEncode(protocol.TypeCurrentPlayers, d.registry.Snapshot()))
	}

	b := protocol.MustEncode(protocol.TypeNewPlayer, protocol.NewPlayer{ID: string(id), Player: s.State})
	for _, o := range d.registry.Outboxes(id) {
		d.deliver(o, b)
	}
	Log.Infof("player joined: id=%s color=%06x players=%d", id, s.State.Color, d.registry.Len())
}

// move 状态有变化时转发给其他连接；未知 id 或状态未变则不发送
func (d *Dispatcher) move(id PlayerID, m protocol.PlayerMovement) {
	d.mu.Lock()
	defer d.mu.Unlock()

	changed, err := d.registry.Update(id, m)
	if err != nil {
		if errors.Is(err, ErrUnknownEntity) {
			d.metrics.IncUnknownEntity()
		}
		return
	}
	if !changed {
		d.metrics.IncUnchanged()
		return
	}
	d.metrics.IncRelayed()

	b := protocol.MustEncode(protocol.TypePlayerMoved, protocol.PlayerMoved{ID: string(id), X: m.X, Z: m.Z, Rot: m.Rot})
	for _, o := range d.registry.Outboxes(id) {
		o.Enqueue(b)
	}
}

// leave 移除会话并广播裸 id；重复调用为 no-op
func (d *Dispatcher) leave(id PlayerID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.registry.Remove(id); err != nil {
		return false
	}
	d.metrics.DecConnections()

	b := protocol.MustEncode(protocol.TypePlayerDisconnected, string(id))
	for _, o := range d.registry.Outboxes("") {
		d.deliver(o, b)
	}
	Log.Infof("player left: id=%s players=%d", id, d.registry.Len())
	return true
}

// deliver 入队生命周期消息（cityMap/currentPlayers/newPlayer/playerDisconnected）
// 这些消息不会被后续帧覆盖，入队失败时关闭连接，客户端只能重新完整入场
func (d *Dispatcher) deliver(o Outbox, b []byte) bool {
	if o.Enqueue(b) {
		return true
	}
	d.metrics.IncLifecycleLost()
	Log.Warnf("lifecycle message not delivered, closing connection")
	o.Close()
	return false
}

// BroadcastTraffic 将整份车流快照发给所有连接，只编码一次
func (d *Dispatcher) BroadcastTraffic(snap Snapshot) {
	b := protocol.MustEncode(protocol.TypeUpdateAI, snap.Actors)

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, o := range d.registry.Outboxes("") {
		o.Enqueue(b)
	}
}
