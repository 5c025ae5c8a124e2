package server

import (
	"math/rand"

	"citydrive/protocol"
)

// PlayerID 玩家唯一标识，等于连接 id
type PlayerID string

// neonColors 玩家外观调色板，仅用于客户端渲染
var neonColors = []uint32{0xFF00FF, 0x00FFFF, 0x00FF00, 0xFF0099, 0xFFFF00}

func pickColor(rng *rand.Rand) uint32 {
	return neonColors[rng.Intn(len(neonColors))]
}

// Outbox 连接的发送端；Enqueue 不阻塞，返回是否入队成功
// Close 由分发器在生命周期消息无法入队时调用
type Outbox interface {
	Enqueue(b []byte) bool
	Close()
}

// Session 一个连接在注册表中的条目：玩家权威状态 + 发送端
type Session struct {
	ID    PlayerID
	State protocol.PlayerState
	Out   Outbox
}
