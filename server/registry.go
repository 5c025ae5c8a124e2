package server

import (
	"errors"
	"math/rand"
	"sync"

	"citydrive/protocol"
)

var (
	// ErrUnknownEntity 更新或移除了注册表中不存在的 id，调用方忽略即可
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrDuplicateSession 同一 id 重复注册
	ErrDuplicateSession = errors.New("duplicate session")
)

// Registry 连接 id → 玩家权威状态
// 每个 key 只由其所属连接写入，因此只需要 map 级别的互斥
type Registry struct {
	mu       sync.RWMutex
	sessions map[PlayerID]*Session
	rng      *rand.Rand // 受 mu 保护
}

func NewRegistry(rng *rand.Rand) *Registry {
	return &Registry{sessions: make(map[PlayerID]*Session), rng: rng}
}

// Register 新连接入场：位置 (0,0)、朝向 0、随机霓虹色
func (r *Registry) Register(id PlayerID, out Outbox) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		return Session{}, ErrDuplicateSession
	}
	s := &Session{
		ID:    id,
		State: protocol.PlayerState{Color: pickColor(r.rng)},
		Out:   out,
	}
	r.sessions[id] = s
	return *s, nil
}

// Update 写入连接上报的位置；changed 为 false 表示与已存状态相同
func (r *Registry) Update(id PlayerID, m protocol.PlayerMovement) (changed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return false, ErrUnknownEntity
	}
	if s.State.X == m.X && s.State.Z == m.Z && s.State.Rot == m.Rot {
		return false, nil
	}
	s.State.X, s.State.Z, s.State.Rot = m.X, m.Z, m.Rot
	return true, nil
}

// Remove 移除会话；重复移除返回 ErrUnknownEntity
func (r *Registry) Remove(id PlayerID) (protocol.PlayerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return protocol.PlayerState{}, ErrUnknownEntity
	}
	delete(r.sessions, id)
	return s.State, nil
}

// Get 读取单个会话的副本
func (r *Registry) Get(id PlayerID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Snapshot 全部玩家状态 id → state
func (r *Registry) Snapshot() protocol.CurrentPlayers {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(protocol.CurrentPlayers, len(r.sessions))
	for id, s := range r.sessions {
		out[string(id)] = s.State
	}
	return out
}

// Outboxes 返回除 except 外所有连接的发送端（except 为空则全部）
func (r *Registry) Outboxes(except PlayerID) []Outbox {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Outbox, 0, len(r.sessions))
	for id, s := range r.sessions {
		if id == except || s.Out == nil {
			continue
		}
		out = append(out, s.Out)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
