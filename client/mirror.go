// Package client 实现客户端的状态镜像、平滑插值与本地驾驶逻辑。
// 渲染由外部协作者通过 Renderer 接口完成，本包只产出位姿。
package client

import (
	"errors"
	"strconv"
	"sync"

	"citydrive/protocol"
)

// ErrUnknownEntity 移动或移除了镜像中不存在的实体，忽略即可
var ErrUnknownEntity = errors.New("unknown entity")

// Kind 镜像实体种类
type Kind int

const (
	KindPlayer Kind = iota
	KindTraffic
	KindSelf
)

// EntityKey 镜像记录的唯一键
type EntityKey struct {
	Kind Kind
	ID   string
}

// Sample 地面平面上的一个位姿采样
type Sample struct {
	X   float64
	Z   float64
	Rot float64
}

// Handle 渲染句柄，首次见到实体时创建一次
type Handle interface {
	SetPose(s Sample)
	Release()
}

// Renderer 外部渲染协作者
type Renderer interface {
	Spawn(key EntityKey, color uint32, at Sample) Handle
}

// NopRenderer 无头模式
type NopRenderer struct{}

func (NopRenderer) Spawn(EntityKey, uint32, Sample) Handle { return nopHandle{} }

type nopHandle struct{}

func (nopHandle) SetPose(Sample) {}
func (nopHandle) Release()       {}

// TrafficColor AI 车辆统一颜色
const TrafficColor uint32 = 0x00FF00

// Record 单个远端实体的镜像：target 只由网络消息写入，rendered 只由插值引擎写入
type Record struct {
	Key      EntityKey
	Color    uint32
	Target   Sample
	Rendered Sample
	handle   Handle
}

// MirrorStore 远端实体镜像；网络协程写 target，渲染循环写 rendered，二者经 mu 串行
type MirrorStore struct {
	mu       sync.Mutex
	renderer Renderer
	records  map[EntityKey]*Record
}

func NewMirrorStore(r Renderer) *MirrorStore {
	if r == nil {
		r = NopRenderer{}
	}
	return &MirrorStore{renderer: r, records: make(map[EntityKey]*Record)}
}

func PlayerKey(id string) EntityKey { return EntityKey{Kind: KindPlayer, ID: id} }
func TrafficKey(id int) EntityKey   { return EntityKey{Kind: KindTraffic, ID: strconv.Itoa(id)} }

// upsertLocked 首次见到时 rendered == target，避免出生时的插值“滑入”
func (s *MirrorStore) upsertLocked(key EntityKey, color uint32, target Sample) bool {
	if rec, ok := s.records[key]; ok {
		rec.Target = target
		return false
	}
	rec := &Record{Key: key, Color: color, Target: target, Rendered: target}
	rec.handle = s.renderer.Spawn(key, color, target)
	s.records[key] = rec
	return true
}

// UpsertPlayer 来自 currentPlayers / newPlayer
func (s *MirrorStore) UpsertPlayer(id string, p protocol.PlayerState) (created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(PlayerKey(id), p.Color, Sample{X: p.X, Z: p.Z, Rot: p.Rot})
}

// MovePlayer 来自 playerMoved，只更新 target
func (s *MirrorStore) MovePlayer(m protocol.PlayerMoved) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[PlayerKey(m.ID)]
	if !ok {
		return ErrUnknownEntity
	}
	rec.Target = Sample{X: m.X, Z: m.Z, Rot: m.Rot}
	return nil
}

// RemovePlayer 来自 playerDisconnected：销毁记录并释放渲染句柄
func (s *MirrorStore) RemovePlayer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := PlayerKey(id)
	rec, ok := s.records[key]
	if !ok {
		return ErrUnknownEntity
	}
	rec.handle.Release()
	delete(s.records, key)
	return nil
}

// UpsertTraffic 来自 updateAI；车流镜像创建后不会被销毁
func (s *MirrorStore) UpsertTraffic(t protocol.TrafficState) (created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(TrafficKey(t.ID), TrafficColor, Sample{X: t.X, Z: t.Z, Rot: t.Dir.Heading()})
}

// Get 返回记录副本
func (s *MirrorStore) Get(key EntityKey) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Len 某一种类的记录数
func (s *MirrorStore) Len(kind Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.records {
		if k.Kind == kind {
			n++
		}
	}
	return n
}

// Rendered 某一种类全部实体当前的渲染位姿，供碰撞检测使用
func (s *MirrorStore) Rendered(kind Kind) []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Sample, 0, len(s.records))
	for k, rec := range s.records {
		if k.Kind == kind {
			out = append(out, rec.Rendered)
		}
	}
	return out
}

// Reset 断线后释放全部句柄
func (s *MirrorStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, rec := range s.records {
		rec.handle.Release()
		delete(s.records, k)
	}
}

func (s *MirrorStore) spawn(key EntityKey, color uint32, at Sample) Handle {
	return s.renderer.Spawn(key, color, at)
}

// each 在锁内遍历全部记录，仅供插值引擎写 rendered
func (s *MirrorStore) each(fn func(rec *Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		fn(rec)
	}
}
