package server

import (
	"math/rand"
	"sync"

	"citydrive/protocol"
)

// Snapshot 一次 Tick 后全部 AI 车辆的状态，生成后不再修改
type Snapshot struct {
	Tick   int64
	Actors []protocol.TrafficState
}

// Traffic AI 车流模拟器，唯一写者为 Tick 协程
type Traffic struct {
	mu     sync.Mutex
	actors []protocol.TrafficState
	bound  float64
	speed  float64 // 单位/秒
	tick   int64
}

// NewTraffic 随机分配车道与起点：每辆车固定在一行或一列上单轴行驶
func NewTraffic(cfg TrafficConfig, w *World, rng *rand.Rand) *Traffic {
	t := &Traffic{bound: w.HalfExtent(), speed: cfg.Speed}
	span := 2 * t.bound
	for i := 0; i < cfg.Count; i++ {
		lane := float64(rng.Intn(w.Rows))*w.BlockSize - t.bound
		offset := rng.Float64()*span - t.bound
		a := protocol.TrafficState{ID: i}
		if rng.Float64() > 0.5 {
			a.X, a.Z = offset, lane
			a.Dir = protocol.DirPosX
		} else {
			a.X, a.Z = lane, offset
			a.Dir = protocol.DirPosZ
		}
		if rng.Float64() > 0.5 {
			a.Dir = -a.Dir
		}
		t.actors = append(t.actors, a)
	}
	return t
}

// Step 推进一个 Tick：pos += dir * speed * dt，越界后硬重置到对侧
func (t *Traffic) Step(dt float64) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := t.speed * dt
	for i := range t.actors {
		a := &t.actors[i]
		dx, dz := a.Dir.Unit()
		a.X = wrap(a.X+dx*d, t.bound)
		a.Z = wrap(a.Z+dz*d, t.bound)
	}
	t.tick++
	return t.snapshotLocked()
}

// wrap 超出 +B 置为 -B，超出 -B 置为 +B，溢出部分丢弃
func wrap(v, bound float64) float64 {
	if v > bound {
		return -bound
	}
	if v < -bound {
		return bound
	}
	return v
}

// Snapshot 当前状态的只读副本
func (t *Traffic) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Traffic) snapshotLocked() Snapshot {
	actors := make([]protocol.TrafficState, len(t.actors))
	copy(actors, t.actors)
	return Snapshot{Tick: t.tick, Actors: actors}
}

func (t *Traffic) Speed() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.speed
}

// SetSpeed 运行期热更新车速，下一 Tick 生效
func (t *Traffic) SetSpeed(v float64) {
	t.mu.Lock()
	t.speed = v
	t.mu.Unlock()
}

// Bound 环绕半宽 B
func (t *Traffic) Bound() float64 {
	return t.bound
}
