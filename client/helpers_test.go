package client

import (
	"sync"
)

// recordingRenderer 记录句柄的创建与释放
type recordingRenderer struct {
	mu       sync.Mutex
	spawned  map[EntityKey]int
	released map[EntityKey]int
	poses    map[EntityKey]Sample
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{
		spawned:  make(map[EntityKey]int),
		released: make(map[EntityKey]int),
		poses:    make(map[EntityKey]Sample),
	}
}

func (r *recordingRenderer) Spawn(key EntityKey, _ uint32, at Sample) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spawned[key]++
	r.poses[key] = at
	return &recordingHandle{r: r, key: key}
}

func (r *recordingRenderer) counts(key EntityKey) (spawned, released int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.spawned[key], r.released[key]
}

func (r *recordingRenderer) pose(key EntityKey) Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.poses[key]
}

type recordingHandle struct {
	r   *recordingRenderer
	key EntityKey
}

func (h *recordingHandle) SetPose(s Sample) {
	h.r.mu.Lock()
	h.r.poses[h.key] = s
	h.r.mu.Unlock()
}

func (h *recordingHandle) Release() {
	h.r.mu.Lock()
	h.r.released[h.key]++
	h.r.mu.Unlock()
}
