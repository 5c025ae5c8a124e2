package protocol

import (
	"encoding/json"
	"fmt"
)

// Building 静态障碍物描述（城市街区上的建筑）
type Building struct {
	X      float64 `json:"x"`
	Z      float64 `json:"z"`
	Width  float64 `json:"width"`
	Depth  float64 `json:"depth"`
	Height float64 `json:"height"`
	Twist  float64 `json:"twist"`
	Type   int     `json:"type"` // 0=Glass, 1=Algae, 2=Kinetic
}

// CityMap 入场时发送一次的世界描述
type CityMap struct {
	Rows      int        `json:"rows"`
	Cols      int        `json:"cols"`
	BlockSize float64    `json:"blockSize"`
	Layout    []Building `json:"layout"`
}

// PlayerState 玩家权威状态
type PlayerState struct {
	X     float64 `json:"x"`
	Z     float64 `json:"z"`
	Rot   float64 `json:"rot"`
	Color uint32  `json:"color"`
}

// CurrentPlayers 入场时的完整玩家快照 id → state
type CurrentPlayers map[string]PlayerState

// NewPlayer 通知其他连接有新玩家加入
type NewPlayer struct {
	ID     string      `json:"id"`
	Player PlayerState `json:"player"`
}

// PlayerMovement 本地玩家上报的位置（C→S）
type PlayerMovement struct {
	X   float64 `json:"x"`
	Z   float64 `json:"z"`
	Rot float64 `json:"rot"`
}

// PlayerMoved 服务端转发给其他连接的移动增量
type PlayerMoved struct {
	ID  string  `json:"id"`
	X   float64 `json:"x"`
	Z   float64 `json:"z"`
	Rot float64 `json:"rot"`
}

// TrafficState 单个 AI 车辆的状态
type TrafficState struct {
	ID  int       `json:"id"`
	X   float64   `json:"x"`
	Z   float64   `json:"z"`
	Dir Direction `json:"dir"`
}

// DecodeMovement 解析 playerMovement 载荷，x/z/rot 任一缺失即视为畸形消息
func DecodeMovement(raw json.RawMessage) (PlayerMovement, error) {
	var m struct {
		X   *float64 `json:"x"`
		Z   *float64 `json:"z"`
		Rot *float64 `json:"rot"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return PlayerMovement{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.X == nil || m.Z == nil || m.Rot == nil {
		return PlayerMovement{}, fmt.Errorf("%w: playerMovement requires x, z, rot", ErrMalformed)
	}
	return PlayerMovement{X: *m.X, Z: *m.Z, Rot: *m.Rot}, nil
}

// DecodeTraffic 解析 updateAI 载荷，丢弃方向码非法的条目
func DecodeTraffic(raw json.RawMessage) ([]TrafficState, error) {
	var list []TrafficState
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	out := list[:0]
	for _, t := range list {
		if t.Dir.Valid() {
			out = append(out, t)
		}
	}
	return out, nil
}
