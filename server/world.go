package server

import (
	"math/rand"

	"citydrive/protocol"
)

// World 启动时生成一次的城市布局，生成后只读
type World struct {
	Rows      int
	Cols      int
	BlockSize float64
	Layout    []protocol.Building

	msg []byte // cityMap 消息，入场时原样下发
}

// GenerateWorld 按网格生成街区建筑，中心 2x2 广场留空
func GenerateWorld(cfg WorldConfig, rng *rand.Rand) *World {
	w := &World{Rows: cfg.Rows, Cols: cfg.Cols, BlockSize: cfg.BlockSize}
	b := cfg.BlockSize
	halfW := float64(cfg.Rows) * b / 2
	halfD := float64(cfg.Cols) * b / 2

	for r := 0; r < cfg.Rows; r++ {
		for c := 0; c < cfg.Cols; c++ {
			if inPlaza(r, cfg.Rows) && inPlaza(c, cfg.Cols) {
				continue
			}
			w.Layout = append(w.Layout, protocol.Building{
				X:      float64(r)*b - halfW + b/2,
				Z:      float64(c)*b - halfD + b/2,
				Width:  30 + rng.Float64()*30,
				Depth:  30 + rng.Float64()*30,
				Height: 100 + rng.Float64()*300,
				Twist:  (rng.Float64() - 0.5) * 2,
				Type:   rng.Intn(3),
			})
		}
	}
	w.msg = protocol.MustEncode(protocol.TypeCityMap, w.CityMap())
	return w
}

func inPlaza(i, n int) bool {
	return i >= n/2-1 && i <= n/2
}

// HalfExtent 车流环绕边界 B = rows*blockSize/2
func (w *World) HalfExtent() float64 {
	return float64(w.Rows) * w.BlockSize / 2
}

// CityMap 转为线上载荷
func (w *World) CityMap() protocol.CityMap {
	return protocol.CityMap{Rows: w.Rows, Cols: w.Cols, BlockSize: w.BlockSize, Layout: w.Layout}
}

// Message 已编码的 cityMap 消息
func (w *World) Message() []byte {
	return w.msg
}
