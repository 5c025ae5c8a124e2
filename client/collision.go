package client

import (
	"math"

	"citydrive/protocol"
)

// 车辆与障碍物尺寸
const (
	CarWidth       = 2.2
	CarLength      = 4.5
	TrafficScale   = 3.0
	TrafficMargin  = 1.0 // AI 车辆碰撞盒每边收缩
	PlayerMargin   = 0.5 // 其他玩家碰撞盒每边收缩
	FenceThickness = 1.0
)

// Rect 地面平面上的轴对齐矩形
type Rect struct {
	MinX, MinZ, MaxX, MaxZ float64
}

// RectAt 以 (x, z) 为中心，宽 w（X 轴）深 d（Z 轴）
func RectAt(x, z, w, d float64) Rect {
	return Rect{MinX: x - w/2, MinZ: z - d/2, MaxX: x + w/2, MaxZ: z + d/2}
}

// Shrink 每边收缩 m；可能变为空矩形
func (r Rect) Shrink(m float64) Rect {
	return Rect{MinX: r.MinX + m, MinZ: r.MinZ + m, MaxX: r.MaxX - m, MaxZ: r.MaxZ - m}
}

func (r Rect) Empty() bool {
	return r.MaxX < r.MinX || r.MaxZ < r.MinZ
}

// Intersects 贴边也算相交
func (r Rect) Intersects(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return !(r.MaxX < o.MinX || r.MinX > o.MaxX || r.MaxZ < o.MinZ || r.MinZ > o.MaxZ)
}

// carBounds 车辆按朝向旋转后的轴对齐包围盒
func carBounds(s Sample, scale float64) Rect {
	w, l := CarWidth*scale, CarLength*scale
	sin, cos := math.Abs(math.Sin(s.Rot)), math.Abs(math.Cos(s.Rot))
	return RectAt(s.X, s.Z, cos*w+sin*l, sin*w+cos*l)
}

// Obstacles 城市中的静态障碍：全部建筑 + 四面围栏
func Obstacles(m protocol.CityMap) []Rect {
	out := make([]Rect, 0, len(m.Layout)+4)
	for _, b := range m.Layout {
		out = append(out, RectAt(b.X, b.Z, b.Width, b.Depth))
	}
	totalW := float64(m.Rows) * m.BlockSize
	totalD := float64(m.Cols) * m.BlockSize
	out = append(out,
		RectAt(0, -totalD/2, totalW, FenceThickness),
		RectAt(0, totalD/2, totalW, FenceThickness),
		RectAt(-totalW/2, 0, FenceThickness, totalD),
		RectAt(totalW/2, 0, FenceThickness, totalD),
	)
	return out
}

// Collides 本地车辆位于 (x, z) 时是否与障碍、AI 车辆或其他玩家重叠
// 纯函数，结果仅供本地参考，不作为权威判定
func Collides(x, z float64, obstacles []Rect, traffic, players []Sample) bool {
	self := RectAt(x, z, CarWidth, CarLength)
	for _, o := range obstacles {
		if self.Intersects(o) {
			return true
		}
	}
	for _, t := range traffic {
		if self.Intersects(carBounds(t, TrafficScale).Shrink(TrafficMargin)) {
			return true
		}
	}
	for _, p := range players {
		if self.Intersects(carBounds(p, 1).Shrink(PlayerMargin)) {
			return true
		}
	}
	return false
}
