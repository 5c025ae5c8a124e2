package protocol

import "math"

// Direction AI 车辆的离散行驶方向，线上编码为 {1,-1,2,-2}
type Direction int

const (
	DirPosX Direction = 1
	DirNegX Direction = -1
	DirPosZ Direction = 2
	DirNegZ Direction = -2
)

// Valid 是否为合法方向码
func (d Direction) Valid() bool {
	switch d {
	case DirPosX, DirNegX, DirPosZ, DirNegZ:
		return true
	}
	return false
}

// Unit 返回方向的单位向量 (dx, dz)
func (d Direction) Unit() (float64, float64) {
	switch d {
	case DirPosX:
		return 1, 0
	case DirNegX:
		return -1, 0
	case DirPosZ:
		return 0, 1
	case DirNegZ:
		return 0, -1
	}
	return 0, 0
}

// Heading 方向码对应的固定朝向角（弧度，绕 y 轴，0 朝 +Z）
func (d Direction) Heading() float64 {
	switch d {
	case DirPosX:
		return math.Pi / 2
	case DirNegX:
		return -math.Pi / 2
	case DirNegZ:
		return math.Pi
	}
	return 0
}

// Horizontal 是否沿 X 轴行驶
func (d Direction) Horizontal() bool {
	return d == DirPosX || d == DirNegX
}
