package client

// Intent 当前帧的驾驶意图（原始键盘状态）
type Intent struct {
	Forward bool
	Back    bool
	Left    bool
	Right   bool
}

// SetKey 按键映射：WASD 与方向键
func (i *Intent) SetKey(key string, down bool) {
	switch key {
	case "w", "ArrowUp":
		i.Forward = down
	case "s", "ArrowDown":
		i.Back = down
	case "a", "ArrowLeft":
		i.Left = down
	case "d", "ArrowRight":
		i.Right = down
	}
}

// Throttle 前进为 +1，后退为 -1；同时按下时后退优先
func (i Intent) Throttle() float64 {
	switch {
	case i.Back:
		return -1
	case i.Forward:
		return 1
	}
	return 0
}

// Steer 左转为 +1，右转为 -1；同时按下时右转优先
func (i Intent) Steer() float64 {
	switch {
	case i.Right:
		return -1
	case i.Left:
		return 1
	}
	return 0
}
