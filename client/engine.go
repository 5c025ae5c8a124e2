package client

import (
	"math"
	"sync"

	"citydrive/protocol"
)

const (
	MovementSpeed = 50.0 // 单位/秒
	RotationSpeed = 3.0  // 弧度/秒
	// DefaultConvergence 远端实体向 target 收敛的速度 K，越大越跟手，越小越平滑
	DefaultConvergence = 10.0
	// SettleEpsilon 残差低于此值时直接对齐 target
	SettleEpsilon = 1e-3
	// BounceFactor 碰撞时回退本次位移的比例
	BounceFactor = 0.5

	CameraDistance  = 20.0
	CameraHeight    = 8.0
	CameraSmoothing = 5.0
)

// Camera 追尾相机状态，由渲染协作者使用
type Camera struct {
	X, Y, Z      float64
	LookX, LookZ float64
}

// FrameResult 一帧的输出
type FrameResult struct {
	// Movement 非 nil 表示本帧有移动或转向，需要上报
	Movement *protocol.PlayerMovement
	Bounced  bool
	Self     Sample
	HasSelf  bool
	Camera   Camera
}

// Engine 每个渲染帧推进一次：本地玩家按输入积分，远端实体指数收敛
type Engine struct {
	K float64

	mirrors *MirrorStore

	mu         sync.Mutex
	obstacles  []Rect
	wrapJump   float64 // 车流单帧位移超过此值视为边界重置；0 表示未知
	self       Sample
	hasSelf    bool
	selfHandle Handle
	camera     Camera
}

func NewEngine(m *MirrorStore) *Engine {
	return &Engine{K: DefaultConvergence, mirrors: m}
}

// SetWorld 载入 cityMap 生成的静态障碍
func (e *Engine) SetWorld(m protocol.CityMap) {
	obs := Obstacles(m)
	e.mu.Lock()
	e.obstacles = obs
	e.wrapJump = float64(m.Rows) * m.BlockSize / 2
	e.mu.Unlock()
}

// SpawnSelf 在 currentPlayers 中找到自己后创建本地车辆；本地玩家由客户端自己权威
func (e *Engine) SpawnSelf(id string, p protocol.PlayerState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hasSelf {
		return
	}
	e.self = Sample{X: p.X, Z: p.Z, Rot: p.Rot}
	e.hasSelf = true
	e.selfHandle = e.mirrors.spawn(EntityKey{Kind: KindSelf, ID: id}, p.Color, e.self)
	e.camera = cameraTarget(e.self)
}

// Self 本地车辆的位姿
func (e *Engine) Self() (Sample, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.self, e.hasSelf
}

// Reset 断线后释放本地车辆
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selfHandle != nil {
		e.selfHandle.Release()
		e.selfHandle = nil
	}
	e.hasSelf = false
	e.self = Sample{}
}

// Frame 推进一帧，dt 为距上一帧的秒数，由调用方注入
func (e *Engine) Frame(dt float64, in Intent) FrameResult {
	var res FrameResult

	e.mu.Lock()
	if e.hasSelf {
		res.Movement, res.Bounced = e.driveLocked(dt, in)
		e.updateCameraLocked(dt)
		if e.selfHandle != nil {
			e.selfHandle.SetPose(e.self)
		}
		res.Self, res.HasSelf = e.self, true
		res.Camera = e.camera
	}
	wrapJump := e.wrapJump
	e.mu.Unlock()

	alpha := Alpha(e.K, dt)
	e.mirrors.each(func(rec *Record) {
		if rec.Key.Kind == KindTraffic && wrapJump > 0 &&
			(math.Abs(rec.Target.X-rec.Rendered.X) > wrapJump || math.Abs(rec.Target.Z-rec.Rendered.Z) > wrapJump) {
			// 越界重置后直接出现在对侧，不横穿城市
			rec.Rendered.X, rec.Rendered.Z = rec.Target.X, rec.Target.Z
		}
		rec.Rendered.X = Converge(rec.Rendered.X, rec.Target.X, alpha)
		rec.Rendered.Z = Converge(rec.Rendered.Z, rec.Target.Z, alpha)
		if rec.Key.Kind == KindTraffic {
			// 离散方向翻转直接对齐
			rec.Rendered.Rot = rec.Target.Rot
		} else {
			rec.Rendered.Rot = Converge(rec.Rendered.Rot, rec.Target.Rot, alpha)
		}
		rec.handle.SetPose(rec.Rendered)
	})
	return res
}

// driveLocked 按输入积分本地车辆；碰撞时回退一半位移（软反弹）
// 只要本帧有移动或转向就上报，即使发生了反弹
func (e *Engine) driveLocked(dt float64, in Intent) (*protocol.PlayerMovement, bool) {
	dist := in.Throttle() * MovementSpeed * dt
	turn := in.Steer() * RotationSpeed * dt

	e.self.Rot += turn
	dx := math.Sin(e.self.Rot) * dist
	dz := math.Cos(e.self.Rot) * dist
	nextX, nextZ := e.self.X+dx, e.self.Z+dz

	bounced := false
	if Collides(nextX, nextZ, e.obstacles, e.mirrors.Rendered(KindTraffic), e.mirrors.Rendered(KindPlayer)) {
		e.self.X -= dx * BounceFactor
		e.self.Z -= dz * BounceFactor
		bounced = true
	} else {
		e.self.X, e.self.Z = nextX, nextZ
	}

	if dist == 0 && turn == 0 {
		return nil, bounced
	}
	return &protocol.PlayerMovement{X: e.self.X, Z: e.self.Z, Rot: e.self.Rot}, bounced
}

func cameraTarget(s Sample) Camera {
	return Camera{
		X:     s.X - math.Sin(s.Rot)*CameraDistance,
		Y:     CameraHeight,
		Z:     s.Z - math.Cos(s.Rot)*CameraDistance,
		LookX: s.X,
		LookZ: s.Z,
	}
}

func (e *Engine) updateCameraLocked(dt float64) {
	target := cameraTarget(e.self)
	alpha := Alpha(CameraSmoothing, dt)
	e.camera.X += (target.X - e.camera.X) * alpha
	e.camera.Z += (target.Z - e.camera.Z) * alpha
	e.camera.Y = CameraHeight
	e.camera.LookX, e.camera.LookZ = e.self.X, e.self.Z
}

// Alpha 指数平滑系数 min(1, k*dt)
func Alpha(k, dt float64) float64 {
	a := k * dt
	if a > 1 {
		return 1
	}
	if a < 0 {
		return 0
	}
	return a
}

// Converge 向 target 前进 alpha 比例；残差低于 SettleEpsilon 时直接对齐
func Converge(cur, target, alpha float64) float64 {
	next := cur + (target-cur)*alpha
	if math.Abs(target-next) < SettleEpsilon {
		return target
	}
	return next
}
