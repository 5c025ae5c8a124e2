package client

import (
	"context"
	"time"
)

// Loop 以固定频率模拟显示刷新驱动 Engine.Frame，dt 由注入的时钟测得
type Loop struct {
	Client  *Client
	FPS     int
	Now     func() time.Time
	OnFrame func(FrameResult)

	last time.Time
}

// Run 直到 ctx 取消或连接断开；退出时释放镜像并关闭连接
func (l *Loop) Run(ctx context.Context, intent func() Intent) error {
	if l.Now == nil {
		l.Now = time.Now
	}
	fps := l.FPS
	if fps <= 0 {
		fps = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	defer l.Client.Close()

	l.last = l.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.Client.Done():
			return ErrConnectionLost
		case <-ticker.C:
			now := l.Now()
			dt := now.Sub(l.last).Seconds()
			l.last = now
			l.Step(dt, intent())
		}
	}
}

// Step 推进一帧并在需要时上报移动
func (l *Loop) Step(dt float64, in Intent) FrameResult {
	res := l.Client.Engine.Frame(dt, in)
	if res.Movement != nil {
		l.Client.Report(*res.Movement)
	}
	if l.OnFrame != nil {
		l.OnFrame(res)
	}
	return res
}
