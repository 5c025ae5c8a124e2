// driver 无头客户端：连接服务器，按脚本驾驶并周期打印镜像数量。
// 用于压测与联调，不做任何渲染。
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"citydrive/client"
)

func main() {
	var (
		url      string
		fps      int
		duration time.Duration
		every    time.Duration
	)
	flag.StringVar(&url, "url", "ws://localhost:3000/ws", "server websocket url")
	flag.IntVar(&fps, "fps", 60, "simulated display refresh rate")
	flag.DurationVar(&duration, "duration", 0, "stop after this long (0 = until interrupted)")
	flag.DurationVar(&every, "report", 2*time.Second, "status log interval")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	c := client.New(client.NopRenderer{}, log)
	if err := c.Connect(ctx, url); err != nil {
		log.Fatalf("connect: %v", err)
	}
	log.Infof("connected as %s", c.SelfID())

	start := time.Now()
	lastReport := start
	loop := &client.Loop{
		Client: c,
		FPS:    fps,
		OnFrame: func(r client.FrameResult) {
			if time.Since(lastReport) < every {
				return
			}
			lastReport = time.Now()
			log.Infof("self=(%.1f, %.1f, %.2f) players=%d traffic=%d",
				r.Self.X, r.Self.Z, r.Self.Rot, c.Mirrors.Len(client.KindPlayer), c.Mirrors.Len(client.KindTraffic))
		},
	}

	err = loop.Run(ctx, func() client.Intent { return route(time.Since(start)) })
	switch {
	case errors.Is(err, client.ErrConnectionLost):
		log.Warn("server closed the connection")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Info("stopped")
	}
}

// route 脚本化的驾驶：直行 3 秒，左转 1 秒，循环
func route(elapsed time.Duration) client.Intent {
	phase := elapsed % (4 * time.Second)
	return client.Intent{
		Forward: true,
		Left:    phase >= 3*time.Second,
	}
}
