package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"citydrive/server"
)

// citydrive 入口：生成城市、启动车流 Tick，提供 HTTP + WebSocket 服务
func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := server.LoadConfig(cfgPath)
	if err != nil {
		panic(err)
	}
	// 使用 zap 日志写入文件（带滚动）
	if err := server.InitLogger(cfg.Log.File); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := server.New(cfg)
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	srv := &http.Server{Addr: cfg.Addr(), Handler: s.Routes()}
	go func() {
		server.Log.Infof("citydrive listening on %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	<-ctx.Done()
	server.Log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	<-done
}
