package server

import (
	"context"
	"math/rand"
	"net/http"
	"time"
)

// Server 组装世界、车流、注册表与分发器
type Server struct {
	cfg        Config
	world      *World
	registry   *Registry
	traffic    *Traffic
	dispatcher *Dispatcher
	metrics    *Metrics
	journal    *Journal // 为 nil 时不记录
}

// New 生成世界与车流；此后世界只读
func New(cfg Config) *Server {
	seed := cfg.World.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	world := GenerateWorld(cfg.World, rng)
	traffic := NewTraffic(cfg.Traffic, world, rng)
	registry := NewRegistry(rand.New(rand.NewSource(rng.Int63())))
	metrics := NewMetrics()

	s := &Server{
		cfg:        cfg,
		world:      world,
		registry:   registry,
		traffic:    traffic,
		dispatcher: NewDispatcher(world, registry, metrics),
		metrics:    metrics,
	}
	if cfg.Journal.Dir != "" {
		s.journal = NewJournal(cfg.Journal.Dir)
	}
	Log.Infof("world generated: seed=%d grid=%dx%d blocks=%d traffic=%d", seed, world.Rows, world.Cols, len(world.Layout), cfg.Traffic.Count)
	return s
}

// Routes HTTP 路由：/ws、管理与监控接口，可选静态资源
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	mux.HandleFunc("/admin/config", s.HandleAdminConfig)
	mux.HandleFunc("/metrics", s.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if s.cfg.Server.Static != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.Server.Static)))
	}
	return mux
}

// Run 驱动车流 Tick 直到 ctx 取消
func (s *Server) Run(ctx context.Context) {
	s.runTicker(ctx)
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			Log.Warnf("journal close: %v", err)
		}
	}
}

func (s *Server) World() *World       { return s.world }
func (s *Server) Registry() *Registry { return s.registry }
func (s *Server) Traffic() *Traffic   { return s.traffic }
func (s *Server) Metrics() *Metrics   { return s.metrics }
