package server

import (
	"encoding/json"
	"net/http"
)

// HandleAdminConfig 读取与热更新运行参数
// GET  /admin/config  返回当前配置
// POST /admin/config  以 JSON 载荷更新部分字段（目前仅 trafficSpeed）
func (s *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	type cfg struct {
		TrafficSpeed *float64 `json:"trafficSpeed,omitempty"`
		TrafficCount *int     `json:"trafficCount,omitempty"`
		TickRate     *int     `json:"tickRate,omitempty"`
		SendQueue    *int     `json:"sendQueue,omitempty"`
		MaxDrops     *int     `json:"maxDrops,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		speed := s.traffic.Speed()
		cur := cfg{
			TrafficSpeed: &speed,
			TrafficCount: &s.cfg.Traffic.Count,
			TickRate:     &s.cfg.Traffic.TickRate,
			SendQueue:    &s.cfg.Net.SendQueue,
			MaxDrops:     &s.cfg.Net.MaxDrops,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cur)
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.TrafficSpeed == nil {
			http.Error(w, "only trafficSpeed is writable", http.StatusBadRequest)
			return
		}
		if *body.TrafficSpeed < 0 {
			http.Error(w, "trafficSpeed must be >= 0", http.StatusBadRequest)
			return
		}
		s.traffic.SetSpeed(*body.TrafficSpeed)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		Log.Infof("config updated: trafficSpeed=%.2f", *body.TrafficSpeed)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出运行指标
// GET /metrics
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"tick":    s.traffic.Snapshot().Tick,
		"players": s.registry.Len(),
		"metrics": s.metrics.Snapshot(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
