package server

import (
	"context"
	"time"
)

// TickInterval 车流 Tick 周期
func TickInterval(rate int) time.Duration {
	return time.Second / time.Duration(rate)
}

// runTicker 单协程固定频率推进车流：Step → 广播 → 记录
// 每个 Tick 都基于上一 Tick 已提交的状态；错过的截止只会推迟广播，不会跳过或重复
func (s *Server) runTicker(ctx context.Context) {
	interval := TickInterval(s.cfg.Traffic.TickRate)
	dt := interval.Seconds()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			snap := s.traffic.Step(dt)
			s.dispatcher.BroadcastTraffic(snap)
			if s.journal != nil {
				if err := s.journal.WriteTick(snap); err != nil {
					Log.Warnf("journal write failed: tick=%d err=%v", snap.Tick, err)
				}
			}
			s.metrics.AddTick(time.Since(start).Nanoseconds())
		}
	}
}
