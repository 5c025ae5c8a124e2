package server

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics 记录服务运行期的关键指标（用于监控与调试）
// 计数同时写入 OpenTelemetry 全局 MeterProvider，未安装 SDK 时为 no-op
type Metrics struct {
	TickCount      int64 // Tick 次数
	TotalTickNs    int64 // Tick 累计耗时（纳秒）
	Connections    int64 // 当前连接数
	Joins          int64 // 累计入场
	MovesRelayed   int64 // 被转发的移动
	MovesUnchanged int64 // 状态未变而未转发的移动
	UnknownEntity  int64 // 引用了不存在 id 的更新/移除
	Malformed      int64 // 畸形消息
	Dropped        int64 // 因发送队列满被丢弃的出站消息
	ClosedSlow     int64 // 因持续背压被关闭的连接
	LifecycleLost  int64 // 生命周期消息入队失败而被关闭的连接

	ticks       metric.Int64Counter
	tickLatency metric.Float64Histogram
	conns       metric.Int64UpDownCounter
	relayed     metric.Int64Counter
	malformed   metric.Int64Counter
	dropped     metric.Int64Counter
}

// NewMetrics 创建指标集合
func NewMetrics() *Metrics {
	meter := otel.Meter("citydrive/server")
	m := &Metrics{}

	var err error
	if m.ticks, err = meter.Int64Counter("citydrive.traffic.ticks"); err != nil {
		m.ticks = noop.Int64Counter{}
	}
	if m.tickLatency, err = meter.Float64Histogram("citydrive.traffic.tick_duration", metric.WithUnit("ms")); err != nil {
		m.tickLatency = noop.Float64Histogram{}
	}
	if m.conns, err = meter.Int64UpDownCounter("citydrive.connections"); err != nil {
		m.conns = noop.Int64UpDownCounter{}
	}
	if m.relayed, err = meter.Int64Counter("citydrive.moves.relayed"); err != nil {
		m.relayed = noop.Int64Counter{}
	}
	if m.malformed, err = meter.Int64Counter("citydrive.messages.malformed"); err != nil {
		m.malformed = noop.Int64Counter{}
	}
	if m.dropped, err = meter.Int64Counter("citydrive.outbound.dropped"); err != nil {
		m.dropped = noop.Int64Counter{}
	}
	return m
}

func (m *Metrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
	m.ticks.Add(context.Background(), 1)
	m.tickLatency.Record(context.Background(), float64(ns)/1e6)
}

func (m *Metrics) IncJoin() {
	atomic.AddInt64(&m.Joins, 1)
	atomic.AddInt64(&m.Connections, 1)
	m.conns.Add(context.Background(), 1)
}

func (m *Metrics) DecConnections() {
	atomic.AddInt64(&m.Connections, -1)
	m.conns.Add(context.Background(), -1)
}

func (m *Metrics) IncRelayed() {
	atomic.AddInt64(&m.MovesRelayed, 1)
	m.relayed.Add(context.Background(), 1)
}

func (m *Metrics) IncUnchanged()     { atomic.AddInt64(&m.MovesUnchanged, 1) }
func (m *Metrics) IncUnknownEntity() { atomic.AddInt64(&m.UnknownEntity, 1) }
func (m *Metrics) IncClosedSlow()    { atomic.AddInt64(&m.ClosedSlow, 1) }
func (m *Metrics) IncLifecycleLost() { atomic.AddInt64(&m.LifecycleLost, 1) }

func (m *Metrics) IncMalformed() {
	atomic.AddInt64(&m.Malformed, 1)
	m.malformed.Add(context.Background(), 1)
}

func (m *Metrics) IncDropped() {
	atomic.AddInt64(&m.Dropped, 1)
	m.dropped.Add(context.Background(), 1)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":      tick,
		"avg_tick_ms":     avgMs,
		"connections":     atomic.LoadInt64(&m.Connections),
		"joins":           atomic.LoadInt64(&m.Joins),
		"moves_relayed":   atomic.LoadInt64(&m.MovesRelayed),
		"moves_unchanged": atomic.LoadInt64(&m.MovesUnchanged),
		"unknown_entity":  atomic.LoadInt64(&m.UnknownEntity),
		"malformed":       atomic.LoadInt64(&m.Malformed),
		"dropped":         atomic.LoadInt64(&m.Dropped),
		"closed_slow":     atomic.LoadInt64(&m.ClosedSlow),
		"lifecycle_lost":  atomic.LoadInt64(&m.LifecycleLost),
	}
}
