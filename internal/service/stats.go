package service

import (
	"sync/atomic"
	"time"
)

// Stats 运行统计（原子计数，周期循环写入，/healthz 与定期日志读取）
type Stats struct {
	startedAt     time.Time
	cycles        atomic.Int64
	alerts        atomic.Int64
	sensorErrors  atomic.Int64
	networkErrors atomic.Int64
	failures      atomic.Int64
	lastCycleAt   atomic.Int64 // unix nano
}

// StatsSnapshot 统计快照
type StatsSnapshot struct {
	State         string    `json:"state"`
	DeviceID      string    `json:"device_id"`
	Mode          string    `json:"mode,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	Uptime        string    `json:"uptime"`
	Cycles        int64     `json:"cycles"`
	Alerts        int64     `json:"alerts"`
	SensorErrors  int64     `json:"sensor_errors"`
	NetworkErrors int64     `json:"network_errors"`
	Failures      int64     `json:"failures"`
	BufferDepth   int       `json:"buffer_depth"`
	LastCycleAt   time.Time `json:"last_cycle_at,omitempty"`
}

func newStats() *Stats {
	return &Stats{startedAt: time.Now()}
}

func (s *Stats) record(res CycleResult) {
	s.cycles.Add(1)
	s.lastCycleAt.Store(time.Now().UnixNano())
	if res.Decision.IsAlert() {
		s.alerts.Add(1)
	}
	switch res.Kind {
	case CycleSensorError:
		s.sensorErrors.Add(1)
	case CycleNetworkError:
		s.networkErrors.Add(1)
	case CycleFailed:
		s.failures.Add(1)
	}
}

func (s *Stats) snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		StartedAt:     s.startedAt,
		Uptime:        time.Since(s.startedAt).Truncate(time.Second).String(),
		Cycles:        s.cycles.Load(),
		Alerts:        s.alerts.Load(),
		SensorErrors:  s.sensorErrors.Load(),
		NetworkErrors: s.networkErrors.Load(),
		Failures:      s.failures.Load(),
	}
	if ns := s.lastCycleAt.Load(); ns != 0 {
		snap.LastCycleAt = time.Unix(0, ns)
	}
	return snap
}
