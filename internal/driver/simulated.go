package driver

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/mshaibu3/hakilix-core/internal/models"

	"go.uber.org/zap"
)

const (
	// 雷达模拟：跌倒偏移区间与平时区间（m/s）
	simFallVelocityMin = 2.5
	simFallVelocityMax = 4.0
	simIdleVelocityMax = 0.5
	// 加速度 = velocity / simAccelWindow
	simAccelWindow = 0.1

	simVarianceMin = 0.1
	simVarianceMax = 0.9
)

// SimOptions 模拟数据源参数
type SimOptions struct {
	FallProbability float64       // 仅雷达使用
	FrameLatency    time.Duration // 单帧采集耗时
	Rand            *rand.Rand    // 为空时使用随机种子
}

// simBase 模拟源公共部分：连接状态、随机数、采集延迟
type simBase struct {
	name      string
	model     string
	latency   time.Duration
	logger    *zap.Logger
	mu        sync.Mutex
	rng       *rand.Rand
	connected bool
}

func (s *simBase) setup(name, model string, opts SimOptions, logger *zap.Logger) {
	s.name = name
	s.model = model
	s.latency = opts.FrameLatency
	s.logger = logger
	s.rng = opts.Rand
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
}

// Name 数据源名称
func (s *simBase) Name() string { return s.name }

// Connect 模拟初始化，重复调用无副作用
func (s *simBase) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil
	}
	s.connected = true
	s.logger.Info("[SIM] "+s.model+" initialized", zap.String("source", s.name))
	return nil
}

// acquire 等待采集延迟；返回错误时调用方输出中性读数
func (s *simBase) acquire(ctx context.Context) error {
	s.mu.Lock()
	connected := s.connected
	s.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	if s.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *simBase) uniform(lo, hi float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *simBase) chance(p float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < p
}

// SimulatedRadar 模拟 IWR6843 毫米波雷达
type SimulatedRadar struct {
	simBase
	fallProbability float64
}

// NewSimulatedRadar 创建模拟雷达
func NewSimulatedRadar(opts SimOptions, logger *zap.Logger) *SimulatedRadar {
	r := &SimulatedRadar{fallProbability: opts.FallProbability}
	r.setup(SourceRadar, "Radar IWR6843", opts, logger)
	return r
}

// GetFrame 生成一帧：以 FallProbability 概率产生跌倒级速度
func (r *SimulatedRadar) GetFrame(ctx context.Context) (models.ReadingSet, error) {
	if err := r.acquire(ctx); err != nil {
		return NeutralFor(r.name), err
	}

	var velocity float64
	if r.chance(r.fallProbability) {
		velocity = r.uniform(simFallVelocityMin, simFallVelocityMax)
	} else {
		velocity = r.uniform(0, simIdleVelocityMax)
	}

	now := time.Now()
	return models.ReadingSet{
		Source: r.name,
		Readings: []models.SensorReading{
			models.NewSensorReading(models.ChannelVelocity, velocity, now),
			models.NewSensorReading(models.ChannelAcceleration, velocity/simAccelWindow, now),
		},
		AcquiredAt: now,
	}, nil
}

// SimulatedThermal 模拟 FLIR Lepton 热成像模组
type SimulatedThermal struct {
	simBase
}

// NewSimulatedThermal 创建模拟热成像
func NewSimulatedThermal(opts SimOptions, logger *zap.Logger) *SimulatedThermal {
	t := &SimulatedThermal{}
	t.setup(SourceThermal, "Thermal FLIR Lepton", opts, logger)
	return t
}

// GetFrame 生成一帧热方差
func (t *SimulatedThermal) GetFrame(ctx context.Context) (models.ReadingSet, error) {
	if err := t.acquire(ctx); err != nil {
		return NeutralFor(t.name), err
	}
	now := time.Now()
	return models.ReadingSet{
		Source: t.name,
		Readings: []models.SensorReading{
			models.NewSensorReading(models.ChannelThermalVariance, t.uniform(simVarianceMin, simVarianceMax), now),
		},
		AcquiredAt: now,
	}, nil
}
