// Package fusion 提供雷达 + 热成像的跌倒融合判定
//
// 判定是双重门限：SNN 速度/热通道符合放电 AND 速度超过 FallVelocityLimit。
// 两个条件必须同时满足，不能合并成单一检查。
package fusion

import (
	"time"

	"github.com/mshaibu3/hakilix-core/internal/models"
	"github.com/mshaibu3/hakilix-core/internal/snn"

	"go.uber.org/zap"
)

// Network 符合检测网络
type Network interface {
	Infer(velocity, acceleration, thermal float64) bool
	Rearm()
}

// Engine 融合引擎
type Engine struct {
	network           Network
	fallVelocityLimit float64
	logger            *zap.Logger
	now               func() time.Time
}

// NewEngine 创建融合引擎
func NewEngine(network Network, fallVelocityLimit float64, logger *zap.Logger) *Engine {
	return &Engine{
		network:           network,
		fallVelocityLimit: fallVelocityLimit,
		logger:            logger,
		now:               time.Now,
	}
}

// NewEngineWithParams 使用 LIF 参数构造默认的三神经元网络
func NewEngineWithParams(params snn.Params, fallVelocityLimit float64, logger *zap.Logger) *Engine {
	return NewEngine(snn.NewCoincidenceNetwork(params, logger), fallVelocityLimit, logger)
}

// Process 执行一个融合周期
//
// radar 提供 velocity、acceleration，thermal 提供 variance；缺失字段按 0.0 参与运算。
// 不返回错误，也不 panic。
func (e *Engine) Process(radar, thermal models.ReadingSet) models.FusionDecision {
	velocity := radar.Value(models.ChannelVelocity)
	acceleration := radar.Value(models.ChannelAcceleration)
	variance := thermal.Value(models.ChannelThermalVariance)

	decision := models.FusionDecision{
		Outcome:         models.OutcomeSafe,
		Velocity:        velocity,
		Acceleration:    acceleration,
		ThermalVariance: variance,
		Timestamp:       e.now(),
	}

	decision.Coincidence = e.network.Infer(velocity, acceleration, variance)
	if !decision.Coincidence {
		return decision
	}

	// TODO: velocity 已驱动 velocity 神经元积分，此处复用同一值做幅值门限；待产品评审确认是否保留双重检查
	if velocity > e.fallVelocityLimit {
		decision.Outcome = models.OutcomeCriticalAlert
		e.logger.Error("FALL DETECTED",
			zap.Float64("velocity", velocity),
			zap.Float64("acceleration", acceleration),
			zap.Float64("thermal_variance", variance),
		)
		return decision
	}

	e.logger.Info("Coincidence without fall magnitude, staying SAFE",
		zap.Float64("velocity", velocity),
		zap.Float64("fall_velocity_limit", e.fallVelocityLimit),
	)
	return decision
}

// Rearm 报警确认后重新布防网络
func (e *Engine) Rearm() {
	e.network.Rearm()
}
