package snn

import "go.uber.org/zap"

// 网络中的神经元名称
const (
	NeuronVelocity     = "velocity"
	NeuronAcceleration = "acceleration"
	NeuronThermal      = "thermal"
)

// CoincidenceNetwork 时间符合检测网络
//
// 固定三个神经元：velocity、acceleration、thermal。
// 判定规则为 spike(velocity) AND spike(thermal)；acceleration 照常积分和放电，
// 但只作为辅助信号，不参与判定（保持与现有报警灵敏度一致）。
type CoincidenceNetwork struct {
	velocity     *Neuron
	acceleration *Neuron
	thermal      *Neuron
	logger       *zap.Logger
}

// NewCoincidenceNetwork 创建网络
func NewCoincidenceNetwork(params Params, logger *zap.Logger) *CoincidenceNetwork {
	return &CoincidenceNetwork{
		velocity:     NewNeuron(NeuronVelocity, params),
		acceleration: NewNeuron(NeuronAcceleration, params),
		thermal:      NewNeuron(NeuronThermal, params),
		logger:       logger,
	}
}

// Infer 对当前帧推理：三个神经元依次步进，速度与热通道在同一周期内同时放电时返回 true
func (c *CoincidenceNetwork) Infer(velocity, acceleration, thermal float64) bool {
	vSpike := c.velocity.Step(velocity)
	aSpike := c.acceleration.Step(acceleration)
	tSpike := c.thermal.Step(thermal)

	coincidence := vSpike && tSpike

	if coincidence {
		c.logger.Info("SNN coincidence detected",
			zap.Bool("velocity_spike", vSpike),
			zap.Bool("acceleration_spike", aSpike),
			zap.Bool("thermal_spike", tSpike),
		)
	} else if aSpike {
		c.logger.Debug("Acceleration neuron spiked (advisory only)",
			zap.Float64("acceleration", acceleration),
		)
	}

	return coincidence
}

// Neuron 按名称获取神经元，名称未知时返回 nil
func (c *CoincidenceNetwork) Neuron(name string) *Neuron {
	switch name {
	case NeuronVelocity:
		return c.velocity
	case NeuronAcceleration:
		return c.acceleration
	case NeuronThermal:
		return c.thermal
	default:
		return nil
	}
}

// States 返回全部神经元状态（velocity, acceleration, thermal 顺序）
func (c *CoincidenceNetwork) States() []NeuronState {
	return []NeuronState{c.velocity.State(), c.acceleration.State(), c.thermal.State()}
}

// Rearm 重新布防：全部神经元回到 rest
func (c *CoincidenceNetwork) Rearm() {
	c.velocity.Reset()
	c.acceleration.Reset()
	c.thermal.Reset()
}
