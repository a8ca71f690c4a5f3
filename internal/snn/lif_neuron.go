// Package snn 提供离散时间的 LIF（leaky integrate-and-fire）神经元及符合检测网络
//
// 膜电位更新：membrane = membrane*decay + input；
// membrane >= threshold 时放电并硬重置到 rest（不是减法重置）。
package snn

// Params LIF 参数（进程内所有神经元共享，由配置构造）
type Params struct {
	Threshold float64
	Decay     float64 // (0,1)
	Rest      float64
}

// DefaultParams 默认参数：threshold=1.0, decay=0.95, rest=0.0
func DefaultParams() Params {
	return Params{Threshold: 1.0, Decay: 0.95, Rest: 0.0}
}

// NeuronState 神经元状态快照
type NeuronState struct {
	ID       string
	Membrane float64
	Spiked   bool
}

// Neuron LIF 神经元
//
// 状态只由 Step 修改（Reset/SetMembrane 用于重新布防和标定）。非并发安全，由所属网络串行驱动。
type Neuron struct {
	id       string
	params   Params
	membrane float64
	spiked   bool
}

// NewNeuron 创建神经元，膜电位初始为 rest
func NewNeuron(id string, params Params) *Neuron {
	return &Neuron{id: id, params: params, membrane: params.Rest}
}

// Step 处理一个时间步，返回是否放电
//
// 任何输入（负值、极大值）都直接积分，不做校验；安全门限在 FusionEngine。
func (n *Neuron) Step(inputCurrent float64) bool {
	n.membrane = n.membrane*n.params.Decay + inputCurrent

	if n.membrane >= n.params.Threshold {
		n.spiked = true
		n.membrane = n.params.Rest
	} else {
		n.spiked = false
	}
	return n.spiked
}

// Reset 膜电位回到 rest，清除放电标志
func (n *Neuron) Reset() {
	n.membrane = n.params.Rest
	n.spiked = false
}

// SetMembrane 直接设置膜电位（预充/标定）
func (n *Neuron) SetMembrane(v float64) {
	n.membrane = v
}

// State 返回当前状态
func (n *Neuron) State() NeuronState {
	return NeuronState{ID: n.id, Membrane: n.membrane, Spiked: n.spiked}
}
