package snn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestNetwork() *CoincidenceNetwork {
	return NewCoincidenceNetwork(DefaultParams(), zap.NewNop())
}

func TestInfer_FiresOnlyWhenVelocityAndThermalCoincide(t *testing.T) {
	net := newTestNetwork()
	assert.True(t, net.Infer(1.2, 0, 1.1))
}

func TestInfer_ThermalAloneNeverFires(t *testing.T) {
	net := newTestNetwork()
	for i := 0; i < 200; i++ {
		require.False(t, net.Infer(0, 0, 5.0), "cycle %d", i)
	}
}

func TestInfer_VelocityAloneNeverFires(t *testing.T) {
	net := newTestNetwork()
	for i := 0; i < 200; i++ {
		require.False(t, net.Infer(5.0, 0, 0), "cycle %d", i)
	}
}

func TestInfer_AccelerationIsAdvisoryOnly(t *testing.T) {
	net := newTestNetwork()

	// acceleration 放电但不参与判定
	assert.False(t, net.Infer(0, 9.8, 0))
	assert.True(t, net.Neuron(NeuronAcceleration).State().Spiked)

	// acceleration 不放电也不阻止判定
	assert.True(t, net.Infer(2.0, 0, 2.0))
	assert.False(t, net.Neuron(NeuronAcceleration).State().Spiked)
}

func TestInfer_ChannelsSpikingInDifferentCyclesDoNotCoincide(t *testing.T) {
	net := newTestNetwork()
	assert.False(t, net.Infer(1.5, 0, 0)) // velocity 放电并重置
	assert.False(t, net.Infer(0, 0, 1.5)) // thermal 放电，velocity 未放电
}

func TestInfer_IntegratesAcrossCycles(t *testing.T) {
	net := newTestNetwork()
	assert.False(t, net.Infer(0.6, 0, 0.6))
	// 0.57 + 0.6 = 1.17 两个通道同时越过阈值
	assert.True(t, net.Infer(0.6, 0, 0.6))
}

func TestNetwork_RearmAndStates(t *testing.T) {
	net := newTestNetwork()
	net.Infer(0.5, 0.5, 0.5)

	states := net.States()
	require.Len(t, states, 3)
	assert.Equal(t, NeuronVelocity, states[0].ID)
	assert.Equal(t, NeuronAcceleration, states[1].ID)
	assert.Equal(t, NeuronThermal, states[2].ID)
	assert.Equal(t, 0.5, states[0].Membrane)

	net.Rearm()
	for _, s := range net.States() {
		assert.Equal(t, 0.0, s.Membrane)
		assert.False(t, s.Spiked)
	}
	assert.Nil(t, net.Neuron("unknown"))
}
