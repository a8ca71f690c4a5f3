package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mshaibu3/hakilix-core/internal/driver"
	"github.com/mshaibu3/hakilix-core/internal/fusion"
	"github.com/mshaibu3/hakilix-core/internal/models"
	"github.com/mshaibu3/hakilix-core/internal/notifier"
	"github.com/mshaibu3/hakilix-core/internal/snn"
	"github.com/mshaibu3/hakilix-core/internal/transform"
	"github.com/mshaibu3/hakilix-core/internal/uplink"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedSource 按调用次数返回预设帧
type scriptedSource struct {
	name  string
	frame func(call int) (models.ReadingSet, error)

	mu       sync.Mutex
	calls    int
	connects int
}

func (s *scriptedSource) Name() string { return s.name }

func (s *scriptedSource) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	return ctx.Err()
}

func (s *scriptedSource) GetFrame(_ context.Context) (models.ReadingSet, error) {
	s.mu.Lock()
	call := s.calls
	s.calls++
	s.mu.Unlock()
	return s.frame(call)
}

func radarFrames(values ...[2]float64) *scriptedSource {
	return &scriptedSource{name: driver.SourceRadar, frame: func(call int) (models.ReadingSet, error) {
		v := values[len(values)-1]
		if call < len(values) {
			v = values[call]
		}
		now := time.Now()
		return models.ReadingSet{Source: driver.SourceRadar, AcquiredAt: now, Readings: []models.SensorReading{
			models.NewSensorReading(models.ChannelVelocity, v[0], now),
			models.NewSensorReading(models.ChannelAcceleration, v[1], now),
		}}, nil
	}}
}

func thermalFrames(values ...float64) *scriptedSource {
	return &scriptedSource{name: driver.SourceThermal, frame: func(call int) (models.ReadingSet, error) {
		v := values[len(values)-1]
		if call < len(values) {
			v = values[call]
		}
		now := time.Now()
		return models.ReadingSet{Source: driver.SourceThermal, AcquiredAt: now, Readings: []models.SensorReading{
			models.NewSensorReading(models.ChannelThermalVariance, v, now),
		}}, nil
	}}
}

// collector 假采集端，可切换可用状态
type collector struct {
	mu        sync.Mutex
	available bool
	recordIDs []string
	payloads  []models.IngestPayload
}

func newCollector(t *testing.T) (*collector, *httptest.Server) {
	c := &collector{available: true}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.available {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var p models.IngestPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		c.payloads = append(c.payloads, p)
		c.recordIDs = append(c.recordIDs, r.Header.Get("x-record-id"))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return c, srv
}

func (c *collector) setAvailable(v bool) {
	c.mu.Lock()
	c.available = v
	c.mu.Unlock()
}

func (c *collector) received() []models.IngestPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.IngestPayload(nil), c.payloads...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []models.AlertEvent
	err    error
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Notify(_ context.Context, a models.AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.err
}

func defaultOptions() Options {
	return Options{
		DeviceID:        "HKLX-EDGE-001",
		Mode:            "SIMULATION",
		CyclePeriod:     10 * time.Millisecond,
		AcquireTimeout:  200 * time.Millisecond,
		FailureBackoff:  5 * time.Millisecond,
		ReportInterval:  time.Hour,
		RearmAfterAlert: true,
	}
}

func newTestNode(t *testing.T, radar, thermal driver.SensorSource, collectorURL string, notifiers ...notifier.AlertNotifier) *EdgeNode {
	t.Helper()
	logger := zap.NewNop()
	return NewEdgeNode(Dependencies{
		Radar:       radar,
		Thermal:     thermal,
		Engine:      fusion.NewEngineWithParams(snn.Params{Threshold: 1.0, Decay: 0.95, Rest: 0.0}, 2.5, logger),
		Transformer: transform.NewTransformer(transform.Options{DeviceID: "HKLX-EDGE-001", Zone: "bedroom"}),
		Uplink:      uplink.NewClient(uplink.NewHTTPTransport(collectorURL, "k", time.Second), 100, 500*time.Millisecond, nil, logger),
		Notifiers:   notifiers,
	}, defaultOptions(), logger)
}

func TestRunCycle_ThreeCycleScenario(t *testing.T) {
	col, srv := newCollector(t)
	alerts := &recordingNotifier{}
	node := newTestNode(t,
		radarFrames([2]float64{0.2, 0.05}, [2]float64{0.3, 0.1}, [2]float64{3.9, 9.0}),
		thermalFrames(0.1, 0.15, 0.9),
		srv.URL, alerts)
	ctx := context.Background()

	want := []models.Outcome{models.OutcomeSafe, models.OutcomeSafe, models.OutcomeCriticalAlert}
	for i, outcome := range want {
		res := node.runCycle(ctx)
		require.Equal(t, CycleOK, res.Kind, "cycle %d: %v", i+1, res.Err)
		require.Equal(t, outcome, res.Decision.Outcome, "cycle %d", i+1)
	}

	got := col.received()
	require.Len(t, got, 1, "only the alert cycle is uplinked")
	require.Len(t, got[0].Frames, 1)
	assert.Equal(t, "HKLX-EDGE-001", got[0].DeviceID)
	assert.InDelta(t, 0.5*3.9*3.9, got[0].Frames[0].MovementEnergy, 1e-9)
	assert.InDelta(t, 9.0/transform.StandardGravity, got[0].Frames[0].VerticalAccelG, 1e-9)

	require.Len(t, alerts.alerts, 1)
	col.mu.Lock()
	defer col.mu.Unlock()
	assert.Equal(t, col.recordIDs[0], alerts.alerts[0].EventID)
}

func TestRunCycle_SensorErrorUsesNeutralReadings(t *testing.T) {
	_, srv := newCollector(t)
	radar := &scriptedSource{name: driver.SourceRadar, frame: func(int) (models.ReadingSet, error) {
		return driver.NeutralFor(driver.SourceRadar), driver.ErrNotConnected
	}}
	node := newTestNode(t, radar, thermalFrames(0.5), srv.URL)

	res := node.runCycle(context.Background())

	assert.Equal(t, CycleSensorError, res.Kind)
	require.ErrorIs(t, res.Err, driver.ErrNotConnected)
	assert.Equal(t, models.OutcomeSafe, res.Decision.Outcome)
	assert.Equal(t, 0.0, res.Decision.Velocity)
}

func TestRunCycle_NetworkErrorBuffersThenFlushesOnSafeCycle(t *testing.T) {
	col, srv := newCollector(t)
	col.setAvailable(false)

	// 第一个周期直接报警（膜电位一步越过阈值），之后保持安全
	node := newTestNode(t,
		radarFrames([2]float64{3.0, 30}, [2]float64{0.1, 0.1}),
		thermalFrames(1.2, 0.1),
		srv.URL)
	ctx := context.Background()

	res := node.runCycle(ctx)
	require.Equal(t, models.OutcomeCriticalAlert, res.Decision.Outcome)
	require.Equal(t, CycleNetworkError, res.Kind)
	require.ErrorIs(t, res.Err, uplink.ErrBuffered)
	assert.Equal(t, 1, node.uplink.Pending())

	col.setAvailable(true)
	res = node.runCycle(ctx)
	require.Equal(t, CycleOK, res.Kind, "%v", res.Err)
	assert.Equal(t, models.OutcomeSafe, res.Decision.Outcome)
	assert.Equal(t, 0, node.uplink.Pending())
	assert.Len(t, col.received(), 1)
}

func TestRunCycle_NotifierFailureDoesNotChangeOutcome(t *testing.T) {
	_, srv := newCollector(t)
	failing := &recordingNotifier{err: errors.New("journal down")}
	node := newTestNode(t, radarFrames([2]float64{3.0, 30}), thermalFrames(1.2), srv.URL, failing)

	res := node.runCycle(context.Background())

	assert.Equal(t, CycleOK, res.Kind)
	assert.Equal(t, models.OutcomeCriticalAlert, res.Decision.Outcome)
	assert.Len(t, failing.alerts, 1)
}

func TestRunCycle_RearmAfterAlert(t *testing.T) {
	_, srv := newCollector(t)
	engine := &countingFusion{}
	node := newTestNode(t, radarFrames([2]float64{3.0, 30}), thermalFrames(1.2), srv.URL)
	node.engine = engine
	engine.outcome = models.OutcomeCriticalAlert

	node.runCycle(context.Background())
	assert.Equal(t, 1, engine.rearms)

	node.opts.RearmAfterAlert = false
	node.runCycle(context.Background())
	assert.Equal(t, 1, engine.rearms)
}

// countingFusion 固定输出并统计 Rearm
type countingFusion struct {
	outcome models.Outcome
	rearms  int
	panics  bool
}

func (c *countingFusion) Process(radar, _ models.ReadingSet) models.FusionDecision {
	if c.panics {
		panic("fusion exploded")
	}
	return models.FusionDecision{Outcome: c.outcome, Velocity: radar.Value(models.ChannelVelocity)}
}

func (c *countingFusion) Rearm() { c.rearms++ }

func TestRunCycle_PanicIsRecovered(t *testing.T) {
	_, srv := newCollector(t)
	node := newTestNode(t, radarFrames([2]float64{0.1, 0}), thermalFrames(0.1), srv.URL)
	node.engine = &countingFusion{panics: true}

	res := node.runCycle(context.Background())

	assert.Equal(t, CycleFailed, res.Kind)
	var pe *PanicError
	require.ErrorAs(t, res.Err, &pe)
	assert.Equal(t, "fusion exploded", pe.Value)
}

func TestRun_SourcePanicDoesNotStopLoop(t *testing.T) {
	_, srv := newCollector(t)
	radar := &scriptedSource{name: driver.SourceRadar, frame: func(call int) (models.ReadingSet, error) {
		if call == 0 {
			panic("spi bus fault")
		}
		return driver.NeutralFor(driver.SourceRadar), nil
	}}
	node := newTestNode(t, radar, thermalFrames(0.1), srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		results []CycleResult
	)
	node.onCycle = func(res CycleResult) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, res)
		if len(results) == 3 {
			cancel()
		}
	}

	require.NoError(t, node.Run(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(results), 3)
	assert.Equal(t, CycleFailed, results[0].Kind)
	assert.Equal(t, CycleOK, results[1].Kind)
	assert.Equal(t, CycleOK, results[2].Kind)

	snap := node.Stats()
	assert.Equal(t, int64(1), snap.Failures)
	assert.Equal(t, StateStopped.String(), snap.State)
}

func TestRun_Lifecycle(t *testing.T) {
	_, srv := newCollector(t)
	radar := radarFrames([2]float64{0.1, 0})
	thermal := thermalFrames(0.1)
	node := newTestNode(t, radar, thermal, srv.URL)
	assert.Equal(t, StateInit, node.State())

	ctx, cancel := context.WithCancel(context.Background())
	var statesInCycle []NodeState
	node.onCycle = func(CycleResult) {
		statesInCycle = append(statesInCycle, node.State())
		if len(statesInCycle) == 2 {
			cancel()
		}
	}

	runErr := make(chan error, 1)
	go func() { runErr <- node.Run(ctx) }()

	select {
	case <-node.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("node did not stop after cancellation")
	}
	require.NoError(t, <-runErr)

	assert.Equal(t, StateStopped, node.State())
	assert.Equal(t, []NodeState{StateRunning, StateRunning}, statesInCycle)
	assert.Equal(t, 1, radar.connects)
	assert.Equal(t, 1, thermal.connects)

	require.ErrorIs(t, node.Run(context.Background()), ErrAlreadyStarted)
}

func TestRun_CancelledBeforeRunning(t *testing.T) {
	_, srv := newCollector(t)
	radar := radarFrames([2]float64{0.1, 0})
	node := newTestNode(t, radar, thermalFrames(0.1), srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, node.Run(ctx))
	assert.Equal(t, StateStopped, node.State())
	assert.Zero(t, radar.calls, "no cycle may start after cancellation")
}

func TestNodeState_String(t *testing.T) {
	assert.Equal(t, "INIT", StateInit.String())
	assert.Equal(t, "CONNECTING", StateConnecting.String())
	assert.Equal(t, "RUNNING", StateRunning.String())
	assert.Equal(t, "SHUTTING_DOWN", StateShuttingDown.String())
	assert.Equal(t, "STOPPED", StateStopped.String())
	assert.Equal(t, "network_error", CycleNetworkError.String())
}
