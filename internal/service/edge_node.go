package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/mshaibu3/hakilix-core/internal/driver"
	"github.com/mshaibu3/hakilix-core/internal/models"
	"github.com/mshaibu3/hakilix-core/internal/notifier"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrAlreadyStarted 节点只能运行一次
var ErrAlreadyStarted = errors.New("edge node already started")

// Fusion 融合引擎
type Fusion interface {
	Process(radar, thermal models.ReadingSet) models.FusionDecision
	Rearm()
}

// Transformer 遥测记录转换
type Transformer interface {
	ToRecord(decision models.FusionDecision) models.TelemetryRecord
}

// Uplink 遥测上传
type Uplink interface {
	Send(ctx context.Context, rec models.TelemetryRecord) error
	Flush(ctx context.Context) (int, error)
	Pending() int
}

// CycleObserver 周期指标（metrics.Collector 实现，可为 nil）
type CycleObserver interface {
	ObserveCycle(result string, d time.Duration)
	ObserveDecision(outcome string)
	ObserveSensorError(source string)
	ObserveNotifyFailure(notifier string)
}

// Dependencies 节点依赖
type Dependencies struct {
	Radar       driver.SensorSource
	Thermal     driver.SensorSource
	Engine      Fusion
	Transformer Transformer
	Uplink      Uplink
	Notifiers   []notifier.AlertNotifier
	Observer    CycleObserver
}

// Options 节点运行参数
type Options struct {
	DeviceID        string
	Mode            string
	CyclePeriod     time.Duration
	AcquireTimeout  time.Duration
	FailureBackoff  time.Duration
	NotifyTimeout   time.Duration
	ReportInterval  time.Duration
	UplinkAllFrames bool
	RearmAfterAlert bool
}

// EdgeNode 边缘推理节点：周期性采集、融合、上传
//
// 同一时刻只有一个周期在执行；周期之间检查取消信号。
type EdgeNode struct {
	radar       driver.SensorSource
	thermal     driver.SensorSource
	engine      Fusion
	transformer Transformer
	uplink      Uplink
	notifiers   []notifier.AlertNotifier
	observer    CycleObserver
	opts        Options
	logger      *zap.Logger

	state atomic.Int32
	stats *Stats
	done  chan struct{}

	// onCycle 测试钩子：每个周期结束后调用
	onCycle func(CycleResult)
}

// NewEdgeNode 创建节点
func NewEdgeNode(deps Dependencies, opts Options, logger *zap.Logger) *EdgeNode {
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = time.Second
	}
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = time.Minute
	}
	n := &EdgeNode{
		radar:       deps.Radar,
		thermal:     deps.Thermal,
		engine:      deps.Engine,
		transformer: deps.Transformer,
		uplink:      deps.Uplink,
		notifiers:   deps.Notifiers,
		observer:    deps.Observer,
		opts:        opts,
		logger:      logger,
		stats:       newStats(),
		done:        make(chan struct{}),
	}
	n.state.Store(int32(StateInit))
	return n
}

// State 当前状态
func (n *EdgeNode) State() NodeState {
	return NodeState(n.state.Load())
}

// Done 节点进入 STOPPED 后关闭
func (n *EdgeNode) Done() <-chan struct{} {
	return n.done
}

// Stats 运行统计快照
func (n *EdgeNode) Stats() StatsSnapshot {
	snap := n.stats.snapshot()
	snap.State = n.State().String()
	snap.DeviceID = n.opts.DeviceID
	snap.Mode = n.opts.Mode
	snap.BufferDepth = n.uplink.Pending()
	return snap
}

func (n *EdgeNode) setState(s NodeState) {
	prev := NodeState(n.state.Swap(int32(s)))
	n.logger.Info("Edge node state changed",
		zap.String("from", prev.String()),
		zap.String("to", s.String()),
	)
}

// Run 运行节点直到 ctx 取消；返回时节点处于 STOPPED
func (n *EdgeNode) Run(ctx context.Context) error {
	if !n.state.CompareAndSwap(int32(StateInit), int32(StateConnecting)) {
		return ErrAlreadyStarted
	}
	n.logger.Info("Edge node state changed", zap.String("from", StateInit.String()), zap.String("to", StateConnecting.String()))
	defer close(n.done)

	n.connect(ctx)
	if ctx.Err() != nil {
		n.shutdown()
		return nil
	}
	n.setState(StateRunning)

	ticker := time.NewTicker(n.opts.CyclePeriod)
	defer ticker.Stop()
	report := time.NewTicker(n.opts.ReportInterval)
	defer report.Stop()

	for {
		res := n.runCycle(ctx)
		n.stats.record(res)
		if n.observer != nil {
			n.observer.ObserveCycle(res.Kind.String(), res.Duration)
		}
		n.logCycle(res)
		if n.onCycle != nil {
			n.onCycle(res)
		}

		if res.Kind == CycleFailed && !n.sleep(ctx, n.opts.FailureBackoff) {
			break
		}
		if !n.waitNextTick(ctx, ticker, report) {
			break
		}
	}

	n.shutdown()
	return nil
}

// connect 并发连接所有数据源，等待全部完成；失败不阻止启动
func (n *EdgeNode) connect(ctx context.Context) {
	var g errgroup.Group
	for _, src := range []driver.SensorSource{n.radar, n.thermal} {
		g.Go(func() error {
			if err := src.Connect(ctx); err != nil {
				n.logger.Warn("Sensor source connect failed, continuing with neutral readings",
					zap.String("source", src.Name()),
					zap.Error(err),
				)
				return err
			}
			n.logger.Info("Sensor source connected", zap.String("source", src.Name()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		n.logger.Warn("Not all sensor sources connected", zap.Error(err))
	}
}

// waitNextTick 等待下一个周期；期间处理统计日志。返回 false 表示应停止
func (n *EdgeNode) waitNextTick(ctx context.Context, ticker, report *time.Ticker) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-report.C:
			n.logStats()
		case <-ticker.C:
			if ctx.Err() != nil {
				return false
			}
			return true
		}
	}
}

func (n *EdgeNode) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (n *EdgeNode) shutdown() {
	n.setState(StateShuttingDown)
	if pending := n.uplink.Pending(); pending > 0 {
		n.logger.Warn("Shutting down with undelivered telemetry",
			zap.Int("pending", pending),
		)
	}
	n.logStats()
	n.setState(StateStopped)
}

func (n *EdgeNode) logStats() {
	s := n.Stats()
	n.logger.Info("Edge node statistics",
		zap.String("state", s.State),
		zap.String("uptime", s.Uptime),
		zap.Int64("cycles", s.Cycles),
		zap.Int64("alerts", s.Alerts),
		zap.Int64("sensor_errors", s.SensorErrors),
		zap.Int64("network_errors", s.NetworkErrors),
		zap.Int64("failures", s.Failures),
		zap.Int("buffer_depth", s.BufferDepth),
	)
}
