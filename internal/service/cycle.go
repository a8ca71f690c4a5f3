package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mshaibu3/hakilix-core/internal/driver"
	"github.com/mshaibu3/hakilix-core/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CycleKind 周期结果分类
type CycleKind int

const (
	CycleOK CycleKind = iota
	CycleSensorError
	CycleNetworkError
	CycleFailed
)

func (k CycleKind) String() string {
	switch k {
	case CycleOK:
		return "ok"
	case CycleSensorError:
		return "sensor_error"
	case CycleNetworkError:
		return "network_error"
	case CycleFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CycleResult 单个融合周期的结果
type CycleResult struct {
	Kind     CycleKind
	Decision models.FusionDecision
	Err      error
	Duration time.Duration
}

// PanicError 周期内 panic 被恢复后转换的错误
type PanicError struct {
	Where string
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Where, e.Value)
}

// runCycle 执行一个完整周期；任何 panic 在此恢复为 CycleFailed
func (n *EdgeNode) runCycle(ctx context.Context) (res CycleResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = CycleResult{Kind: CycleFailed, Err: &PanicError{Where: "fusion cycle", Value: r}}
		}
		res.Duration = time.Since(start)
	}()

	radar, thermal, sensorErr := n.acquire(ctx)
	var pe *PanicError
	if errors.As(sensorErr, &pe) {
		return CycleResult{Kind: CycleFailed, Err: sensorErr}
	}

	decision := n.engine.Process(radar, thermal)
	res.Decision = decision
	if n.observer != nil {
		n.observer.ObserveDecision(string(decision.Outcome))
	}

	var netErr error
	if decision.IsAlert() || n.opts.UplinkAllFrames {
		rec := n.transformer.ToRecord(decision)
		netErr = n.uplink.Send(ctx, rec)
		if decision.IsAlert() {
			n.notify(ctx, models.NewAlertEvent(decision, rec))
			if n.opts.RearmAfterAlert {
				n.engine.Rearm()
			}
		}
	} else {
		_, netErr = n.uplink.Flush(ctx)
		// 关闭期间 Flush 在下一条记录前停止，不算网络错误
		if errors.Is(netErr, context.Canceled) && ctx.Err() != nil {
			netErr = nil
		}
	}

	switch {
	case netErr != nil:
		res.Kind = CycleNetworkError
		res.Err = errors.Join(netErr, sensorErr)
	case sensorErr != nil:
		res.Kind = CycleSensorError
		res.Err = sensorErr
	default:
		res.Kind = CycleOK
	}
	return res
}

// acquire 并发采集两个数据源，各自受 AcquireTimeout 约束
//
// 采集不随节点关闭而中断：进行中的周期完整结束。
func (n *EdgeNode) acquire(ctx context.Context) (radar, thermal models.ReadingSet, err error) {
	sources := [2]driver.SensorSource{n.radar, n.thermal}
	sets := [2]models.ReadingSet{}

	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.opts.AcquireTimeout)
			defer cancel()

			set, err := safeGetFrame(actx, src)
			sets[i] = set
			if err != nil {
				if n.observer != nil {
					n.observer.ObserveSensorError(src.Name())
				}
				return fmt.Errorf("%s: %w", src.Name(), err)
			}
			return nil
		})
	}
	err = g.Wait()
	return sets[0], sets[1], err
}

// safeGetFrame 调用数据源并把 panic 转换为 PanicError
func safeGetFrame(ctx context.Context, src driver.SensorSource) (set models.ReadingSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			set = driver.NeutralFor(src.Name())
			err = &PanicError{Where: src.Name() + " source", Value: r}
		}
	}()
	return src.GetFrame(ctx)
}

// notify 报警旁路通知；失败只记录告警
func (n *EdgeNode) notify(ctx context.Context, alert models.AlertEvent) {
	for _, nt := range n.notifiers {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.opts.NotifyTimeout)
		err := nt.Notify(nctx, alert)
		cancel()
		if err != nil {
			n.logger.Warn("Alert notification failed",
				zap.String("notifier", nt.Name()),
				zap.String("event_id", alert.EventID),
				zap.Error(err),
			)
			if n.observer != nil {
				n.observer.ObserveNotifyFailure(nt.Name())
			}
		}
	}
}

// logCycle 按结果分类记录日志
func (n *EdgeNode) logCycle(res CycleResult) {
	switch res.Kind {
	case CycleOK:
		n.logger.Debug("Fusion cycle completed",
			zap.String("outcome", string(res.Decision.Outcome)),
			zap.Float64("velocity", res.Decision.Velocity),
			zap.Float64("thermal_variance", res.Decision.ThermalVariance),
			zap.Duration("duration", res.Duration),
		)
	case CycleSensorError:
		n.logger.Warn("Sensor unavailable, cycle used neutral readings",
			zap.String("outcome", string(res.Decision.Outcome)),
			zap.Error(res.Err),
		)
	case CycleNetworkError:
		n.logger.Warn("Uplink unavailable, telemetry kept in retry buffer",
			zap.String("outcome", string(res.Decision.Outcome)),
			zap.Int("pending", n.uplink.Pending()),
			zap.Error(res.Err),
		)
	case CycleFailed:
		n.logger.Error("Fusion cycle failed, backing off",
			zap.Duration("backoff", n.opts.FailureBackoff),
			zap.Error(res.Err),
		)
	}
}
