// Package metrics 边缘节点 Prometheus 指标与 /metrics、/healthz 端点
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	namespace = "hakilix"
	subsystem = "edge"
)

// Collector 节点指标（独立 registry，不使用全局默认 registry）
type Collector struct {
	registry *prometheus.Registry

	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	decisions      *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	bufferSize     prometheus.Gauge
	bufferDropped  prometheus.Counter
	notifyFailures *prometheus.CounterVec
	sensorErrors   *prometheus.CounterVec
}

// NewCollector 创建并注册指标
func NewCollector() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cycles_total",
			Help:      "Fusion cycles by result (ok, sensor_error, network_error, failed)",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one fusion cycle",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 0.75, 1, 2, 5},
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "decisions_total",
			Help:      "Fusion decisions by outcome",
		}, []string{"outcome"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "uplink_attempts_total",
			Help:      "Uplink delivery attempts by result",
		}, []string{"result"}),
		bufferSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "retry_buffer_size",
			Help:      "Telemetry records waiting in the retry buffer",
		}),
		bufferDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "retry_buffer_dropped_total",
			Help:      "Telemetry records evicted from a full retry buffer",
		}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notify_failures_total",
			Help:      "Alert notification failures by channel",
		}, []string{"notifier"}),
		sensorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sensor_errors_total",
			Help:      "Sensor acquisitions that fell back to neutral readings",
		}, []string{"source"}),
	}

	toRegister := []prometheus.Collector{
		c.cycles, c.cycleDuration, c.decisions, c.deliveries,
		c.bufferSize, c.bufferDropped, c.notifyFailures, c.sensorErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, col := range toRegister {
		if err := c.registry.Register(col); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return c, nil
}

// Registry 返回指标 registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveCycle 记录一个周期的结果和耗时
func (c *Collector) ObserveCycle(result string, d time.Duration) {
	c.cycles.WithLabelValues(result).Inc()
	c.cycleDuration.Observe(d.Seconds())
}

// ObserveDecision 记录融合结果
func (c *Collector) ObserveDecision(outcome string) {
	c.decisions.WithLabelValues(outcome).Inc()
}

// ObserveSensorError 记录传感器采集失败
func (c *Collector) ObserveSensorError(source string) {
	c.sensorErrors.WithLabelValues(source).Inc()
}

// ObserveNotifyFailure 记录报警通知失败
func (c *Collector) ObserveNotifyFailure(notifier string) {
	c.notifyFailures.WithLabelValues(notifier).Inc()
}

// ObserveDelivery 记录一次上传尝试
func (c *Collector) ObserveDelivery(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.deliveries.WithLabelValues(result).Inc()
}

// ObserveDropped 记录缓冲溢出丢弃
func (c *Collector) ObserveDropped() {
	c.bufferDropped.Inc()
}

// ObserveBufferSize 更新缓冲深度
func (c *Collector) ObserveBufferSize(size int) {
	c.bufferSize.Set(float64(size))
}
