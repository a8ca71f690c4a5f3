package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	mqttcommon "github.com/mshaibu3/hakilix-core/common/mqtt"
	rediscommon "github.com/mshaibu3/hakilix-core/common/redis"
	"github.com/mshaibu3/hakilix-core/internal/config"
	"github.com/mshaibu3/hakilix-core/internal/driver"
	"github.com/mshaibu3/hakilix-core/internal/fusion"
	"github.com/mshaibu3/hakilix-core/internal/metrics"
	"github.com/mshaibu3/hakilix-core/internal/notifier"
	"github.com/mshaibu3/hakilix-core/internal/snn"
	"github.com/mshaibu3/hakilix-core/internal/transform"
	"github.com/mshaibu3/hakilix-core/internal/uplink"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// EdgeService 边缘节点服务：按配置装配数据源、融合引擎、上传与旁路基础设施
type EdgeService struct {
	config        *config.Config
	logger        *zap.Logger
	node          *EdgeNode
	mqttClient    *mqttcommon.Client
	redis         *redis.Client
	collector     *metrics.Collector
	metricsServer *metrics.Server
	liveSources   []*driver.MQTTSource

	mu      sync.Mutex
	started bool
	stopped bool
}

// ErrServiceStopped Stop 之后再次 Start
var ErrServiceStopped = errors.New("edge service already stopped")

// healthStatus /healthz 内容
type healthStatus struct {
	StatsSnapshot
	MQTTConnected *bool `json:"mqtt_connected,omitempty"`
}

// NewEdgeService 创建边缘节点服务
//
// MQTT、Redis 不可达时只记录告警：节点在没有旁路通道的情况下继续运行。
func NewEdgeService(cfg *config.Config, logger *zap.Logger) (*EdgeService, error) {
	collector, err := metrics.NewCollector()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics collector: %w", err)
	}

	s := &EdgeService{
		config:    cfg,
		logger:    logger,
		collector: collector,
	}

	// 初始化MQTT
	if cfg.MQTT.Enabled {
		s.mqttClient, err = mqttcommon.NewClient(&cfg.MQTT.MQTTConfig, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create MQTT client: %w", err)
		}
	}

	// 初始化Redis
	if cfg.Redis.Enabled {
		s.redis = rediscommon.NewRedisClient(&cfg.Redis.RedisConfig)
		if err := rediscommon.Ping(context.Background(), s.redis); err != nil {
			logger.Warn("Redis not reachable, alert journal will retry per alert",
				zap.String("addr", cfg.Redis.Addr),
				zap.Error(err),
			)
		}
	}

	radar, thermal, err := s.buildSources()
	if err != nil {
		s.closeInfra()
		return nil, err
	}

	engine := fusion.NewEngineWithParams(snn.Params{
		Threshold: cfg.LIF.Threshold,
		Decay:     cfg.LIF.Decay,
		Rest:      cfg.LIF.Rest,
	}, cfg.Fusion.FallVelocityLimit, logger)

	transformer := transform.NewTransformer(transform.Options{
		DeviceID:  cfg.DeviceID,
		PatientID: cfg.PatientID,
		Zone:      cfg.Sensors.Zone,
		InBed:     cfg.Sensors.InBed,
	})

	transport := uplink.NewHTTPTransport(cfg.Uplink.CollectorURL, cfg.Uplink.APIKey, cfg.Uplink.Timeout)
	uplinkClient := uplink.NewClient(transport, cfg.Uplink.BufferCapacity, cfg.Uplink.Timeout, collector, logger)

	s.node = NewEdgeNode(Dependencies{
		Radar:       radar,
		Thermal:     thermal,
		Engine:      engine,
		Transformer: transformer,
		Uplink:      uplinkClient,
		Notifiers:   s.buildNotifiers(),
		Observer:    collector,
	}, Options{
		DeviceID:        cfg.DeviceID,
		Mode:            cfg.Mode(),
		CyclePeriod:     cfg.Cycle.Period,
		AcquireTimeout:  cfg.Cycle.AcquireTimeout,
		FailureBackoff:  cfg.Cycle.FailureBackoff,
		NotifyTimeout:   cfg.Uplink.Timeout,
		ReportInterval:  cfg.Metrics.ReportInterval,
		UplinkAllFrames: cfg.Uplink.AllFrames,
		RearmAfterAlert: cfg.Fusion.RearmAfterAlert,
	}, logger)

	if cfg.Metrics.Addr != "" {
		s.metricsServer = metrics.NewServer(cfg.Metrics.Addr, collector.Registry(), s.health, logger)
	}

	return s, nil
}

// buildSources 模拟模式使用模拟驱动，否则订阅设备 MQTT 主题
func (s *EdgeService) buildSources() (driver.SensorSource, driver.SensorSource, error) {
	cfg := s.config
	if cfg.Sensors.Simulate {
		opts := driver.SimOptions{
			FallProbability: cfg.Sensors.FallProbability,
			FrameLatency:    cfg.Sensors.FrameLatency,
		}
		return driver.NewSimulatedRadar(opts, s.logger), driver.NewSimulatedThermal(opts, s.logger), nil
	}

	if s.mqttClient == nil {
		return nil, nil, errors.New("live sensors require MQTT to be enabled")
	}
	radar := driver.NewMQTTRadar(cfg.Sensors.Topics.Radar, cfg.MQTT.QoS, cfg.Sensors.StaleAfter, s.mqttClient, s.logger)
	thermal := driver.NewMQTTThermal(cfg.Sensors.Topics.Thermal, cfg.MQTT.QoS, cfg.Sensors.StaleAfter, s.mqttClient, s.logger)
	s.liveSources = []*driver.MQTTSource{radar, thermal}
	return radar, thermal, nil
}

func (s *EdgeService) buildNotifiers() []notifier.AlertNotifier {
	var notifiers []notifier.AlertNotifier
	if s.redis != nil {
		notifiers = append(notifiers, notifier.NewRedisJournal(s.redis, s.config.Redis.AlertStream, s.config.Redis.StreamLen, s.logger))
	}
	if s.mqttClient != nil {
		notifiers = append(notifiers, notifier.NewMQTTAlertPublisher(s.mqttClient, s.config.MQTT.AlertTopic, s.config.MQTT.QoS, s.logger))
	}
	return notifiers
}

// health /healthz 内容：仅 RUNNING 视为健康，MQTT 连接状态只做展示
func (s *EdgeService) health() (interface{}, bool) {
	status := healthStatus{StatsSnapshot: s.node.Stats()}
	if s.mqttClient != nil {
		connected := s.mqttClient.IsConnected()
		status.MQTTConnected = &connected
	}
	return status, status.State == StateRunning.String()
}

// Node 边缘节点
func (s *EdgeService) Node() *EdgeNode {
	return s.node
}

// Start 启动服务，阻塞直到 ctx 取消且节点进入 STOPPED
//
// ctx 已取消时不再打开指标端点，节点直接进入 STOPPED；Stop 之后调用返回 ErrServiceStopped。
func (s *EdgeService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrServiceStopped
	}
	s.started = true
	if s.metricsServer != nil && ctx.Err() == nil {
		if err := s.metricsServer.Start(); err != nil {
			s.logger.Warn("Metrics endpoint unavailable", zap.Error(err))
		}
	}
	s.mu.Unlock()

	s.logger.Info("Starting edge node components",
		zap.String("device_id", s.config.DeviceID),
		zap.String("mode", s.config.Mode()),
		zap.String("collector_url", s.config.Uplink.CollectorURL),
		zap.Bool("mqtt_enabled", s.config.MQTT.Enabled),
		zap.Bool("redis_enabled", s.config.Redis.Enabled),
	)

	if err := s.node.Run(ctx); err != nil {
		return fmt.Errorf("edge node run failed: %w", err)
	}
	return nil
}

// Stop 等待节点停止（受 ctx 约束），然后关闭基础设施
func (s *EdgeService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping edge node service")

	s.mu.Lock()
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	var stopErr error
	if started {
		select {
		case <-s.node.Done():
		case <-ctx.Done():
			stopErr = fmt.Errorf("edge node did not stop in time: %w", ctx.Err())
		}
	}

	if s.metricsServer != nil {
		if err := s.metricsServer.Stop(ctx); err != nil {
			s.logger.Error("Error stopping metrics server", zap.Error(err))
		}
	}
	s.closeInfra()

	s.logger.Info("Edge node service stopped")
	return stopErr
}

func (s *EdgeService) closeInfra() {
	for _, src := range s.liveSources {
		if err := src.Close(); err != nil {
			s.logger.Warn("Error closing sensor source", zap.String("source", src.Name()), zap.Error(err))
		}
	}
	// 断开MQTT
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	// 关闭Redis
	if s.redis != nil {
		if err := rediscommon.Close(s.redis); err != nil {
			s.logger.Warn("Error closing redis", zap.Error(err))
		}
	}
}
