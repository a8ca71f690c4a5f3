package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqttcommon "github.com/mshaibu3/hakilix-core/common/mqtt"
	"github.com/mshaibu3/hakilix-core/internal/models"

	"go.uber.org/zap"
)

// Subscriber MQTT 订阅能力（common/mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// PayloadParser 把设备上报的 JSON 解析为读数
type PayloadParser func(payload []byte, receivedAt time.Time) ([]models.SensorReading, error)

// radarPayload 雷达设备上报格式
type radarPayload struct {
	Velocity     *float64 `json:"velocity"`
	Acceleration float64  `json:"acceleration"`
}

// thermalPayload 热成像设备上报格式
type thermalPayload struct {
	Variance *float64 `json:"variance"`
	MaxTemp  float64  `json:"max_temp"`
}

// ParseRadarPayload 解析 {"velocity": .., "acceleration": ..}
func ParseRadarPayload(payload []byte, receivedAt time.Time) ([]models.SensorReading, error) {
	var p radarPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to parse radar payload: %w", err)
	}
	if p.Velocity == nil {
		return nil, errors.New("radar payload missing velocity")
	}
	return []models.SensorReading{
		models.NewSensorReading(models.ChannelVelocity, *p.Velocity, receivedAt),
		models.NewSensorReading(models.ChannelAcceleration, p.Acceleration, receivedAt),
	}, nil
}

// ParseThermalPayload 解析 {"variance": .., "max_temp": ..}，max_temp 仅用于日志
func ParseThermalPayload(payload []byte, receivedAt time.Time) ([]models.SensorReading, error) {
	var p thermalPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to parse thermal payload: %w", err)
	}
	if p.Variance == nil {
		return nil, errors.New("thermal payload missing variance")
	}
	return []models.SensorReading{
		models.NewSensorReading(models.ChannelThermalVariance, *p.Variance, receivedAt),
	}, nil
}

// MQTTSourceConfig MQTT 数据源配置
type MQTTSourceConfig struct {
	Name       string
	Topic      string
	QoS        byte
	StaleAfter time.Duration
	Parser     PayloadParser
}

// MQTTSource 通过设备主题接收物理传感器数据，保留最近一帧
type MQTTSource struct {
	cfg        MQTTSourceConfig
	subscriber Subscriber
	logger     *zap.Logger
	now        func() time.Time

	connectMu sync.Mutex // 串行化 Connect，订阅期间不持有 mu

	mu         sync.Mutex
	subscribed bool
	latest     []models.SensorReading
	receivedAt time.Time
}

// NewMQTTSource 创建 MQTT 数据源
func NewMQTTSource(cfg MQTTSourceConfig, subscriber Subscriber, logger *zap.Logger) *MQTTSource {
	return &MQTTSource{
		cfg:        cfg,
		subscriber: subscriber,
		logger:     logger,
		now:        time.Now,
	}
}

// NewMQTTRadar 雷达设备主题数据源
func NewMQTTRadar(topic string, qos byte, staleAfter time.Duration, subscriber Subscriber, logger *zap.Logger) *MQTTSource {
	return NewMQTTSource(MQTTSourceConfig{
		Name:       SourceRadar,
		Topic:      topic,
		QoS:        qos,
		StaleAfter: staleAfter,
		Parser:     ParseRadarPayload,
	}, subscriber, logger)
}

// NewMQTTThermal 热成像设备主题数据源
func NewMQTTThermal(topic string, qos byte, staleAfter time.Duration, subscriber Subscriber, logger *zap.Logger) *MQTTSource {
	return NewMQTTSource(MQTTSourceConfig{
		Name:       SourceThermal,
		Topic:      topic,
		QoS:        qos,
		StaleAfter: staleAfter,
		Parser:     ParseThermalPayload,
	}, subscriber, logger)
}

// Name 数据源名称
func (s *MQTTSource) Name() string { return s.cfg.Name }

// Connect 订阅设备主题（仅一次）
//
// broker 暂不可用时订阅已登记，返回错误供调用方记录；连接恢复后自动生效，不再重复订阅。
func (s *MQTTSource) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	s.mu.Lock()
	subscribed := s.subscribed
	s.mu.Unlock()
	if subscribed {
		return nil
	}

	err := s.subscriber.Subscribe(s.cfg.Topic, s.cfg.QoS, s.handleMessage)
	if err != nil && !errors.Is(err, mqttcommon.ErrNotConnected) {
		return fmt.Errorf("failed to subscribe %s source: %w", s.cfg.Name, err)
	}
	s.mu.Lock()
	s.subscribed = true
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%s source subscription pending: %w", s.cfg.Name, err)
	}

	s.logger.Info("Sensor source subscribed",
		zap.String("source", s.cfg.Name),
		zap.String("topic", s.cfg.Topic),
	)
	return nil
}

// Close 取消设备主题订阅并丢弃缓存帧；未订阅时为空操作
func (s *MQTTSource) Close() error {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	s.mu.Lock()
	subscribed := s.subscribed
	s.subscribed = false
	s.latest = nil
	s.mu.Unlock()
	if !subscribed {
		return nil
	}

	if err := s.subscriber.Unsubscribe(s.cfg.Topic); err != nil {
		return fmt.Errorf("failed to unsubscribe %s source: %w", s.cfg.Name, err)
	}
	s.logger.Info("Sensor source unsubscribed",
		zap.String("source", s.cfg.Name),
		zap.String("topic", s.cfg.Topic),
	)
	return nil
}

// handleMessage 解析设备消息；格式错误的消息被丢弃，保留上一帧
func (s *MQTTSource) handleMessage(topic string, payload []byte) error {
	readings, err := s.cfg.Parser(payload, s.now())
	if err != nil {
		return fmt.Errorf("dropping %s frame: %w", s.cfg.Name, err)
	}

	s.mu.Lock()
	s.latest = readings
	s.receivedAt = s.now()
	s.mu.Unlock()

	s.logger.Debug("Sensor frame received",
		zap.String("source", s.cfg.Name),
		zap.String("topic", topic),
	)
	return nil
}

// GetFrame 返回最近一帧；未订阅、无数据或超过 StaleAfter 时返回中性读数
func (s *MQTTSource) GetFrame(ctx context.Context) (models.ReadingSet, error) {
	if err := ctx.Err(); err != nil {
		return NeutralFor(s.cfg.Name), err
	}

	s.mu.Lock()
	subscribed := s.subscribed
	latest := s.latest
	receivedAt := s.receivedAt
	s.mu.Unlock()

	if !subscribed {
		return NeutralFor(s.cfg.Name), ErrNotConnected
	}
	if latest == nil {
		return NeutralFor(s.cfg.Name), ErrStaleFrame
	}
	if age := s.now().Sub(receivedAt); age > s.cfg.StaleAfter {
		return NeutralFor(s.cfg.Name), fmt.Errorf("%s frame age %s: %w", s.cfg.Name, age, ErrStaleFrame)
	}

	readings := make([]models.SensorReading, len(latest))
	copy(readings, latest)
	return models.ReadingSet{
		Source:     s.cfg.Name,
		Readings:   readings,
		AcquiredAt: receivedAt,
	}, nil
}
