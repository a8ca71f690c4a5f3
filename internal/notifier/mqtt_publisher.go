package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mshaibu3/hakilix-core/internal/models"

	"go.uber.org/zap"
)

// Publisher MQTT 发布能力（common/mqtt.Client 实现）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTAlertPublisher 向 IoT broker 的报警主题发布报警
type MQTTAlertPublisher struct {
	publisher Publisher
	topic     string
	qos       byte
	logger    *zap.Logger
}

// NewMQTTAlertPublisher 创建 MQTT 报警发布器
func NewMQTTAlertPublisher(publisher Publisher, topic string, qos byte, logger *zap.Logger) *MQTTAlertPublisher {
	return &MQTTAlertPublisher{
		publisher: publisher,
		topic:     topic,
		qos:       qos,
		logger:    logger,
	}
}

// Name 通知渠道名称
func (p *MQTTAlertPublisher) Name() string { return "mqtt_alert" }

// Notify 发布报警（非 retained）
func (p *MQTTAlertPublisher) Notify(ctx context.Context, alert models.AlertEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	if err := p.publisher.Publish(p.topic, p.qos, false, payload); err != nil {
		return fmt.Errorf("failed to publish alert %s: %w", alert.EventID, err)
	}
	p.logger.Info("Alert published",
		zap.String("topic", p.topic),
		zap.String("event_id", alert.EventID),
	)
	return nil
}
