package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mshaibu3/hakilix-core/common/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const defaultConnectTimeout = 5 * time.Second

// ErrNotConnected broker 当前不可用
var ErrNotConnected = errors.New("mqtt broker not connected")

// MessageHandler 消息处理函数类型
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client MQTT客户端封装
//
// 订阅在本地登记，(重)连接成功后自动重新订阅（CleanSession 下 broker 不保留订阅）。
type Client struct {
	client  mqtt.Client
	config  *config.MQTTConfig
	logger  *zap.Logger
	timeout time.Duration

	mu   sync.Mutex
	subs map[string]subscription
}

// NewClient 创建MQTT客户端
//
// 首次连接在 ConnectTimeout 内未完成时不返回错误：客户端在后台持续重连，
// 由调用方通过 IsConnected 判断状态（边缘节点对 broker 不可用采取 fail-open）。
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger) (*Client, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker address is required")
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	c := &Client{
		config:  cfg,
		logger:  logger,
		timeout: timeout,
		subs:    make(map[string]subscription),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(timeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.String("broker", cfg.Broker), zap.Error(err))
	})

	c.client = mqtt.NewClient(opts)

	token := c.client.Connect()
	if !token.WaitTimeout(timeout) {
		logger.Warn("MQTT broker not reachable yet, retrying in background",
			zap.String("broker", cfg.Broker),
			zap.Duration("timeout", timeout),
		)
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return c, nil
}

// onConnect 连接（含重连）成功后重新订阅已登记的主题
func (c *Client) onConnect(_ mqtt.Client) {
	c.logger.Info("MQTT connected", zap.String("broker", c.config.Broker))

	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, s := range c.subs {
		subs[topic] = s
	}
	c.mu.Unlock()

	for topic, s := range subs {
		if err := c.subscribe(topic, s); err != nil {
			c.logger.Error("Failed to resubscribe", zap.String("topic", topic), zap.Error(err))
		}
	}
}

// Subscribe 订阅主题
// 订阅总会被登记；broker 暂不可用时返回 ErrNotConnected，连接恢复后自动生效。
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	s := subscription{qos: qos, handler: handler}
	c.mu.Lock()
	c.subs[topic] = s
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		return fmt.Errorf("subscribe %s: %w", topic, ErrNotConnected)
	}
	return c.subscribe(topic, s)
}

func (c *Client) subscribe(topic string, s subscription) error {
	token := c.client.Subscribe(topic, s.qos, func(_ mqtt.Client, msg mqtt.Message) {
		if err := s.handler(msg.Topic(), msg.Payload()); err != nil {
			// 记录错误，但不中断处理
			c.logger.Warn("Error handling MQTT message",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	})
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("subscribe to topic %s timed out after %s", topic, c.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}
	return nil
}

// Publish 发布消息
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		return fmt.Errorf("publish %s: %w", topic, ErrNotConnected)
	}
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("publish to topic %s timed out after %s", topic, c.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

// Unsubscribe 取消订阅
func (c *Client) Unsubscribe(topics ...string) error {
	c.mu.Lock()
	for _, topic := range topics {
		delete(c.subs, topic)
	}
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		return nil
	}
	token := c.client.Unsubscribe(topics...)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("unsubscribe timed out after %s", c.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}

// Disconnect 断开连接
func (c *Client) Disconnect() {
	c.client.Disconnect(250) // 250ms等待时间
}

// IsConnected 检查连接状态
func (c *Client) IsConnected() bool {
	return c.client.IsConnectionOpen()
}
