package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	ConnectTimeout time.Duration // 连接/订阅等待上限，0 表示使用默认值
}

// LoadFromEnv 从环境变量加载Redis配置
// 未设置的变量保留当前值；数值格式错误时返回错误（启动阶段即失败）
func (c *RedisConfig) LoadFromEnv(prefix string) error {
	if addr := os.Getenv(prefix + "_ADDR"); addr != "" {
		c.Addr = addr
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if db := os.Getenv(prefix + "_DB"); db != "" {
		v, err := strconv.Atoi(db)
		if err != nil || v < 0 {
			return fmt.Errorf("invalid %s_DB %q", prefix, db)
		}
		c.DB = v
	}
	return nil
}

// LoadFromEnv 从环境变量加载MQTT配置
func (c *MQTTConfig) LoadFromEnv(prefix string) error {
	if broker := os.Getenv(prefix + "_BROKER"); broker != "" {
		c.Broker = broker
	}
	if clientID := os.Getenv(prefix + "_CLIENT_ID"); clientID != "" {
		c.ClientID = clientID
	}
	if username := os.Getenv(prefix + "_USERNAME"); username != "" {
		c.Username = username
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if qos := os.Getenv(prefix + "_QOS"); qos != "" {
		v, err := strconv.Atoi(qos)
		if err != nil || v < 0 || v > 2 {
			return fmt.Errorf("invalid %s_QOS %q: must be 0, 1 or 2", prefix, qos)
		}
		c.QoS = byte(v)
	}
	if timeout := os.Getenv(prefix + "_CONNECT_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid %s_CONNECT_TIMEOUT %q", prefix, timeout)
		}
		c.ConnectTimeout = d
	}
	return nil
}
