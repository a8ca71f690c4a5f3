package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("EDGE_REDIS_ADDR", "redis.local:6380")
	t.Setenv("EDGE_REDIS_PASSWORD", "pw")
	t.Setenv("EDGE_REDIS_DB", "3")

	cfg := RedisConfig{Addr: "localhost:6379"}
	require.NoError(t, cfg.LoadFromEnv("EDGE_REDIS"))

	assert.Equal(t, "redis.local:6380", cfg.Addr)
	assert.Equal(t, "pw", cfg.Password)
	assert.Equal(t, 3, cfg.DB)
}

func TestRedisConfig_KeepsDefaultsWhenUnset(t *testing.T) {
	cfg := RedisConfig{Addr: "localhost:6379", DB: 1}
	require.NoError(t, cfg.LoadFromEnv("UNSET_PREFIX"))
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Equal(t, 1, cfg.DB)
}

func TestRedisConfig_InvalidDB(t *testing.T) {
	t.Setenv("EDGE_REDIS_DB", "one")
	cfg := RedisConfig{}
	err := cfg.LoadFromEnv("EDGE_REDIS")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EDGE_REDIS_DB")
}

func TestMQTTConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("EDGE_MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("EDGE_MQTT_CLIENT_ID", "edge-1")
	t.Setenv("EDGE_MQTT_QOS", "2")
	t.Setenv("EDGE_MQTT_CONNECT_TIMEOUT", "3s")

	cfg := MQTTConfig{QoS: 1}
	require.NoError(t, cfg.LoadFromEnv("EDGE_MQTT"))

	assert.Equal(t, "tcp://broker:1883", cfg.Broker)
	assert.Equal(t, "edge-1", cfg.ClientID)
	assert.Equal(t, byte(2), cfg.QoS)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
}

func TestMQTTConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"qos out of range", "EDGE_MQTT_QOS", "3"},
		{"qos not a number", "EDGE_MQTT_QOS", "high"},
		{"bad timeout", "EDGE_MQTT_CONNECT_TIMEOUT", "soon"},
		{"negative timeout", "EDGE_MQTT_CONNECT_TIMEOUT", "-1s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			cfg := MQTTConfig{}
			err := cfg.LoadFromEnv("EDGE_MQTT")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
