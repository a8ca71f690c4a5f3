package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	commoncfg "github.com/mshaibu3/hakilix-core/common/config"
)

// Config 边缘推理节点配置
//
// 启动时构造一次，以指针传入各组件构造函数；运行期间不修改。
type Config struct {
	DeviceID  string
	PatientID string // 可选，作为 patient_id 发送到采集端

	// LIF 神经元参数（所有神经元共享）
	LIF struct {
		Threshold float64
		Decay     float64 // (0,1)
		Rest      float64
	}

	Fusion struct {
		FallVelocityLimit float64 // m/s，二次幅值校验
		RearmAfterAlert   bool    // 报警后重置网络
	}

	Cycle struct {
		Period         time.Duration // 融合周期
		AcquireTimeout time.Duration // 单个传感器采集超时
		FailureBackoff time.Duration // 周期异常后的退避
	}

	Sensors struct {
		Simulate        bool
		FallProbability float64       // 模拟雷达高速偏移概率
		FrameLatency    time.Duration // 模拟采集耗时（10Hz）
		StaleAfter      time.Duration // MQTT 帧过期时间
		Zone            string
		InBed           bool
		Topics          struct {
			Radar   string // 如 "radar/HKLX-EDGE-001/data"
			Thermal string // 如 "thermal/HKLX-EDGE-001/data"
		}
	}

	Uplink struct {
		CollectorURL   string
		APIKey         string
		Timeout        time.Duration // 单次投递超时
		AllFrames      bool          // SAFE 周期也上传
		BufferCapacity int
	}

	MQTT struct {
		Enabled    bool
		AlertTopic string
		commoncfg.MQTTConfig
	}

	Redis struct {
		Enabled     bool
		AlertStream string
		StreamLen   int64
		commoncfg.RedisConfig
	}

	Metrics struct {
		Addr           string // 为空时不启动 HTTP 端点
		ReportInterval time.Duration
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
//
// 数值/时长/布尔格式错误属于不可恢复的配置错误，返回 error，进程在 RUNNING 之前退出。
func Load() (*Config, error) {
	cfg := &Config{}
	p := &parser{}

	cfg.DeviceID = getEnv("DEVICE_ID", "HKLX-EDGE-001")
	cfg.PatientID = getEnv("PATIENT_ID", "")

	cfg.LIF.Threshold = p.float("LIF_THRESHOLD", 1.0)
	cfg.LIF.Decay = p.float("LIF_DECAY", 0.95)
	cfg.LIF.Rest = p.float("LIF_REST", 0.0)

	cfg.Fusion.FallVelocityLimit = p.float("FALL_VELOCITY_LIMIT", 2.5)
	cfg.Fusion.RearmAfterAlert = p.bool("REARM_AFTER_ALERT", true)

	cfg.Cycle.Period = p.duration("CYCLE_PERIOD", time.Second)
	cfg.Cycle.AcquireTimeout = p.duration("ACQUIRE_TIMEOUT", 500*time.Millisecond)
	cfg.Cycle.FailureBackoff = p.duration("FAILURE_BACKOFF", time.Second)

	cfg.Sensors.Simulate = p.bool("SIMULATE_SENSORS", true)
	cfg.Sensors.FallProbability = p.float("SIM_FALL_PROBABILITY", 0.01)
	cfg.Sensors.FrameLatency = p.duration("SIM_FRAME_LATENCY", 100*time.Millisecond)
	cfg.Sensors.StaleAfter = p.duration("SENSOR_STALE_AFTER", 2*time.Second)
	cfg.Sensors.Zone = getEnv("SENSOR_ZONE", "bedroom")
	cfg.Sensors.InBed = p.bool("SENSOR_IN_BED", false)
	cfg.Sensors.Topics.Radar = getEnv("RADAR_TOPIC", "radar/"+cfg.DeviceID+"/data")
	cfg.Sensors.Topics.Thermal = getEnv("THERMAL_TOPIC", "thermal/"+cfg.DeviceID+"/data")

	cfg.Uplink.CollectorURL = strings.TrimRight(getEnv("COLLECTOR_URL", "http://localhost:8000"), "/")
	cfg.Uplink.APIKey = getEnv("COLLECTOR_API_KEY", "")
	cfg.Uplink.Timeout = p.duration("UPLINK_TIMEOUT", 800*time.Millisecond)
	cfg.Uplink.AllFrames = p.bool("UPLINK_ALL_FRAMES", false)
	cfg.Uplink.BufferCapacity = p.int("RETRY_BUFFER_CAPACITY", 100)

	cfg.MQTT.Enabled = p.bool("MQTT_ENABLED", false)
	cfg.MQTT.AlertTopic = getEnv("MQTT_ALERT_TOPIC", "hakilix/"+cfg.DeviceID+"/alerts")
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "hakilix-edge-" + cfg.DeviceID
	cfg.MQTT.QoS = 1
	if err := cfg.MQTT.MQTTConfig.LoadFromEnv("MQTT"); err != nil {
		p.fail(err)
	}

	cfg.Redis.Enabled = p.bool("REDIS_ENABLED", false)
	cfg.Redis.AlertStream = getEnv("REDIS_ALERT_STREAM", "edge:alerts:stream")
	cfg.Redis.StreamLen = int64(p.int("REDIS_STREAM_MAXLEN", 1000))
	cfg.Redis.Addr = "localhost:6379"
	if err := cfg.Redis.RedisConfig.LoadFromEnv("REDIS"); err != nil {
		p.fail(err)
	}

	cfg.Metrics.Addr = getEnvAllowEmpty("METRICS_ADDR", ":9102")
	cfg.Metrics.ReportInterval = p.duration("METRICS_REPORT_INTERVAL", 60*time.Second)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := p.err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验取值范围
func (c *Config) Validate() error {
	var errs []error
	if c.DeviceID == "" {
		errs = append(errs, errors.New("DEVICE_ID must not be empty"))
	}
	// NaN 比较恒为 false，区间检查拦不住
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"LIF_THRESHOLD", c.LIF.Threshold},
		{"LIF_REST", c.LIF.Rest},
		{"FALL_VELOCITY_LIMIT", c.Fusion.FallVelocityLimit},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			errs = append(errs, fmt.Errorf("%s must be finite, got %v", f.name, f.v))
		}
	}
	if !(c.LIF.Decay > 0 && c.LIF.Decay < 1) {
		errs = append(errs, fmt.Errorf("LIF_DECAY must be in (0,1), got %v", c.LIF.Decay))
	}
	if c.LIF.Threshold <= c.LIF.Rest {
		errs = append(errs, fmt.Errorf("LIF_THRESHOLD (%v) must be above LIF_REST (%v)", c.LIF.Threshold, c.LIF.Rest))
	}
	if c.Cycle.Period <= 0 || c.Cycle.AcquireTimeout <= 0 || c.Cycle.FailureBackoff <= 0 {
		errs = append(errs, errors.New("CYCLE_PERIOD, ACQUIRE_TIMEOUT and FAILURE_BACKOFF must be positive"))
	}
	if c.Uplink.Timeout <= 0 {
		errs = append(errs, errors.New("UPLINK_TIMEOUT must be positive"))
	}
	if c.Uplink.BufferCapacity <= 0 {
		errs = append(errs, fmt.Errorf("RETRY_BUFFER_CAPACITY must be positive, got %d", c.Uplink.BufferCapacity))
	}
	if u, err := url.Parse(c.Uplink.CollectorURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("COLLECTOR_URL %q is not an absolute URL", c.Uplink.CollectorURL))
	}
	if c.Sensors.FallProbability < 0 || c.Sensors.FallProbability > 1 {
		errs = append(errs, fmt.Errorf("SIM_FALL_PROBABILITY must be in [0,1], got %v", c.Sensors.FallProbability))
	}
	if c.Sensors.FrameLatency < 0 || c.Sensors.StaleAfter <= 0 {
		errs = append(errs, errors.New("SIM_FRAME_LATENCY must be >= 0 and SENSOR_STALE_AFTER positive"))
	}
	if !c.Sensors.Simulate && !c.MQTT.Enabled {
		errs = append(errs, errors.New("SIMULATE_SENSORS=false requires MQTT_ENABLED=true (live sensors report over MQTT)"))
	}
	if c.Metrics.ReportInterval <= 0 {
		errs = append(errs, errors.New("METRICS_REPORT_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

// Mode 运行模式（用于启动日志）
func (c *Config) Mode() string {
	if c.Sensors.Simulate {
		return "SIMULATION"
	}
	return "LIVE"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty 变量已设置（即使为空）时使用其值，用于可关闭的地址类配置
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// parser 收集解析错误，一次性返回全部配置问题
type parser struct {
	errs []error
}

func (p *parser) fail(err error) {
	p.errs = append(p.errs, err)
}

func (p *parser) err() error {
	return errors.Join(p.errs...)
}

func (p *parser) float(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s %q: %w", key, raw, err))
		return def
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		p.fail(fmt.Errorf("invalid %s %q: must be a finite number", key, raw))
		return def
	}
	return v
}

func (p *parser) int(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s %q: %w", key, raw, err))
		return def
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s %q: %w", key, raw, err))
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s %q: %w", key, raw, err))
		return def
	}
	return v
}
