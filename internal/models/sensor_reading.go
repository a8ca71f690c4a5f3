package models

import (
	"math"
	"time"
)

// MaxReadingMagnitude 传感器读数幅值上限，超过即截断，保证膜电位始终有限
const MaxReadingMagnitude = 1e6

// Channel 监测通道
type Channel int

const (
	ChannelVelocity Channel = iota
	ChannelAcceleration
	ChannelThermalVariance
)

func (c Channel) String() string {
	switch c {
	case ChannelVelocity:
		return "velocity"
	case ChannelAcceleration:
		return "acceleration"
	case ChannelThermalVariance:
		return "thermal_variance"
	default:
		return "unknown"
	}
}

// SensorReading 单通道读数（不可变，仅在一个融合周期内有效）
type SensorReading struct {
	Channel   Channel
	Value     float64
	Timestamp time.Time
}

// NewSensorReading 在传感器边界构造读数：NaN 视为 0，无穷大及超限值截断到 ±MaxReadingMagnitude
func NewSensorReading(ch Channel, value float64, ts time.Time) SensorReading {
	return SensorReading{Channel: ch, Value: sanitize(value), Timestamp: ts}
}

func sanitize(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > MaxReadingMagnitude:
		return MaxReadingMagnitude
	case v < -MaxReadingMagnitude:
		return -MaxReadingMagnitude
	default:
		return v
	}
}

// ReadingSet 一个传感器源在一个周期内产出的读数集合
type ReadingSet struct {
	Source     string
	Readings   []SensorReading
	AcquiredAt time.Time
	Neutral    bool // 传感器不可用时返回的中性读数
}

// Value 返回指定通道的读数，缺失时为 0.0
func (s ReadingSet) Value(ch Channel) float64 {
	for _, r := range s.Readings {
		if r.Channel == ch {
			return r.Value
		}
	}
	return 0.0
}

// NeutralReadingSet 构造中性（全零）读数，保证融合周期不会因传感器断开而停滞
func NeutralReadingSet(source string, channels ...Channel) ReadingSet {
	now := time.Now()
	readings := make([]SensorReading, 0, len(channels))
	for _, ch := range channels {
		readings = append(readings, SensorReading{Channel: ch, Value: 0.0, Timestamp: now})
	}
	return ReadingSet{Source: source, Readings: readings, AcquiredAt: now, Neutral: true}
}
