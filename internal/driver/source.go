// Package driver 传感器数据源
//
// 每个数据源在一个融合周期内被调用一次 GetFrame。不可用时返回中性读数 + 错误，
// 融合周期不会因为单个传感器而停滞。
package driver

import (
	"context"
	"errors"

	"github.com/mshaibu3/hakilix-core/internal/models"
)

var (
	// ErrNotConnected 数据源未连接
	ErrNotConnected = errors.New("sensor source not connected")
	// ErrStaleFrame 最近一帧已过期（或尚未收到任何帧）
	ErrStaleFrame = errors.New("sensor frame is stale")
)

// Source names
const (
	SourceRadar   = "radar"
	SourceThermal = "thermal"
)

// SensorSource 传感器数据源
type SensorSource interface {
	Name() string
	// Connect 幂等；失败立即返回，不重试
	Connect(ctx context.Context) error
	// GetFrame 总是返回可用的 ReadingSet；出错时为中性读数
	GetFrame(ctx context.Context) (models.ReadingSet, error)
}

// RadarChannels 雷达源产出的通道
var RadarChannels = []models.Channel{models.ChannelVelocity, models.ChannelAcceleration}

// ThermalChannels 热成像源产出的通道
var ThermalChannels = []models.Channel{models.ChannelThermalVariance}

// NeutralFor 按数据源名称构造中性读数
func NeutralFor(name string) models.ReadingSet {
	switch name {
	case SourceRadar:
		return models.NeutralReadingSet(name, RadarChannels...)
	case SourceThermal:
		return models.NeutralReadingSet(name, ThermalChannels...)
	default:
		return models.NeutralReadingSet(name)
	}
}
