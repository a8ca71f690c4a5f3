package models

import "time"

// Outcome 融合结果
type Outcome string

const (
	OutcomeSafe          Outcome = "SAFE"
	OutcomeCriticalAlert Outcome = "CRITICAL_ALERT"
)

// FusionDecision 单个周期的融合决策
type FusionDecision struct {
	Outcome         Outcome
	Velocity        float64
	Acceleration    float64
	ThermalVariance float64
	Coincidence     bool // SNN 速度/热通道同时放电
	Timestamp       time.Time
}

// IsAlert 是否为报警
func (d FusionDecision) IsAlert() bool {
	return d.Outcome == OutcomeCriticalAlert
}
