package models

import "time"

// AlertEvent 跌倒报警事件（Redis 本地日志、MQTT 报警主题共用）
type AlertEvent struct {
	EventID     string           `json:"event_id"` // 与遥测 record_id 相同
	DeviceID    string           `json:"device_id"`
	PatientID   string           `json:"patient_id,omitempty"`
	EventType   string           `json:"event_type"`  // fall_detected
	Category    string           `json:"category"`    // safety
	AlarmLevel  string           `json:"alarm_level"` // CRIT
	Zone        string           `json:"zone"`
	TriggeredAt time.Time        `json:"triggered_at"`
	TriggerData AlertTriggerData `json:"trigger_data"`
}

// AlertTriggerData 触发时的读数快照
type AlertTriggerData struct {
	Velocity        float64 `json:"velocity"`
	Acceleration    float64 `json:"acceleration"`
	ThermalVariance float64 `json:"thermal_variance"`
	VerticalAccelG  float64 `json:"vertical_accel_g"`
	Source          string  `json:"source"` // "SNN"
}

const (
	AlertEventFall      = "fall_detected"
	AlertCategorySafety = "safety"
	AlertLevelCritical  = "CRIT"
)

// NewAlertEvent 由报警决策及其遥测记录构造报警事件
func NewAlertEvent(decision FusionDecision, rec TelemetryRecord) AlertEvent {
	return AlertEvent{
		EventID:     rec.RecordID,
		DeviceID:    rec.DeviceID,
		PatientID:   rec.PatientID,
		EventType:   AlertEventFall,
		Category:    AlertCategorySafety,
		AlarmLevel:  AlertLevelCritical,
		Zone:        rec.Frame.Zone,
		TriggeredAt: rec.Timestamp,
		TriggerData: AlertTriggerData{
			Velocity:        decision.Velocity,
			Acceleration:    decision.Acceleration,
			ThermalVariance: decision.ThermalVariance,
			VerticalAccelG:  rec.Frame.VerticalAccelG,
			Source:          "SNN",
		},
	}
}
