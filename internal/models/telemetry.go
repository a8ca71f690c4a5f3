package models

import "time"

// SensorFrame 上传到采集端的帧（字段与 /ingest 接口一致）
type SensorFrame struct {
	Timestamp       time.Time `json:"timestamp"`
	VerticalAccelG  float64   `json:"vertical_accel_g"`
	PostureAngleDeg float64   `json:"posture_angle_deg"`
	MovementEnergy  float64   `json:"movement_energy"`
	Zone            string    `json:"zone"`
	IsInBed         bool      `json:"is_in_bed"`
	StepRateHz      float64   `json:"step_rate_hz"`
}

// TelemetryRecord 遥测记录（每个周期由 EdgeNode 创建）
type TelemetryRecord struct {
	RecordID  string // uuid，随 x-record-id 发送，采集端据此去重
	DeviceID  string
	PatientID string
	Outcome   Outcome
	Frame     SensorFrame
	Timestamp time.Time
}

// IngestPayload POST /ingest 请求体
type IngestPayload struct {
	DeviceID  string        `json:"device_id"`
	PatientID string        `json:"patient_id,omitempty"`
	Frames    []SensorFrame `json:"frames"`
}

// Payload 转换为 /ingest 请求体（每条记录一帧）
func (r TelemetryRecord) Payload() IngestPayload {
	return IngestPayload{
		DeviceID:  r.DeviceID,
		PatientID: r.PatientID,
		Frames:    []SensorFrame{r.Frame},
	}
}
