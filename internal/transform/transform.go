// Package transform 把融合结果转换为上传采集端的遥测记录
package transform

import (
	"time"

	"github.com/mshaibu3/hakilix-core/internal/models"

	"github.com/google/uuid"
)

// StandardGravity 标准重力加速度 (m/s²)
const StandardGravity = 9.80665

// Transformer 遥测记录转换器
type Transformer struct {
	deviceID  string
	patientID string
	zone      string
	inBed     bool
	newID     func() string
}

// Options 转换器参数（来自配置，运行期间不变）
type Options struct {
	DeviceID  string
	PatientID string
	Zone      string
	InBed     bool
}

// NewTransformer 创建转换器
func NewTransformer(opts Options) *Transformer {
	return &Transformer{
		deviceID:  opts.DeviceID,
		patientID: opts.PatientID,
		zone:      opts.Zone,
		inBed:     opts.InBed,
		newID:     uuid.NewString,
	}
}

// ToRecord 由一个周期的决策构造遥测记录
//
// vertical_accel_g = 加速度 / g；movement_energy = ½·v²（单位质量动能）。
// 姿态角与步频没有对应的传感器，固定为 0。
func (t *Transformer) ToRecord(decision models.FusionDecision) models.TelemetryRecord {
	ts := decision.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()

	return models.TelemetryRecord{
		RecordID:  t.newID(),
		DeviceID:  t.deviceID,
		PatientID: t.patientID,
		Outcome:   decision.Outcome,
		Timestamp: ts,
		Frame: models.SensorFrame{
			Timestamp:       ts,
			VerticalAccelG:  decision.Acceleration / StandardGravity,
			PostureAngleDeg: 0,
			MovementEnergy:  0.5 * decision.Velocity * decision.Velocity,
			Zone:            t.zone,
			IsInBed:         t.inBed,
			StepRateHz:      0,
		},
	}
}
