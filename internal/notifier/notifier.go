// Package notifier 报警旁路通知：Redis Streams 本地日志、MQTT 报警主题
//
// 通知失败只记录告警日志，不影响融合周期的结果。
package notifier

import (
	"context"

	"github.com/mshaibu3/hakilix-core/internal/models"
)

// AlertNotifier 报警通知
type AlertNotifier interface {
	Name() string
	Notify(ctx context.Context, alert models.AlertEvent) error
}
