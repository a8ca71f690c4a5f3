package uplink

import (
	"context"
	"fmt"
	"time"

	"github.com/mshaibu3/hakilix-core/internal/models"

	"github.com/go-resty/resty/v2"
)

// IngestPath 采集端接收路径
const IngestPath = "/ingest"

// Transport 单次投递
type Transport interface {
	Deliver(ctx context.Context, rec models.TelemetryRecord) error
}

// DeliveryError 投递失败（超时、连接拒绝、非 2xx）
type DeliveryError struct {
	RecordID   string
	StatusCode int // 0 表示未收到响应
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("deliver record %s: status %d: %v", e.RecordID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("deliver record %s: %v", e.RecordID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// HTTPTransport 通过 HTTP POST /ingest 投递遥测记录
type HTTPTransport struct {
	httpClient *resty.Client
}

// NewHTTPTransport 创建 HTTP 投递
//
// resty 自身的重试关闭：顺序与重试由 RetryBuffer 负责。timeout 是上限，
// 实际单次超时由调用方的 ctx 决定。
func NewHTTPTransport(collectorURL, apiKey string, timeout time.Duration) *HTTPTransport {
	client := resty.New().
		SetBaseURL(collectorURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetHeader("x-api-key", apiKey)
	}
	return &HTTPTransport{httpClient: client}
}

// Deliver 发送一条记录，任意 2xx 视为成功
func (t *HTTPTransport) Deliver(ctx context.Context, rec models.TelemetryRecord) error {
	resp, err := t.httpClient.R().
		SetContext(ctx).
		SetHeader("x-record-id", rec.RecordID).
		SetBody(rec.Payload()).
		Post(IngestPath)
	if err != nil {
		return &DeliveryError{RecordID: rec.RecordID, Err: err}
	}
	if !resp.IsSuccess() {
		return &DeliveryError{
			RecordID:   rec.RecordID,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("collector rejected record: %s", resp.Status()),
		}
	}
	return nil
}
