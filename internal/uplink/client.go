// Package uplink 遥测上传：单次投递 + 有界重试缓冲
//
// 缓冲中的记录总是先于新记录投递，采集端按产生顺序收到记录；
// 丢弃只发生在缓冲溢出时（丢最旧）。
package uplink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mshaibu3/hakilix-core/internal/models"

	"go.uber.org/zap"
)

// ErrBuffered 记录未能立即投递，已进入重试缓冲
var ErrBuffered = errors.New("telemetry record buffered for retry")

// Observer 上传指标回调（可为 nil）
type Observer interface {
	ObserveDelivery(success bool)
	ObserveDropped()
	ObserveBufferSize(size int)
}

// Client 上传客户端
type Client struct {
	transport Transport
	buffer    *RetryBuffer
	timeout   time.Duration
	observer  Observer
	logger    *zap.Logger
}

// NewClient 创建上传客户端
func NewClient(transport Transport, capacity int, timeout time.Duration, observer Observer, logger *zap.Logger) *Client {
	return &Client{
		transport: transport,
		buffer:    NewRetryBuffer(capacity),
		timeout:   timeout,
		observer:  observer,
		logger:    logger,
	}
}

// Send 投递一条记录
//
// 先按 FIFO 清空缓冲；缓冲仍有积压时当前记录直接排到队尾，保证顺序。
// 返回 nil 表示当前记录已被采集端接收；否则返回包装了 ErrBuffered 的错误。
func (c *Client) Send(ctx context.Context, rec models.TelemetryRecord) error {
	_, flushErr := c.Flush(ctx)

	if c.buffer.Len() > 0 {
		c.enqueue(rec)
		if flushErr == nil {
			flushErr = errors.New("backlog pending")
		}
		return fmt.Errorf("%w: %w", ErrBuffered, flushErr)
	}

	if err := c.attempt(ctx, rec); err != nil {
		c.logger.Warn("Uplink failed, buffering telemetry record",
			zap.String("record_id", rec.RecordID),
			zap.Error(err),
		)
		c.enqueue(rec)
		return fmt.Errorf("%w: %w", ErrBuffered, err)
	}
	return nil
}

// Flush 按顺序投递缓冲中的记录，遇到第一次失败即停止
//
// 返回本次成功投递的数量；ctx 取消时在下一条记录之前停止。
func (c *Client) Flush(ctx context.Context) (int, error) {
	delivered := 0
	for {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		head, ok := c.buffer.Peek()
		if !ok {
			break
		}
		if delivered == 0 {
			c.logger.Info("Flushing telemetry backlog", zap.Int("pending", c.buffer.Len()))
		}
		if err := c.attempt(ctx, head); err != nil {
			c.logger.Warn("Backlog flush stopped",
				zap.String("record_id", head.RecordID),
				zap.Int("delivered", delivered),
				zap.Int("pending", c.buffer.Len()),
				zap.Error(err),
			)
			return delivered, err
		}
		c.buffer.Pop()
		delivered++
		c.reportSize()
	}
	return delivered, nil
}

// Pending 缓冲中的记录数
func (c *Client) Pending() int {
	return c.buffer.Len()
}

// Buffer 重试缓冲
func (c *Client) Buffer() *RetryBuffer {
	return c.buffer
}

// attempt 单次投递；不受调用方取消影响，只受自身超时约束，关闭时进行中的请求可以完成
func (c *Client) attempt(ctx context.Context, rec models.TelemetryRecord) error {
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	err := c.transport.Deliver(attemptCtx, rec)
	if c.observer != nil {
		c.observer.ObserveDelivery(err == nil)
	}
	return err
}

func (c *Client) enqueue(rec models.TelemetryRecord) {
	if evicted, dropped := c.buffer.Push(rec); dropped {
		c.logger.Error("retry buffer overflow, oldest telemetry record dropped",
			zap.String("dropped_record_id", evicted.RecordID),
			zap.Time("dropped_record_ts", evicted.Timestamp),
			zap.Int("capacity", c.buffer.Cap()),
		)
		if c.observer != nil {
			c.observer.ObserveDropped()
		}
	}
	c.reportSize()
}

func (c *Client) reportSize() {
	if c.observer != nil {
		c.observer.ObserveBufferSize(c.buffer.Len())
	}
}
