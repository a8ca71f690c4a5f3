package uplink

import (
	"sync"

	"github.com/mshaibu3/hakilix-core/internal/models"
)

// RetryBuffer 有界 FIFO 环形缓冲，满时丢弃最旧记录
//
// 由 Client 独占使用；互斥锁仅用于指标上报读取深度。
type RetryBuffer struct {
	mu       sync.Mutex
	items    []models.TelemetryRecord
	capacity int
	size     int
	head     int // 下一个写入位置
	tail     int // 最旧记录位置
}

// NewRetryBuffer 创建缓冲，capacity 至少为 1
func NewRetryBuffer(capacity int) *RetryBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RetryBuffer{
		items:    make([]models.TelemetryRecord, capacity),
		capacity: capacity,
	}
}

// Push 追加到队尾；已满时先移除最旧记录并返回它
func (b *RetryBuffer) Push(rec models.TelemetryRecord) (evicted models.TelemetryRecord, dropped bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == b.capacity {
		evicted = b.items[b.tail]
		b.items[b.tail] = models.TelemetryRecord{}
		b.tail = (b.tail + 1) % b.capacity
		b.size--
		dropped = true
	}

	b.items[b.head] = rec
	b.head = (b.head + 1) % b.capacity
	b.size++
	return evicted, dropped
}

// Peek 返回队首记录但不移除
func (b *RetryBuffer) Peek() (models.TelemetryRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == 0 {
		return models.TelemetryRecord{}, false
	}
	return b.items[b.tail], true
}

// Pop 移除并返回队首记录
func (b *RetryBuffer) Pop() (models.TelemetryRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == 0 {
		return models.TelemetryRecord{}, false
	}
	rec := b.items[b.tail]
	b.items[b.tail] = models.TelemetryRecord{}
	b.tail = (b.tail + 1) % b.capacity
	b.size--
	return rec, true
}

// Len 当前记录数
func (b *RetryBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap 容量
func (b *RetryBuffer) Cap() int {
	return b.capacity
}
