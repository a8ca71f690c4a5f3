package uplink

import (
	"fmt"
	"testing"

	"github.com/mshaibu3/hakilix-core/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id string) models.TelemetryRecord {
	return models.TelemetryRecord{RecordID: id, DeviceID: "HKLX-EDGE-001"}
}

// drainIDs 按出队顺序取出全部记录 ID，缓冲随之清空
func drainIDs(b *RetryBuffer) []string {
	out := make([]string, 0, b.Len())
	for {
		rec, ok := b.Pop()
		if !ok {
			return out
		}
		out = append(out, rec.RecordID)
	}
}

func TestRetryBuffer_FIFO(t *testing.T) {
	b := NewRetryBuffer(3)
	for _, id := range []string{"a", "b", "c"} {
		_, dropped := b.Push(record(id))
		require.False(t, dropped)
	}

	head, ok := b.Peek()
	require.True(t, ok)
	assert.Equal(t, "a", head.RecordID)
	assert.Equal(t, 3, b.Len())

	for _, want := range []string{"a", "b", "c"} {
		rec, ok := b.Pop()
		require.True(t, ok)
		assert.Equal(t, want, rec.RecordID)
	}
	_, ok = b.Pop()
	assert.False(t, ok)
	_, ok = b.Peek()
	assert.False(t, ok)
}

func TestRetryBuffer_DropOldestOnOverflow(t *testing.T) {
	b := NewRetryBuffer(2)
	b.Push(record("a"))
	b.Push(record("b"))

	evicted, dropped := b.Push(record("c"))

	require.True(t, dropped)
	assert.Equal(t, "a", evicted.RecordID)
	assert.Equal(t, []string{"b", "c"}, drainIDs(b))
}

func TestRetryBuffer_NeverExceedsCapacity(t *testing.T) {
	b := NewRetryBuffer(5)
	drops := 0
	for i := 0; i < 23; i++ {
		if _, dropped := b.Push(record(fmt.Sprintf("r%d", i))); dropped {
			drops++
		}
		require.LessOrEqual(t, b.Len(), b.Cap())
	}
	assert.Equal(t, 18, drops)
	assert.Equal(t, []string{"r18", "r19", "r20", "r21", "r22"}, drainIDs(b))
}

func TestRetryBuffer_WrapAroundAfterPop(t *testing.T) {
	b := NewRetryBuffer(3)
	b.Push(record("a"))
	b.Push(record("b"))
	b.Pop()
	b.Push(record("c"))
	b.Push(record("d"))

	assert.Equal(t, []string{"b", "c", "d"}, drainIDs(b))
}

func TestRetryBuffer_MinimumCapacity(t *testing.T) {
	b := NewRetryBuffer(0)
	assert.Equal(t, 1, b.Cap())
}
