package redis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mshaibu3/hakilix-core/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *Client {
	mr := miniredis.RunT(t)
	client := NewRedisClient(&config.RedisConfig{Addr: mr.Addr()})
	t.Cleanup(func() { _ = Close(client) })
	return client
}

func TestPublishJSONToStream(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, Ping(ctx, client))

	id, err := PublishJSONToStream(ctx, client, "edge:test", 0, map[string]interface{}{"event": "fall"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := ReadRange(ctx, client, "edge:test", "-", "+")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, "edge:test", msgs[0].Stream)

	var data map[string]string
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &data))
	assert.Equal(t, "fall", data["event"])
	assert.NotEmpty(t, msgs[0].Values["timestamp"])
}

func TestPublishJSONToStream_MaxLenTrims(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := PublishJSONToStream(ctx, client, "edge:trim", 5, map[string]int{"i": i})
		require.NoError(t, err)
	}

	n, err := client.XLen(ctx, "edge:trim").Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, n, int64(20))
	assert.GreaterOrEqual(t, n, int64(5))
}

func TestPublishJSONToStream_UnmarshalableData(t *testing.T) {
	client := setupTestRedis(t)
	_, err := PublishJSONToStream(context.Background(), client, "edge:bad", 0, make(chan int))
	require.Error(t, err)
}

func TestReadRange_MissingStream(t *testing.T) {
	client := setupTestRedis(t)
	msgs, err := ReadRange(context.Background(), client, "edge:none", "-", "+")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestClose_NilClient(t *testing.T) {
	assert.NoError(t, Close(nil))
}
