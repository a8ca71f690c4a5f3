package notifier

import (
	"context"
	"fmt"

	rediscommon "github.com/mshaibu3/hakilix-core/common/redis"
	"github.com/mshaibu3/hakilix-core/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisJournal 把报警写入本地 Redis Stream，供家庭网关消费
type RedisJournal struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewRedisJournal 创建 Redis 报警日志
func NewRedisJournal(client *redis.Client, stream string, maxLen int64, logger *zap.Logger) *RedisJournal {
	return &RedisJournal{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}
}

// Name 通知渠道名称
func (j *RedisJournal) Name() string { return "redis_journal" }

// Notify 追加一条报警到 Stream
func (j *RedisJournal) Notify(ctx context.Context, alert models.AlertEvent) error {
	id, err := rediscommon.PublishJSONToStream(ctx, j.client, j.stream, j.maxLen, alert)
	if err != nil {
		return fmt.Errorf("failed to journal alert %s: %w", alert.EventID, err)
	}
	j.logger.Debug("Alert journaled",
		zap.String("stream", j.stream),
		zap.String("message_id", id),
		zap.String("event_id", alert.EventID),
	)
	return nil
}
