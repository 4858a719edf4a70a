package metrics

import (
	"context"
	"encoding/json"

	"github.com/nulzo/llm-gateway/internal/store/model"
	"github.com/redis/go-redis/v9"
)

// QueueSink pushes usage records onto a Redis list for downstream
// consumers (billing, analytics pipelines).
type QueueSink struct {
	client *redis.Client
	key    string
}

func NewQueueSink(client *redis.Client, key string) *QueueSink {
	return &QueueSink{client: client, key: key}
}

func (s *QueueSink) Name() string { return "queue" }

func (s *QueueSink) Push(ctx context.Context, rec *model.UsageRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.LPush(ctx, s.key, data).Err()
}
