package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"creditslot/internal/logger"
	"creditslot/internal/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	QueueKey  = "notifications"
	FailedKey = "notifications:failed"
)

// Queue pushes notifications onto a Redis list consumed by Worker.
type Queue struct {
	redis *redis.Client
}

func NewQueue(rdb *redis.Client) *Queue {
	return &Queue{redis: rdb}
}

func (q *Queue) Enqueue(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Created.IsZero() {
		n.Created = time.Now()
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := q.redis.LPush(ctx, QueueKey, string(data)).Err(); err != nil {
		logger.Error("failed to queue notification", "kind", n.Kind, "recipient_id", n.RecipientID, "error", err)
		return err
	}

	metrics.RecordNotification(string(n.Kind), "queued")
	logger.Debug("notification queued", "id", n.ID, "kind", n.Kind, "recipient_id", n.RecipientID)
	return nil
}

func (q *Queue) Length(ctx context.Context) int64 {
	length, err := q.redis.LLen(ctx, QueueKey).Result()
	if err != nil {
		return 0
	}
	metrics.NotificationQueueLength.Set(float64(length))
	return length
}
