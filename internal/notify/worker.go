package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"creditslot/internal/logger"
	"creditslot/internal/metrics"
	"creditslot/internal/user"

	"github.com/redis/go-redis/v9"
)

const defaultMaxTries = 3

type RecipientLookup interface {
	FindByID(ctx context.Context, id int64) (*user.User, error)
}

// Worker drains the notification queue and delivers each message by e-mail.
type Worker struct {
	redis      *redis.Client
	recipients RecipientLookup
	sender     Sender
	maxTries   int
	retryDelay time.Duration
	popTimeout time.Duration
}

func NewWorker(rdb *redis.Client, recipients RecipientLookup, sender Sender) *Worker {
	return &Worker{
		redis:      rdb,
		recipients: recipients,
		sender:     sender,
		maxTries:   defaultMaxTries,
		retryDelay: 5 * time.Second,
		popTimeout: 2 * time.Second,
	}
}

func (w *Worker) Start(ctx context.Context) {
	logger.Info("notification worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("notification worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

// processNext handles at most one queued notification. It reports whether
// one was taken off the queue.
func (w *Worker) processNext(ctx context.Context) bool {
	result, err := w.redis.BRPop(ctx, w.popTimeout, QueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			logger.Warn("notification queue pop failed", "error", err)
		}
		return false
	}

	var n Notification
	if err := json.Unmarshal([]byte(result[1]), &n); err != nil {
		logger.Error("bad notification payload", "error", err)
		return true
	}

	n.Tries++
	if err := w.deliver(ctx, n); err != nil {
		w.handleFailure(ctx, n, err)
		return true
	}

	metrics.RecordNotification(string(n.Kind), "sent")
	logger.Info("notification sent", "id", n.ID, "kind", n.Kind, "recipient_id", n.RecipientID)
	return true
}

func (w *Worker) deliver(ctx context.Context, n Notification) error {
	u, err := w.recipients.FindByID(ctx, n.RecipientID)
	if err != nil {
		return err
	}
	return w.sender.Send(u.Email, u.Name, n.Subject, n.Body)
}

func (w *Worker) handleFailure(ctx context.Context, n Notification, cause error) {
	logger.Error("notification delivery failed", "id", n.ID, "attempt", n.Tries, "error", cause)

	if n.Tries >= w.maxTries || errors.Is(cause, user.ErrUserNotFound) {
		w.saveFailed(ctx, n, cause)
		return
	}

	select {
	case <-ctx.Done():
	case <-time.After(w.retryDelay):
	}

	data, _ := json.Marshal(n)
	if err := w.redis.LPush(context.WithoutCancel(ctx), QueueKey, string(data)).Err(); err != nil {
		logger.Error("failed to requeue notification", "id", n.ID, "error", err)
		w.saveFailed(ctx, n, cause)
		return
	}
	metrics.RecordNotification(string(n.Kind), "retried")
}

func (w *Worker) saveFailed(ctx context.Context, n Notification, cause error) {
	failed := map[string]interface{}{
		"notification": n,
		"error":        cause.Error(),
		"time":         time.Now(),
	}
	data, _ := json.Marshal(failed)
	if err := w.redis.LPush(context.WithoutCancel(ctx), FailedKey, string(data)).Err(); err != nil {
		logger.Error("failed to record failed notification", "id", n.ID, "error", err)
	}
	metrics.RecordNotification(string(n.Kind), "failed")
}
