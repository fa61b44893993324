package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/edu-patrimonio/workorder-service/internal/domain"
)

// DeadLetterKind tags the payload type of a queued write.
type DeadLetterKind string

const (
	DeadLetterAssetEvent   DeadLetterKind = "asset_event"
	DeadLetterNotification DeadLetterKind = "notification"
)

// DeadLetter is a failed best-effort write parked for replay. Exactly one
// of AssetEvent/Notification is set, matching Kind.
type DeadLetter struct {
	Kind         DeadLetterKind       `json:"kind"`
	Attempts     int                  `json:"attempts"`
	AssetEvent   *domain.AssetEvent   `json:"asset_event,omitempty"`
	Notification *domain.Notification `json:"notification,omitempty"`
}

// DeadLetterQueue parks failed audit/notification writes in a redis list
// so they stay observable and replayable instead of being discarded. With
// no redis client configured the queue degrades to log-only.
type DeadLetterQueue struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewDeadLetterQueue builds the queue on top of an existing client.
func NewDeadLetterQueue(client *redis.Client, key string, logger *zap.Logger) *DeadLetterQueue {
	return &DeadLetterQueue{client: client, key: key, logger: logger}
}

// Enqueue parks the entry. Never returns an error: a queue failure is
// logged, the triggering ticket operation already succeeded.
func (q *DeadLetterQueue) Enqueue(ctx context.Context, entry DeadLetter) {
	if q == nil || q.client == nil {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		q.logger.Error("dead letter marshal failed", zap.Error(err))
		return
	}
	if err := q.client.LPush(ctx, q.key, raw).Err(); err != nil {
		q.logger.Error("dead letter enqueue failed",
			zap.String("kind", string(entry.Kind)),
			zap.Error(err))
	}
}

// Dequeue pops the oldest entry, returning (nil, nil) when the queue is
// empty or no client is configured.
func (q *DeadLetterQueue) Dequeue(ctx context.Context) (*DeadLetter, error) {
	if q == nil || q.client == nil {
		return nil, nil
	}
	raw, err := q.client.RPop(ctx, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var entry DeadLetter
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Len reports the number of parked entries.
func (q *DeadLetterQueue) Len(ctx context.Context) (int64, error) {
	if q == nil || q.client == nil {
		return 0, nil
	}
	return q.client.LLen(ctx, q.key).Result()
}
