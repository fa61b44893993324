package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/edu-patrimonio/workorder-service/internal/persistence"
	"github.com/edu-patrimonio/workorder-service/internal/repository"
)

// RetryWorker drains the dead-letter queue and replays failed audit and
// notification writes. Entries exceeding the attempt budget are dropped
// with a log line so operators can see what was lost.
type RetryWorker struct {
	deadLetter    *persistence.DeadLetterQueue
	assetEvents   repository.AssetEventRepository
	notifications repository.NotificationRepository
	logger        *zap.Logger
	interval      time.Duration
	maxAttempts   int
}

// NewRetryWorker constructs the worker.
func NewRetryWorker(
	deadLetter *persistence.DeadLetterQueue,
	assetEvents repository.AssetEventRepository,
	notifications repository.NotificationRepository,
	logger *zap.Logger,
	interval time.Duration,
	maxAttempts int,
) *RetryWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &RetryWorker{
		deadLetter:    deadLetter,
		assetEvents:   assetEvents,
		notifications: notifications,
		logger:        logger,
		interval:      interval,
		maxAttempts:   maxAttempts,
	}
}

// Run loops until ctx is cancelled.
func (w *RetryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Drain(ctx)
		}
	}
}

// Drain replays the entries parked at the start of the pass. Bounding the
// pass by the initial queue length keeps a failing store from turning the
// drain into a requeue spin. Exported separately so tests and shutdown
// hooks can run one pass synchronously.
func (w *RetryWorker) Drain(ctx context.Context) {
	parked, err := w.deadLetter.Len(ctx)
	if err != nil {
		w.logger.Warn("dead letter length failed", zap.Error(err))
		return
	}
	for i := int64(0); i < parked; i++ {
		entry, err := w.deadLetter.Dequeue(ctx)
		if err != nil {
			w.logger.Warn("dead letter dequeue failed", zap.Error(err))
			return
		}
		if entry == nil {
			return
		}
		w.replay(ctx, *entry)
	}
}

func (w *RetryWorker) replay(ctx context.Context, entry persistence.DeadLetter) {
	var err error
	switch entry.Kind {
	case persistence.DeadLetterAssetEvent:
		if entry.AssetEvent == nil {
			return
		}
		err = w.assetEvents.Create(ctx, entry.AssetEvent)
	case persistence.DeadLetterNotification:
		if entry.Notification == nil {
			return
		}
		err = w.notifications.Create(ctx, entry.Notification)
	default:
		w.logger.Warn("unknown dead letter kind", zap.String("kind", string(entry.Kind)))
		return
	}
	if err == nil {
		return
	}

	entry.Attempts++
	if entry.Attempts >= w.maxAttempts {
		w.logger.Error("dead letter dropped after max attempts",
			zap.String("kind", string(entry.Kind)),
			zap.Int("attempts", entry.Attempts),
			zap.Error(err))
		return
	}
	w.logger.Warn("dead letter replay failed, requeueing",
		zap.String("kind", string(entry.Kind)),
		zap.Int("attempts", entry.Attempts),
		zap.Error(err))
	w.deadLetter.Enqueue(ctx, entry)
}
