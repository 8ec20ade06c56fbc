package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// Publisher is satisfied by event.AlertPublisher. It reports how many items
// of the batch were delivered before any error.
type Publisher interface {
	Publish(ctx context.Context, batch []model.AlertNotification) (int, error)
}

// Queue is the subset of *redis.Client the worker uses.
type Queue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// AlertWorker drains persist_alerts_queue and forwards alerts to the broker
// in batches. Undelivered alerts are pushed back to the queue.
type AlertWorker struct {
	queue     Queue
	publisher Publisher
	log       zerolog.Logger
	backoff   time.Duration
}

func NewAlertWorker(queue Queue, publisher Publisher, log zerolog.Logger) *AlertWorker {
	return &AlertWorker{
		queue:     queue,
		publisher: publisher,
		log:       log.With().Str("component", "alert_worker").Logger(),
		backoff:   2 * time.Second,
	}
}

// Start runs the worker loop until ctx is cancelled. Call in a goroutine.
func (w *AlertWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AlertWorker started")

	buffer := make([]model.AlertNotification, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Flush on size or age
		if len(buffer) > 0 && (len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout) {
			w.flush(ctx, buffer)
			buffer = buffer[:0]
			lastFlushTime = time.Now()
		}

		// 2. Graceful shutdown
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// 3. Fetch from Redis; BLPop returns immediately if data exists.
		result, err := w.queue.BLPop(ctx, PollTimeout, config.WorkerKey.PersistAlertsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				w.shutdown(buffer)
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			sleepCtx(ctx, 3*time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var n model.AlertNotification
		if err := json.Unmarshal([]byte(result[1]), &n); err != nil {
			// Malformed payloads can never succeed.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed alert")
			continue
		}
		buffer = append(buffer, n)
	}
}

func (w *AlertWorker) flush(ctx context.Context, batch []model.AlertNotification) {
	sent, err := w.publisher.Publish(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", sent).Msg("Alerts published")
		return
	}

	w.log.Warn().Err(err).Int("sent", sent).Int("count", len(batch)).Msg("Publish failed, requeueing remainder")
	w.requeue(ctx, batch[sent:])
}

func (w *AlertWorker) requeue(ctx context.Context, items []model.AlertNotification) {
	values := make([]interface{}, 0, len(items))
	for _, n := range items {
		data, err := json.Marshal(n)
		if err != nil {
			continue
		}
		values = append(values, data)
	}
	if len(values) == 0 {
		return
	}

	// The worker context may already be cancelled during shutdown.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := w.queue.RPush(pushCtx, config.WorkerKey.PersistAlertsQueue, values...).Err(); err != nil {
		w.log.Error().Err(err).Int("count", len(values)).Msg("CRITICAL: Failed to requeue alerts. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(values)).Msg("Requeued failed alerts")
	// Avoid thrashing while the broker is down.
	sleepCtx(ctx, w.backoff)
}

func (w *AlertWorker) shutdown(buffer []model.AlertNotification) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")
	if len(buffer) == 0 {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.flush(shutdownCtx, buffer)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
