package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// AlertNotifier receives every ALERT event after it has been persisted.
// Delivery is best-effort; the event log stays the source of truth.
type AlertNotifier interface {
	Notify(ctx context.Context, n model.AlertNotification) error
}

// RedisMonitorNotifier publishes alerts to the reviewer monitor channels.
type RedisMonitorNotifier struct {
	rdb *redis.Client
}

// NewRedisMonitorNotifier creates a new RedisMonitorNotifier.
func NewRedisMonitorNotifier(rdb *redis.Client) *RedisMonitorNotifier {
	return &RedisMonitorNotifier{rdb: rdb}
}

// Notify publishes n to the session channel and the global channel.
func (p *RedisMonitorNotifier) Notify(ctx context.Context, n model.AlertNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}

	pipe := p.rdb.Pipeline()
	pipe.Publish(ctx, config.CacheKey.SessionMonitorChannel(n.Event.SessionID.String()), payload)
	pipe.Publish(ctx, config.CacheKey.GlobalMonitorChannel(), payload)
	_, err = pipe.Exec(ctx)
	return err
}

// QueueNotifier pushes alerts onto the queue drained by the AlertWorker.
type QueueNotifier struct {
	rdb *redis.Client
}

// NewQueueNotifier creates a new QueueNotifier.
func NewQueueNotifier(rdb *redis.Client) *QueueNotifier {
	return &QueueNotifier{rdb: rdb}
}

// Notify appends n to the persist alerts queue.
func (q *QueueNotifier) Notify(ctx context.Context, n model.AlertNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return q.rdb.RPush(ctx, config.WorkerKey.PersistAlertsQueue, payload).Err()
}

// MultiNotifier fans a notification out to several notifiers.
type MultiNotifier []AlertNotifier

// Notify calls every notifier and joins their errors.
func (m MultiNotifier) Notify(ctx context.Context, n model.AlertNotification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
