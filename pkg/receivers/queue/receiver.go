// Package queue ingests alerts from a Redis list, so detection pipelines can
// hand work to the API without speaking HTTP.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/socworks/argus/pkg/models"
	"github.com/socworks/argus/pkg/services"
)

// Receiver pops alert documents off a Redis list and submits each one as a
// workflow. Malformed or invalid entries are logged and skipped; the queue
// keeps draining.
type Receiver struct {
	queue  string
	client redis.UniversalClient
	alerts *services.AlertService
	logger *slog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewReceiver(redisURL, queue string, alerts *services.AlertService, logger *slog.Logger) (*Receiver, error) {
	if queue == "" {
		return nil, errors.New("queue name is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	return &Receiver{
		queue:  queue,
		client: redis.NewClient(opts),
		alerts: alerts,
		logger: logger.With("module", "receivers.queue", "queue", queue),
		stopCh: make(chan struct{}),
	}, nil
}

func (r *Receiver) Start(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}

	r.logger.InfoContext(ctx, "Starting alert queue receiver")

	r.wg.Add(1)

	go r.consume(ctx)

	return nil
}

func (r *Receiver) consume(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopCh:
			r.logger.InfoContext(ctx, "Queue receiver stopped")

			return
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "Context cancelled, stopping queue receiver")

			return
		default:
			if err := r.processMessage(ctx); err != nil {
				r.logger.ErrorContext(ctx, "Error processing queued alert", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (r *Receiver) processMessage(ctx context.Context) error {
	result, err := r.client.BLPop(ctx, 1*time.Second, r.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return nil
		}

		return fmt.Errorf("popping from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	var alert models.Alert
	if err := json.Unmarshal([]byte(result[1]), &alert); err != nil {
		r.logger.WarnContext(ctx, "Skipping malformed queue entry", "error", err)

		return nil
	}

	summary, err := r.alerts.Submit(ctx, alert)
	if err != nil {
		if services.IsValidationError(err) {
			r.logger.WarnContext(ctx, "Skipping invalid queued alert",
				"alert_id", alert.AlertID, "error", err)

			return nil
		}

		return err
	}

	r.logger.InfoContext(ctx, "Queued alert accepted",
		"alert_id", alert.AlertID, "workflow_id", summary.WorkflowID)

	return nil
}

func (r *Receiver) Stop(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Stopping queue receiver")

	close(r.stopCh)
	r.wg.Wait()

	if err := r.client.Close(); err != nil {
		r.logger.ErrorContext(ctx, "Error closing redis client", "error", err)
	}

	return nil
}
