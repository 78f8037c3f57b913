package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/config"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/observer"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/storage"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/tenant"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/utils"
)

// Outbound event names.
const (
	EventMessageReceived     = "message.received"
	EventMessageStatusUpdate = "message.status.update"
)

// RealtimePublisher pushes an event onto the realtime bus.
type RealtimePublisher interface {
	Publish(subject string, data []byte) error
}

// NotificationTask is one event to fan out: once to the realtime bus, once to
// every active outbound webhook endpoint subscribed to the event.
type NotificationTask struct {
	Ctx     context.Context // Context derived for the task, NOT the original request context
	OrgID   int64
	Event   string
	Payload map[string]interface{}
}

// INotifier defines the interface for the notification worker pool.
type INotifier interface {
	Submit(task NotificationTask) error
	Stop()
}

// Notifier fans events out on a bounded worker pool so slow subscriber
// endpoints never stall the ingestion lanes.
type Notifier struct {
	pool       *ants.PoolWithFunc
	realtime   RealtimePublisher
	endpoints  storage.EndpointRepo
	httpClient *http.Client
	cfg        config.NotifierPoolConfig
	baseLogger *zap.Logger
}

// Ensure Notifier implements INotifier
var _ INotifier = (*Notifier)(nil)

// NewNotifier creates and initializes a new notification worker pool.
func NewNotifier(
	cfg config.NotifierPoolConfig,
	realtime RealtimePublisher,
	endpoints storage.EndpointRepo,
	baseLogger *zap.Logger,
) (*Notifier, error) {
	n := &Notifier{
		realtime:   realtime,
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: cfg.WebhookTimeout},
		cfg:        cfg,
		baseLogger: baseLogger.Named("notifier"),
	}

	pool, err := ants.NewPoolWithFunc(cfg.PoolSize, func(i interface{}) {
		task, ok := i.(NotificationTask)
		if !ok {
			n.baseLogger.Error("Invalid task data type received", zap.Any("data", i))
			return
		}
		n.processTask(task)
	},
		ants.WithExpiryDuration(cfg.ExpiryTime),
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(cfg.QueueSize),
		ants.WithPanicHandler(func(err interface{}) {
			n.baseLogger.Error("Panic recovered in notifier worker", zap.Any("panic_error", err), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier worker pool: %w", err)
	}
	n.pool = pool
	n.baseLogger.Info("Notifier worker pool initialized",
		zap.Int("pool_size", cfg.PoolSize),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Duration("expiry_time", cfg.ExpiryTime),
		zap.Duration("webhook_timeout", cfg.WebhookTimeout),
	)
	return n, nil
}

// Submit queues a notification task on the worker pool.
func (n *Notifier) Submit(task NotificationTask) error {
	start := time.Now()
	observer.IncNotifierTasksSubmitted(task.OrgID)
	observer.SetNotifierQueueLength(n.pool.Waiting())

	err := n.pool.Invoke(task)
	duration := time.Since(start)

	if err != nil {
		n.baseLogger.Warn("Failed to submit notification task to pool",
			zap.Int64("organization_id", task.OrgID),
			zap.String("event", task.Event),
			zap.Duration("submit_duration", duration),
			zap.Error(err),
		)
		observer.IncNotifierTasksProcessed(task.OrgID, "submit_error")
		if errors.Is(err, ants.ErrPoolOverload) {
			return fmt.Errorf("notifier pool overload: %w", err)
		}
		return fmt.Errorf("failed to invoke notification task: %w", err)
	}

	return nil
}

// processTask contains the actual logic executed by a worker goroutine.
func (n *Notifier) processTask(task NotificationTask) {
	defer utils.RecoverWithLog(task.Ctx, "notification fan-out")

	log := logger.FromContextOr(task.Ctx, n.baseLogger).With(
		zap.Int64("organization_id", task.OrgID),
		zap.String("event", task.Event),
	)

	start := time.Now()
	status := "success"

	body := utils.MustMarshalJSON(map[string]interface{}{
		"event":           task.Event,
		"organization_id": task.OrgID,
		"data":            task.Payload,
	})

	if err := n.realtime.Publish(realtimeSubject(task.OrgID, task.Event), body); err != nil {
		log.Warn("Failed to publish realtime event", zap.Error(err))
		status = "realtime_failed"
	}

	taskCtx := tenant.WithOrganizationID(task.Ctx, task.OrgID)
	endpoints, err := n.endpoints.FindActiveByEvent(taskCtx, task.Event)
	if err != nil {
		log.Error("Failed to load webhook endpoints", zap.Error(err))
		status = "endpoint_lookup_failed"
	}

	// Endpoint deliveries are independent; one slow subscriber should not
	// delay the others.
	var deliveryFailed atomic.Bool
	iter.ForEach(endpoints, func(ep *model.WebhookEndpoint) {
		if postErr := n.postWithRetry(taskCtx, ep.TargetURL, body); postErr != nil {
			log.Warn("Failed to deliver webhook after retries",
				zap.String("target_url", ep.TargetURL),
				zap.Error(postErr))
			deliveryFailed.Store(true)
		}
	})
	if deliveryFailed.Load() {
		status = "delivery_failed"
	}

	duration := time.Since(start)
	observer.ObserveNotifierProcessingDuration(task.OrgID, duration)
	observer.IncNotifierTasksProcessed(task.OrgID, status)

	log.Debug("Finished notification task", zap.Duration("duration", duration), zap.String("final_status", status))
}

// postWithRetry POSTs the payload with a short bounded backoff. Endpoint
// failures are the subscriber's problem; the pipeline never blocks on them
// for long.
func (n *Notifier) postWithRetry(ctx context.Context, url string, body []byte) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build webhook request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("webhook request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("webhook returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("webhook returned %d", resp.StatusCode))
		}
		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

func realtimeSubject(orgID int64, event string) string {
	return fmt.Sprintf("v1.events.%d.%s", orgID, event)
}

// Stop gracefully shuts down the worker pool.
func (n *Notifier) Stop() {
	if n.pool != nil {
		n.baseLogger.Info("Releasing notifier worker pool")
		start := time.Now()
		n.pool.Release()
		n.baseLogger.Info("Notifier worker pool released", zap.Duration("duration", time.Since(start)))
	}
}
