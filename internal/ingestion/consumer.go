package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/apperrors"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/config"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/jetstream"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/observer"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/tenant"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/utils"
)

// AckNakAction represents the decision made after processing a task
type AckNakAction int

const (
	ActionAck      AckNakAction = iota // Task processed successfully, ACK it
	ActionNakDelay                     // Retryable error with attempts remaining, NAK with delay
	ActionTerm                         // Fatal error or retry budget spent, terminate delivery
)

// LaneHandler processes one decoded lane task. A Reschedule return value naks
// the message with the given delay without burning a delivery attempt's worth
// of error metrics.
type LaneHandler func(ctx context.Context, data []byte) error

// Reschedule tells the consumer the task is not due yet.
type Reschedule struct {
	Delay time.Duration
}

func (r *Reschedule) Error() string {
	return fmt.Sprintf("task not due, reschedule in %s", r.Delay)
}

// LaneConsumer pulls tasks off one lane subject and runs them through the
// lane's handler with the tenant context restored from the task headers.
type LaneConsumer struct {
	client  jetstream.ClientInterface
	lane    string
	stream  string
	subject string
	cfg     config.LaneConfig
	handler LaneHandler
	sub     *nats.Subscription
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewLaneConsumer creates a consumer for one lane.
func NewLaneConsumer(client jetstream.ClientInterface, stream, subject, lane string, cfg config.LaneConfig, handler LaneHandler) *LaneConsumer {
	ctx, cancel := context.WithCancel(context.Background())
	laneLogger := logger.Log.With(zap.String("lane", lane))
	ctx = logger.WithLogger(ctx, laneLogger)

	return &LaneConsumer{
		client:  client,
		lane:    lane,
		stream:  stream,
		subject: subject,
		cfg:     cfg,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Setup ensures the lane's durable consumer exists.
func (c *LaneConsumer) Setup() error {
	log := logger.FromContext(c.ctx)
	log.Info("Setting up lane consumer...", zap.String("stream", c.stream), zap.String("consumer", c.cfg.Consumer))

	consumerCfg := &nats.ConsumerConfig{
		Durable:        c.cfg.Consumer,
		DeliverGroup:   c.cfg.QueueGroup,
		FilterSubjects: []string{c.subject},
		AckPolicy:      nats.AckExplicitPolicy,
		DeliverSubject: nats.NewInbox(),
		MaxDeliver:     c.cfg.MaxDeliver,
		AckWait:        c.cfg.AckWait,
		MaxAckPending:  1000,
		ReplayPolicy:   nats.ReplayInstantPolicy,
		DeliverPolicy:  nats.DeliverAllPolicy,
	}

	if err := c.client.SetupConsumer(c.ctx, c.stream, consumerCfg); err != nil {
		log.Error("Failed to setup lane consumer", zap.Error(err), zap.String("consumer", c.cfg.Consumer))
		return fmt.Errorf("failed to setup lane consumer '%s': %w", c.cfg.Consumer, err)
	}

	log.Info("Lane consumer setup complete")
	return nil
}

// Start subscribes to the lane subject.
func (c *LaneConsumer) Start() error {
	log := logger.FromContext(c.ctx)

	sub, err := c.client.SubscribePush(c.subject, c.cfg.Consumer, c.cfg.QueueGroup, c.stream, c.handleMessage)
	if err != nil {
		log.Error("Failed to subscribe lane consumer", zap.Error(err),
			zap.String("consumer", c.cfg.Consumer),
			zap.String("group", c.cfg.QueueGroup),
		)
		return fmt.Errorf("failed to subscribe lane consumer '%s': %w", c.cfg.Consumer, err)
	}
	c.sub = sub
	log.Info("Lane consumer subscribed", zap.String("subject", c.subject))
	return nil
}

// Stop drains the subscription.
func (c *LaneConsumer) Stop() {
	log := logger.FromContext(c.ctx)
	log.Info("Stopping lane consumer...", zap.String("consumer", c.cfg.Consumer))
	if c.sub != nil {
		if err := c.sub.Drain(); err != nil {
			log.Error("Error draining lane subscription", zap.Error(err))
		}
	}
	if c.cancel != nil {
		c.cancel()
	}
	log.Info("Lane consumer stopped")
}

// determineAckNakAction decides the fate of a task based on the processing
// result and delivery metadata.
func determineAckNakAction(
	processingErr error,
	metadata *nats.MsgMetadata,
	maxDeliver int,
	nakBaseDelay time.Duration,
	nakMaxDelay time.Duration,
) (action AckNakAction, delay time.Duration) {

	if processingErr == nil {
		return ActionAck, 0
	}

	isRetryable := apperrors.IsRetryable(processingErr)
	numDelivered := metadata.NumDelivered

	if numDelivered >= uint64(maxDeliver) || !isRetryable {
		return ActionTerm, 0
	}

	attempt := numDelivered
	delay = nakBaseDelay
	if attempt > 1 {
		delay = nakBaseDelay * (1 << (attempt - 1))
	}
	if delay > nakMaxDelay {
		delay = nakMaxDelay
	}
	return ActionNakDelay, delay
}

// handleMessage restores context from the task headers, runs the lane
// handler and acks, naks or terminates based on the result.
func (c *LaneConsumer) handleMessage(msg *nats.Msg) {
	startTime := utils.Now()
	orgID := headerOrgID(msg)

	defer func() {
		observer.ObserveTaskProcessingDuration(c.lane, orgID, time.Since(startTime))

		if r := recover(); r != nil {
			log := logger.FromContext(c.ctx)
			log.Error("[panic] Recovered from panic in lane handler",
				zap.Any("panic", r),
				zap.String("subject", msg.Subject),
				zap.Duration("duration", time.Since(startTime)),
				zap.Stack("stack"),
			)
			observer.IncTasksFailed(c.lane, orgID)
			observer.IncTaskProcessingAction(c.lane, orgID, "panic_nak", "panic")
			if nakErr := msg.Nak(); nakErr != nil {
				log.Error("Failed to NAK message after panic", zap.Error(nakErr))
			}
		}
	}()

	msgCtx := c.ctx
	log := logger.FromContext(msgCtx)

	metadata, err := msg.Metadata()
	if err != nil {
		log.Error("Failed to read message metadata", zap.Error(err))
		observer.IncTaskProcessingAction(c.lane, orgID, "nak_metadata_error", "metadata")
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error("Failed to NAK message", zap.Error(nakErr))
		}
		return
	}

	observer.IncTasksReceived(c.lane, orgID)

	if orgID > 0 {
		msgCtx = tenant.WithOrganizationID(msgCtx, orgID)
	}
	if requestID := msg.Header.Get("Request-Id"); requestID != "" {
		msgCtx = tenant.WithRequestID(msgCtx, requestID)
	}
	log = log.With(
		zap.Int64("organization_id", orgID),
		zap.Uint64("stream_sequence", metadata.Sequence.Stream),
		zap.Uint64("num_delivered", metadata.NumDelivered),
	)
	msgCtx = logger.WithLogger(msgCtx, log)

	processingErr := c.handler(msgCtx, msg.Data)

	// A reschedule is not a failure: the task is simply not due yet.
	var resched *Reschedule
	if errors.As(processingErr, &resched) {
		observer.IncTaskProcessingAction(c.lane, orgID, "nak_reschedule", "none")
		if nakErr := msg.NakWithDelay(resched.Delay); nakErr != nil {
			log.Error("Failed to NAK message for reschedule", zap.Error(nakErr))
		}
		return
	}

	action, nakDelay := determineAckNakAction(processingErr, metadata, c.cfg.MaxDeliver, c.cfg.NakBaseDelay, c.cfg.NakMaxDelay)

	errorType := "none"
	if processingErr != nil {
		errorType = observer.SanitizeErrorType(processingErr.Error())
	}

	switch action {
	case ActionAck:
		log.Info("Successfully processed task", zap.Duration("duration", time.Since(startTime)))
		observer.IncTasksProcessed(c.lane, orgID)
		observer.IncTaskProcessingAction(c.lane, orgID, "ack_success", errorType)
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error("Failed to ACK message after successful processing", zap.Error(ackErr))
		}

	case ActionNakDelay:
		log.Info("NAKing task with delay for redelivery (retryable error)",
			zap.Error(processingErr),
			zap.Uint64("num_delivered", metadata.NumDelivered),
			zap.Int("max_deliver", c.cfg.MaxDeliver),
			zap.Duration("nak_delay", nakDelay),
		)
		observer.IncTasksFailed(c.lane, orgID)
		observer.IncTaskProcessingAction(c.lane, orgID, "nak_retry", errorType)
		if nakErr := msg.NakWithDelay(nakDelay); nakErr != nil {
			log.Error("Failed to NAK message with delay", zap.Error(nakErr))
		}

	case ActionTerm:
		reason := "retry budget spent"
		if !apperrors.IsRetryable(processingErr) {
			reason = "fatal error encountered"
		}
		log.Warn(fmt.Sprintf("Terminating task delivery: %s", reason),
			zap.Error(processingErr),
			zap.Uint64("num_delivered", metadata.NumDelivered),
			zap.Int("max_deliver", c.cfg.MaxDeliver),
		)
		observer.IncTasksFailed(c.lane, orgID)
		observer.IncTaskProcessingAction(c.lane, orgID, "term", errorType)
		if termErr := msg.Term(); termErr != nil {
			log.Error("Failed to TERM message", zap.Error(termErr))
		}
	}
}

func headerOrgID(msg *nats.Msg) int64 {
	if msg.Header == nil {
		return 0
	}
	id, err := strconv.ParseInt(msg.Header.Get("Organization-Id"), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
