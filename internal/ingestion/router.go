package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/apperrors"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/config"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/jetstream"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/utils"
)

// MessageProcessor ingests one inbound message and returns follow-up effects.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, task model.IngestTask) ([]model.Effect, error)
}

// StatusProcessor applies one delivery status update.
type StatusProcessor interface {
	ProcessStatus(ctx context.Context, task model.StatusTask) error
}

// MediaProcessor fetches and stores one media attachment, returning the
// deferred received notification once the attachment is linked.
type MediaProcessor interface {
	ProcessMedia(ctx context.Context, task model.MediaTask) ([]model.Effect, error)
}

// TicketProcessor opens or reopens the ticket for a contact.
type TicketProcessor interface {
	AssignTicket(ctx context.Context, task model.TicketTask) error
}

// AutoReplyProcessor sends the automatic reply for a chat.
type AutoReplyProcessor interface {
	SendAutoReply(ctx context.Context, task model.AutoReplyTask) error
}

// AccountProcessor applies template status and account field updates.
type AccountProcessor interface {
	ProcessAccountUpdate(ctx context.Context, task model.AccountTask) error
}

// Router owns the task stream and the six lane consumers.
type Router struct {
	client     jetstream.ClientInterface
	cfg        *config.Config
	dispatcher *EffectDispatcher
	consumers  []*LaneConsumer
}

// NewRouter builds the lane consumers around the processing services.
func NewRouter(
	client jetstream.ClientInterface,
	cfg *config.Config,
	dispatcher *EffectDispatcher,
	messages MessageProcessor,
	status StatusProcessor,
	media MediaProcessor,
	tickets TicketProcessor,
	autoReplies AutoReplyProcessor,
	account AccountProcessor,
) *Router {
	r := &Router{
		client:     client,
		cfg:        cfg,
		dispatcher: dispatcher,
	}

	r.addConsumer(model.LaneMessages, cfg.NATS.Messages, r.messagesHandler(messages))
	r.addConsumer(model.LaneStatus, cfg.NATS.Status, statusHandler(status))
	r.addConsumer(model.LaneMedia, cfg.NATS.Media, r.mediaHandler(media))
	r.addConsumer(model.LaneTickets, cfg.NATS.Tickets, ticketsHandler(tickets))
	r.addConsumer(model.LaneAutoReplies, cfg.NATS.Autoreplies, autoRepliesHandler(autoReplies))
	r.addConsumer(model.LaneAccount, cfg.NATS.Account, accountHandler(account))

	return r
}

func (r *Router) addConsumer(lane string, laneCfg config.LaneConfig, handler LaneHandler) {
	subject := fmt.Sprintf("%s.%s", r.cfg.NATS.SubjectPrefix, lane)
	r.consumers = append(r.consumers, NewLaneConsumer(r.client, r.cfg.NATS.Stream, subject, lane, laneCfg, handler))
}

// Setup ensures the task stream and every lane's durable consumer exist.
func (r *Router) Setup(ctx context.Context) error {
	streamCfg := &nats.StreamConfig{
		Name:      r.cfg.NATS.Stream,
		Subjects:  []string{fmt.Sprintf("%s.>", r.cfg.NATS.SubjectPrefix)},
		Retention: nats.LimitsPolicy,
		MaxAge:    time.Duration(r.cfg.NATS.MaxAgeDays) * 24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if err := r.client.SetupStream(ctx, streamCfg); err != nil {
		return fmt.Errorf("failed to setup task stream '%s': %w", r.cfg.NATS.Stream, err)
	}

	for _, consumer := range r.consumers {
		if err := consumer.Setup(); err != nil {
			return err
		}
	}
	return nil
}

// Start subscribes every lane consumer.
func (r *Router) Start() error {
	for _, consumer := range r.consumers {
		if err := consumer.Start(); err != nil {
			return err
		}
	}
	logger.Log.Info("All lane consumers started", zap.Int("lanes", len(r.consumers)))
	return nil
}

// Stop drains every lane consumer.
func (r *Router) Stop() {
	for _, consumer := range r.consumers {
		consumer.Stop()
	}
}

func (r *Router) messagesHandler(svc MessageProcessor) LaneHandler {
	return func(ctx context.Context, data []byte) error {
		var task model.IngestTask
		if err := json.Unmarshal(data, &task); err != nil {
			return apperrors.NewFatal(apperrors.ErrMalformedPayload, "failed to decode ingest task")
		}
		effects, err := svc.ProcessMessage(ctx, task)
		if err != nil {
			return err
		}
		return r.dispatcher.Dispatch(ctx, effects)
	}
}

func statusHandler(svc StatusProcessor) LaneHandler {
	return func(ctx context.Context, data []byte) error {
		var task model.StatusTask
		if err := json.Unmarshal(data, &task); err != nil {
			return apperrors.NewFatal(apperrors.ErrMalformedPayload, "failed to decode status task")
		}
		return svc.ProcessStatus(ctx, task)
	}
}

func (r *Router) mediaHandler(svc MediaProcessor) LaneHandler {
	return func(ctx context.Context, data []byte) error {
		var task model.MediaTask
		if err := json.Unmarshal(data, &task); err != nil {
			return apperrors.NewFatal(apperrors.ErrMalformedPayload, "failed to decode media task")
		}
		effects, err := svc.ProcessMedia(ctx, task)
		if err != nil {
			return err
		}
		return r.dispatcher.Dispatch(ctx, effects)
	}
}

func ticketsHandler(svc TicketProcessor) LaneHandler {
	return func(ctx context.Context, data []byte) error {
		var task model.TicketTask
		if err := json.Unmarshal(data, &task); err != nil {
			return apperrors.NewFatal(apperrors.ErrMalformedPayload, "failed to decode ticket task")
		}
		return svc.AssignTicket(ctx, task)
	}
}

func autoRepliesHandler(svc AutoReplyProcessor) LaneHandler {
	return func(ctx context.Context, data []byte) error {
		var task model.AutoReplyTask
		if err := json.Unmarshal(data, &task); err != nil {
			return apperrors.NewFatal(apperrors.ErrMalformedPayload, "failed to decode auto reply task")
		}
		if remaining := task.NotBefore.Sub(utils.Now()); remaining > 0 {
			return &Reschedule{Delay: remaining}
		}
		if err := svc.SendAutoReply(ctx, task); err != nil {
			// One send attempt only: a redelivered reply could message the
			// customer twice. The lane's delivery budget exists for the
			// settle-delay reschedules, not for retrying sends, so the
			// retryable wrapper is flattened out of the chain.
			if apperrors.IsRetryable(err) {
				return apperrors.NewFatal(apperrors.ErrUpstream, "auto reply send attempt failed: %v", err)
			}
			return err
		}
		return nil
	}
}

func accountHandler(svc AccountProcessor) LaneHandler {
	return func(ctx context.Context, data []byte) error {
		var task model.AccountTask
		if err := json.Unmarshal(data, &task); err != nil {
			return apperrors.NewFatal(apperrors.ErrMalformedPayload, "failed to decode account task")
		}
		return svc.ProcessAccountUpdate(ctx, task)
	}
}
