package ingestion

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/notifier"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/observer"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/tenant"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/webhook"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/utils"
)

// EffectDispatcher turns the follow-up commands returned by the processing
// services into lane tasks and realtime notifications. Publishing failures on
// one effect do not stop the remaining effects; the first failure is returned
// so the originating task gets redelivered.
type EffectDispatcher struct {
	publisher      webhook.Publisher
	notifier       notifier.INotifier
	subjectPrefix  string
	autoReplyDelay time.Duration
}

func NewEffectDispatcher(publisher webhook.Publisher, ntf notifier.INotifier, subjectPrefix string, autoReplyDelay time.Duration) *EffectDispatcher {
	return &EffectDispatcher{
		publisher:      publisher,
		notifier:       ntf,
		subjectPrefix:  subjectPrefix,
		autoReplyDelay: autoReplyDelay,
	}
}

// Dispatch fans the effects out to their lanes.
func (d *EffectDispatcher) Dispatch(ctx context.Context, effects []model.Effect) error {
	var firstErr error
	for _, effect := range effects {
		if err := d.dispatchOne(ctx, effect); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (d *EffectDispatcher) dispatchOne(ctx context.Context, effect model.Effect) error {
	log := logger.FromContext(ctx)

	switch effect.Kind {
	case model.EffectFetchMedia:
		return d.publishTask(ctx, model.LaneMedia, effect.Media.OrganizationID, effect.Media)

	case model.EffectAssignTicket:
		return d.publishTask(ctx, model.LaneTickets, effect.Ticket.OrganizationID, effect.Ticket)

	case model.EffectScheduleAutoReply:
		task := *effect.AutoReply
		if task.NotBefore.IsZero() {
			task.NotBefore = utils.Now().Add(d.autoReplyDelay)
		}
		return d.publishTask(ctx, model.LaneAutoReplies, task.OrganizationID, task)

	case model.EffectNotifyReceived:
		task := notifier.NotificationTask{
			Ctx:   tenant.WithOrganizationID(context.Background(), effect.Notify.OrganizationID),
			OrgID: effect.Notify.OrganizationID,
			Event: notifier.EventMessageReceived,
			Payload: map[string]interface{}{
				"chat_id":    effect.Notify.ChatID,
				"contact_id": effect.Notify.ContactID,
			},
		}
		if err := d.notifier.Submit(task); err != nil {
			log.Error("Failed to submit received notification", zap.Error(err))
		}
		return nil

	default:
		log.Warn("Skipping effect with unknown kind", zap.String("kind", string(effect.Kind)))
		return nil
	}
}

func (d *EffectDispatcher) publishTask(ctx context.Context, lane string, orgID int64, task interface{}) error {
	log := logger.FromContext(ctx)
	subject := fmt.Sprintf("%s.%s", d.subjectPrefix, lane)

	headers := map[string]string{
		"Organization-Id": strconv.FormatInt(orgID, 10),
	}
	if requestID, err := tenant.FromRequestIDContext(ctx); err == nil {
		headers["Request-Id"] = requestID
	}

	if err := d.publisher.Publish(subject, utils.MustMarshalJSON(task), headers); err != nil {
		log.Error("Failed to publish effect task",
			zap.String("lane", lane),
			zap.Error(err),
		)
		observer.IncTasksFailed(lane, orgID)
		return err
	}
	return nil
}
