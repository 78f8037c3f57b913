package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/admission"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/config"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/observer"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/storage"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/tenant"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/utils"
)

// notificationObject is the only top-level object this pipeline ingests.
const notificationObject = "whatsapp_business_account"

// Publisher queues lane tasks. Satisfied by the JetStream client.
type Publisher interface {
	Publish(subject string, data []byte, headers map[string]string) error
}

// Server is the webhook HTTP surface: the subscription handshake and the
// notification intake. The intake verifies, classifies and queues; all
// processing happens on the lanes.
type Server struct {
	cfg       *config.Config
	engine    *gin.Engine
	orgs      storage.OrganizationRepo
	publisher Publisher
	gate      *admission.Gate
	srv       *http.Server
}

// NewServer creates the webhook server and registers its routes.
func NewServer(cfg *config.Config, orgs storage.OrganizationRepo, publisher Publisher, gate *admission.Gate) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:       cfg,
		engine:    gin.New(),
		orgs:      orgs,
		publisher: publisher,
		gate:      gate,
	}

	s.engine.Use(gin.Recovery())
	s.engine.GET("/webhook/whatsapp/:identifier", s.handleVerification)
	s.engine.POST("/webhook/whatsapp/:identifier", s.handleNotification)

	return s
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP listener and blocks until it stops.
func (s *Server) Run() error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Log.Info("Webhook server listening", zap.Int("port", s.cfg.Server.Port))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("webhook server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// handleVerification answers the Cloud API subscription handshake: echo the
// challenge when the verify token matches, refuse otherwise.
func (s *Server) handleVerification(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == s.cfg.Webhook.VerifyToken {
		c.String(http.StatusOK, challenge)
		return
	}

	logger.Log.Warn("Webhook verification refused",
		zap.String("identifier", c.Param("identifier")),
		zap.String("mode", mode))
	c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
}

// handleNotification is the intake path. Order matters: resolve the
// organization, verify the signature when the tenant configured an app
// secret, then parse. Nothing is queued before the signature checks out.
// The Cloud API only cares about 200 vs not, so processable payloads always
// get 200 with a status body.
func (s *Server) handleNotification(c *gin.Context) {
	start := time.Now()
	identifier := c.Param("identifier")

	requestID := uuid.NewString()
	ctx := tenant.WithRequestID(c.Request.Context(), requestID)
	log := logger.FromContext(ctx).With(zap.String("identifier", identifier))
	ctx = logger.WithLogger(ctx, log)

	outcome := "success"
	defer func() {
		observer.IncWebhookRequest(identifier, outcome)
		observer.ObserveWebhookRequestDuration(identifier, outcome, time.Since(start))
	}()

	body, err := c.GetRawData()
	if err != nil {
		outcome = "malformed"
		log.Warn("Failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	org, err := s.orgs.FindByIdentifier(ctx, identifier)
	if err != nil {
		outcome = "forbidden"
		log.Warn("Webhook for unknown organization", zap.Error(err))
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	orgCtx := org.Context()
	if !orgCtx.HasWhatsAppConfig() {
		outcome = "forbidden"
		log.Warn("Webhook for organization without WhatsApp credentials",
			zap.Int64("organization_id", orgCtx.ID))
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	ctx = tenant.WithOrganizationID(ctx, orgCtx.ID)
	log = log.With(zap.Int64("organization_id", orgCtx.ID))
	ctx = logger.WithLogger(ctx, log)

	// Tenants without an app secret receive unsigned deliveries.
	if secret := orgCtx.Meta.WhatsApp.AppSecret; secret != "" {
		if err := VerifySignature(secret, body, c.GetHeader("X-Hub-Signature-256")); err != nil {
			outcome = "forbidden"
			log.Warn("Webhook signature rejected", zap.Error(err))
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
	}

	var notification model.Notification
	if err := json.Unmarshal(body, &notification); err != nil || notification.Object != notificationObject {
		outcome = "ignored"
		log.Info("Ignoring unprocessable webhook payload",
			zap.String("object", notification.Object),
			zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	s.dispatch(ctx, orgCtx, notification)

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// dispatch walks every entry and change in the batch and queues lane tasks.
// One bad change never blocks its siblings.
func (s *Server) dispatch(ctx context.Context, org model.OrgContext, notification model.Notification) {
	log := logger.FromContext(ctx)

	for _, entry := range notification.Entry {
		for _, change := range entry.Changes {
			switch Classify(change) {
			case model.KindMessages:
				s.dispatchMessages(ctx, org, change.Value)

			case model.KindTemplateStatus, model.KindAccountUpdate:
				task := model.AccountTask{
					OrganizationID: org.ID,
					Field:          change.Field,
					Value:          change.Value,
				}
				s.publish(ctx, model.LaneAccount, utils.MustMarshalJSON(task), org.ID)

			default:
				log.Info("Acknowledging unhandled webhook field",
					zap.String("field", change.Field),
					zap.String("entry_id", entry.ID))
			}
		}
	}
}

// dispatchMessages queues inbound messages and delivery statuses from one
// change value. Inbound messages pass the admission gate first.
func (s *Server) dispatchMessages(ctx context.Context, org model.OrgContext, value model.ChangeValue) {
	for _, raw := range value.Messages {
		if !s.gate.Allow(ctx, org) {
			continue
		}
		task := model.IngestTask{
			OrganizationID: org.ID,
			RawMessage:     raw,
			Contacts:       value.Contacts,
		}
		s.publish(ctx, model.LaneMessages, utils.MustMarshalJSON(task), org.ID)
	}

	for _, raw := range value.Statuses {
		task := model.StatusTask{
			OrganizationID: org.ID,
			RawStatus:      raw,
		}
		s.publish(ctx, model.LaneStatus, utils.MustMarshalJSON(task), org.ID)
	}
}

func (s *Server) publish(ctx context.Context, lane string, data []byte, orgID int64) {
	subject := fmt.Sprintf("%s.%s", s.cfg.NATS.SubjectPrefix, lane)
	headers := map[string]string{
		"Organization-Id": strconv.FormatInt(orgID, 10),
	}
	if requestID, err := tenant.FromRequestIDContext(ctx); err == nil {
		headers["Request-Id"] = requestID
	}

	if err := s.publisher.Publish(subject, data, headers); err != nil {
		logger.FromContext(ctx).Error("Failed to queue lane task",
			zap.String("subject", subject),
			zap.Error(err))
		observer.IncTasksFailed(lane, orgID)
	}
}
