package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/admission"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/cache"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/config"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/healthcheck"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/ingestion"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/jetstream"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/media"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/notifier"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/observer"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/storage"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/usecase"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/webhook"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/utils"
)

func main() {
	// Set timezone to UTC
	time.Local = time.UTC

	// Load configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	metricsEnabled := cfg.Metrics.Enabled
	observer.InitMetrics(metricsEnabled)

	logger.Log.Info("Starting Daisi WA Webhook Pipeline",
		zap.String("environment", cfg.Environment),
		zap.String("nats_url", cfg.NATS.URL),
		zap.Int("webhook_port", cfg.Server.Port),
	)

	// Initialize repositories
	postgresRepo, err := initPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}

	// Initialize JetStream client
	jsClient, err := initJetStreamClient(cfg.NATS.URL)
	if err != nil {
		logger.Log.Fatal("Failed to initialize JetStream client", zap.Error(err))
	}

	// Create repository adapters
	orgRepo := storage.NewOrganizationRepoAdapter(postgresRepo)
	contactRepo := storage.NewContactRepoAdapter(postgresRepo)
	chatRepo := storage.NewChatRepoAdapter(postgresRepo)
	ticketRepo := storage.NewTicketRepoAdapter(postgresRepo)
	templateRepo := storage.NewTemplateRepoAdapter(postgresRepo)
	endpointRepo := storage.NewEndpointRepoAdapter(postgresRepo)

	// Admission gates: inbound ingestion and the auto-reply feature share the
	// usage counter but enforce different plan limits.
	inboundGate := admission.NewGate(orgRepo, admission.InboundMessageLimit, cfg.Admission.RefreshInterval)
	autoReplyGate := admission.NewGate(orgRepo, admission.AutoReplyMessageLimit, cfg.Admission.RefreshInterval)

	dedupCache := cache.NewDedupCache(cfg.Dedup.TTL, cfg.Dedup.MaxEntries)

	// Media collaborators
	graphClient := media.NewGraphClient(cfg.Media.GraphBaseURL, cfg.Media.FetchTimeout)
	localStore := media.NewLocalStore(cfg.Media.LocalDir, cfg.Media.PublicBaseURL)
	s3Store, err := initS3Store(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize bucket storage", zap.Error(err))
	}

	// Notification fan-out pool
	realtime := notifier.NewNATSRealtimePublisher(jsClient.NatsConn())
	eventNotifier, err := notifier.NewNotifier(cfg.Notifier, realtime, endpointRepo, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to initialize notifier pool", zap.Error(err))
	}

	// Lane services
	ingestService := usecase.NewIngestService(orgRepo, contactRepo, chatRepo, dedupCache)
	statusService := usecase.NewStatusService(chatRepo, eventNotifier)
	mediaService := usecase.NewMediaService(orgRepo, chatRepo, graphClient, localStore, s3Store)
	ticketService := usecase.NewTicketService(orgRepo, ticketRepo)
	autoReplyService := usecase.NewAutoReplyService(orgRepo, chatRepo, autoReplyGate, usecase.NopReplyGenerator{})
	accountService := usecase.NewAccountService(orgRepo, templateRepo, inboundGate, autoReplyGate)

	dispatcher := ingestion.NewEffectDispatcher(jsClient, eventNotifier, cfg.NATS.SubjectPrefix, cfg.Webhook.AutoReplyDelay)
	router := ingestion.NewRouter(jsClient, cfg, dispatcher,
		ingestService, statusService, mediaService, ticketService, autoReplyService, accountService)

	setupCtx, setupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := router.Setup(setupCtx); err != nil {
		setupCancel()
		logger.Log.Fatal("Failed to set up task stream and lane consumers", zap.Error(err))
	}
	setupCancel()

	// Health check server
	healthServer := healthcheck.NewServer(strconv.Itoa(cfg.Server.HealthPort), logger.Log)
	healthServer.RegisterCheck("postgres", func(ctx context.Context) error {
		sqlDB, err := postgresRepo.DB().DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	healthServer.RegisterCheck("nats", func(ctx context.Context) error {
		if !jsClient.NatsConn().IsConnected() {
			return fmt.Errorf("nats connection is %s", jsClient.NatsConn().Status())
		}
		return nil
	})
	if metricsEnabled {
		healthServer.RegisterMetricsHandler(promhttp.Handler())
		logger.Log.Info("Metrics endpoint enabled", zap.String("path", "/metrics"), zap.Int("port", cfg.Server.HealthPort))
	} else {
		logger.Log.Info("Metrics endpoint disabled for environment", zap.String("environment", cfg.Environment))
	}
	healthServer.Start()

	// Start lane consumers
	if err := router.Start(); err != nil {
		logger.Log.Fatal("Failed to start lane consumers", zap.Error(err))
	}

	// Public webhook server
	webhookServer := webhook.NewServer(cfg, orgRepo, jsClient, inboundGate)
	sigChan := make(chan os.Signal, 1)
	go func() {
		if err := webhookServer.Run(); err != nil {
			logger.Log.Error("Webhook server failed, initiating shutdown...", zap.Error(err))
			select {
			case sigChan <- syscall.SIGTERM:
			default:
				logger.Log.Warn("Could not send SIGTERM to signal channel immediately")
			}
		}
	}()

	// Wait for termination signal
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", 30*time.Second))

	var wg sync.WaitGroup
	wg.Add(5)

	// Stop the public surface first so no new tasks get queued mid-drain.
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping webhook server")
		start := time.Now()
		if err := webhookServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping webhook server", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] Webhook server stopped", zap.Duration("duration", time.Since(start)))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping webhook server",
			zap.Any("panic", r), zap.ByteString("stack", stack))
		wg.Done()
	})

	// Drain lane consumers
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping lane consumers")
		start := time.Now()
		router.Stop()
		logger.Log.Info("[shutdown] Lane consumers stopped", zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping lane consumers",
			zap.Any("panic", r), zap.ByteString("stack", stack))
		wg.Done()
	})

	// Stop notifier pool
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping notifier pool")
		start := time.Now()
		eventNotifier.Stop()
		logger.Log.Info("[shutdown] Notifier pool stopped", zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping notifier pool",
			zap.Any("panic", r), zap.ByteString("stack", stack))
		wg.Done()
	})

	// Stop health check server
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping health check server")
		start := time.Now()
		if err := healthServer.Stop(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping health check server", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] Health check server stopped", zap.Duration("duration", time.Since(start)))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping health check server",
			zap.Any("panic", r), zap.ByteString("stack", stack))
		wg.Done()
	})

	// Close connections
	utils.SafeGo(func() {
		defer wg.Done()

		logger.Log.Info("[shutdown] Closing PostgreSQL connection")
		pgStart := time.Now()
		if err := postgresRepo.Close(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Failed to close PostgreSQL connection", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] PostgreSQL connection closed", zap.Duration("duration", time.Since(pgStart)))
		}

		logger.Log.Info("[shutdown] Closing JetStream connection")
		jsStart := time.Now()
		jsClient.Close()
		logger.Log.Info("[shutdown] JetStream connection closed", zap.Duration("duration", time.Since(jsStart)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while closing connections",
			zap.Any("panic", r), zap.ByteString("stack", stack))
		wg.Done()
	})

	// Wait with a timeout for all components to shut down
	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Log.Info("[shutdown] All components stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Log.Warn("[shutdown] Graceful shutdown timed out, forcing exit")
	}

	logger.Log.Info("Daisi WA Webhook Pipeline shutdown complete")
}

// Initialize PostgreSQL repository
func initPostgresRepo(dsn string, autoMigrate bool) (*storage.PostgresRepo, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	repo, err := storage.NewPostgresRepo(dsn, autoMigrate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
	}

	logger.Log.Info("Initialized PostgreSQL repository")
	return repo, nil
}

// initJetStreamClient initializes the JetStream client
func initJetStreamClient(url string) (*jetstream.Client, error) {
	client, err := jetstream.NewClient(url)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream client: %w", err)
	}
	return client, nil
}

// initS3Store builds the bucket-backed media store when one is configured.
// Tenants selecting bucket storage fall back to local disk otherwise.
func initS3Store(cfg *config.Config) (media.Store, error) {
	if cfg.S3.Endpoint == "" || cfg.S3.Bucket == "" {
		logger.Log.Info("Bucket storage not configured, media stores to local disk only")
		return nil, nil
	}

	client, err := minio.New(cfg.S3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		Secure: cfg.S3.UseSSL,
		Region: cfg.S3.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket client: %w", err)
	}

	logger.Log.Info("Initialized bucket media storage",
		zap.String("endpoint", cfg.S3.Endpoint),
		zap.String("bucket", cfg.S3.Bucket),
	)
	return media.NewS3Store(client, cfg.S3.Bucket), nil
}
