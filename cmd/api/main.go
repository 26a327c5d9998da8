package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/maintenance-ticket-service/internal/api/http"
	"github.com/spec-kit/maintenance-ticket-service/internal/api/http/handlers"
	"github.com/spec-kit/maintenance-ticket-service/internal/auth"
	"github.com/spec-kit/maintenance-ticket-service/internal/config"
	"github.com/spec-kit/maintenance-ticket-service/internal/events"
	"github.com/spec-kit/maintenance-ticket-service/internal/notify"
	"github.com/spec-kit/maintenance-ticket-service/internal/observability"
	"github.com/spec-kit/maintenance-ticket-service/internal/persistence"
	"github.com/spec-kit/maintenance-ticket-service/internal/repository"
	"github.com/spec-kit/maintenance-ticket-service/internal/service"
	"github.com/spec-kit/maintenance-ticket-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	areaRepo := repository.NewAreaRepository(pool)
	personRepo := repository.NewPersonRepository(pool)
	approvalRepo := repository.NewApprovalRepository(pool)
	imageRepo := repository.NewImageRepository(pool)

	approvals := service.NewApprovalService(approvalRepo)

	dispatchOpts := []events.Option{
		events.WithDrainTimeout(cfg.Events.DrainTimeout()),
		events.WithMetrics(metrics),
	}
	var (
		dispatcher events.Dispatcher
		queue      *persistence.Redis
	)
	switch cfg.Events.Backend {
	case config.EventBackendRedis:
		queue, err = persistence.NewEventQueueRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect event queue", zap.Error(err))
		}
		defer queue.Close()
		dispatcher = events.NewRedisDispatcher(queue.Client, cfg.Events.QueueKey, cfg.Events.Workers, logger.Named("events"), dispatchOpts...)
	default:
		dispatcher = events.NewInMemoryDispatcher(cfg.Events.BufferSize, cfg.Events.Workers, logger.Named("events"), dispatchOpts...)
	}

	var emailSender notify.EmailSender
	if sender := notify.NewSMTPSender(cfg.Notification); sender != nil {
		emailSender = sender
	} else {
		logger.Warn("email channel disabled: NOTIFY_SMTP_HOST not set")
	}
	var chatPusher notify.ChatPusher
	if client := notify.NewChatClient(cfg.Notification.ChatAPIBaseURL, cfg.Notification.ChatAccessToken, cfg.Notification.DeliveryTimeout()); client != nil {
		chatPusher = client
	} else {
		logger.Warn("chat channel disabled: NOTIFY_CHAT_ACCESS_TOKEN not set")
	}

	notificationService := service.NewNotificationService(service.NotificationDependencies{
		PersonRepo: personRepo,
		ImageRepo:  imageRepo,
		Approvals:  approvals,
		Email:      emailSender,
		Chat:       chatPusher,
		Metrics:    metrics,
		Logger:     logger.Named("notify"),
		Options:    service.NotificationOptionsFromConfig(cfg.Notification),
	})
	workflowService := service.NewWorkflowService(service.WorkflowDependencies{
		TicketRepo:  ticketRepo,
		HistoryRepo: historyRepo,
		CommentRepo: commentRepo,
		AreaRepo:    areaRepo,
		PersonRepo:  personRepo,
		Approvals:   approvals,
		Publisher:   dispatcher,
		Metrics:     metrics,
		Logger:      logger.Named("workflow"),
	})

	workerDone := worker.StartNotificationWorker(ctx, dispatcher, notificationService, logger.Named("worker"))

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, personRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, readinessDependencies(pg, queue)...)
	ticketsHandler := handlers.NewTicketsHandler(workflowService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Tickets:        ticketsHandler,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// Handlers keep running on the drain budget after cancel.
	cancel()
	<-workerDone
}

// readinessDependencies lists what /health/ready checks. Redis only matters
// when it carries the event queue.
func readinessDependencies(db handlers.Pinger, queue *persistence.Redis) []handlers.Dependency {
	deps := []handlers.Dependency{{Name: "postgres", Pinger: db}}
	if queue != nil {
		deps = append(deps, handlers.Dependency{Name: "redis", Pinger: queue})
	}
	return deps
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
