package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/edu-patrimonio/workorder-service/internal/api/http"
	"github.com/edu-patrimonio/workorder-service/internal/api/http/handlers"
	"github.com/edu-patrimonio/workorder-service/internal/auth"
	"github.com/edu-patrimonio/workorder-service/internal/config"
	"github.com/edu-patrimonio/workorder-service/internal/events"
	"github.com/edu-patrimonio/workorder-service/internal/observability"
	"github.com/edu-patrimonio/workorder-service/internal/persistence"
	"github.com/edu-patrimonio/workorder-service/internal/repository"
	"github.com/edu-patrimonio/workorder-service/internal/service"
	"github.com/edu-patrimonio/workorder-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	deadLetter := persistence.NewDeadLetterQueue(redis.ClientHandle(), cfg.Notification.DeadLetterKey, logger)

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	directoryRepo := repository.NewDirectoryRepository(pool)
	assetEventRepo := repository.NewAssetEventRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	dispatcher := events.NewAsyncDispatcher(logger)

	auditRecorder := service.NewAuditRecorder(assetEventRepo, deadLetter, logger)
	auditRecorder.RegisterHandlers(dispatcher)

	notificationService := service.NewNotificationService(notificationRepo, directoryRepo, deadLetter, logger)
	notificationService.RegisterHandlers(dispatcher)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:    ticketRepo,
		DirectoryRepo: directoryRepo,
		Dispatcher:    dispatcher,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:    ticketRepo,
		DirectoryRepo: directoryRepo,
		Dispatcher:    dispatcher,
	})

	retryWorker := worker.NewRetryWorker(deadLetter, assetEventRepo, notificationRepo, logger,
		cfg.Notification.RetryInterval(), cfg.Notification.RetryMaxAttempts)
	go retryWorker.Run(ctx)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret)
	authMiddleware := auth.NewAuthMiddleware(tokenManager, directoryRepo)

	metrics := observability.NewMetrics()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, deadLetter, metrics),
		Tickets:        handlers.NewTicketsHandler(ticketService, assignmentService),
		Intake:         handlers.NewIntakeHandler(ticketService, directoryRepo),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	if waiter, ok := dispatcher.(events.Waiter); ok {
		waiter.Wait()
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
