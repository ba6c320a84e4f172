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

	httptransport "github.com/spec-kit/guest-requests/internal/api/http"
	"github.com/spec-kit/guest-requests/internal/api/http/handlers"
	"github.com/spec-kit/guest-requests/internal/auth"
	"github.com/spec-kit/guest-requests/internal/config"
	"github.com/spec-kit/guest-requests/internal/events"
	"github.com/spec-kit/guest-requests/internal/notify"
	"github.com/spec-kit/guest-requests/internal/observability"
	"github.com/spec-kit/guest-requests/internal/persistence"
	"github.com/spec-kit/guest-requests/internal/reasons"
	"github.com/spec-kit/guest-requests/internal/repository"
	"github.com/spec-kit/guest-requests/internal/service"
	"github.com/spec-kit/guest-requests/internal/worker"
	"github.com/spec-kit/guest-requests/migrations"
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

	pool := pg.PoolHandle()
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, migrations.Files, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	registry, err := loadRegistry(ctx, cfg, pg, logger)
	if err != nil {
		logger.Fatal("failed to load reason catalog", zap.Error(err))
	}

	var (
		store    repository.TicketStore
		policies repository.SLAPolicyRepository
		staff    repository.StaffDirectory
	)
	if pool != nil {
		store = repository.NewTicketStore(pool)
		policies = repository.NewSLAPolicyRepository(pool)
		staff = repository.NewStaffRepository(pool)
	} else {
		logger.Warn("running on the in-memory ticket store")
		store = repository.NewMemoryTicketStore()
		policies = repository.DefaultSLAPolicies(cfg.SLA.DefaultTargetMinutes)
		staff = repository.NewMemoryStaffDirectory()
	}

	var idempotency repository.IdempotencyStore
	if redis.Enabled() {
		idempotency = repository.NewRedisIdempotencyStore(redis.Client, cfg.App.Name+":idempotency:")
	} else {
		idempotency = repository.NewMemoryIdempotencyStore(time.Now)
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	var sinks []notify.Sink
	if redis.Enabled() {
		sinks = append(sinks, notify.NewRedisPublisher(redis.Client, cfg.Notification.ChannelPrefix))
	}
	if len(cfg.Notification.KafkaBrokers) > 0 {
		exporter := notify.NewAuditExporter(notify.NewKafkaWriter(cfg.Notification.KafkaBrokers, cfg.Notification.KafkaTopic), 5*time.Second)
		defer exporter.Close() //nolint:errcheck
		sinks = append(sinks, exporter)
	}

	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Policies:   policies,
		Registry:   registry,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	slaService := service.NewSLAService(service.SLADependencies{
		Store:    store,
		Tickets:  ticketService,
		Registry: registry,
		Logger:   logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		Store:   store,
		Staff:   staff,
		Tickets: ticketService,
		Logger:  logger,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, metrics, cfg.Notification, sinks...)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(ticketService, metrics),
		Reasons:        handlers.NewReasonsHandler(registry),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Idempotency:    httptransport.IdempotencyMiddleware(idempotency, cfg.App.IdempotencyTTL, logger),
		Metrics:        metrics,
	})

	workersCtx, stopWorkers := context.WithCancel(ctx)
	waitWorkers := worker.Start(workersCtx, worker.Services{
		Assignment:    assignmentService,
		SLA:           slaService,
		Notifications: notificationService,
		Metrics:       metrics,
	}, cfg.SLA, logger)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	stopWorkers()
	waitWorkers()
}

// loadRegistry reads the reason catalog from Postgres when configured and
// falls back to the embedded default catalog.
func loadRegistry(ctx context.Context, cfg *config.Config, pg *persistence.Postgres, logger *zap.Logger) (*reasons.Registry, error) {
	if pg.PoolHandle() == nil || !cfg.Postgres.LoadReasons {
		return reasons.Default()
	}
	catalog, err := repository.NewReasonRepository(pg.PoolHandle()).LoadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("reason catalog loaded",
		zap.Int("block", len(catalog.Block)),
		zap.Int("unblock", len(catalog.Unblock)),
		zap.Int("cancel", len(catalog.Cancel)))
	return reasons.New(catalog)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
