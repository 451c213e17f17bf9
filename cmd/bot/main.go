package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-bot/internal/api/http"
	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/clock"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/platform/discord"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/store"
	"github.com/spec-kit/ticket-bot/internal/worker"
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

	metrics := observability.NewMetrics()
	tickets := store.NewTicketStore()
	clk := clock.NewSystem()

	var redis *persistence.Redis
	var guard store.CooldownGuard
	if cfg.Redis.Addr != "" {
		redis = persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		guard = store.NewRedisCooldown(redis.Client, cfg.Ticket.CooldownWindow())
	} else {
		guard = store.NewMemoryCooldown(clk, cfg.Ticket.CooldownWindow())
	}

	dispatcher := events.NewInMemoryDispatcher()
	auditService := service.NewAuditService(dispatcher, logger)
	worker.StartAuditWorker(auditService)

	session, err := discord.NewSession(cfg.Gateway)
	if err != nil {
		logger.Fatal("failed to create gateway session", zap.Error(err))
	}
	if err := session.Open(); err != nil {
		logger.Fatal("failed to connect gateway", zap.Error(err))
	}
	defer session.Close()

	adapter := discord.NewAdapter(session, cfg.Gateway)

	lifecycle := service.NewTicketLifecycle(service.LifecycleDependencies{
		Store:         tickets,
		Guard:         guard,
		Conversations: adapter,
		Messages:      adapter,
		Users:         adapter,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Logger:        logger,
		Clock:         clk,
		ParentID:      cfg.Gateway.TicketParentID,
		LogChannelID:  cfg.Gateway.LogChannelID,
		ManagerRoleID: cfg.Gateway.ManagerRoleID,
		HistoryLimit:  cfg.Ticket.HistoryFetchLimit,
		DeleteGrace:   cfg.Ticket.DeleteGrace(),
	})
	arbiter := service.NewClaimArbiter(service.ArbiterDependencies{
		Store:         tickets,
		Roles:         adapter,
		Messages:      adapter,
		Conversations: adapter,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Logger:        logger,
	})
	scanner := service.NewRecoveryScanner(service.ScannerDependencies{
		Store:         tickets,
		Conversations: adapter,
		Messages:      adapter,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Logger:        logger,
		ParentID:      cfg.Gateway.TicketParentID,
		SelfID:        adapter.SelfID(),
	})

	// The store must be rebuilt before any claim or close can arrive; the
	// gateway registers its interaction handlers only once this returns.
	if err := scanner.Rebuild(ctx); err != nil {
		logger.Error("recovery scan failed, continuing with empty store", zap.Error(err))
	}

	gateway := discord.NewGateway(session, cfg.Gateway, lifecycle, arbiter, logger)
	if err := gateway.Start(ctx); err != nil {
		logger.Fatal("failed to start gateway glue", zap.Error(err))
	}

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger)
	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, tickets, metrics, redis, func() bool {
		return session.DataReady
	})
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{Health: healthHandler})

	go func() {
		if err := app.Listen(cfg.App.HealthAddr); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	logger.Info("ticket bot running",
		zap.String("guild_id", cfg.Gateway.GuildID),
		zap.String("health_addr", cfg.App.HealthAddr))

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
