package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/hitl-service/internal/ai"
	httptransport "github.com/spec-kit/hitl-service/internal/api/http"
	"github.com/spec-kit/hitl-service/internal/api/http/handlers"
	"github.com/spec-kit/hitl-service/internal/auth"
	"github.com/spec-kit/hitl-service/internal/config"
	"github.com/spec-kit/hitl-service/internal/notify"
	"github.com/spec-kit/hitl-service/internal/observability"
	"github.com/spec-kit/hitl-service/internal/persistence"
	"github.com/spec-kit/hitl-service/internal/repository"
	"github.com/spec-kit/hitl-service/internal/service"
	"github.com/spec-kit/hitl-service/internal/worker"
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

	pool := pg.PoolHandle()
	caseRepo := repository.NewCaseRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	operatorRepo := repository.NewOperatorRepository(pool)

	broker := notify.NewBroker(logger)
	relay := notify.NewRelay(redis.Client, broker, logger)
	worker.StartChangeRelay(ctx, relay)

	caseService := service.NewCaseService(service.CaseDependencies{
		CaseRepo:    caseRepo,
		MessageRepo: messageRepo,
		Broker:      broker,
		Logger:      logger,
	})

	var provider ai.CompletionProvider
	if cfg.AI.Configured() {
		provider = ai.NewOpenAIProvider(cfg.AI)
		logger.Info("completion provider configured", zap.String("model", cfg.AI.Model))
	} else {
		logger.Warn("no completion provider configured; auto-responses disabled")
	}
	responder := service.NewAutoResponder(service.AutoResponderDependencies{
		CaseRepo:    caseRepo,
		MessageRepo: messageRepo,
		CaseService: caseService,
		Provider:    provider,
		Logger:      logger,
	})

	operatorService := service.NewOperatorService(cfg.Auth, operatorRepo)

	changeLogger := service.NewChangeLogger(broker, logger, cfg.Notification)
	worker.StartChangeLogger(ctx, changeLogger)
	defer changeLogger.Close()

	guard := auth.NewGuard(auth.NewMachineKeyValidator(cfg.Auth.MachineAPIKey), logger)
	session := auth.NewSessionMiddleware(operatorService.TokenManager(), operatorRepo)

	metrics := observability.NewMetrics()
	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:    handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, cfg, pg, redis),
		Cases:     handlers.NewCasesHandler(caseService, responder),
		Operators: handlers.NewOperatorsHandler(operatorService),
		Stream:    handlers.NewStreamHandler(caseRepo, messageRepo, broker, logger),
		Guard:     guard,
		Session:   session,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
