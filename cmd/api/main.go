package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/eventline/comms-engine/internal/config"
	"github.com/eventline/comms-engine/internal/handler"
	"github.com/eventline/comms-engine/internal/infra/postgresql"
	"github.com/eventline/comms-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/eventline/comms-engine/internal/infra/redis"
	"github.com/eventline/comms-engine/internal/observability"
	"github.com/eventline/comms-engine/internal/queue"
	"github.com/eventline/comms-engine/internal/repository"
	"github.com/eventline/comms-engine/internal/service"
	"github.com/eventline/comms-engine/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rabbit.Close()
	publisher := queue.NewRabbitMQPublisher(rabbit)

	campaignStore := repository.NewGormCampaignStore(db)
	campaignRepo := repository.NewGormCampaignRepo(db)
	recordRepo := repository.NewGormRecordRepo(db)
	eventRepo := repository.NewGormEventRepo(db)

	metrics := observability.NewMetrics()

	campaignService, err := service.NewCampaignService(campaignStore, campaignRepo, recordRepo, publisher, logger)
	if err != nil {
		logger.Fatal("campaign service init failed", zap.Error(err))
	}
	campaignService.SetMetrics(metrics)

	retryCoordinator, err := service.NewRetryCoordinator(campaignRepo, recordRepo, publisher, logger)
	if err != nil {
		logger.Fatal("retry coordinator init failed", zap.Error(err))
	}
	retryCoordinator.SetMetrics(metrics)

	authorizer, err := service.NewGrantAuthorizer(eventRepo)
	if err != nil {
		logger.Fatal("authorizer init failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, handler.PostgresCheck(sqlDB), handler.RedisCheck(rdb))
	if err := handler.RegisterCampaignRoutes(app, campaignService, retryCoordinator, authorizer); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()
	logger.Info("comms-engine api started", zap.Int("port", cfg.APIPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := app.Shutdown(); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
}
