package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/eventline/comms-engine/internal/config"
	"github.com/eventline/comms-engine/internal/domain"
	"github.com/eventline/comms-engine/internal/infra/postgresql"
	"github.com/eventline/comms-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/eventline/comms-engine/internal/infra/redis"
	"github.com/eventline/comms-engine/internal/observability"
	"github.com/eventline/comms-engine/internal/provider"
	"github.com/eventline/comms-engine/internal/queue"
	"github.com/eventline/comms-engine/internal/repository"
	"github.com/eventline/comms-engine/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
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
	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.DispatchConcurrency, logger)

	campaignRepo := repository.NewGormCampaignRepo(db)
	recordRepo := repository.NewGormRecordRepo(db)

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter init failed", zap.Error(err))
	}

	mailAdapter, err := provider.NewMailRelayAdapter(cfg.MailRelayURL)
	if err != nil {
		logger.Fatal("mail relay adapter init failed", zap.Error(err))
	}
	adapters := map[domain.Channel]provider.Adapter{
		domain.ChannelEmail: mailAdapter,
	}

	metrics := observability.NewMetrics()

	stats, err := service.NewStatsAggregator(campaignRepo, recordRepo, logger)
	if err != nil {
		logger.Fatal("stats aggregator init failed", zap.Error(err))
	}

	worker, err := service.NewDispatchWorker(
		campaignRepo,
		recordRepo,
		adapters,
		limiter,
		consumer,
		stats,
		cfg.DispatchConcurrency,
		cfg.SendTimeout(),
		logger,
	)
	if err != nil {
		logger.Fatal("dispatch worker init failed", zap.Error(err))
	}
	worker.SetMetrics(metrics)

	sweeper, err := service.NewReconciliationSweeper(
		recordRepo,
		publisher,
		cfg.SweepInterval(),
		cfg.StalePendingAfter(),
		logger,
	)
	if err != nil {
		logger.Fatal("sweeper init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Start(gctx)
	})
	g.Go(func() error {
		return sweeper.Start(gctx)
	})

	logger.Info("comms-engine worker started",
		zap.Int("concurrency", cfg.DispatchConcurrency),
		zap.Duration("sweepInterval", cfg.SweepInterval()),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("worker terminated", zap.Error(err))
	}
	logger.Info("worker stopped")
}
