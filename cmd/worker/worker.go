package main

import (
	"context"
	"time"

	"github.com/septivank/water-softener-worker/internal/anomaly"
	"github.com/septivank/water-softener-worker/internal/bwt"
	"github.com/septivank/water-softener-worker/internal/config"
	"github.com/septivank/water-softener-worker/internal/db"
	"github.com/septivank/water-softener-worker/internal/mq"
	"github.com/septivank/water-softener-worker/internal/repository"
	"github.com/septivank/water-softener-worker/internal/service"
	"github.com/septivank/water-softener-worker/internal/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func startWorker(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	client *bwt.Client,
	poller *service.Poller,
) (*mq.Consumer, error) {
	// Context for the poll loop and command consumer, cancelled on shutdown
	ctx, cancel := context.WithCancel(context.Background())

	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:       conn,
		Queue:            cfg.RabbitMQ.CommandQueue,
		DLQQueue:         cfg.RabbitMQ.DLQQueue,
		Exchange:         cfg.RabbitMQ.CommandExchange,
		RoutingKey:       cfg.RabbitMQ.CommandRoutingKey,
		PrefetchCount:    cfg.RabbitMQ.PrefetchCount,
		Logger:           logger,
		MessageProcessor: poller.HandlePollRequest,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	// Register lifecycle hooks
	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			logger.Info("starting softener poller",
				zap.String("device_key", cfg.BWT.DeviceKey),
				zap.Int("interval_minutes", cfg.BWT.PollIntervalMinutes))
			if err := consumer.Start(ctx); err != nil {
				return err
			}
			go poller.Run(ctx)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			client.Close()
			if err := consumer.Close(); err != nil {
				logger.Error("failed to close consumer", zap.Error(err))
				return err
			}
			logger.Info("worker stopped gracefully")
			return nil
		},
	})

	return consumer, nil
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *db.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideAnomalyDetector creates a new anomaly detector instance
func ProvideAnomalyDetector(cfg *config.Config) *anomaly.Detector {
	return anomaly.NewDetector(cfg.Anomaly.SpikeThreshold, cfg.Anomaly.MinDataPointsForDetection)
}

// ProvideValidator creates a new validator instance
func ProvideValidator(cfg *config.Config) *validator.Validator {
	return validator.NewValidator(cfg.Validation.DateToleranceDays)
}

// ProvidePublisher creates a new publisher instance
func ProvidePublisher(conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	return mq.NewPublisher(conn, cfg.RabbitMQ.WorkerExchange, logger)
}

// ProvideBWTClient creates the session client for the configured device
func ProvideBWTClient(cfg *config.Config, logger *zap.Logger) *bwt.Client {
	return bwt.NewClient(bwt.Config{
		BaseURL:   cfg.BWT.BaseURL,
		Username:  cfg.BWT.Username,
		Password:  cfg.BWT.Password,
		DeviceKey: cfg.BWT.DeviceKey,
		Timeout:   time.Duration(cfg.BWT.HTTPTimeoutSeconds) * time.Second,
	}, logger)
}

// ProvidePoller creates a new poller service instance
func ProvidePoller(
	client *bwt.Client,
	repo *repository.Repository,
	publisher *mq.Publisher,
	detector *anomaly.Detector,
	validator *validator.Validator,
	cfg *config.Config,
	logger *zap.Logger,
) *service.Poller {
	return service.NewPoller(client, repo, publisher, detector, validator, cfg, logger)
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*db.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL)
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}
