// Command scheduler runs the per-order timer dispatcher (C4): it
// polls the Redis-backed due-order sorted set and hands every fired
// order to the order queue for cmd/processor to pick up, grounded on
// apps/dunning-processor/cmd/main.go's poll-and-dispatch loop shape.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/basesub/subscriptions/internal/config"
	"github.com/basesub/subscriptions/internal/logger"
	"github.com/basesub/subscriptions/internal/scheduler"
	"github.com/basesub/subscriptions/internal/scheduler/orderqueue"
	"github.com/basesub/subscriptions/internal/scheduler/orderqueue/rabbitorderqueue"
	"github.com/basesub/subscriptions/internal/scheduler/orderqueue/sqsorderqueue"
	"github.com/basesub/subscriptions/internal/scheduler/redisalarm"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

const (
	pollInterval = 2 * time.Second
	pollBatch    = 50
)

func main() {
	stage := config.Stage(envOr("STAGE", string(config.StageLocal)))
	logger.InitLogger(string(stage))
	defer logger.RecoverPanic()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, stage)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	if err := logger.InitSentry(cfg.SentryDSN, string(stage), os.Getenv("RELEASE")); err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	sched := redisalarm.New(redisClient)

	orderQ, err := newOrderQueue(ctx, stage, cfg)
	if err != nil {
		logger.Fatal("failed to build order queue", zap.Error(err))
	}

	handler := scheduler.Handler(func(ctx context.Context, due scheduler.DueOrder) error {
		return orderQ.Enqueue(ctx, orderqueue.FromDueOrder(due))
	})

	dispatcher := redisalarm.NewDispatcher(sched, handler, pollInterval, pollBatch)
	logger.Info("scheduler dispatcher starting", zap.Duration("interval", pollInterval), zap.Int64("batch", pollBatch))
	dispatcher.Run(ctx)
	logger.Info("scheduler dispatcher stopped")
}

func newOrderQueue(ctx context.Context, stage config.Stage, cfg *config.Config) (orderqueue.Queue, error) {
	if stage == config.StageLocal {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return nil, err
		}
		return rabbitorderqueue.New(conn, cfg.RabbitMQOrderQueueName)
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return sqsorderqueue.New(sqs.NewFromConfig(awsCfg), cfg.OrderQueueURL), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
