// Command processor runs the order-processing pipeline (C5): it
// consumes fired order timers and drives OrderProcessor.ProcessOrder.
//
// Grounded on apps/subscription-processor/cmd/main.go's
// Application-struct/HandleRequest-vs-LocalHandleRequest split: the
// local deployment runs a standing RabbitMQ consumer loop, the
// deployed stages run as a Lambda triggered by an SQS event source
// mapping on the order queue.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/basesub/subscriptions/internal/config"
	"github.com/basesub/subscriptions/internal/logger"
	"github.com/basesub/subscriptions/internal/processor"
	"github.com/basesub/subscriptions/internal/provider"
	"github.com/basesub/subscriptions/internal/provider/baseprovider"
	"github.com/basesub/subscriptions/internal/scheduler/orderqueue"
	"github.com/basesub/subscriptions/internal/scheduler/orderqueue/rabbitorderqueue"
	"github.com/basesub/subscriptions/internal/scheduler/redisalarm"
	"github.com/basesub/subscriptions/internal/store/postgres"
	"github.com/basesub/subscriptions/internal/webhook"
	"github.com/basesub/subscriptions/internal/webhook/queue"
	"github.com/basesub/subscriptions/internal/webhook/queue/rabbitqueue"
	"github.com/basesub/subscriptions/internal/webhook/queue/sqsqueue"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

// Application holds the processor's dependencies, following the
// teacher's Lambda-cold-start-once, warm-invocation-many pattern.
type Application struct {
	processor *processor.Processor
}

// HandleOrderMessage processes one decoded order message; both the
// Lambda SQS handler and the local RabbitMQ consumer funnel through
// this single entry point.
func (app *Application) HandleOrderMessage(ctx context.Context, m orderqueue.Message) error {
	result, err := app.processor.ProcessOrder(ctx, m.OrderID)
	if err != nil {
		logger.Error("processor: order processing failed", zap.Int64("order_id", m.OrderID), zap.Error(err))
		return err
	}
	if result.IsUpstreamError {
		logger.Warn("processor: upstream error, leaving message for redelivery", zap.Int64("order_id", m.OrderID))
		return fmt.Errorf("order %d: upstream service error", m.OrderID)
	}
	logger.Info("processor: order processed",
		zap.Int64("order_id", m.OrderID),
		zap.Bool("success", result.Success),
		zap.String("status", string(result.SubscriptionStatus)),
	)
	return nil
}

// HandleSQSEvent is the Lambda entry point for the dev/prod
// deployment, wired via an SQS event source mapping on the order
// queue.
func (app *Application) HandleSQSEvent(ctx context.Context, event events.SQSEvent) error {
	for _, record := range event.Records {
		m, err := orderqueue.Unmarshal([]byte(record.Body))
		if err != nil {
			logger.Error("processor: malformed sqs message, dropping", zap.String("message_id", record.MessageId), zap.Error(err))
			continue
		}
		if err := app.HandleOrderMessage(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	stage := config.Stage(envOr("STAGE", string(config.StageLocal)))
	logger.InitLogger(string(stage))
	defer logger.RecoverPanic()
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	cfg, err := config.Load(ctx, stage)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	if err := logger.InitSentry(cfg.SentryDSN, string(stage), os.Getenv("RELEASE")); err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
	}

	pool, err := postgres.Connect(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	st := postgres.NewStore(pool)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	sched := redisalarm.New(redisClient)

	baseProvider := baseprovider.New("base", cfg.BaseProviderURL, cfg.BaseProviderAPIKey)
	providers := map[string]provider.SubscriptionProvider{"base": baseProvider}

	webhookQueue, err := newWebhookQueue(ctx, stage, cfg)
	if err != nil {
		logger.Fatal("failed to build webhook queue", zap.Error(err))
	}
	outbox := webhook.New(st, webhookQueue, logger.Log)

	app := &Application{processor: processor.New(st, providers, sched, outbox)}

	if stage == config.StageLocal {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal("failed to dial rabbitmq", zap.Error(err))
		}
		orderQ, err := rabbitorderqueue.New(conn, cfg.RabbitMQOrderQueueName)
		if err != nil {
			logger.Fatal("failed to declare order queue", zap.Error(err))
		}
		logger.Info("processor consuming order queue", zap.String("queue", cfg.RabbitMQOrderQueueName))
		if err := orderQ.Consume(ctx, "processor", func(c context.Context, m orderqueue.Message) error {
			return app.HandleOrderMessage(c, m)
		}); err != nil {
			logger.Fatal("order queue consumer exited", zap.Error(err))
		}
		return
	}

	lambda.Start(app.HandleSQSEvent)
}

// newWebhookQueue picks the delivery transport by stage, matching
// cmd/api's and cmd/webhookworker's choice.
func newWebhookQueue(ctx context.Context, stage config.Stage, cfg *config.Config) (queue.Queue, error) {
	if stage == config.StageLocal {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return nil, err
		}
		return rabbitqueue.New(conn, cfg.RabbitMQExchange)
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return sqsqueue.New(sqs.NewFromConfig(awsCfg), cfg.WebhookQueueURL), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
