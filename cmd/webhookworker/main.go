// Command webhookworker drives webhook delivery attempts (C6): it
// consumes the delivery queue and calls delivery.Worker.Handle for
// every message, grounded on apps/webhook-processor's SQS-event Lambda
// shape for dev/prod and a standing RabbitMQ consumer for local.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/basesub/subscriptions/internal/config"
	"github.com/basesub/subscriptions/internal/logger"
	"github.com/basesub/subscriptions/internal/webhook/delivery"
	"github.com/basesub/subscriptions/internal/webhook/queue"
	"github.com/basesub/subscriptions/internal/webhook/queue/rabbitqueue"
	"github.com/basesub/subscriptions/internal/webhook/queue/sqsqueue"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	amqp "github.com/rabbitmq/amqp091-go"
)

const attemptDeadline = 10 * time.Second

// Application holds the worker's dependencies.
type Application struct {
	worker *delivery.Worker
}

// HandleSQSEvent is the Lambda entry point for the dev/prod
// deployment, wired via an SQS event source mapping on the webhook
// delivery queue.
func (app *Application) HandleSQSEvent(ctx context.Context, event events.SQSEvent) error {
	for _, record := range event.Records {
		d, err := queue.Unmarshal([]byte(record.Body))
		if err != nil {
			logger.Error("webhookworker: malformed sqs message, dropping", zap.String("message_id", record.MessageId), zap.Error(err))
			continue
		}
		if err := app.worker.Handle(ctx, d); err != nil {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, stage)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	if err := logger.InitSentry(cfg.SentryDSN, string(stage), os.Getenv("RELEASE")); err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
	}

	if stage == config.StageLocal {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal("failed to dial rabbitmq", zap.Error(err))
		}
		q, err := rabbitqueue.New(conn, cfg.RabbitMQExchange)
		if err != nil {
			logger.Fatal("failed to declare webhook queue", zap.Error(err))
		}
		dlq, err := rabbitqueue.New(conn, cfg.RabbitMQWebhookDLQName)
		if err != nil {
			logger.Fatal("failed to declare webhook dlq", zap.Error(err))
		}
		worker := delivery.New(q, dlq, logger.Log, attemptDeadline)

		logger.Info("webhookworker consuming delivery queue", zap.String("queue", cfg.RabbitMQExchange))
		if err := q.Consume(ctx, "webhookworker", worker.Handle); err != nil {
			logger.Fatal("webhook queue consumer exited", zap.Error(err))
		}
		return
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Fatal("failed to load aws config", zap.Error(err))
	}
	sqsClient := sqs.NewFromConfig(awsCfg)
	requeue := sqsqueue.New(sqsClient, cfg.WebhookQueueURL)
	dlq := sqsqueue.New(sqsClient, cfg.WebhookQueueDLQ)

	app := &Application{worker: delivery.New(requeue, dlq, logger.Log, attemptDeadline)}
	lambda.Start(app.HandleSQSEvent)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
