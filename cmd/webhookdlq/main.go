// Command webhookdlq drains the webhook dead-letter queue: deliveries
// that exhausted delivery.Worker's retry budget land here and are
// logged as permanently failed, grounded on apps/dlq-processor/cmd/main.go's
// SQS-event handler shape. Spec §4.6 calls for logging only, no
// automatic reprocessing.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/basesub/subscriptions/internal/config"
	"github.com/basesub/subscriptions/internal/logger"
	"github.com/basesub/subscriptions/internal/webhook/delivery"
	"github.com/basesub/subscriptions/internal/webhook/queue"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Application holds the DLQ consumer's dependencies.
type Application struct {
	consumer *delivery.DLQConsumer
}

// HandleSQSEvent is the Lambda entry point for the dev/prod
// deployment, wired via an SQS event source mapping on the webhook
// DLQ. Every record is a terminal delivery; processing never fails,
// so the batch always acks.
func (app *Application) HandleSQSEvent(ctx context.Context, event events.SQSEvent) error {
	for _, record := range event.Records {
		d, err := queue.Unmarshal([]byte(record.Body))
		if err != nil {
			logger.Error("webhookdlq: malformed sqs message, dropping", zap.String("message_id", record.MessageId), zap.Error(err))
			continue
		}
		lastError := attributeString(record.MessageAttributes, "LastError")
		app.consumer.Handle(ctx, d, lastError)
	}
	return nil
}

func attributeString(attrs map[string]events.SQSMessageAttribute, key string) string {
	attr, ok := attrs[key]
	if !ok || attr.StringValue == nil {
		return ""
	}
	return *attr.StringValue
}

func main() {
	stage := config.Stage(envOr("STAGE", string(config.StageLocal)))
	logger.InitLogger(string(stage))
	defer logger.RecoverPanic()
	defer func() { _ = logger.Sync() }()

	app := &Application{consumer: delivery.NewDLQConsumer(logger.Log)}

	if stage == config.StageLocal {
		runLocal(app)
		return
	}

	lambda.Start(app.HandleSQSEvent)
}

// runLocal drains the RabbitMQ webhook DLQ directly: unlike the
// publish-side rabbitqueue.Queue, the DLQ consumer needs the
// last_error header, so it consumes the channel itself rather than
// going through rabbitqueue.Consume's queue.Delivery-only callback.
func runLocal(app *Application) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, config.StageLocal)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	if err := logger.InitSentry(cfg.SentryDSN, string(config.StageLocal), os.Getenv("RELEASE")); err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("failed to dial rabbitmq", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("failed to open channel", zap.Error(err))
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(cfg.RabbitMQWebhookDLQName, true, false, false, false, nil); err != nil {
		logger.Fatal("failed to declare dlq", zap.Error(err))
	}

	deliveries, err := ch.Consume(cfg.RabbitMQWebhookDLQName, "webhookdlq", false, false, false, false, nil)
	if err != nil {
		logger.Fatal("failed to consume dlq", zap.Error(err))
	}

	logger.Info("webhookdlq consuming dead-letter queue", zap.String("queue", cfg.RabbitMQWebhookDLQName))
	for {
		select {
		case <-ctx.Done():
			logger.Info("webhookdlq shutting down")
			return
		case m, ok := <-deliveries:
			if !ok {
				logger.Fatal("dlq delivery channel closed", zap.Error(fmt.Errorf("channel closed")))
			}
			d, err := queue.Unmarshal(m.Body)
			if err != nil {
				logger.Error("webhookdlq: malformed message, dropping", zap.Error(err))
				m.Nack(false, false)
				continue
			}
			lastError, _ := m.Headers["last_error"].(string)
			app.consumer.Handle(ctx, d, lastError)
			m.Ack(false)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
