// Command api runs the merchant-facing HTTP surface (spec §6):
// subscription, API key, and webhook management RPCs behind
// EnsureValidAPIKeyOrToken.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/basesub/subscriptions/internal/apikey"
	"github.com/basesub/subscriptions/internal/auth"
	"github.com/basesub/subscriptions/internal/config"
	"github.com/basesub/subscriptions/internal/httpapi"
	"github.com/basesub/subscriptions/internal/logger"
	"github.com/basesub/subscriptions/internal/provider"
	"github.com/basesub/subscriptions/internal/provider/baseprovider"
	"github.com/basesub/subscriptions/internal/scheduler/redisalarm"
	"github.com/basesub/subscriptions/internal/service"
	"github.com/basesub/subscriptions/internal/store/postgres"
	"github.com/basesub/subscriptions/internal/webhook"
	"github.com/basesub/subscriptions/internal/webhook/queue"
	"github.com/basesub/subscriptions/internal/webhook/queue/rabbitqueue"
	"github.com/basesub/subscriptions/internal/webhook/queue/sqsqueue"

	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

// Application wraps the gin router behind a ginadapter so the same
// handler tree serves both the local HTTP server and, in dev/prod, a
// single Lambda fronted by API Gateway.
type Application struct {
	router *ginadapter.GinLambda
}

// HandleAPIGatewayRequest is the Lambda entry point for the dev/prod
// deployment, wired behind an API Gateway REST API.
func (app *Application) HandleAPIGatewayRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return app.router.ProxyWithContext(ctx, req)
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
	providers := map[string]provider.SubscriptionProvider{
		"base": baseProvider,
	}

	webhookQueue, err := newWebhookQueue(stage, cfg)
	if err != nil {
		logger.Fatal("failed to build webhook queue", zap.Error(err))
	}
	outbox := webhook.New(st, webhookQueue, logger.Log)

	svc := service.New(st, providers, sched, outbox, logger.Log)
	apiKeySvc := apikey.New(st, logger.Log)
	webhookSvc := webhook.NewService(st, stage, logger.Log)

	var jwtValidator *auth.Validator
	if cfg.CDPJWKSURL != "" {
		jwtValidator, err = auth.NewValidator(cfg.CDPJWKSURL, cfg.CDPIssuer, cfg.CDPAudience, logger.Log)
		if err != nil {
			logger.Fatal("failed to build cdp jwt validator", zap.Error(err))
		}
	}

	router := httpapi.NewRouter(httpapi.Dependencies{
		Store:        st,
		Subscription: svc,
		ApiKeys:      apiKeySvc,
		Webhooks:     webhookSvc,
		JWTValidator: jwtValidator,
	})

	if stage == config.StageLocal {
		logger.Info("api listening", zap.String("addr", cfg.ListenAddr), zap.String("stage", string(stage)))
		if err := router.Run(cfg.ListenAddr); err != nil {
			logger.Fatal("server exited", zap.Error(err))
		}
		return
	}

	app := &Application{router: ginadapter.New(router)}
	lambda.Start(app.HandleAPIGatewayRequest)
}

// newWebhookQueue picks the delivery transport by stage, mirroring
// cmd/processor and cmd/webhookworker's choice: RabbitMQ for the
// long-lived local deployment, SQS for the Lambda-fronted dev/prod
// deployment.
func newWebhookQueue(stage config.Stage, cfg *config.Config) (queue.Queue, error) {
	if stage == config.StageLocal {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return nil, fmt.Errorf("dial rabbitmq: %w", err)
		}
		q, err := rabbitqueue.New(conn, cfg.RabbitMQExchange)
		if err != nil {
			return nil, fmt.Errorf("declare webhook queue: %w", err)
		}
		return q, nil
	}

	awsCfg, err := awscfg.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sqsqueue.New(sqs.NewFromConfig(awsCfg), cfg.WebhookQueueURL), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
